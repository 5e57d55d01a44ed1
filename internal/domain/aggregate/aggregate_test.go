package aggregate_test

import (
	"testing"
	"time"

	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/query"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func build(rows ...model.Record) *model.Dataset {
	b := model.NewBuilder(len(rows))
	for _, r := range rows {
		b.Add(r)
	}
	return b.Build()
}

func everything(ds *model.Dataset) query.View {
	days := ds.Days()
	if len(days) == 0 {
		return query.All(ds)
	}
	return query.Apply(ds, query.Filter{Start: days[0], End: days[len(days)-1], Country: query.AllCountries})
}

func TestTwoCountryExample(t *testing.T) {
	Convey("Given two countries reporting on the same day", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 100, NewCasesDeath: 10, Population: 1000},
			model.Record{Date: day("2020-01-01"), Country: "B", Code: "BB", NewCasesConfirmed: 50, NewCasesDeath: 5, Population: 500},
		)
		v := everything(ds)

		Convey("Then the headline numbers match the hand computed values", func() {
			So(aggregate.TotalCases(v), ShouldEqual, 150)
			So(aggregate.TotalDeaths(v), ShouldEqual, 15)
			So(aggregate.PopulationDenominator(v), ShouldEqual, 1500)
			So(aggregate.Incidence(v), ShouldResemble, aggregate.Ratio{Value: 0.1, Defined: true})
			So(aggregate.Mortality(v), ShouldResemble, aggregate.Ratio{Value: 0.01, Defined: true})
			So(aggregate.Lethality(v), ShouldResemble, aggregate.Ratio{Value: 0.1, Defined: true})
		})

		Convey("And Summarize agrees with the individual functions", func() {
			s := aggregate.Summarize(v)
			So(s.Cases, ShouldEqual, aggregate.TotalCases(v))
			So(s.Deaths, ShouldEqual, aggregate.TotalDeaths(v))
			So(s.Incidence, ShouldResemble, aggregate.Incidence(v))
			So(s.Mortality, ShouldResemble, aggregate.Mortality(v))
			So(s.Lethality, ShouldResemble, aggregate.Lethality(v))
		})

		Convey("And the per-country rollup has one row each", func() {
			So(aggregate.PerCountry(v), ShouldResemble, []aggregate.CountryTotal{
				{Code: "AA", Country: "A", Cases: 100, Deaths: 10},
				{Code: "BB", Country: "B", Cases: 50, Deaths: 5},
			})
		})
	})
}

func TestPopulationDenominator(t *testing.T) {
	Convey("Given a country reporting many days", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 1, Population: 1000},
			model.Record{Date: day("2020-01-02"), Country: "A", Code: "AA", NewCasesConfirmed: 1, Population: 1000},
			model.Record{Date: day("2020-01-03"), Country: "A", Code: "AA", NewCasesConfirmed: 1, Population: 1010},
			model.Record{Date: day("2020-01-01"), Country: "B", Code: "BB", NewCasesConfirmed: 1, Population: 30},
		)

		Convey("Then population is counted once per country at its maximum", func() {
			So(aggregate.PopulationDenominator(everything(ds)), ShouldEqual, 1040)
		})

		Convey("And the maximum is taken within the view only", func() {
			v := query.Apply(ds, query.Filter{Start: day("2020-01-01"), End: day("2020-01-02"), Country: "A"})
			So(aggregate.PopulationDenominator(v), ShouldEqual, 1000)
		})
	})
}

func TestEmptyView(t *testing.T) {
	Convey("Given a range with start after end", t, func() {
		ds := build(model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 5, NewCasesDeath: 1, Population: 10})
		v := query.Apply(ds, query.Filter{Start: day("2020-02-01"), End: day("2020-01-01")})

		Convey("Then every aggregate is zero and ratios are undefined", func() {
			s := aggregate.Summarize(v)
			So(s, ShouldResemble, aggregate.Summary{})
			So(s.Lethality.Defined, ShouldBeFalse)
			So(aggregate.PerCountry(v), ShouldBeEmpty)
			So(aggregate.Daily(v, aggregate.Cases), ShouldBeEmpty)
			So(aggregate.Scale(aggregate.PerCountry(v)).CasesUnit, ShouldEqual, "")
		})
	})

	Convey("Given a view with deaths but no cases", t, func() {
		ds := build(model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesDeath: 3, Population: 10})

		Convey("Then lethality is undefined instead of failing", func() {
			So(aggregate.Lethality(everything(ds)), ShouldResemble, aggregate.Ratio{})
			So(aggregate.Mortality(everything(ds)).Defined, ShouldBeTrue)
		})
	})
}

func TestRound3(t *testing.T) {
	Convey("Given values on and off the rounding boundary", t, func() {
		So(aggregate.Round3(0.1234), ShouldEqual, 0.123)
		So(aggregate.Round3(0.1236), ShouldEqual, 0.124)
		So(aggregate.Round3(0.0625), ShouldEqual, 0.062)
		So(aggregate.Round3(0.0), ShouldEqual, 0.0)
		So(aggregate.Round3(2.0/3.0), ShouldEqual, 0.667)
	})
}

func TestSingleCountryRollup(t *testing.T) {
	Convey("Given a filter on one country", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 1, NewCasesDeath: 0, Population: 10},
			model.Record{Date: day("2020-01-02"), Country: "A", Code: "AA", NewCasesConfirmed: 2, NewCasesDeath: 1, Population: 10},
			model.Record{Date: day("2020-01-01"), Country: "B", Code: "BB", NewCasesConfirmed: 9, NewCasesDeath: 4, Population: 50},
		)
		v := query.Apply(ds, query.Filter{Start: day("2020-01-01"), End: day("2020-01-02"), Country: "A"})

		Convey("Then the rollup has exactly one row", func() {
			rows := aggregate.PerCountry(v)
			So(rows, ShouldHaveLength, 1)
			So(rows[0], ShouldResemble, aggregate.CountryTotal{Code: "AA", Country: "A", Cases: 3, Deaths: 1})
		})
	})
}

func TestPerCountryOrdering(t *testing.T) {
	Convey("Given countries inserted out of code order", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-01"), Country: "Zed", Code: "ZZZ", NewCasesConfirmed: 1},
			model.Record{Date: day("2020-01-01"), Country: "Beta", Code: "AAA", NewCasesConfirmed: 2},
			model.Record{Date: day("2020-01-01"), Country: "Alpha", Code: "AAA", NewCasesConfirmed: 3},
		)

		Convey("Then rows sort by code then name", func() {
			rows := aggregate.PerCountry(everything(ds))
			So([]string{rows[0].Country, rows[1].Country, rows[2].Country}, ShouldResemble, []string{"Alpha", "Beta", "Zed"})
		})
	})
}

func TestPerCountryCodes(t *testing.T) {
	Convey("Given one country reported under two codes", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 10, NewCasesDeath: 2, Population: 100},
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AX", NewCasesConfirmed: 5, NewCasesDeath: 1, Population: 100},
		)

		Convey("Then each row reports the code it was added with", func() {
			So(ds.Row(0).Code, ShouldEqual, "AA")
			So(ds.Row(1).Code, ShouldEqual, "AX")
		})

		Convey("And the rollup keeps one row per country and code", func() {
			rows := aggregate.PerCountry(everything(ds))
			So(rows, ShouldResemble, []aggregate.CountryTotal{
				{Code: "AA", Country: "A", Cases: 10, Deaths: 2},
				{Code: "AX", Country: "A", Cases: 5, Deaths: 1},
			})
		})

		Convey("And the population denominator still counts the country once", func() {
			So(aggregate.PopulationDenominator(everything(ds)), ShouldEqual, 100)
		})
	})
}

func TestScale(t *testing.T) {
	Convey("Given per-country totals", t, func() {
		Convey("When cases exceed a million and deaths a thousand", func() {
			s := aggregate.Scale([]aggregate.CountryTotal{
				{Code: "AA", Country: "A", Cases: 2_500_000, Deaths: 4_000},
				{Code: "BB", Country: "B", Cases: 500_000, Deaths: 500},
			})

			Convey("Then each column gets its own unit", func() {
				So(s.CasesUnit, ShouldEqual, "M")
				So(s.DeathsUnit, ShouldEqual, "K")
				So(s.Rows[0].Cases, ShouldEqual, 2.5)
				So(s.Rows[1].Cases, ShouldEqual, 0.5)
				So(s.Rows[0].Deaths, ShouldEqual, 4.0)
				So(s.Rows[1].Deaths, ShouldEqual, 0.5)
			})
		})

		Convey("When cases are large but deaths are small", func() {
			s := aggregate.Scale([]aggregate.CountryTotal{{Code: "AA", Country: "A", Cases: 50_000, Deaths: 900}})

			Convey("Then deaths stay unscaled", func() {
				So(s.CasesUnit, ShouldEqual, "K")
				So(s.DeathsUnit, ShouldEqual, "")
				So(s.Rows[0].Deaths, ShouldEqual, 900.0)
			})
		})

		Convey("When the maximum sits exactly on a threshold", func() {
			s := aggregate.Scale([]aggregate.CountryTotal{{Cases: 1_000_000, Deaths: 1_000}})

			Convey("Then the lower unit is kept", func() {
				So(s.CasesUnit, ShouldEqual, "K")
				So(s.DeathsUnit, ShouldEqual, "")
			})
		})
	})
}

func TestDaily(t *testing.T) {
	Convey("Given rows on several dates", t, func() {
		ds := build(
			model.Record{Date: day("2020-01-03"), Country: "A", Code: "AA", NewCasesConfirmed: 5, NewCasesDeath: 1},
			model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 1, NewCasesDeath: 0},
			model.Record{Date: day("2020-01-01"), Country: "B", Code: "BB", NewCasesConfirmed: 2, NewCasesDeath: 2},
		)
		v := everything(ds)

		Convey("Then one point per date is produced in ascending order", func() {
			So(aggregate.Daily(v, aggregate.Cases), ShouldResemble, []aggregate.DailyPoint{
				{Date: day("2020-01-01"), Value: 3},
				{Date: day("2020-01-03"), Value: 5},
			})
			So(aggregate.Daily(v, aggregate.Deaths), ShouldResemble, []aggregate.DailyPoint{
				{Date: day("2020-01-01"), Value: 2},
				{Date: day("2020-01-03"), Value: 1},
			})
		})

		Convey("And the daily sums add up to the total", func() {
			var sum int64
			for _, p := range aggregate.Daily(v, aggregate.Cases) {
				sum += p.Value
			}
			So(sum, ShouldEqual, aggregate.TotalCases(v))
		})
	})

	Convey("Metric validity", t, func() {
		So(aggregate.Cases.Valid(), ShouldBeTrue)
		So(aggregate.Deaths.Valid(), ShouldBeTrue)
		So(aggregate.Metric("recovered").Valid(), ShouldBeFalse)
	})
}

func TestNonNegativeIncidence(t *testing.T) {
	Convey("Given arbitrary non-negative inputs", t, func() {
		for i := int64(0); i < 20; i++ {
			ds := build(
				model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: i * 7, NewCasesDeath: i, Population: 100 + i},
				model.Record{Date: day("2020-01-02"), Country: "B", Code: "BB", NewCasesConfirmed: i * 3, NewCasesDeath: i / 2, Population: 40},
			)
			So(aggregate.Incidence(everything(ds)).Value, ShouldBeGreaterThanOrEqualTo, 0)
		}
	})
}
