package figure_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/query"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dataset() *model.Dataset {
	b := model.NewBuilder(4)
	b.Add(model.Record{Date: day("2020-01-01"), Country: "A", Code: "AA", NewCasesConfirmed: 1_500_000, NewCasesDeath: 2_000, Population: 10_000_000})
	b.Add(model.Record{Date: day("2020-01-01"), Country: "B", Code: "BB", NewCasesConfirmed: 50, NewCasesDeath: 5, Population: 500})
	b.Add(model.Record{Date: day("2020-01-02"), Country: "A", Code: "AA", NewCasesConfirmed: 500_000, NewCasesDeath: 1_000, Population: 10_000_000})
	return b.Build()
}

func TestBuild(t *testing.T) {
	Convey("Given the full range over all countries", t, func() {
		ds := dataset()
		f := query.Filter{Start: day("2020-01-01"), End: day("2020-01-02"), Country: ""}
		in := model.Inputs{StartOffset: 0, EndOffset: 1}
		figs := figure.Build(in, f, query.Apply(ds, f))

		Convey("Then the inputs and range are carried along", func() {
			So(figs.Inputs, ShouldResemble, model.Inputs{StartOffset: 0, EndOffset: 1, Country: model.AllCountries})
			So(figs.Country, ShouldEqual, model.AllCountries)
			So(figs.Start, ShouldEqual, day("2020-01-01"))
			So(figs.End, ShouldEqual, day("2020-01-02"))
			So(figs.Rows, ShouldEqual, 3)
		})

		Convey("Then the five indicators are produced in order", func() {
			want := []figure.KPI{
				{ID: figure.CasesKPIID, Title: "Cases", Value: 2_000_050, Display: "2,000,050", Defined: true},
				{ID: figure.DeathsKPIID, Title: "Deaths", Value: 3_005, Display: "3,005", Defined: true},
				{ID: figure.IncidenceKPIID, Title: "Incidence", Value: 0.2, Display: "0.200", Defined: true},
				{ID: figure.MortalityKPIID, Title: "Mortality", Value: 0, Display: "0.000", Defined: true},
				{ID: figure.LethalityKPIID, Title: "Lethality", Value: 0.002, Display: "0.002", Defined: true},
			}
			So(cmp.Diff(want, figs.KPIs), ShouldBeEmpty)
		})

		Convey("Then the map uses per-column units", func() {
			So(figs.Map.CasesUnit, ShouldEqual, "M")
			So(figs.Map.DeathsUnit, ShouldEqual, "K")
			So(figs.Map.CasesLabel, ShouldEqual, "Cases (M)")
			So(figs.Map.DeathsLabel, ShouldEqual, "Deaths (K)")
			So(figs.Map.Projection, ShouldEqual, "natural earth")
			So(figs.Map.SizeMax, ShouldEqual, 40)
			So(figs.Map.ColorScale, ShouldEqual, "YlOrRd")
			want := []figure.MapPoint{
				{Code: "AA", Country: "A", Cases: 2, Deaths: 3},
				{Code: "BB", Country: "B", Cases: 0.00005, Deaths: 0.005},
			}
			So(cmp.Diff(want, figs.Map.Points), ShouldBeEmpty)
		})

		Convey("Then both line charts cover every date", func() {
			So(figs.CasesLine.Title, ShouldEqual, "Cases by Day")
			So(figs.DeathsLine.Title, ShouldEqual, "Deaths by Day")
			So(figs.DeathsLine.YLabel, ShouldEqual, "Deaths")
			want := []figure.LinePoint{{Date: day("2020-01-01"), Value: 1_500_050}, {Date: day("2020-01-02"), Value: 500_000}}
			So(cmp.Diff(want, figs.CasesLine.Points), ShouldBeEmpty)
			So(figs.Line(aggregate.Deaths).ID, ShouldEqual, figure.DeathsLineID)
			So(figs.Line(aggregate.Cases).ID, ShouldEqual, figure.CasesLineID)
		})

		Convey("Then indicators can be looked up by id", func() {
			k, ok := figs.KPI(figure.LethalityKPIID)
			So(ok, ShouldBeTrue)
			So(k.Title, ShouldEqual, "Lethality")
			_, ok = figs.KPI("nope")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given an empty view", t, func() {
		ds := dataset()
		f := query.Filter{Start: day("2020-01-02"), End: day("2020-01-01"), Country: "A"}
		figs := figure.Build(model.Inputs{StartOffset: 1, EndOffset: 0, Country: "A"}, f, query.Apply(ds, f))

		Convey("Then ratios show N/A and the charts are empty but present", func() {
			k, _ := figs.KPI(figure.LethalityKPIID)
			So(k.Display, ShouldEqual, figure.NotAvailable)
			So(k.Defined, ShouldBeFalse)
			c, _ := figs.KPI(figure.CasesKPIID)
			So(c.Display, ShouldEqual, "0")
			So(figs.KPIs, ShouldHaveLength, 5)
			So(figs.Map.Points, ShouldNotBeNil)
			So(figs.Map.Points, ShouldBeEmpty)
			So(figs.Map.CasesLabel, ShouldEqual, "Cases")
			So(figs.CasesLine.Points, ShouldBeEmpty)
			So(figs.Country, ShouldEqual, "A")
		})
	})
}
