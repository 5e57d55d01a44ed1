// Package aggregate computes the dashboard metrics over a filtered view.
//
// Every function is pure: it reads the view and returns fresh values.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/okian/epidash/internal/domain/query"
)

// Metric selects the daily count a rollup sums.
type Metric string

// Supported metrics.
const (
	Cases  Metric = "cases"
	Deaths Metric = "deaths"
)

// Valid reports whether m names a supported metric.
func (m Metric) Valid() bool { return m == Cases || m == Deaths }

// Ratio is a rounded quotient. Defined is false when the denominator was
// zero, in which case Value is 0.
type Ratio struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Summary holds the five headline numbers of a view.
type Summary struct {
	Cases      int64 `json:"cases"`
	Deaths     int64 `json:"deaths"`
	Population int64 `json:"population"`
	Incidence  Ratio `json:"incidence"`
	Mortality  Ratio `json:"mortality"`
	Lethality  Ratio `json:"lethality"`
}

// CountryTotal is the per-country sum of cases and deaths.
type CountryTotal struct {
	Code    string `json:"code"`
	Country string `json:"country"`
	Cases   int64  `json:"cases"`
	Deaths  int64  `json:"deaths"`
}

// ScaledTotal is a CountryTotal expressed in display units.
type ScaledTotal struct {
	Code    string  `json:"code"`
	Country string  `json:"country"`
	Cases   float64 `json:"cases"`
	Deaths  float64 `json:"deaths"`
}

// Scaled is the map-ready rollup with the unit label of each column.
type Scaled struct {
	CasesUnit  string        `json:"cases_unit"`
	DeathsUnit string        `json:"deaths_unit"`
	Rows       []ScaledTotal `json:"rows"`
}

// DailyPoint is one date of a daily rollup.
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// TotalCases sums new confirmed cases.
func TotalCases(v query.View) int64 {
	ds := v.Dataset()
	var sum int64
	for i := 0; i < v.Len(); i++ {
		sum += ds.CasesAt(v.Index(i))
	}
	return sum
}

// TotalDeaths sums new deaths.
func TotalDeaths(v query.View) int64 {
	ds := v.Dataset()
	var sum int64
	for i := 0; i < v.Len(); i++ {
		sum += ds.DeathsAt(v.Index(i))
	}
	return sum
}

// PopulationDenominator sums, once per distinct country in v, the largest
// population that country reports within v.
func PopulationDenominator(v query.View) int64 {
	if v.Empty() {
		return 0
	}
	ds := v.Dataset()
	maxPop := make([]int64, ds.NumCountries())
	seen := make([]bool, ds.NumCountries())
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		cid := ds.CountryIDAt(row)
		p := ds.PopulationAt(row)
		if !seen[cid] || p > maxPop[cid] {
			maxPop[cid] = p
			seen[cid] = true
		}
	}
	var sum int64
	for cid, ok := range seen {
		if ok {
			sum += maxPop[cid]
		}
	}
	return sum
}

// Incidence is cases per head of population over the view.
func Incidence(v query.View) Ratio {
	return ratio(TotalCases(v), PopulationDenominator(v))
}

// Mortality is deaths per head of population over the view.
func Mortality(v query.View) Ratio {
	return ratio(TotalDeaths(v), PopulationDenominator(v))
}

// Lethality is deaths per confirmed case over the view.
func Lethality(v query.View) Ratio {
	return ratio(TotalDeaths(v), TotalCases(v))
}

// Summarize computes the headline numbers of v, sharing the totals between
// the ratios.
func Summarize(v query.View) Summary {
	s := Summary{
		Cases:      TotalCases(v),
		Deaths:     TotalDeaths(v),
		Population: PopulationDenominator(v),
	}
	s.Incidence = ratio(s.Cases, s.Population)
	s.Mortality = ratio(s.Deaths, s.Population)
	s.Lethality = ratio(s.Deaths, s.Cases)
	return s
}

// PerCountry returns one row per (country, code) pair with its summed cases
// and deaths, ordered by code and then name.
func PerCountry(v query.View) []CountryTotal {
	if v.Empty() {
		return []CountryTotal{}
	}
	type key struct{ country, code int32 }
	ds := v.Dataset()
	pos := make(map[key]int, ds.NumCountries())
	out := make([]CountryTotal, 0, ds.NumCountries())
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		k := key{country: ds.CountryIDAt(row), code: ds.CodeIDAt(row)}
		p, ok := pos[k]
		if !ok {
			p = len(out)
			pos[k] = p
			out = append(out, CountryTotal{Code: ds.Code(k.code), Country: ds.Country(k.country).Name})
		}
		out[p].Cases += ds.CasesAt(row)
		out[p].Deaths += ds.DeathsAt(row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// Scale converts per-country totals into display units. Each column is
// scaled by its own maximum: above a million it is shown in millions ("M"),
// above a thousand in thousands ("K"), otherwise as is.
func Scale(rows []CountryTotal) Scaled {
	var maxCases, maxDeaths int64
	for _, r := range rows {
		if r.Cases > maxCases {
			maxCases = r.Cases
		}
		if r.Deaths > maxDeaths {
			maxDeaths = r.Deaths
		}
	}
	casesDiv, casesUnit := unit(maxCases)
	deathsDiv, deathsUnit := unit(maxDeaths)

	out := Scaled{
		CasesUnit:  casesUnit,
		DeathsUnit: deathsUnit,
		Rows:       make([]ScaledTotal, len(rows)),
	}
	for i, r := range rows {
		out.Rows[i] = ScaledTotal{
			Code:    r.Code,
			Country: r.Country,
			Cases:   float64(r.Cases) / casesDiv,
			Deaths:  float64(r.Deaths) / deathsDiv,
		}
	}
	return out
}

// Daily sums metric across countries for every date present in v, in
// ascending date order.
func Daily(v query.View, metric Metric) []DailyPoint {
	if v.Empty() {
		return []DailyPoint{}
	}
	ds := v.Dataset()
	sums := make([]int64, ds.NumDays())
	present := make([]bool, ds.NumDays())
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		d := ds.DayIDAt(row)
		present[d] = true
		if metric == Deaths {
			sums[d] += ds.DeathsAt(row)
		} else {
			sums[d] += ds.CasesAt(row)
		}
	}
	out := make([]DailyPoint, 0)
	for d, ok := range present {
		if ok {
			out = append(out, DailyPoint{Date: ds.Day(int32(d)), Value: sums[d]})
		}
	}
	return out
}

// Round3 rounds x to three decimals, ties to even.
func Round3(x float64) float64 {
	return math.RoundToEven(x*1000) / 1000
}

func ratio(num, den int64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: Round3(float64(num) / float64(den)), Defined: true}
}

func unit(peak int64) (float64, string) {
	switch {
	case peak > 1_000_000:
		return 1_000_000, "M"
	case peak > 1_000:
		return 1_000, "K"
	default:
		return 1, ""
	}
}
