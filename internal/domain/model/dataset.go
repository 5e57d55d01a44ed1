package model

import (
	"fmt"
	"sort"
	"time"
)

// Dataset is the read-only record set the dashboard works on. Columns are
// stored as parallel slices with countries, codes and days dictionary
// encoded, so a filtered view is just a list of row indexes.
//
// A Dataset is safe for concurrent use because nothing mutates it after Build.
type Dataset struct {
	dayIDs     []int32
	countryIDs []int32
	codeIDs    []int32
	cases      []int64
	deaths     []int64
	population []int64

	days       []time.Time // distinct, ascending
	countries  []Country   // first-appearance order
	countryIdx map[string]int32
	codes      []string // first-appearance order
	maxPop     []int64  // by country id
}

// Builder accumulates records for a Dataset.
type Builder struct {
	rows       []Record
	countries  []Country
	countryIdx map[string]int32
	codes      []string
	codeIdx    map[string]int32
}

// NewBuilder returns a Builder sized for about n records.
func NewBuilder(n int) *Builder {
	if n < 0 {
		n = 0
	}
	return &Builder{
		rows:       make([]Record, 0, n),
		countryIdx: make(map[string]int32),
		codeIdx:    make(map[string]int32),
	}
}

// Add appends a record. Each record keeps its own code; the first code seen
// for a country is the one Country reports for it.
func (b *Builder) Add(r Record) {
	r.Date = Day(r.Date)
	if _, ok := b.countryIdx[r.Country]; !ok {
		b.countryIdx[r.Country] = int32(len(b.countries))
		b.countries = append(b.countries, Country{Name: r.Country, Code: r.Code})
	}
	if _, ok := b.codeIdx[r.Code]; !ok {
		b.codeIdx[r.Code] = int32(len(b.codes))
		b.codes = append(b.codes, r.Code)
	}
	b.rows = append(b.rows, r)
}

// Len returns the number of records added so far.
func (b *Builder) Len() int { return len(b.rows) }

// Build freezes the accumulated records. The builder must not be reused.
func (b *Builder) Build() *Dataset {
	n := len(b.rows)
	ds := &Dataset{
		dayIDs:     make([]int32, n),
		countryIDs: make([]int32, n),
		codeIDs:    make([]int32, n),
		cases:      make([]int64, n),
		deaths:     make([]int64, n),
		population: make([]int64, n),
		countries:  b.countries,
		countryIdx: b.countryIdx,
		codes:      b.codes,
		maxPop:     make([]int64, len(b.countries)),
	}

	seen := make(map[time.Time]struct{})
	for _, r := range b.rows {
		if _, ok := seen[r.Date]; !ok {
			seen[r.Date] = struct{}{}
			ds.days = append(ds.days, r.Date)
		}
	}
	sort.Slice(ds.days, func(i, j int) bool { return ds.days[i].Before(ds.days[j]) })
	dayIdx := make(map[time.Time]int32, len(ds.days))
	for i, d := range ds.days {
		dayIdx[d] = int32(i)
	}

	for i, r := range b.rows {
		cid := b.countryIdx[r.Country]
		ds.dayIDs[i] = dayIdx[r.Date]
		ds.countryIDs[i] = cid
		ds.codeIDs[i] = b.codeIdx[r.Code]
		ds.cases[i] = r.NewCasesConfirmed
		ds.deaths[i] = r.NewCasesDeath
		ds.population[i] = r.Population
		if r.Population > ds.maxPop[cid] {
			ds.maxPop[cid] = r.Population
		}
	}

	b.rows = nil
	return ds
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.cases) }

// Row materialises record i.
func (d *Dataset) Row(i int) Record {
	c := d.countries[d.countryIDs[i]]
	return Record{
		Date:              d.days[d.dayIDs[i]],
		Country:           c.Name,
		Code:              d.codes[d.codeIDs[i]],
		NewCasesConfirmed: d.cases[i],
		NewCasesDeath:     d.deaths[i],
		Population:        d.population[i],
	}
}

// CasesAt returns the new confirmed cases of record i.
func (d *Dataset) CasesAt(i int) int64 { return d.cases[i] }

// DeathsAt returns the new deaths of record i.
func (d *Dataset) DeathsAt(i int) int64 { return d.deaths[i] }

// PopulationAt returns the population reported by record i.
func (d *Dataset) PopulationAt(i int) int64 { return d.population[i] }

// CountryIDAt returns the country dictionary id of record i.
func (d *Dataset) CountryIDAt(i int) int32 { return d.countryIDs[i] }

// CodeIDAt returns the code dictionary id of record i. Resolve it with Code.
func (d *Dataset) CodeIDAt(i int) int32 { return d.codeIDs[i] }

// DayIDAt returns the date dictionary id of record i, which is also its
// selector offset.
func (d *Dataset) DayIDAt(i int) int32 { return d.dayIDs[i] }

// Code returns the country code with dictionary id.
func (d *Dataset) Code(id int32) string { return d.codes[id] }

// Country returns the country with dictionary id.
func (d *Dataset) Country(id int32) Country { return d.countries[id] }

// Day returns the date with dictionary id, which is also its slider offset.
func (d *Dataset) Day(id int32) time.Time { return d.days[id] }

// NumCountries returns the number of distinct countries.
func (d *Dataset) NumCountries() int { return len(d.countries) }

// NumDays returns the number of distinct dates.
func (d *Dataset) NumDays() int { return len(d.days) }

// Countries returns the distinct countries in first-appearance order.
func (d *Dataset) Countries() []Country {
	out := make([]Country, len(d.countries))
	copy(out, d.countries)
	return out
}

// Days returns the distinct dates in ascending order.
func (d *Dataset) Days() []time.Time {
	out := make([]time.Time, len(d.days))
	copy(out, d.days)
	return out
}

// CountryID looks up a country by name.
func (d *Dataset) CountryID(name string) (int32, bool) {
	id, ok := d.countryIdx[name]
	return id, ok
}

// Population returns the largest population reported for a country.
func (d *Dataset) Population(name string) (int64, error) {
	id, ok := d.countryIdx[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCountry, name)
	}
	return d.maxPop[id], nil
}

// Bounds returns the inclusive offset range of the date selector. An empty
// dataset reports (0, -1).
func (d *Dataset) Bounds() (lo, hi int) {
	return 0, len(d.days) - 1
}

// DayAt resolves a selector offset into its date.
func (d *Dataset) DayAt(offset int) (time.Time, error) {
	if offset < 0 || offset >= len(d.days) {
		return time.Time{}, fmt.Errorf("%w: %d not in [0, %d]", ErrOffsetOutOfRange, offset, len(d.days)-1)
	}
	return d.days[offset], nil
}

// OffsetOf returns the selector offset of the first date on or after t.
// The second result is false when t is after the last date.
func (d *Dataset) OffsetOf(t time.Time) (int, bool) {
	t = Day(t)
	i := sort.Search(len(d.days), func(i int) bool { return !d.days[i].Before(t) })
	return i, i < len(d.days)
}
