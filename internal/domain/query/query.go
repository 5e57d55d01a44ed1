// Package query narrows a dataset to a date range and an optional country.
package query

import (
	"strings"
	"time"

	"github.com/okian/epidash/internal/domain/model"
)

// AllCountries is the country selection that disables the country filter.
const AllCountries = model.AllCountries

// Filter selects the rows whose date lies in [Start, End] and, unless
// Country is AllCountries or empty, whose country equals Country.
type Filter struct {
	Start   time.Time
	End     time.Time
	Country string
}

// AnyCountry reports whether the filter keeps every country.
func (f Filter) AnyCountry() bool {
	c := strings.TrimSpace(f.Country)
	return c == "" || c == AllCountries
}

// View is a filtered selection over a dataset. It holds row indexes only and
// never copies or changes the underlying data.
type View struct {
	ds   *model.Dataset
	rows []int
}

// Apply evaluates f against ds. An empty result is not an error: a
// reversed range or an unknown country simply selects nothing.
func Apply(ds *model.Dataset, f Filter) View {
	v := View{ds: ds}
	if ds == nil || ds.Len() == 0 {
		return v
	}

	start, end := model.Day(f.Start), model.Day(f.End)
	if start.After(end) {
		return v
	}

	// Day ids are positions in the sorted distinct date list, so the range
	// check becomes an integer comparison.
	lo, ok := ds.OffsetOf(start)
	if !ok {
		return v
	}
	hi, ok := ds.OffsetOf(end)
	if !ok {
		hi = ds.NumDays() - 1
	} else if !ds.Day(int32(hi)).Equal(end) {
		hi--
	}
	if hi < lo {
		return v
	}

	cid := int32(-1)
	if !f.AnyCountry() {
		id, found := ds.CountryID(strings.TrimSpace(f.Country))
		if !found {
			return v
		}
		cid = id
	}

	v.rows = make([]int, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		d := int(ds.DayIDAt(i))
		if d < lo || d > hi {
			continue
		}
		if cid >= 0 && ds.CountryIDAt(i) != cid {
			continue
		}
		v.rows = append(v.rows, i)
	}
	return v
}

// All returns a view over every row of ds.
func All(ds *model.Dataset) View {
	v := View{ds: ds}
	if ds == nil {
		return v
	}
	v.rows = make([]int, ds.Len())
	for i := range v.rows {
		v.rows[i] = i
	}
	return v
}

// FromOffsets turns slider offsets into a Filter. Offsets outside the
// dataset's bounds are rejected with model.ErrOffsetOutOfRange.
func FromOffsets(ds *model.Dataset, startOff, endOff int, country string) (Filter, error) {
	start, err := ds.DayAt(startOff)
	if err != nil {
		return Filter{}, err
	}
	end, err := ds.DayAt(endOff)
	if err != nil {
		return Filter{}, err
	}
	if strings.TrimSpace(country) == "" {
		country = AllCountries
	}
	return Filter{Start: start, End: end, Country: country}, nil
}

// Dataset returns the dataset the view selects from.
func (v View) Dataset() *model.Dataset { return v.ds }

// Len returns the number of selected rows.
func (v View) Len() int { return len(v.rows) }

// Empty reports whether nothing is selected.
func (v View) Empty() bool { return len(v.rows) == 0 }

// Index returns the dataset row index of the i-th selected row.
func (v View) Index(i int) int { return v.rows[i] }

// Each calls fn with every selected record in dataset order.
func (v View) Each(fn func(model.Record)) {
	for _, i := range v.rows {
		fn(v.ds.Row(i))
	}
}

// Rows materialises the selected records.
func (v View) Rows() []model.Record {
	out := make([]model.Record, 0, len(v.rows))
	v.Each(func(r model.Record) { out = append(out, r) })
	return out
}

// Countries returns the distinct countries present in the view, in the
// dataset's country order.
func (v View) Countries() []model.Country {
	if v.ds == nil {
		return nil
	}
	seen := make([]bool, v.ds.NumCountries())
	for _, i := range v.rows {
		seen[v.ds.CountryIDAt(i)] = true
	}
	var out []model.Country
	for id, ok := range seen {
		if ok {
			out = append(out, v.ds.Country(int32(id)))
		}
	}
	return out
}
