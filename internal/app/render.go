package service

import (
	"time"

	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/query"
)

// MarkLayout formats slider mark labels.
const MarkLayout = "01/02/2006"

// Render recomputes every figure for in. Offsets outside the dataset fail
// with model.ErrOffsetOutOfRange; a start after the end yields empty figures.
func Render(ds *model.Dataset, in model.Inputs) (figure.Figures, error) {
	if ds == nil || ds.Len() == 0 {
		return figure.Figures{}, model.ErrEmptyDataset
	}
	in = in.Normalize()
	f, err := query.FromOffsets(ds, in.StartOffset, in.EndOffset, in.Country)
	if err != nil {
		return figure.Figures{}, err
	}
	if lo, hi := ds.Bounds(); in.StartOffset == lo && in.EndOffset == hi && f.AnyCountry() {
		return figure.Build(in, f, query.All(ds)), nil
	}
	return figure.Build(in, f, query.Apply(ds, f)), nil
}

// Mark is a labelled tick on the date slider.
type Mark struct {
	Offset int    `json:"offset"`
	Label  string `json:"label"`
}

// Controls describes the dashboard inputs a client can offer.
type Controls struct {
	Countries []string `json:"countries"`
	Min       int      `json:"min"`
	Max       int      `json:"max"`
	Marks     []Mark   `json:"marks"`
	Default   [2]int   `json:"value"`
	Dates     []string `json:"dates"`
}

// DefaultInputs selects the whole dataset.
func (c Controls) DefaultInputs() model.Inputs {
	return model.Inputs{StartOffset: c.Default[0], EndOffset: c.Default[1], Country: model.AllCountries}
}

// BuildControls derives the control metadata of ds. Marks sit on the first
// day, the first day of every later calendar year, and the last day.
func BuildControls(ds *model.Dataset) Controls {
	countries := ds.Countries()
	c := Controls{
		Countries: make([]string, 0, len(countries)+1),
		Marks:     []Mark{},
		Dates:     make([]string, 0, ds.NumDays()),
	}
	c.Countries = append(c.Countries, model.AllCountries)
	for _, ct := range countries {
		c.Countries = append(c.Countries, ct.Name)
	}

	lo, hi := ds.Bounds()
	c.Min, c.Max = lo, hi
	c.Default = [2]int{lo, hi}
	if hi < lo {
		return c
	}

	days := ds.Days()
	for _, d := range days {
		c.Dates = append(c.Dates, d.Format(time.DateOnly))
	}
	c.Marks = append(c.Marks, Mark{Offset: lo, Label: days[lo].Format(MarkLayout)})
	for i := lo + 1; i < hi; i++ {
		if days[i].Year() != days[i-1].Year() {
			c.Marks = append(c.Marks, Mark{Offset: i, Label: days[i].Format(MarkLayout)})
		}
	}
	if hi > lo {
		c.Marks = append(c.Marks, Mark{Offset: hi, Label: days[hi].Format(MarkLayout)})
	}
	return c
}
