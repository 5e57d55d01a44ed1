// Package figure turns aggregates into chart-ready structures. The client
// renders them with Plotly; the PNG renderer reads the line charts directly.
package figure

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/query"
)

// Figure ids, shared with the dashboard page.
const (
	CasesKPIID     = "cases_kpi"
	DeathsKPIID    = "deaths_kpi"
	IncidenceKPIID = "incidence_kpi"
	MortalityKPIID = "mortality_kpi"
	LethalityKPIID = "lethality_kpi"
	MapID          = "map"
	CasesLineID    = "cases_line"
	DeathsLineID   = "deaths_line"
)

// Count is the number of figures published per render.
const Count = 8

// Bubble map presentation.
const (
	MapTitle      = "Cases and Deaths by Country"
	MapProjection = "natural earth"
	MapColorScale = "YlOrRd"
	MapSizeMax    = 40
	MapHoverFmt   = ":.2f"
)

// NotAvailable is shown for a ratio whose denominator was zero.
const NotAvailable = "N/A"

// KPI is a single number indicator.
type KPI struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Defined bool    `json:"defined"`
}

// MapPoint is one country marker: colour is cases, size is deaths, both
// in the map's units.
type MapPoint struct {
	Code    string  `json:"code"`
	Country string  `json:"country"`
	Cases   float64 `json:"cases"`
	Deaths  float64 `json:"deaths"`
}

// BubbleMap is the geographic scatter of per-country totals.
type BubbleMap struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Projection  string     `json:"projection"`
	SizeMax     int        `json:"size_max"`
	ColorScale  string     `json:"color_scale"`
	HoverFormat string     `json:"hover_format"`
	CasesUnit   string     `json:"cases_unit"`
	DeathsUnit  string     `json:"deaths_unit"`
	CasesLabel  string     `json:"cases_label"`
	DeathsLabel string     `json:"deaths_label"`
	Points      []MapPoint `json:"points"`
}

// LinePoint is one day of a line chart.
type LinePoint struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// LineChart is a daily time series.
type LineChart struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	YLabel string      `json:"y_label"`
	Points []LinePoint `json:"points"`
}

// Figures is everything one render publishes. The eight figures are always
// produced together from the same view.
type Figures struct {
	Inputs     model.Inputs `json:"inputs"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Country    string       `json:"country"`
	Rows       int          `json:"rows"`
	KPIs       []KPI        `json:"kpis"`
	Map        BubbleMap    `json:"map"`
	CasesLine  LineChart    `json:"cases_line"`
	DeathsLine LineChart    `json:"deaths_line"`
}

// Build computes all figures for the view selected by f.
func Build(in model.Inputs, f query.Filter, v query.View) Figures {
	s := aggregate.Summarize(v)
	country := f.Country
	if f.AnyCountry() {
		country = model.AllCountries
	}
	return Figures{
		Inputs:  in.Normalize(),
		Start:   f.Start,
		End:     f.End,
		Country: country,
		Rows:    v.Len(),
		KPIs: []KPI{
			CountKPI(CasesKPIID, "Cases", s.Cases),
			CountKPI(DeathsKPIID, "Deaths", s.Deaths),
			RatioKPI(IncidenceKPIID, "Incidence", s.Incidence),
			RatioKPI(MortalityKPIID, "Mortality", s.Mortality),
			RatioKPI(LethalityKPIID, "Lethality", s.Lethality),
		},
		Map:        Map(aggregate.Scale(aggregate.PerCountry(v))),
		CasesLine:  Line(CasesLineID, "Cases", aggregate.Daily(v, aggregate.Cases)),
		DeathsLine: Line(DeathsLineID, "Deaths", aggregate.Daily(v, aggregate.Deaths)),
	}
}

// CountKPI builds an integer indicator shown with thousands separators.
func CountKPI(id, title string, n int64) KPI {
	return KPI{ID: id, Title: title, Value: float64(n), Display: humanize.Comma(n), Defined: true}
}

// RatioKPI builds a ratio indicator shown with three decimals, or N/A.
func RatioKPI(id, title string, r aggregate.Ratio) KPI {
	k := KPI{ID: id, Title: title, Value: r.Value, Defined: r.Defined, Display: NotAvailable}
	if r.Defined {
		k.Display = strconv.FormatFloat(r.Value, 'f', 3, 64)
	}
	return k
}

// Map builds the bubble map from scaled per-country totals.
func Map(s aggregate.Scaled) BubbleMap {
	m := BubbleMap{
		ID:          MapID,
		Title:       MapTitle,
		Projection:  MapProjection,
		SizeMax:     MapSizeMax,
		ColorScale:  MapColorScale,
		HoverFormat: MapHoverFmt,
		CasesUnit:   s.CasesUnit,
		DeathsUnit:  s.DeathsUnit,
		CasesLabel:  label("Cases", s.CasesUnit),
		DeathsLabel: label("Deaths", s.DeathsUnit),
		Points:      make([]MapPoint, len(s.Rows)),
	}
	for i, r := range s.Rows {
		m.Points[i] = MapPoint{Code: r.Code, Country: r.Country, Cases: r.Cases, Deaths: r.Deaths}
	}
	return m
}

// Line builds a "<name> by Day" chart.
func Line(id, name string, pts []aggregate.DailyPoint) LineChart {
	c := LineChart{
		ID:     id,
		Title:  name + " by Day",
		YLabel: name,
		Points: make([]LinePoint, len(pts)),
	}
	for i, p := range pts {
		c.Points[i] = LinePoint(p)
	}
	return c
}

// KPI returns the indicator with id.
func (f *Figures) KPI(id string) (KPI, bool) {
	for _, k := range f.KPIs {
		if k.ID == id {
			return k, true
		}
	}
	return KPI{}, false
}

// Line returns the line chart for metric.
func (f *Figures) Line(metric aggregate.Metric) LineChart {
	if metric == aggregate.Deaths {
		return f.DeathsLine
	}
	return f.CasesLine
}

func label(name, unit string) string {
	if unit == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, unit)
}
