// Package chartpng renders daily line charts to PNG on the server.
package chartpng

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/epidash/internal/domain/figure"
)

// Default image size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 400
)

// ErrRender is returned when the chart library fails to draw.
var ErrRender = errors.New("render chart")

// Renderer draws figure.LineChart values as PNG images.
type Renderer struct {
	width  int
	height int
	color  drawing.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the image size. Non-positive values keep the default.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = width
		}
		if height > 0 {
			r.height = height
		}
	}
}

// WithColor sets the line colour.
func WithColor(c drawing.Color) Option {
	return func(r *Renderer) {
		r.color = c
	}
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		width:  DefaultWidth,
		height: DefaultHeight,
		color:  chart.ColorBlue,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes c as a PNG to w. start and end bound the x axis when the
// chart has fewer than two points, so empty and single-day selections still
// draw.
func (r *Renderer) Render(w io.Writer, c figure.LineChart, start, end time.Time) error {
	xs := make([]time.Time, 0, len(c.Points))
	ys := make([]float64, 0, len(c.Points))
	var peak float64
	for _, p := range c.Points {
		xs = append(xs, p.Date)
		ys = append(ys, float64(p.Value))
		if float64(p.Value) > peak {
			peak = float64(p.Value)
		}
	}

	// The library needs a non-zero range on both axes.
	switch len(xs) {
	case 0:
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		xs = []time.Time{start, end}
		ys = []float64{0, 0}
	case 1:
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}
	yAxis := chart.YAxis{Name: c.YLabel}
	if peak == 0 {
		yAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: yAxis,
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    c.YLabel,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: r.color,
					StrokeWidth: 2,
				},
			},
		},
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("%w %s: %w", ErrRender, c.ID, err)
	}
	return nil
}
