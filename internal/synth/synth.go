// Package synth generates plausible per-country, per-day epidemic data for
// demos and load tests. Output is deterministic for a given seed.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/epidash/internal/domain/model"
)

// ErrInvalidShape is returned for non-positive sizes.
var ErrInvalidShape = errors.New("invalid dataset shape")

const (
	defaultCountries = 12
	defaultDays      = 400
	defaultSeed      = 1
	maxWaves         = 4
)

// DefaultStart is the first day emitted unless WithStart says otherwise.
var DefaultStart = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // read-only

// Generator produces records country by country, day by day.
type Generator struct {
	seed      uint64
	countries int
	days      int
	start     time.Time
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSeed fixes the random seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithCountries sets how many countries to emit, capped at MaxCountries.
func WithCountries(n int) Option {
	return func(g *Generator) { g.countries = n }
}

// WithDays sets how many consecutive days to emit.
func WithDays(n int) Option {
	return func(g *Generator) { g.days = n }
}

// WithStart sets the first day.
func WithStart(t time.Time) Option {
	return func(g *Generator) {
		if !t.IsZero() {
			g.start = model.Day(t)
		}
	}
}

// New creates a Generator.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		seed:      defaultSeed,
		countries: defaultCountries,
		days:      defaultDays,
		start:     DefaultStart,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.countries < 1 || g.days < 1 {
		return nil, fmt.Errorf("%w: %d countries x %d days", ErrInvalidShape, g.countries, g.days)
	}
	if g.countries > MaxCountries {
		g.countries = MaxCountries
	}
	return g, nil
}

// Len returns the number of records Each will produce.
func (g *Generator) Len() int { return g.countries * g.days }

// wave is one gaussian bump of daily incidence.
type wave struct {
	peak   float64 // day offset of the peak
	width  float64 // standard deviation in days
	height float64 // peak daily cases per inhabitant
}

// Each calls fn for every record in date-major order: all countries for the
// first day, then the next day. It stops at the first error from fn or ctx.
func (g *Generator) Each(ctx context.Context, fn func(model.Record) error) error {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))

	places := make([]place, g.countries)
	copy(places, catalogue)
	rng.Shuffle(len(places), func(i, j int) { places[i], places[j] = places[j], places[i] })

	waves := make([][]wave, len(places))
	cfr := make([]float64, len(places))
	for i := range places {
		n := 1 + rng.IntN(maxWaves)
		for w := 0; w < n; w++ {
			waves[i] = append(waves[i], wave{
				peak:   rng.Float64() * float64(g.days),
				width:  10 + rng.Float64()*40,
				height: 1e-5 + rng.Float64()*4e-4,
			})
		}
		cfr[i] = 0.005 + rng.Float64()*0.025
	}

	for d := 0; d < g.days; d++ {
		if d%64 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		date := g.start.AddDate(0, 0, d)
		for i, p := range places {
			rate := 0.0
			for _, w := range waves[i] {
				z := (float64(d) - w.peak) / w.width
				rate += w.height * math.Exp(-z*z/2)
			}
			noise := 0.75 + rng.Float64()*0.5
			cases := int64(math.Round(rate * float64(p.population) * noise))
			deaths := int64(math.Round(float64(cases) * cfr[i] * (0.5 + rng.Float64())))
			rec := model.Record{
				Date:              date,
				Country:           p.name,
				Code:              p.code,
				NewCasesConfirmed: cases,
				NewCasesDeath:     deaths,
				Population:        p.population,
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dataset builds the generated records into a Dataset.
func (g *Generator) Dataset(ctx context.Context) (*model.Dataset, error) {
	b := model.NewBuilder(g.Len())
	err := g.Each(ctx, func(r model.Record) error {
		b.Add(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}
