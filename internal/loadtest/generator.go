package loadtest

import (
	"math/rand/v2"

	"github.com/okian/epidash/internal/domain/model"
)

// allCountryWeight is the share of changes that select every country.
const allCountryWeight = 0.3

// inputsBody is the JSON body of POST /api/sessions/{id}/inputs.
type inputsBody struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Country string `json:"country"`
}

func (b inputsBody) inputs() model.Inputs {
	return model.Inputs{StartOffset: b.Start, EndOffset: b.End, Country: b.Country}.Normalize()
}

// inputGenerator draws random slider positions and country picks within
// the dashboard's controls.
type inputGenerator struct {
	rng      *rand.Rand
	controls controls
}

func newInputGenerator(seed uint64, c controls) *inputGenerator {
	return &inputGenerator{rng: rand.New(rand.NewPCG(seed, seed+1)), controls: c}
}

// next returns one change. The range is occasionally inverted, which the
// service accepts and renders as an empty view.
func (g *inputGenerator) next() inputsBody {
	span := g.controls.Max - g.controls.Min + 1
	a := g.controls.Min + g.rng.IntN(span)
	b := g.controls.Min + g.rng.IntN(span)
	if a > b && g.rng.IntN(10) != 0 {
		a, b = b, a
	}

	country := model.AllCountries
	if len(g.controls.Countries) > 0 && g.rng.Float64() >= allCountryWeight {
		country = g.controls.Countries[g.rng.IntN(len(g.controls.Countries))]
	}
	return inputsBody{Start: a, End: b, Country: country}
}

// sequence returns n changes.
func (g *inputGenerator) sequence(n int) []inputsBody {
	out := make([]inputsBody, n)
	for i := range out {
		out[i] = g.next()
	}
	return out
}
