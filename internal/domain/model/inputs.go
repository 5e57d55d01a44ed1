package model

import (
	"fmt"
	"strings"
)

// AllCountries is the country picker value that selects every country.
const AllCountries = "All"

// Inputs are the two dashboard controls: the date range, as offsets into
// the dataset's sorted distinct dates, and the selected country.
type Inputs struct {
	StartOffset int    `json:"start"`
	EndOffset   int    `json:"end"`
	Country     string `json:"country"`
}

// Normalize trims the country and maps an empty selection to AllCountries.
func (in Inputs) Normalize() Inputs {
	in.Country = strings.TrimSpace(in.Country)
	if in.Country == "" {
		in.Country = AllCountries
	}
	return in
}

// Key identifies the normalised inputs, for caching.
func (in Inputs) Key() string {
	n := in.Normalize()
	return fmt.Sprintf("%d:%d:%s", n.StartOffset, n.EndOffset, n.Country)
}
