// Package model contains the epidemiological records and the immutable
// dataset they are loaded into.
package model

import "time"

// Record is one row of the input file: one country on one day.
type Record struct {
	Date              time.Time // calendar day, normalised to UTC midnight
	Country           string    // country name; the identity used for filtering
	Code              string    // short geographic code used by the map
	NewCasesConfirmed int64
	NewCasesDeath     int64
	Population        int64
}

// Country pairs a country name with its map code.
type Country struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Day truncates t to its calendar day in t's own location and returns it
// as UTC midnight, so dates compare by day regardless of source zone.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
