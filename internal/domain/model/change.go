package model

import "time"

// Change is an input change submitted by one dashboard session. Version
// increases with every submission of that session, so a consumer can tell
// which of two changes is newer.
type Change struct {
	SessionID   string
	Version     uint64
	Inputs      Inputs
	SubmittedAt time.Time
}

// Newer reports whether c supersedes other for the same session.
func (c Change) Newer(other Change) bool {
	return c.Version > other.Version
}
