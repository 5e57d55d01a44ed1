package model

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrOffsetOutOfRange = errors.New("date offset out of range")
	ErrUnknownCountry   = errors.New("unknown country")
	ErrEmptyDataset     = errors.New("dataset has no records")
)
