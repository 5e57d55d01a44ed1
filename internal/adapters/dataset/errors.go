package dataset

import "errors"

// Sentinel error kinds for loading.
var (
	ErrOpen              = errors.New("open dataset")
	ErrMissingColumn     = errors.New("missing column")
	ErrParseRow          = errors.New("parse row")
	ErrEmpty             = errors.New("dataset is empty")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)
