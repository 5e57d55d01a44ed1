package dataset

import "time"

// DefaultDateLayouts are tried in order for every date cell.
var DefaultDateLayouts = []string{ //nolint:gochecknoglobals // read-only defaults
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Option applies a configuration option to the loader.
type Option func(*loader)

// WithSheet selects the worksheet of an .xlsx file. The first sheet is used
// when unset.
func WithSheet(name string) Option {
	return func(l *loader) {
		l.sheet = name
	}
}

// WithDateLayouts replaces the accepted date layouts.
func WithDateLayouts(layouts ...string) Option {
	return func(l *loader) {
		if len(layouts) > 0 {
			l.layouts = layouts
		}
	}
}

// WithComma overrides the field separator of delimited files. By default it
// is a tab for .tsv and a comma otherwise.
func WithComma(r rune) Option {
	return func(l *loader) {
		if r != 0 {
			l.comma = r
		}
	}
}
