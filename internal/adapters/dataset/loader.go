// Package dataset loads the daily per-country record file into a
// model.Dataset. Delimited text (.csv, .tsv) and Excel workbooks (.xlsx)
// are supported; columns are located by header name.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/epidash/internal/domain/model"
)

// Header names, matched case-insensitively.
const (
	ColDate       = "Date"
	ColCountry    = "Country"
	ColCode       = "Code"
	ColCases      = "New_Cases_Confirmed"
	ColDeaths     = "New_Cases_Death"
	ColPopulation = "Population"
)

// Columns lists the required headers in their canonical order.
var Columns = []string{ColDate, ColCountry, ColCode, ColCases, ColDeaths, ColPopulation} //nolint:gochecknoglobals // read-only

// ctxCheckEvery is how many rows are read between cancellation checks.
const ctxCheckEvery = 4096

type loader struct {
	sheet   string
	layouts []string
	comma   rune
}

func newLoader(opts []Option) *loader {
	l := &loader{layouts: DefaultDateLayouts, comma: ','}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file at path. The format follows the extension.
func Load(ctx context.Context, path string, opts ...Option) (*model.Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".txt":
	case ".xlsx", ".xlsm":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	if ext == ".xlsx" || ext == ".xlsm" {
		return ReadXLSX(ctx, f, path, opts...)
	}
	if ext == ".tsv" {
		opts = append([]Option{WithComma('\t')}, opts...)
	}
	return ReadDelimited(ctx, f, path, opts...)
}

// ReadDelimited reads delimited text from r. name is only used in errors.
func ReadDelimited(ctx context.Context, r io.Reader, name string, opts ...Option) (*model.Dataset, error) {
	l := newLoader(opts)
	cr := csv.NewReader(r)
	cr.Comma = l.comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return l.read(ctx, name, func() ([]string, error) {
		rec, err := cr.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: %w", ErrParseRow, name, err)
		}
		return rec, err
	})
}

// ReadXLSX reads one worksheet of an Excel workbook from r.
func ReadXLSX(ctx context.Context, r io.Reader, name string, opts ...Option) (*model.Dataset, error) {
	l := newLoader(opts)
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, name, err)
	}
	defer wb.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", ErrEmpty, name)
		}
		sheet = sheets[0]
	}

	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: sheet %q: %w", ErrOpen, name, sheet, err)
	}
	defer rows.Close()

	return l.read(ctx, name, func() ([]string, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrParseRow, name, err)
			}
			return nil, io.EOF
		}
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParseRow, name, err)
		}
		return cols, nil
	})
}

// columns maps each required header to its position.
type columns struct {
	date, country, code, cases, deaths, population int
}

func locate(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	pos := make([]int, len(Columns))
	var missing []string
	for i, c := range Columns {
		p, ok := idx[strings.ToLower(c)]
		if !ok {
			missing = append(missing, c)
			continue
		}
		pos[i] = p
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return columns{date: pos[0], country: pos[1], code: pos[2], cases: pos[3], deaths: pos[4], population: pos[5]}, nil
}

// read drives next until io.EOF. The first row is the header.
func (l *loader) read(ctx context.Context, name string, next func() ([]string, error)) (*model.Dataset, error) {
	header, err := next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if err != nil {
		return nil, err
	}
	cols, err := locate(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	b := model.NewBuilder(1024)
	for line := 2; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(fields) {
			continue
		}
		rec, err := l.parse(fields, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %w", ErrParseRow, name, line, err)
		}
		b.Add(rec)
	}

	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has a header but no rows", ErrEmpty, name)
	}
	return b.Build(), nil
}

func (l *loader) parse(fields []string, c columns) (model.Record, error) {
	var (
		rec model.Record
		err error
	)
	if rec.Date, err = l.parseDate(field(fields, c.date)); err != nil {
		return rec, err
	}
	rec.Country = field(fields, c.country)
	if rec.Country == "" {
		return rec, fmt.Errorf("%s is empty", ColCountry)
	}
	rec.Code = field(fields, c.code)
	if rec.NewCasesConfirmed, err = parseCount(ColCases, field(fields, c.cases)); err != nil {
		return rec, err
	}
	if rec.NewCasesDeath, err = parseCount(ColDeaths, field(fields, c.deaths)); err != nil {
		return rec, err
	}
	if rec.Population, err = parseCount(ColPopulation, field(fields, c.population)); err != nil {
		return rec, err
	}
	return rec, nil
}

func (l *loader) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is empty", ColDate)
	}
	for _, layout := range l.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	// Spreadsheet cells read raw carry the date as a serial number.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s %q matches no layout", ColDate, s)
}

// parseCount reads an integer column. Empty cells count as zero and a
// whole-number float such as "12.0" is accepted.
func parseCount(col, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%s %q is not an integer", col, s)
	}
	return int64(f), nil
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
