package synth

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

	"github.com/okian/epidash/internal/adapters/dataset"
	"github.com/okian/epidash/internal/domain/model"
)

// ErrUnsupportedFormat is returned for output paths with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// DefaultSheet names the worksheet written to XLSX files.
const DefaultSheet = "covid"

// WriteFile writes the generated dataset to path; the extension picks CSV,
// TSV or XLSX.
func (g *Generator) WriteFile(ctx context.Context, path string) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".xlsx":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	switch ext {
	case ".tsv":
		return g.WriteDelimited(ctx, f, '\t')
	case ".xlsx":
		return g.WriteXLSX(ctx, f, DefaultSheet)
	default:
		return g.WriteDelimited(ctx, f, ',')
	}
}

// WriteDelimited writes a header row and one line per record.
func (g *Generator) WriteDelimited(ctx context.Context, w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(dataset.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	err := g.Each(ctx, func(r model.Record) error {
		return cw.Write([]string{
			r.Date.Format(time.DateOnly),
			r.Country,
			r.Code,
			strconv.FormatInt(r.NewCasesConfirmed, 10),
			strconv.FormatInt(r.NewCasesDeath, 10),
			strconv.FormatInt(r.Population, 10),
		})
	})
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the records to a single-sheet workbook. Rows are
// streamed so large datasets do not build a full cell model in memory.
func (g *Generator) WriteXLSX(ctx context.Context, w io.Writer, sheet string) error {
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	if sheet == "" {
		sheet = DefaultSheet
	}
	if err := wb.SetSheetName(wb.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]interface{}, len(dataset.Columns))
	for i, c := range dataset.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	err = g.Each(ctx, func(r model.Record) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, []interface{}{
			r.Date.Format(time.DateOnly),
			r.Country,
			r.Code,
			r.NewCasesConfirmed,
			r.NewCasesDeath,
			r.Population,
		})
	})
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
