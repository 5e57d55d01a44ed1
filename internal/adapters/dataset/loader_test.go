package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/epidash/internal/adapters/dataset"
	"github.com/okian/epidash/internal/domain/model"
)

const sample = `Date,Country,Code,New_Cases_Confirmed,New_Cases_Death,Population
2020-01-01,A,AA,100,10,1000
2020-01-01,B,BB,50,5,500
2020-01-02,A,AA,7.0,,1000
`

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadDelimited(t *testing.T) {
	ctx := context.Background()

	Convey("Given a well formed CSV", t, func() {
		ds, err := dataset.ReadDelimited(ctx, strings.NewReader(sample), "sample.csv")

		Convey("Then every row is loaded", func() {
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 3)
			So(ds.Row(0), ShouldResemble, model.Record{
				Date: day("2020-01-01"), Country: "A", Code: "AA",
				NewCasesConfirmed: 100, NewCasesDeath: 10, Population: 1000,
			})
		})

		Convey("Then whole floats and empty cells are accepted", func() {
			r := ds.Row(2)
			So(r.NewCasesConfirmed, ShouldEqual, 7)
			So(r.NewCasesDeath, ShouldEqual, 0)
		})
	})

	Convey("Given shuffled, differently cased headers and a BOM", t, func() {
		body := "\ufeffpopulation,COUNTRY,code,date,new_cases_death,New_Cases_Confirmed\n" +
			"1000,A,AA,01/31/2021,1,2\n" +
			"\n" +
			"1000,A,AA,2021-02-01 00:00:00,3,4\n"
		ds, err := dataset.ReadDelimited(ctx, strings.NewReader(body), "shuffled.csv")

		Convey("Then columns are found by name and blank lines skipped", func() {
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 2)
			So(ds.Row(0).Date, ShouldEqual, day("2021-01-31"))
			So(ds.Row(1).NewCasesConfirmed, ShouldEqual, 4)
			So(ds.Row(1).NewCasesDeath, ShouldEqual, 3)
		})
	})

	Convey("Given a CSV without a required column", t, func() {
		_, err := dataset.ReadDelimited(ctx, strings.NewReader("Date,Country,Code\n2020-01-01,A,AA\n"), "short.csv")

		Convey("Then the missing columns are reported", func() {
			So(errors.Is(err, dataset.ErrMissingColumn), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "New_Cases_Confirmed")
			So(err.Error(), ShouldContainSubstring, "Population")
		})
	})

	Convey("Given a row with an unparseable date", t, func() {
		body := "Date,Country,Code,New_Cases_Confirmed,New_Cases_Death,Population\nyesterday,A,AA,1,1,1\n"
		_, err := dataset.ReadDelimited(ctx, strings.NewReader(body), "bad.csv")

		Convey("Then the error names the file and line", func() {
			So(errors.Is(err, dataset.ErrParseRow), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bad.csv:2")
		})
	})

	Convey("Given a row with a fractional count", t, func() {
		body := "Date,Country,Code,New_Cases_Confirmed,New_Cases_Death,Population\n2020-01-01,A,AA,1.5,1,1\n"
		_, err := dataset.ReadDelimited(ctx, strings.NewReader(body), "frac.csv")
		So(errors.Is(err, dataset.ErrParseRow), ShouldBeTrue)
	})

	Convey("Given a row without a country", t, func() {
		body := "Date,Country,Code,New_Cases_Confirmed,New_Cases_Death,Population\n2020-01-01,,AA,1,1,1\n"
		_, err := dataset.ReadDelimited(ctx, strings.NewReader(body), "anon.csv")
		So(errors.Is(err, dataset.ErrParseRow), ShouldBeTrue)
	})

	Convey("Given an empty input", t, func() {
		_, err := dataset.ReadDelimited(ctx, strings.NewReader(""), "empty.csv")
		So(errors.Is(err, dataset.ErrEmpty), ShouldBeTrue)

		_, err = dataset.ReadDelimited(ctx, strings.NewReader(strings.Join(dataset.Columns, ",")+"\n"), "header.csv")
		So(errors.Is(err, dataset.ErrEmpty), ShouldBeTrue)
	})

	Convey("Given a custom date layout", t, func() {
		body := "Date,Country,Code,New_Cases_Confirmed,New_Cases_Death,Population\n02.01.2020,A,AA,1,1,1\n"
		ds, err := dataset.ReadDelimited(ctx, strings.NewReader(body), "eu.csv", dataset.WithDateLayouts("02.01.2006"))
		So(err, ShouldBeNil)
		So(ds.Row(0).Date, ShouldEqual, day("2020-01-02"))
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given files on disk", t, func() {
		Convey("When the file is a CSV", func() {
			ds, err := dataset.Load(ctx, writeFile(t, "data.csv", sample))
			So(err, ShouldBeNil)
			So(ds.NumCountries(), ShouldEqual, 2)
		})

		Convey("When the file is a TSV", func() {
			ds, err := dataset.Load(ctx, writeFile(t, "data.tsv", strings.ReplaceAll(sample, ",", "\t")))
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 3)
		})

		Convey("When the extension is unknown", func() {
			_, err := dataset.Load(ctx, writeFile(t, "data.parquet", sample))
			So(errors.Is(err, dataset.ErrUnsupportedFormat), ShouldBeTrue)
		})

		Convey("When the file does not exist", func() {
			_, err := dataset.Load(ctx, filepath.Join(t.TempDir(), "missing.csv"))
			So(errors.Is(err, dataset.ErrOpen), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}

func TestLoadXLSX(t *testing.T) {
	ctx := context.Background()

	Convey("Given a workbook with the data on a named sheet", t, func() {
		wb := excelize.NewFile()
		So(wb.SetSheetName("Sheet1", "covid"), ShouldBeNil)
		header := make([]interface{}, len(dataset.Columns))
		for i, c := range dataset.Columns {
			header[i] = c
		}
		So(wb.SetSheetRow("covid", "A1", &header), ShouldBeNil)
		So(wb.SetSheetRow("covid", "A2", &[]interface{}{"2020-01-01", "A", "AA", 100, 10, 1000}), ShouldBeNil)
		So(wb.SetSheetRow("covid", "A3", &[]interface{}{day("2020-01-02"), "B", "BB", 50, 5, 500}), ShouldBeNil)

		_, err := wb.NewSheet("notes")
		So(err, ShouldBeNil)

		path := filepath.Join(t.TempDir(), "data.xlsx")
		So(wb.SaveAs(path), ShouldBeNil)
		So(wb.Close(), ShouldBeNil)

		Convey("When loaded with defaults", func() {
			ds, err := dataset.Load(ctx, path)

			Convey("Then the first sheet is read, including date serials", func() {
				So(err, ShouldBeNil)
				So(ds.Len(), ShouldEqual, 2)
				So(ds.Row(1).Date, ShouldEqual, day("2020-01-02"))
				So(ds.Row(1).Population, ShouldEqual, 500)
			})
		})

		Convey("When the sheet is named explicitly", func() {
			ds, err := dataset.Load(ctx, path, dataset.WithSheet("covid"))
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 2)
		})

		Convey("When the named sheet has no header", func() {
			_, err := dataset.Load(ctx, path, dataset.WithSheet("notes"))
			So(err, ShouldNotBeNil)
		})

		Convey("When the named sheet does not exist", func() {
			_, err := dataset.Load(ctx, path, dataset.WithSheet("nope"))
			So(errors.Is(err, dataset.ErrOpen), ShouldBeTrue)
		})
	})
}
