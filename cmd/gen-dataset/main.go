// Command gen-dataset writes a synthetic daily per-country dataset in the
// layout the dashboard loads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/okian/epidash/internal/synth"
)

type genFlags struct {
	out       string
	countries int
	days      int
	seed      uint64
	start     string
}

func newRootCmd() *cobra.Command {
	var f genFlags

	cmd := &cobra.Command{
		Use:   "gen-dataset",
		Short: "Generate a synthetic COVID-19 dataset",
		Long: `gen-dataset writes Date, Country, Code, New_Cases_Confirmed, New_Cases_Death
and Population columns for a set of real countries. The format follows the
output extension: .csv, .tsv or .xlsx.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "data/final_dataset.csv", "output file (.csv, .tsv or .xlsx)")
	fl.IntVarP(&f.countries, "countries", "c", 12, fmt.Sprintf("number of countries (max %d)", synth.MaxCountries))
	fl.IntVarP(&f.days, "days", "d", 400, "number of consecutive days")
	fl.Uint64Var(&f.seed, "seed", 1, "random seed")
	fl.StringVar(&f.start, "start", synth.DefaultStart.Format(time.DateOnly), "first day (YYYY-MM-DD)")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, f genFlags) error {
	start, err := time.Parse(time.DateOnly, f.start)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}

	g, err := synth.New(
		synth.WithSeed(f.seed),
		synth.WithCountries(f.countries),
		synth.WithDays(f.days),
		synth.WithStart(start),
	)
	if err != nil {
		return err
	}

	began := time.Now()
	if err := g.WriteFile(ctx, f.out); err != nil {
		return err
	}

	size := ""
	if st, err := os.Stat(f.out); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s rows to %s (%s) in %s\n",
		humanize.Comma(int64(g.Len())), f.out, size, time.Since(began).Round(time.Millisecond))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
