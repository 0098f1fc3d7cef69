package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/couchcryptid/water-globe-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/water-globe-etl/internal/config"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	inspectCounties int
	inspectRows     string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the latest stored snapshot",
	Long: `Prints the latest snapshot's load ID, age and row count, followed by a
per-county table of sample counts, ratio ranges and covered years. With --rows
an SQL API response file is summarized instead.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectCounties, "counties", "n", 20, "number of counties to list (0 for all)")
	inspectCmd.Flags().StringVar(&inspectRows, "rows", "", "summarize an SQL API response file instead of the database")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	out := cmd.OutOrStdout()

	var rows []domain.RawRow
	if inspectRows != "" {
		rows, err = readResponse(inspectRows)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "File:       %s\n", inspectRows)
	} else {
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		var snap sqlite.Snapshot
		snap, rows, err = store.LatestRows(cmd.Context())
		if errors.Is(err, sqlite.ErrNoSnapshot) {
			fmt.Fprintln(out, "No snapshots stored. Run 'globectl fetch' first.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Snapshot:   %s\n", snap.LoadID)
		fmt.Fprintf(out, "Stored:     %s (%s)\n", snap.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(snap.CreatedAt))
	}

	samples, err := domain.NormalizeRows(rows)
	if err != nil {
		return fmt.Errorf("normalizing rows: %w", err)
	}
	groups := domain.GroupByCounty(samples)

	incomplete := 0
	for _, s := range samples {
		if math.IsNaN(s.Water) || math.IsNaN(s.Population) {
			incomplete++
		}
	}

	fmt.Fprintf(out, "Rows:       %s (%s incomplete)\n", humanize.Comma(int64(len(rows))), humanize.Comma(int64(incomplete)))
	fmt.Fprintf(out, "Counties:   %s\n", humanize.Comma(int64(len(groups))))

	if len(groups) == 0 {
		return nil
	}
	listed := groups
	if inspectCounties > 0 && len(listed) > inspectCounties {
		listed = listed[:inspectCounties]
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTY\tLAT\tLON\tSAMPLES\tYEARS\tMIN RATIO\tMAX RATIO")
	for _, g := range listed {
		anchor := g.Anchor()
		lo, hi := domain.RatioRange(g.Timeline())
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%d\t%s\t%s\t%s\n",
			g.County, anchor[0], anchor[1], len(g.Rows), yearSpan(g), formatRatio(lo), formatRatio(hi))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(listed) < len(groups) {
		fmt.Fprintf(out, "... %s more\n", humanize.Comma(int64(len(groups)-len(listed))))
	}
	return nil
}

// yearSpan returns the first and last year of a county in row order.
func yearSpan(g domain.CountySeries) string {
	first, last := g.Rows[0].Year, g.Rows[len(g.Rows)-1].Year
	if first == last {
		return strconv.Itoa(first)
	}
	return fmt.Sprintf("%d-%d", first, last)
}

func formatRatio(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.6g", v)
}

// latestRows loads the rows of the most recent snapshot.
func latestRows(cmd *cobra.Command, cfg *config.Config) ([]domain.RawRow, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	_, rows, err := store.LatestRows(cmd.Context())
	if errors.Is(err, sqlite.ErrNoSnapshot) {
		return nil, fmt.Errorf("%w in %s; run 'globectl fetch' or pass --rows", err, getDBPath(cfg))
	}
	return rows, err
}
