package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/couchcryptid/water-globe-etl/internal/adapter/carto"
	"github.com/couchcryptid/water-globe-etl/internal/adapter/czml"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/couchcryptid/water-globe-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	renderRows   string
	renderOut    string
	renderSeries string
	renderFormat string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a snapshot as CZML",
	Long: `Builds the line entities for the latest stored snapshot, or for an SQL API
response file given with --rows, and writes them as a CZML document.`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderRows, "rows", "", "read rows from an SQL API response file instead of the database")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default is stdout)")
	renderCmd.Flags().StringVar(&renderSeries, "series", "", "series to display (default is the first)")
	renderCmd.Flags().StringVar(&renderFormat, "format", "czml", "output format (czml or json)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	if renderFormat != "czml" && renderFormat != "json" {
		return fmt.Errorf("unknown format: %s (available: czml, json)", renderFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()

	var rows []domain.RawRow
	if renderRows != "" {
		rows, err = readResponse(renderRows)
	} else {
		rows, err = latestRows(cmd, cfg)
	}
	if err != nil {
		return err
	}

	series, err := pipeline.NewTransformer(cfg.SeriesName, logger).Transform(ctx, rows)
	if err != nil {
		return err
	}

	source := domain.NewDataSource(cfg.SeriesName)
	if err := source.SetHeightScale(cfg.HeightScale); err != nil {
		return err
	}
	if err := source.Load(series); err != nil {
		return fmt.Errorf("loading series: %w", err)
	}
	if renderSeries != "" {
		if !slices.Contains(source.SeriesNames(), renderSeries) {
			return fmt.Errorf("unknown series: %s (available: %v)", renderSeries, source.SeriesNames())
		}
		source.SetSeriesToDisplay(renderSeries)
	}

	w := cmd.OutOrStdout()
	if renderOut != "" {
		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", renderOut, err)
		}
		defer f.Close()
		w = f
	}

	entities := source.Entities().Snapshot()
	if renderFormat == "json" {
		return writeEntities(w, source.LastLoad(), entities)
	}
	return czml.Encode(w, source.Name(), cfg.ClockSettings(), entities)
}

func readResponse(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := carto.DecodeResponse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

func writeEntities(w io.Writer, info domain.LoadInfo, entities []domain.Entity) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	body := struct {
		Load     domain.LoadInfo `json:"load"`
		Entities []domain.Entity `json:"entities"`
	}{Load: info, Entities: entities}
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	return nil
}
