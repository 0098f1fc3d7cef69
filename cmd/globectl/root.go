package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/water-globe-etl/internal/adapter/carto"
	"github.com/couchcryptid/water-globe-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/water-globe-etl/internal/config"
	"github.com/spf13/cobra"
)

const defaultDBPath = "snapshots.db"

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "globectl",
	Short: "Fetch, snapshot and render county water-use data",
	Long: `globectl works with the county population and water-use dataset offline.
It fetches rows from the SQL API into a local SQLite snapshot store and renders
stored snapshots as CZML for the globe viewer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "snapshot database (default is $SNAPSHOT_DB or ./snapshots.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file named by --config, falling back to CONFIG_FILE.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// newLogger logs to stderr so command output can be piped.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func getDBPath(cfg *config.Config) string {
	switch {
	case dbPath != "":
		return dbPath
	case cfg.SnapshotDB != "":
		return cfg.SnapshotDB
	default:
		return defaultDBPath
	}
}

// openStore opens the snapshot database, creating its directory if needed.
func openStore(cfg *config.Config) (*sqlite.Store, error) {
	path := getDBPath(cfg)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return sqlite.Open(path)
}

func cartoConfig(cfg *config.Config) carto.Config {
	return carto.Config{
		BaseURL:         cfg.CartoBaseURL,
		APIKey:          cfg.CartoAPIKey,
		CountiesTable:   cfg.CartoCountiesTable,
		PopulationTable: cfg.CartoPopulationTable,
		Timeout:         cfg.CartoTimeout,
		RowLimit:        cfg.CartoRowLimit,
	}
}
