package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/water-globe-etl/internal/domain"
)

// SeriesTransformer implements Transformer using the domain normalize and
// grouping functions.
type SeriesTransformer struct {
	seriesName string
	logger     *slog.Logger
}

// NewTransformer creates a SeriesTransformer that names its output series
// seriesName.
func NewTransformer(seriesName string, logger *slog.Logger) *SeriesTransformer {
	return &SeriesTransformer{
		seriesName: seriesName,
		logger:     logger,
	}
}

// Transform normalizes rows and builds the county series. One malformed
// geometry fails the whole batch.
func (t *SeriesTransformer) Transform(ctx context.Context, rows []domain.RawRow) ([]domain.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, err := domain.BuildFromRows(t.seriesName, rows)
	if err != nil {
		return nil, fmt.Errorf("transform rows: %w", err)
	}

	t.logger.Debug("rows transformed",
		"series", series.Name,
		"rows", len(rows),
		"counties", len(series.Points),
	)
	return []domain.Series{series}, nil
}
