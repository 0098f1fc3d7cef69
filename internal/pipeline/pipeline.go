package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/couchcryptid/water-globe-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher reads the raw county rows from the source.
type Fetcher interface {
	FetchRows(ctx context.Context) ([]domain.RawRow, error)
}

// Transformer converts raw rows into named series.
type Transformer interface {
	Transform(ctx context.Context, rows []domain.RawRow) ([]domain.Series, error)
}

// SnapshotStore keeps a copy of every successfully loaded batch of rows.
type SnapshotStore interface {
	SaveRows(ctx context.Context, loadID string, rows []domain.RawRow) error
}

// EntityPublisher writes the entities of a load to a downstream consumer.
type EntityPublisher interface {
	PublishEntities(ctx context.Context, info domain.LoadInfo, entities []domain.Entity) error
}

// Options configures the optional parts of a Pipeline.
type Options struct {
	// Interval between refreshes. Zero loads once.
	Interval  time.Duration
	Snapshots SnapshotStore
	Publisher EntityPublisher
	Clock     clockwork.Clock
}

// Pipeline orchestrates the fetch-transform-load cycle into a data source.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	source      *domain.DataSource
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options
	ready       atomic.Bool
	refreshMu   sync.Mutex
}

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, t Transformer, source *domain.DataSource, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		source:      source,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// Source returns the data source the pipeline loads into.
func (p *Pipeline) Source() *domain.DataSource { return p.source }

// CheckReadiness returns nil once a load has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset has been loaded yet")
	}
	return nil
}

// Run performs an initial refresh and then refreshes on every interval tick
// until the context is cancelled. A failed refresh waits for the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	_, _ = p.Refresh(ctx)

	if p.opts.Interval <= 0 {
		p.logger.Info("periodic refresh disabled")
		return nil
	}

	ticker := p.opts.Clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			_, _ = p.Refresh(ctx)
		}
	}
}

// Refresh fetches the rows, rebuilds the series, and replaces the data
// source contents. On failure the previous dataset stays in place. Snapshot
// and publish failures are logged and counted but do not fail the refresh.
func (p *Pipeline) Refresh(ctx context.Context) (domain.LoadInfo, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := p.opts.Clock.Now()

	rows, err := p.fetcher.FetchRows(ctx)
	if err != nil {
		return domain.LoadInfo{}, p.fail(ctx, "fetch rows failed", err)
	}

	series, err := p.transformer.Transform(ctx, rows)
	if err != nil {
		return domain.LoadInfo{}, p.fail(ctx, "transform rows failed", err)
	}

	if err := p.source.Load(series); err != nil {
		return domain.LoadInfo{}, p.fail(ctx, "load series failed", err)
	}
	info := p.source.LastLoad()
	p.ready.Store(true)

	counties := 0
	for _, s := range series {
		counties += len(s.Points)
	}
	p.metrics.Refreshes.WithLabelValues("success").Inc()
	p.metrics.RefreshLatency.Observe(p.opts.Clock.Since(start).Seconds())
	p.metrics.CountiesLoaded.Set(float64(counties))
	p.metrics.EntitiesLoaded.Set(float64(info.Entities))
	p.metrics.LastLoadTime.Set(float64(info.LoadedAt.Unix()))

	p.snapshot(ctx, info, rows)
	p.publish(ctx, info)

	p.logger.Info("refresh complete",
		"load_id", info.ID,
		"rows", len(rows),
		"counties", counties,
		"entities", info.Entities,
		"duration", p.opts.Clock.Since(start),
	)
	return info, nil
}

func (p *Pipeline) fail(ctx context.Context, msg string, err error) error {
	if ctx.Err() == nil {
		p.logger.Error(msg, "error", err)
	}
	p.metrics.Refreshes.WithLabelValues("error").Inc()
	return err
}

func (p *Pipeline) snapshot(ctx context.Context, info domain.LoadInfo, rows []domain.RawRow) {
	if p.opts.Snapshots == nil {
		return
	}
	if err := p.opts.Snapshots.SaveRows(ctx, info.ID, rows); err != nil {
		p.logger.Warn("save snapshot failed", "error", err, "load_id", info.ID)
		p.metrics.SnapshotErrors.Inc()
	}
}

func (p *Pipeline) publish(ctx context.Context, info domain.LoadInfo) {
	if p.opts.Publisher == nil {
		return
	}
	entities := p.source.Entities().Snapshot()
	if err := p.opts.Publisher.PublishEntities(ctx, info, entities); err != nil {
		p.logger.Warn("publish entities failed", "error", err, "load_id", info.ID)
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.EntitiesPublished.Add(float64(len(entities)))
}
