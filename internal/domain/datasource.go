package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDataRequired is returned by Load when called without data.
	ErrDataRequired = errors.New("data is required")

	// ErrInvalidHeightScale rejects non-positive height scales.
	ErrInvalidHeightScale = errors.New("height scale must be greater than 0")
)

// LoadInfo describes the most recent completed load.
type LoadInfo struct {
	ID       string    `json:"load_id"`
	LoadedAt time.Time `json:"loaded_at"`
	Series   []string  `json:"series"`
	Entities int       `json:"entities"`
}

// DataSource owns the entity collection shown by the renderer and replaces its
// contents wholesale on every load.
//
// State machine: Idle -> Loading -> Idle. LoadingEvent fires only when the
// loading flag actually flips. ErrorEvent is part of the public surface for
// renderer integrations; the load path itself never raises it.
type DataSource struct {
	ChangedEvent Event[*DataSource]
	ErrorEvent   Event[error]
	LoadingEvent Event[bool]

	name     string
	entities *EntityCollection

	mu              sync.Mutex
	isLoading       bool
	seriesNames     []string
	seriesToDisplay string
	heightScale     float64
	lastLoad        LoadInfo
}

// NewDataSource returns an empty data source.
func NewDataSource(name string) *DataSource {
	return &DataSource{
		name:        name,
		entities:    NewEntityCollection(),
		heightScale: DefaultHeightScale,
	}
}

// Name returns the human-readable name of the data source.
func (ds *DataSource) Name() string { return ds.name }

// Entities returns the collection of displayed entities.
func (ds *DataSource) Entities() *EntityCollection { return ds.entities }

// IsLoading reports whether a load is in progress.
func (ds *DataSource) IsLoading() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.isLoading
}

// SeriesNames returns the names of the loaded series in load order.
func (ds *DataSource) SeriesNames() []string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return append([]string(nil), ds.seriesNames...)
}

// SeriesToDisplay returns the name of the visible series.
func (ds *DataSource) SeriesToDisplay() string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.seriesToDisplay
}

// HeightScale returns the configured line height scale. Ratio-colored lines
// are drawn at a fixed altitude, so the value is kept but not applied.
func (ds *DataSource) HeightScale() float64 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.heightScale
}

// SetHeightScale updates the height scale.
func (ds *DataSource) SetHeightScale(v float64) error {
	if !(v > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidHeightScale, v)
	}
	ds.mu.Lock()
	ds.heightScale = v
	ds.mu.Unlock()
	return nil
}

// LastLoad returns information about the most recent load.
func (ds *DataSource) LastLoad() LoadInfo {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	info := ds.lastLoad
	info.Series = append([]string(nil), info.Series...)
	return info
}

// SetSeriesToDisplay shows exactly the entities tagged with name and hides the
// rest. Every entity is visited; nothing is rebuilt.
func (ds *DataSource) SetSeriesToDisplay(name string) {
	ds.mu.Lock()
	ds.seriesToDisplay = name
	ds.entities.SuspendEvents()
	for _, e := range ds.entities.Values() {
		ds.entities.SetShow(e, e.SeriesName == name)
	}
	ds.mu.Unlock()

	_ = ds.entities.ResumeEvents()
}

// Load replaces all entities with those emitted for series. The first series
// becomes the displayed one. Collection changes are batched into a single
// notification, after which ChangedEvent fires once.
func (ds *DataSource) Load(series []Series) error {
	if series == nil {
		return ErrDataRequired
	}

	entities := EmitEntities(series)
	if err := checkUniqueIDs(entities); err != nil {
		return err
	}

	ds.setLoading(true)

	ds.mu.Lock()
	ds.seriesNames = ds.seriesNames[:0]
	ds.seriesToDisplay = ""
	for x, s := range series {
		ds.seriesNames = append(ds.seriesNames, s.Name)
		if x == 0 {
			ds.seriesToDisplay = s.Name
		}
	}

	ds.entities.SuspendEvents()
	ds.entities.RemoveAll()
	for _, e := range entities {
		// IDs were checked above and the collection was just emptied.
		_ = ds.entities.Add(e)
	}

	ds.lastLoad = LoadInfo{
		ID:       uuid.NewString(),
		LoadedAt: clock.Now(),
		Series:   append([]string(nil), ds.seriesNames...),
		Entities: len(entities),
	}
	ds.mu.Unlock()

	_ = ds.entities.ResumeEvents()
	ds.ChangedEvent.Raise(ds)
	ds.setLoading(false)
	return nil
}

func (ds *DataSource) setLoading(loading bool) {
	ds.mu.Lock()
	if ds.isLoading == loading {
		ds.mu.Unlock()
		return
	}
	ds.isLoading = loading
	ds.mu.Unlock()

	ds.LoadingEvent.Raise(loading)
}

func checkUniqueIDs(entities []*Entity) error {
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if _, ok := seen[e.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateEntity, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
