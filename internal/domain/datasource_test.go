package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every notification a data source raises, in order.
type recorder struct {
	events []string
}

func newRecorder(ds *DataSource) *recorder {
	r := &recorder{}
	ds.LoadingEvent.AddListener(func(loading bool) {
		if loading {
			r.events = append(r.events, "loading:true")
		} else {
			r.events = append(r.events, "loading:false")
		}
	})
	ds.ChangedEvent.AddListener(func(*DataSource) {
		r.events = append(r.events, "changed")
	})
	ds.Entities().CollectionChanged.AddListener(func(CollectionChange) {
		r.events = append(r.events, "collection")
	})
	return r
}

func waterUse(points ...CountyPoint) []Series {
	return []Series{{Name: DefaultSeriesName, Points: points}}
}

func TestDataSource_Defaults(t *testing.T) {
	ds := NewDataSource("globe")

	assert.Equal(t, "globe", ds.Name())
	assert.False(t, ds.IsLoading())
	assert.Empty(t, ds.SeriesNames())
	assert.Empty(t, ds.SeriesToDisplay())
	assert.Equal(t, DefaultHeightScale, ds.HeightScale())
	assert.Equal(t, 0, ds.Entities().Len())
}

func TestDataSource_Load_Scenario(t *testing.T) {
	ds := NewDataSource("globe")

	err := ds.Load(waterUse(CountyPoint{Lat: 0, Lon: 10}, CountyPoint{Lat: -1, Lon: 1}))
	require.NoError(t, err)

	values := ds.Entities().Values()
	require.Len(t, values, 2)
	assert.Equal(t, Position{Lat: 0, Lon: 10}, values[0].Anchor)
	assert.Equal(t, Position{Lat: -1, Lon: 1}, values[1].Anchor)
	for _, e := range values {
		assert.True(t, e.Show)
		assert.Equal(t, 0.0, e.Polyline.Positions[0].Height)
		assert.Equal(t, LineHeight, e.Polyline.Positions[1].Height)
	}
	assert.Equal(t, []string{DefaultSeriesName}, ds.SeriesNames())
	assert.Equal(t, DefaultSeriesName, ds.SeriesToDisplay())
}

func TestDataSource_Load_NotificationOrder(t *testing.T) {
	ds := NewDataSource("globe")
	rec := newRecorder(ds)

	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 1, Lon: 2}, CountyPoint{Lat: 3, Lon: 4})))

	assert.Equal(t, []string{"loading:true", "collection", "changed", "loading:false"}, rec.events)
	assert.False(t, ds.IsLoading())
}

func TestDataSource_Load_ZeroRows(t *testing.T) {
	ds := NewDataSource("globe")
	rec := newRecorder(ds)

	var changedWith []Entity
	ds.ChangedEvent.AddListener(func(d *DataSource) {
		changedWith = d.Entities().Snapshot()
	})

	require.NoError(t, ds.Load(waterUse()))

	assert.Equal(t, []string{"loading:true", "changed", "loading:false"}, rec.events)
	assert.Empty(t, changedWith)
	assert.Equal(t, 0, ds.LastLoad().Entities)
}

func TestDataSource_Load_NilData(t *testing.T) {
	ds := NewDataSource("globe")
	rec := newRecorder(ds)

	err := ds.Load(nil)

	require.ErrorIs(t, err, ErrDataRequired)
	assert.Empty(t, rec.events, "validation fails before any state change")
}

func TestDataSource_Load_DuplicateSeriesNames(t *testing.T) {
	ds := NewDataSource("globe")
	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 1, Lon: 1})))

	dup := []Series{
		{Name: "s", Points: []CountyPoint{{Lat: 1, Lon: 1}}},
		{Name: "s", Points: []CountyPoint{{Lat: 2, Lon: 2}}},
	}
	err := ds.Load(dup)

	require.ErrorIs(t, err, ErrDuplicateEntity)
	assert.Equal(t, 1, ds.Entities().Len(), "previous dataset kept")
	assert.Equal(t, DefaultSeriesName, ds.SeriesToDisplay())
}

func TestDataSource_Load_ReplacesPreviousEntities(t *testing.T) {
	ds := NewDataSource("globe")
	require.NoError(t, ds.Load([]Series{
		{Name: "old", Points: []CountyPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}},
	}))

	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 9, Lon: 9})))

	values := ds.Entities().Values()
	require.Len(t, values, 1)
	assert.Equal(t, "WaterUse index 0", values[0].ID)
	assert.Equal(t, []string{DefaultSeriesName}, ds.SeriesNames())
}

func TestDataSource_Load_Idempotent(t *testing.T) {
	ds := NewDataSource("globe")
	input := waterUse(
		CountyPoint{County: "a", Lat: 1, Lon: 2, Timeline: []TimedRatio{{2015, 0.1}, {2020, 0.3}}},
		CountyPoint{County: "b", Lat: 3, Lon: 4, Timeline: []TimedRatio{{2015, 0.2}, {2020, 0.2}}},
	)

	require.NoError(t, ds.Load(input))
	first := ds.Entities().Snapshot()
	require.NoError(t, ds.Load(input))
	second := ds.Entities().Snapshot()

	require.Len(t, second, len(first))
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(ColorSample{}, "Normalized")); diff != "" {
		t.Fatalf("reload changed entities (-first +second):\n%s", diff)
	}
}

func TestDataSource_Load_RecordsLoadInfo(t *testing.T) {
	fixed := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	ds := NewDataSource("globe")
	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 1, Lon: 1}, CountyPoint{Lat: 2, Lon: 2})))
	first := ds.LastLoad()
	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 1, Lon: 1})))
	second := ds.LastLoad()

	assert.Equal(t, fixed, first.LoadedAt)
	assert.Equal(t, 2, first.Entities)
	assert.Equal(t, []string{DefaultSeriesName}, first.Series)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Entities)
}

func TestDataSource_SetSeriesToDisplay(t *testing.T) {
	ds := NewDataSource("globe")
	require.NoError(t, ds.Load([]Series{
		{Name: "1990", Points: []CountyPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
		{Name: "1995", Points: []CountyPoint{{Lat: 3, Lon: 3}}},
		{Name: "2000", Points: []CountyPoint{{Lat: 4, Lon: 4}, {Lat: 5, Lon: 5}}},
	}))

	visible := func() map[string]bool {
		out := make(map[string]bool)
		for _, e := range ds.Entities().Values() {
			out[e.ID] = e.Show
		}
		return out
	}

	for _, name := range []string{"2000", "1995", "1990", "missing", "2000", "2000"} {
		ds.SetSeriesToDisplay(name)

		assert.Equal(t, name, ds.SeriesToDisplay())
		for _, e := range ds.Entities().Values() {
			assert.Equal(t, e.SeriesName == name, visible()[e.ID], "series %s entity %s", name, e.ID)
		}
	}
}

func TestDataSource_SetSeriesToDisplay_SingleNotificationNoRebuild(t *testing.T) {
	ds := NewDataSource("globe")
	require.NoError(t, ds.Load([]Series{
		{Name: "a", Points: []CountyPoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
		{Name: "b", Points: []CountyPoint{{Lat: 3, Lon: 3}}},
	}))
	before := ds.Entities().Values()
	rec := newRecorder(ds)

	ds.SetSeriesToDisplay("b")

	assert.Equal(t, []string{"collection"}, rec.events, "no loading or changed events")
	after := ds.Entities().Values()
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
}

func TestDataSource_SetHeightScale(t *testing.T) {
	ds := NewDataSource("globe")

	require.NoError(t, ds.SetHeightScale(2e5))
	assert.Equal(t, 2e5, ds.HeightScale())

	for _, v := range []float64{0, -1} {
		err := ds.SetHeightScale(v)
		require.ErrorIs(t, err, ErrInvalidHeightScale)
	}
	assert.Equal(t, 2e5, ds.HeightScale())
}

func TestDataSource_HeightScaleDoesNotAffectGeometry(t *testing.T) {
	ds := NewDataSource("globe")
	require.NoError(t, ds.SetHeightScale(42))
	require.NoError(t, ds.Load(waterUse(CountyPoint{Lat: 1, Lon: 1})))

	e := ds.Entities().Values()[0]
	assert.Equal(t, LineHeight, e.Polyline.Positions[1].Height)
}

func TestDataSource_LoadingEventOnlyOnTransition(t *testing.T) {
	ds := NewDataSource("globe")
	var transitions []bool
	ds.LoadingEvent.AddListener(func(v bool) { transitions = append(transitions, v) })

	ds.setLoading(true)
	ds.setLoading(true)
	ds.setLoading(false)
	ds.setLoading(false)

	assert.Equal(t, []bool{true, false}, transitions)
}

func TestDataSource_ErrorEventIsExposed(t *testing.T) {
	ds := NewDataSource("globe")
	var got error
	remove := ds.ErrorEvent.AddListener(func(err error) { got = err })

	require.NoError(t, ds.Load(waterUse()))
	assert.NoError(t, got, "loads never raise the error event")

	assert.Equal(t, 1, ds.ErrorEvent.NumberOfListeners())
	remove()
	assert.Equal(t, 0, ds.ErrorEvent.NumberOfListeners())
}
