package domain

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(county string, year int, lat, lon, water, population float64) Sample {
	return Sample{Point: [2]float64{lat, lon}, County: county, Year: year, Water: water, Population: population}
}

func TestGroupByCounty_FirstOccurrenceOrder(t *testing.T) {
	samples := []Sample{
		sample("b", 2015, 1, 1, 10, 100),
		sample("a", 2015, 2, 2, 20, 100),
		sample("b", 2020, 9, 9, 30, 100),
		sample("c", 2015, 3, 3, 40, 100),
		sample("a", 2020, 8, 8, 50, 100),
	}

	groups := GroupByCounty(samples)

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{groups[0].County, groups[1].County, groups[2].County})
	assert.Equal(t, []Sample{samples[0], samples[2]}, groups[0].Rows)
	assert.Equal(t, []Sample{samples[1], samples[4]}, groups[1].Rows)
	assert.Equal(t, []Sample{samples[3]}, groups[2].Rows)
}

func TestGroupByCounty_IsPartition(t *testing.T) {
	samples := []Sample{
		sample("48453", 2015, 30, -97, 1, 2),
		sample("48113", 2015, 32, -96, 3, 4),
		sample("48453", 2020, 30, -97, 5, 6),
		sample("48201", 2015, 29, -95, 7, 8),
		sample("48113", 2020, 32, -96, 9, 10),
		sample("48453", 2025, 30, -97, 11, 12),
	}

	groups := GroupByCounty(samples)

	total := 0
	seen := make(map[string]bool)
	for _, g := range groups {
		assert.False(t, seen[g.County], "county %s grouped twice", g.County)
		seen[g.County] = true
		for _, r := range g.Rows {
			assert.Equal(t, g.County, r.County)
		}
		total += len(g.Rows)
	}
	assert.Equal(t, len(samples), total)
}

func TestGroupByCounty_Empty(t *testing.T) {
	assert.Empty(t, GroupByCounty(nil))
}

func TestCountySeries_Anchor(t *testing.T) {
	g := CountySeries{County: "x", Rows: []Sample{
		sample("x", 2020, 5, 6, 1, 1),
		sample("x", 2015, 7, 8, 1, 1),
	}}
	assert.Equal(t, [2]float64{5, 6}, g.Anchor())
	assert.Equal(t, [2]float64{}, CountySeries{}.Anchor())
}

func TestCountySeries_Timeline(t *testing.T) {
	t.Run("row order, not year order", func(t *testing.T) {
		g := CountySeries{County: "x", Rows: []Sample{
			sample("x", 2020, 0, 0, 50, 100),
			sample("x", 2015, 0, 0, 30, 200),
		}}
		want := []TimedRatio{{Year: 2020, Ratio: 0.5}, {Year: 2015, Ratio: 0.15}}
		if diff := cmp.Diff(want, g.Timeline()); diff != "" {
			t.Fatalf("timeline mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("single sample", func(t *testing.T) {
		g := CountySeries{County: "x", Rows: []Sample{sample("x", 2015, 0, 0, 1, 4)}}
		assert.Equal(t, []TimedRatio{{Year: 2015, Ratio: 0.25}}, g.Timeline())
	})

	t.Run("zero population", func(t *testing.T) {
		g := CountySeries{County: "x", Rows: []Sample{
			sample("x", 2015, 0, 0, 1, 0),
			sample("x", 2020, 0, 0, 0, 0),
		}}
		ts := g.Timeline()
		assert.True(t, math.IsInf(ts[0].Ratio, 1))
		assert.True(t, math.IsNaN(ts[1].Ratio))
	})
}

func TestBuildSeries(t *testing.T) {
	groups := GroupByCounty([]Sample{
		sample("48453", 2015, 30.27, -97.74, 100, 1000),
		sample("48453", 2020, 30.27, -97.74, 150, 1000),
		sample("48113", 2015, 32.78, -96.80, 80, 400),
	})

	s := BuildSeries(DefaultSeriesName, groups)

	want := Series{
		Name: DefaultSeriesName,
		Points: []CountyPoint{
			{County: "48453", Lat: 30.27, Lon: -97.74, Timeline: []TimedRatio{{2015, 0.1}, {2020, 0.15}}},
			{County: "48113", Lat: 32.78, Lon: -96.80, Timeline: []TimedRatio{{2015, 0.2}}},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFromRows(t *testing.T) {
	rows := []RawRow{
		{Point: testPointAustin, ModFIPS: testFIPSTravis, Year: "2015", Water: "10", Population: "100"},
		{Point: testPointDallas, ModFIPS: testFIPSDallas, Year: "2015", Water: "30", Population: "100"},
		{Point: testPointAustin, ModFIPS: testFIPSTravis, Year: "2020", Water: "20", Population: "100"},
	}

	s, err := BuildFromRows(DefaultSeriesName, rows)
	require.NoError(t, err)

	require.Len(t, s.Points, 2)
	assert.Equal(t, testFIPSTravis, s.Points[0].County)
	assert.Equal(t, 30.2672, s.Points[0].Lat)
	assert.Equal(t, -97.7431, s.Points[0].Lon)
	assert.Len(t, s.Points[0].Timeline, 2)
	assert.Equal(t, testFIPSDallas, s.Points[1].County)

	_, err = BuildFromRows(DefaultSeriesName, []RawRow{{Point: ""}})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
