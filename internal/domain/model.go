package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is a scalar column from the SQL API. The API returns most columns as
// strings, but numeric columns may also arrive as JSON numbers; both are kept
// as their textual form and coerced later by the normalizer.
type Field string

// UnmarshalJSON accepts a JSON string, number, or null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Field(n.String())
	return nil
}

// RawRow is one row of the county water-use query as returned by the SQL API.
type RawRow struct {
	Point      Field `json:"point"` // GeoJSON point text, coordinates in [lon, lat] order
	Water      Field `json:"water"`
	Population Field `json:"population"`
	Year       Field `json:"year"`
	ModFIPS    Field `json:"modfips"`
	Pop10      Field `json:"pop10"`
}

// Sample is a normalized row. Point is always [lat, lon].
type Sample struct {
	Point      [2]float64
	County     string
	Year       int
	Population float64
	Water      float64
	Pop10      float64
}

// CountySeries holds every sample for a single county in source row order.
type CountySeries struct {
	County string
	Rows   []Sample
}

// TimedRatio is the water/population ratio for one county-year.
type TimedRatio struct {
	Year  int     `json:"year"`
	Ratio float64 `json:"ratio"`
}

// CountyPoint is a county's anchor location and its ratio timeline.
type CountyPoint struct {
	County   string
	Lat      float64
	Lon      float64
	Timeline []TimedRatio
}

// Series is a named set of county points. Only one series is shown at a time.
type Series struct {
	Name   string
	Points []CountyPoint
}

// Position is a WGS-84 cartographic position in degrees and meters.
type Position struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Height float64 `json:"height"`
}

// Color is an RGBA color with float components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// ColorSample is one keyframe of an entity's time-varying color. The renderer
// interpolates between keyframes.
type ColorSample struct {
	Time       time.Time `json:"time"`
	Normalized float64   `json:"-"` // may be NaN; not JSON-encodable
	Color      Color     `json:"color"`
}

// Polyline is the line geometry of an entity.
type Polyline struct {
	Positions     [2]Position   `json:"positions"`
	Width         float64       `json:"width"`
	FollowSurface bool          `json:"follow_surface"`
	Colors        []ColorSample `json:"colors"`
}

// Entity is the visual unit handed to the renderer: one line per county.
type Entity struct {
	ID         string   `json:"id"`
	SeriesName string   `json:"series_name"`
	County     string   `json:"county,omitempty"`
	Show       bool     `json:"show"`
	Anchor     Position `json:"anchor"`
	Polyline   Polyline `json:"polyline"`
}

// Renderer clock enumerations.
const (
	ClockRangeLoopStop        = "LOOP_STOP"
	ClockStepSystemMultiplier = "SYSTEM_CLOCK_MULTIPLIER"
)

const (
	DefaultClockMultiplier = 15768000 // half a year per real second
	DefaultSeriesName      = "WaterUse"
	DefaultHeightScale     = 1e5
	LineHeight             = 1e6
	LineWidth              = 2
)

// ClockSettings configures the renderer's simulation clock that samples the
// time-keyed colors.
type ClockSettings struct {
	Start      time.Time
	Current    time.Time
	Stop       time.Time
	Multiplier float64
	Range      string
	Step       string
}

// DefaultClockSettings spans 2000-01-01 to 2050-01-01.
func DefaultClockSettings() ClockSettings {
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	return ClockSettings{
		Start:      start,
		Current:    start,
		Stop:       time.Date(2050, time.January, 1, 0, 0, 0, 0, time.UTC),
		Multiplier: DefaultClockMultiplier,
		Range:      ClockRangeLoopStop,
		Step:       ClockStepSystemMultiplier,
	}
}
