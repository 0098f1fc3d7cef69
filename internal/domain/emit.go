package domain

import (
	"math"
	"strconv"
	"time"
)

// RatioRange returns the smallest and largest ratio in the timeline. NaN ratios
// are skipped; an empty or all-NaN timeline yields NaN bounds.
func RatioRange(timeline []TimedRatio) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, t := range timeline {
		if math.IsNaN(t.Ratio) {
			continue
		}
		if math.IsNaN(lo) || t.Ratio < lo {
			lo = t.Ratio
		}
		if math.IsNaN(hi) || t.Ratio > hi {
			hi = t.Ratio
		}
	}
	return lo, hi
}

// NormalizeRatio rescales ratio into [0, 1] relative to the county's range:
// the maximum maps to 0 and the minimum to 1. A flat range divides by zero and
// returns NaN.
func NormalizeRatio(ratio, lo, hi float64) float64 {
	return (hi - ratio) / (hi - lo)
}

// ColorFromHSL converts hue, saturation and lightness in [0, 1] to an opaque
// RGB color. Hue wraps around the circle, so 0 and 1 are the same red. A NaN or
// infinite hue falls through every band of hueToRGB and yields m1.
func ColorFromHSL(hue, saturation, lightness float64) Color {
	hue = math.Mod(hue, 1)
	r, g, b := lightness, lightness, lightness
	if saturation != 0 {
		var m2 float64
		if lightness < 0.5 {
			m2 = lightness * (1 + saturation)
		} else {
			m2 = lightness + saturation - lightness*saturation
		}
		m1 := 2*lightness - m2
		r = hueToRGB(m1, m2, hue+1.0/3)
		g = hueToRGB(m1, m2, hue)
		b = hueToRGB(m1, m2, hue-1.0/3)
	}
	return Color{R: r, G: g, B: b, A: 1}
}

func hueToRGB(m1, m2, h float64) float64 {
	if h < 0 {
		h++
	}
	if h > 1 {
		h--
	}
	switch {
	case h*6 < 1:
		return m1 + (m2-m1)*6*h
	case h*2 < 1:
		return m2
	case h*3 < 2:
		return m1 + (m2-m1)*(2.0/3-h)*6
	default:
		return m1
	}
}

// RatioColor maps a normalized ratio to a fully saturated, mid-lightness color.
func RatioColor(normalized float64) Color {
	return ColorFromHSL(normalized, 1.0, 0.5)
}

// YearEpoch returns January 1 of year in UTC, the keyframe time of a sample.
func YearEpoch(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// ColorTimeline builds one color keyframe per timeline entry, normalized
// against the timeline's own ratio range.
func ColorTimeline(timeline []TimedRatio) []ColorSample {
	lo, hi := RatioRange(timeline)
	samples := make([]ColorSample, len(timeline))
	for i, t := range timeline {
		n := NormalizeRatio(t.Ratio, lo, hi)
		samples[i] = ColorSample{
			Time:       YearEpoch(t.Year),
			Normalized: n,
			Color:      RatioColor(n),
		}
	}
	return samples
}

// PointStride is the number of values per county in the flat
// [lat, lon, timeline, ...] layout a series is exchanged in.
const PointStride = 3

// EntityID is the identifier of the point-th county of a series. The number is
// the county's offset in the flat series layout, so the counties of a series
// are numbered 0, 3, 6 and so on.
func EntityID(seriesName string, point int) string {
	return seriesName + " index " + strconv.Itoa(point*PointStride)
}

// EmitEntities creates one line entity per county point of every series. Only
// the first series is visible. Entity geometry is a fixed ground-to-altitude
// line at the county anchor; the ratio drives color only.
func EmitEntities(series []Series) []*Entity {
	var entities []*Entity
	for x, s := range series {
		show := x == 0
		for i, p := range s.Points {
			ground := Position{Lat: p.Lat, Lon: p.Lon}
			top := Position{Lat: p.Lat, Lon: p.Lon, Height: LineHeight}
			entities = append(entities, &Entity{
				ID:         EntityID(s.Name, i),
				SeriesName: s.Name,
				County:     p.County,
				Show:       show,
				Anchor:     ground,
				Polyline: Polyline{
					Positions:     [2]Position{ground, top},
					Width:         LineWidth,
					FollowSurface: false,
					Colors:        ColorTimeline(p.Timeline),
				},
			})
		}
	}
	return entities
}
