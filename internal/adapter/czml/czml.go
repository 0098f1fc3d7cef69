// Package czml encodes the loaded entities as a CZML document, the JSON
// stream format consumed by Cesium-based globe viewers.
package czml

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/water-globe-etl/internal/domain"
)

// Packet is one element of a CZML document.
type Packet struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Version    string      `json:"version,omitempty"`
	Clock      *Clock      `json:"clock,omitempty"`
	Show       *bool       `json:"show,omitempty"`
	Position   *Positions  `json:"position,omitempty"`
	Polyline   *Polyline   `json:"polyline,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
}

// Clock is the document clock that drives the time-tagged colors.
type Clock struct {
	Interval    string  `json:"interval"`
	CurrentTime string  `json:"currentTime"`
	Multiplier  float64 `json:"multiplier"`
	Range       string  `json:"range"`
	Step        string  `json:"step"`
}

// Positions holds flattened longitude, latitude, height triples.
type Positions struct {
	CartographicDegrees []float64 `json:"cartographicDegrees"`
}

type Polyline struct {
	Positions Positions `json:"positions"`
	Width     float64   `json:"width"`
	ArcType   string    `json:"arcType"`
	Material  *Material `json:"material,omitempty"`
}

type Material struct {
	SolidColor SolidColor `json:"solidColor"`
}

type SolidColor struct {
	Color SampledColor `json:"color"`
}

// SampledColor holds ISO 8601 time tags each followed by r, g, b, a in [0, 1].
type SampledColor struct {
	RGBAF []any `json:"rgbaf"`
}

type Properties struct {
	SeriesName string `json:"seriesName"`
	County     string `json:"county,omitempty"`
}

// Document builds the packets for a data source: the document packet with the
// clock, then one packet per entity in collection order.
func Document(name string, clock domain.ClockSettings, entities []domain.Entity) []Packet {
	packets := make([]Packet, 0, len(entities)+1)
	packets = append(packets, Packet{
		ID:      "document",
		Name:    name,
		Version: "1.0",
		Clock: &Clock{
			Interval:    formatTime(clock.Start) + "/" + formatTime(clock.Stop),
			CurrentTime: formatTime(clock.Current),
			Multiplier:  clock.Multiplier,
			Range:       clock.Range,
			Step:        clock.Step,
		},
	})
	for i := range entities {
		packets = append(packets, entityPacket(&entities[i]))
	}
	return packets
}

// Encode writes the CZML document for the entities to w.
func Encode(w io.Writer, name string, clock domain.ClockSettings, entities []domain.Entity) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(Document(name, clock, entities)); err != nil {
		return fmt.Errorf("encode czml: %w", err)
	}
	return nil
}

func entityPacket(e *domain.Entity) Packet {
	show := e.Show
	ground, top := e.Polyline.Positions[0], e.Polyline.Positions[1]

	line := &Polyline{
		Positions: Positions{CartographicDegrees: []float64{
			ground.Lon, ground.Lat, ground.Height,
			top.Lon, top.Lat, top.Height,
		}},
		Width:   e.Polyline.Width,
		ArcType: arcType(e.Polyline.FollowSurface),
	}
	if len(e.Polyline.Colors) > 0 {
		rgbaf := make([]any, 0, 5*len(e.Polyline.Colors))
		for _, s := range e.Polyline.Colors {
			rgbaf = append(rgbaf, formatTime(s.Time), s.Color.R, s.Color.G, s.Color.B, s.Color.A)
		}
		line.Material = &Material{SolidColor: SolidColor{Color: SampledColor{RGBAF: rgbaf}}}
	}

	return Packet{
		ID:       e.ID,
		Show:     &show,
		Position: &Positions{CartographicDegrees: []float64{e.Anchor.Lon, e.Anchor.Lat, e.Anchor.Height}},
		Polyline: line,
		Properties: &Properties{
			SeriesName: e.SeriesName,
			County:     e.County,
		},
	}
}

func arcType(followSurface bool) string {
	if followSurface {
		return "GEODESIC"
	}
	return "NONE"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
