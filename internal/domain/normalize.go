package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidGeometry is returned when a row's point column is not a GeoJSON
// point with at least two coordinates.
var ErrInvalidGeometry = errors.New("invalid point geometry")

// pointGeometry is the subset of a GeoJSON geometry the normalizer reads.
type pointGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

// NormalizeRows normalizes every row in order. It stops at the first row whose
// geometry cannot be parsed; numeric columns never cause an error.
func NormalizeRows(rows []RawRow) ([]Sample, error) {
	samples := make([]Sample, 0, len(rows))
	for i, row := range rows {
		s, err := NormalizeRow(row)
		if err != nil {
			return nil, fmt.Errorf("normalize row %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// NormalizeRow parses the embedded point geometry, swaps it into [lat, lon]
// order, and coerces the numeric columns. Malformed numbers become NaN (year
// becomes 0) and are left for downstream stages to propagate.
func NormalizeRow(row RawRow) (Sample, error) {
	point, err := parsePoint(string(row.Point))
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Point:      point,
		County:     string(row.ModFIPS),
		Year:       parseYear(string(row.Year)),
		Population: parseFloatOrNaN(string(row.Population)),
		Water:      parseFloatOrNaN(string(row.Water)),
		Pop10:      parseFloatOrNaN(string(row.Pop10)),
	}, nil
}

// parsePoint decodes GeoJSON point text and returns [lat, lon]. The source
// delivers [lon, lat]; the swap is required for every consumer downstream.
func parsePoint(text string) ([2]float64, error) {
	var geom pointGeometry
	if err := json.Unmarshal([]byte(text), &geom); err != nil {
		return [2]float64{}, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	if len(geom.Coordinates) < 2 {
		return [2]float64{}, fmt.Errorf("%w: %d coordinates", ErrInvalidGeometry, len(geom.Coordinates))
	}
	return [2]float64{geom.Coordinates[1], geom.Coordinates[0]}, nil
}

// parseFloatOrNaN parses s as float64, returning NaN on failure.
func parseFloatOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseYear accepts "2015" and "2015.0"; anything else yields 0.
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Trunc(f))
}
