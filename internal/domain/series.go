package domain

// GroupByCounty partitions samples by county. Groups appear in the order each
// county is first seen, and rows keep their input order within a group.
func GroupByCounty(samples []Sample) []CountySeries {
	index := make(map[string]int)
	var groups []CountySeries
	for _, s := range samples {
		i, ok := index[s.County]
		if !ok {
			i = len(groups)
			index[s.County] = i
			groups = append(groups, CountySeries{County: s.County})
		}
		groups[i].Rows = append(groups[i].Rows, s)
	}
	return groups
}

// Anchor returns the [lat, lon] of the first row in the group. It is the single
// location used for the county's line geometry. The zero point is returned for
// an empty group.
func (c CountySeries) Anchor() [2]float64 {
	if len(c.Rows) == 0 {
		return [2]float64{}
	}
	return c.Rows[0].Point
}

// Timeline returns one (year, water/population) pair per row, in row order.
// Rows are not sorted by year. A zero population yields Inf or NaN.
func (c CountySeries) Timeline() []TimedRatio {
	ts := make([]TimedRatio, len(c.Rows))
	for i, r := range c.Rows {
		ts[i] = TimedRatio{Year: r.Year, Ratio: r.Water / r.Population}
	}
	return ts
}

// BuildSeries turns county groups into a single named series with one point
// per county.
func BuildSeries(name string, groups []CountySeries) Series {
	points := make([]CountyPoint, 0, len(groups))
	for _, g := range groups {
		anchor := g.Anchor()
		points = append(points, CountyPoint{
			County:   g.County,
			Lat:      anchor[0],
			Lon:      anchor[1],
			Timeline: g.Timeline(),
		})
	}
	return Series{Name: name, Points: points}
}

// BuildFromRows runs the normalize, group, and build stages for the rows of one
// query response.
func BuildFromRows(name string, rows []RawRow) (Series, error) {
	samples, err := NormalizeRows(rows)
	if err != nil {
		return Series{}, err
	}
	return BuildSeries(name, GroupByCounty(samples)), nil
}
