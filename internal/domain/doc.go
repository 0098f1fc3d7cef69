// Package domain turns county water-use query rows into colored line entities
// for a 3D globe.
//
// # Data Source
//
// Rows come from a CARTO SQL API query joining county centroids with predicted
// population and predicted water withdrawal per county and year. Every column
// is delivered as text:
//
//	point       GeoJSON point, e.g. {"type":"Point","coordinates":[-97.74,30.27]}
//	modfips     county FIPS-like identifier, passed through as an opaque string
//	year        prediction year, e.g. "2015"
//	population  predicted population
//	water       predicted water withdrawal
//	pop10       2010 census population
//
// GeoJSON orders coordinates [longitude, latitude]. Every type in this package
// that carries a point pair uses [latitude, longitude]; the swap happens once,
// in [NormalizeRow].
//
// # Pipeline
//
//	RawRow --NormalizeRow--> Sample --GroupByCounty--> CountySeries
//	       --BuildSeries--> Series --EmitEntities--> Entity
//
// Malformed numbers are not rejected. They become NaN and flow through the
// ratio and color computation unchanged, as does the division by zero of a
// county whose ratio never changes.
//
// # Color Mapping
//
// For each county the ratio water/population is rescaled against that
// county's own minimum and maximum:
//
//	normalized = (max - ratio) / (max - min)
//
// and used as the hue of an HSL color with full saturation and 50% lightness.
// One color keyframe is keyed at January 1 of each sample year; the renderer
// interpolates between them as its clock advances (see [ClockSettings]).
//
// # Entities
//
// Each county becomes a single two-point line from the ground at its anchor
// point (the first row seen for the county) up to a fixed 1,000 km altitude.
// Entity IDs are "<series> index <n>" where n is the county's offset in the
// flat [lat, lon, timeline, ...] series layout (0, 3, 6, ...), so reloading
// identical rows yields identical IDs.
package domain
