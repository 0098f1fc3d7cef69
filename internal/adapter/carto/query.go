package carto

import (
	"strconv"
	"strings"
)

// queryTemplate joins county centroids with projected population and water
// use, one row per county-year. Rows come back ordered by county FIPS
// descending and year ascending.
const queryTemplate = `WITH distinct_pop AS (
  SELECT Id2, fomattedAddress
  FROM {{population}}
  GROUP BY Id2, fomattedAddress
), counties_1 AS (
  SELECT
    ST_AsGeoJSON(c.the_geom) AS "point",
    p.Id2 AS "modfips",
    c.fomattedaddress,
    c.pop10 AS "pop10"
  FROM {{counties}} c
  INNER JOIN distinct_pop p ON c.fomattedaddress = p.fomattedaddress
  ORDER BY p.Id2 DESC
), distinct_predicted_pop AS (
  SELECT ModFIPS, Year, Total FROM predicted_population GROUP BY ModFIPS, Year, Total ORDER BY ModFIPS, Year
), distinct_predicted_water AS (
  SELECT ModFIPS, Year, Water FROM predicted_water GROUP BY ModFIPS, Year, Water
), counties_with_predicted_population AS (
  SELECT
    cc.point,
    cc.modfips,
    cc.pop10,
    pp.Total AS "population",
    pp.year
  FROM distinct_predicted_pop pp
  JOIN counties_1 cc ON cc.modfips = pp.ModFIPS
  WHERE cc.modfips IS NOT NULL
  ORDER BY cc.modfips DESC, pp.year ASC
)
SELECT
  cpp.point,
  cpp.modfips,
  cpp.pop10,
  cpp.population,
  cpp.year,
  pw.water
FROM distinct_predicted_water pw
INNER JOIN counties_with_predicted_population cpp ON pw.modfips = cpp.modfips AND pw.year = cpp.year
ORDER BY cpp.modfips DESC, cpp.year ASC`

// BuildQuery renders the water-use query against the given tables. A positive
// limit appends a LIMIT clause.
func BuildQuery(countiesTable, populationTable string, limit int) string {
	q := strings.NewReplacer(
		"{{counties}}", countiesTable,
		"{{population}}", populationTable,
	).Replace(queryTemplate)
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	return q
}
