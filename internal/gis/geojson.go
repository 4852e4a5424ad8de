package gis

import (
	"supmap-directions/internal/navigation"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteGeoJSON renders path as a feature collection holding the route line and
// a marker on its last coordinate. An empty path yields an empty collection.
func RouteGeoJSON(path []navigation.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(path) == 0 {
		return fc
	}

	line := make(orb.LineString, len(path))
	for i, p := range path {
		line[i] = orb.Point{p.Lon, p.Lat}
	}
	route := geojson.NewFeature(line)
	route.Properties["kind"] = "route"
	fc.Append(route)

	end := path[len(path)-1]
	marker := geojson.NewFeature(orb.Point{end.Lon, end.Lat})
	marker.Properties["kind"] = "destination"
	fc.Append(marker)

	return fc
}
