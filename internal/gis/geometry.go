package gis

import (
	"math"
	"supmap-directions/internal/navigation"

	"github.com/golang/geo/s2"
)

// EarthRadius in meters
const EarthRadius = 6378137

const degToRad = math.Pi / 180

// Haversine distance between two points in meters
func Haversine(a, b navigation.Point) float64 {
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad

	sinDlat := math.Sin(dLat / 2)
	sinDlon := math.Sin(dLon / 2)

	aVal := sinDlat*sinDlat + sinDlon*sinDlon*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(aVal), math.Sqrt(1-aVal))
	return EarthRadius * c
}

// PathLength sums the haversine length of every segment of path, in meters.
func PathLength(path []navigation.Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

// IsPointInPolyline returns true if point is within tolerance meters of the polyline.
func IsPointInPolyline(point navigation.Point, polyline []navigation.Point, tolerance float64) bool {
	switch len(polyline) {
	case 0:
		return false
	case 1:
		return Haversine(point, polyline[0]) <= tolerance
	}

	for i := 0; i < len(polyline)-1; i++ {
		if distanceToSegment(point, polyline[i], polyline[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

// distanceToSegment returns the minimum distance in meters from p to the segment [a, b],
// using an equirectangular projection around the segment's mean latitude.
// https://www.movable-type.co.uk/scripts/latlong.html
func distanceToSegment(p, a, b navigation.Point) float64 {
	cosLatRef := math.Cos((a.Lat + b.Lat) / 2 * degToRad)

	project := func(pt navigation.Point) (float64, float64) {
		return pt.Lon * degToRad * EarthRadius * cosLatRef, pt.Lat * degToRad * EarthRadius
	}
	xA, yA := project(a)
	xB, yB := project(b)
	xP, yP := project(p)

	dx, dy := xB-xA, yB-yA
	if dx == 0 && dy == 0 {
		return math.Hypot(xP-xA, yP-yA)
	}

	t := ((xP-xA)*dx + (yP-yA)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(xP-(xA+t*dx), yP-(yA+t*dy))
}

// BoundsOf returns the smallest box containing every point of path.
// The zero Bounds is returned for an empty path.
func BoundsOf(path []navigation.Point) navigation.Bounds {
	rect := s2.EmptyRect()
	for _, p := range path {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lon))
	}
	if rect.IsEmpty() {
		return navigation.Bounds{}
	}
	lo, hi := rect.Lo(), rect.Hi()
	return navigation.Bounds{
		SouthWest: navigation.Point{Lat: lo.Lat.Degrees(), Lon: lo.Lng.Degrees()},
		NorthEast: navigation.Point{Lat: hi.Lat.Degrees(), Lon: hi.Lng.Degrees()},
	}
}
