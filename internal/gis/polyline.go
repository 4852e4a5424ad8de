package gis

import (
	"fmt"
	"math"
	"supmap-directions/internal/navigation"
)

// DefaultPrecision is the number of decimal digits kept by Google's encoded polyline format.
const DefaultPrecision = 5

const (
	charOffset   = 63
	chunkBits    = 5
	chunkMask    = 0x1f
	continuation = 0x20
	maxShift     = 64 - chunkBits
)

// Decode decodes a Google encoded polyline into an ordered path.
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
func Decode(encoded string) ([]navigation.Point, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes a polyline whose coordinates were scaled by 10^digits
// (some providers, GraphHopper or Valhalla, use 6).
func DecodeWithPrecision(encoded string, digits int) ([]navigation.Point, error) {
	factor := math.Pow10(digits)
	points := make([]navigation.Point, 0, len(encoded)/4)

	var lat, lon int64
	index := 0
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, fmt.Errorf("latitude of point %d: %w", len(points), err)
		}
		if next >= len(encoded) {
			return nil, fmt.Errorf("point %d: %w: missing longitude", len(points), navigation.ErrMalformedEncoding)
		}
		dLon, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, fmt.Errorf("longitude of point %d: %w", len(points), err)
		}
		index = next

		lat += dLat
		lon += dLon
		points = append(points, navigation.Point{
			Lat: float64(lat) / factor,
			Lon: float64(lon) / factor,
		})
	}
	return points, nil
}

// decodeValue reads one zigzag-encoded varint starting at index and returns
// the signed delta and the index of the next unread byte.
func decodeValue(encoded string, index int) (int64, int, error) {
	var result uint64
	shift := 0
	for {
		if index >= len(encoded) {
			return 0, index, fmt.Errorf("%w: truncated value at offset %d", navigation.ErrMalformedEncoding, index)
		}
		c := encoded[index]
		if c < charOffset || c > charOffset+chunkMask+continuation {
			return 0, index, fmt.Errorf("%w: invalid byte %q at offset %d", navigation.ErrMalformedEncoding, c, index)
		}
		if shift > maxShift {
			return 0, index, fmt.Errorf("%w: value overflow at offset %d", navigation.ErrMalformedEncoding, index)
		}
		b := uint64(c - charOffset)
		index++
		result |= (b & chunkMask) << shift
		shift += chunkBits
		if b&continuation == 0 {
			break
		}
	}

	if result&1 != 0 {
		return -int64((result + 1) >> 1), index, nil
	}
	return int64(result >> 1), index, nil
}

// Encode encodes a path with the default precision. Coordinates are rounded to 5 decimals.
func Encode(points []navigation.Point) string {
	return EncodeWithPrecision(points, DefaultPrecision)
}

// EncodeWithPrecision encodes a path scaled by 10^digits.
func EncodeWithPrecision(points []navigation.Point, digits int) string {
	factor := math.Pow10(digits)
	buf := make([]byte, 0, len(points)*8)

	var prevLat, prevLon int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * factor))
		lon := int64(math.Round(p.Lon * factor))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func encodeValue(buf []byte, delta int64) []byte {
	v := uint64(delta) << 1
	if delta < 0 {
		v = ^v
	}
	for v >= continuation {
		buf = append(buf, byte((v&chunkMask)|continuation)+charOffset)
		v >>= chunkBits
	}
	return append(buf, byte(v)+charOffset)
}
