package navigation

import (
	"context"
	"time"
)

// Point is an immutable geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude [-90,90] and longitude [-180,180].
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Position is a single fix reported by the positioning collaborator.
type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Position) Point() Point {
	return Point{Lat: p.Lat, Lon: p.Lon}
}

// PlaceID identifies a destination without carrying its geometry.
type PlaceID string

// DestinationSelector is what the place picker emits when the user chooses a place.
// Display is the coordinate the picker showed, if it had one.
type DestinationSelector struct {
	PlaceID PlaceID `json:"place_id"`
	Display *Point  `json:"display,omitempty"`
}

// RouteRequest is one fetch attempt. Seq orders requests within a session.
type RouteRequest struct {
	Seq         uint64  `json:"seq"`
	Origin      Point   `json:"origin"`
	Destination PlaceID `json:"destination"`
}

// Route is the decoded first candidate returned by the directions service.
// Path is ordered start to end; an empty Path means "no route".
type Route struct {
	Path            []Point  `json:"path"`
	Summary         string   `json:"summary,omitempty"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds float64  `json:"duration_seconds"`
	Warnings        []string `json:"warnings,omitempty"`
	Copyrights      string   `json:"copyrights,omitempty"`
	Alternatives    int      `json:"alternatives"`
}

type Status string

const (
	StatusIdle           Status = "idle"
	StatusTracking       Status = "tracking"
	StatusRouteRequested Status = "route_requested"
	StatusRouteReady     Status = "route_ready"
	StatusRouteFailed    Status = "route_failed"
)

// SessionState is the read-only view handed to the rendering collaborator.
type SessionState struct {
	SessionID             string               `json:"session_id"`
	Status                Status               `json:"status"`
	HasLocationPermission bool                 `json:"has_location_permission"`
	CurrentPosition       *Position            `json:"current_position,omitempty"`
	Destination           *DestinationSelector `json:"destination,omitempty"`
	CurrentPath           []Point              `json:"current_path"`
	Route                 *Route               `json:"route,omitempty"`
	LastError             ErrorKind            `json:"last_error,omitempty"`
	TrackingError         string               `json:"tracking_error,omitempty"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// Clone returns a deep copy so the snapshot can be shared across goroutines.
func (s SessionState) Clone() SessionState {
	c := s
	if s.CurrentPosition != nil {
		pos := *s.CurrentPosition
		c.CurrentPosition = &pos
	}
	if s.Destination != nil {
		dest := *s.Destination
		if dest.Display != nil {
			display := *dest.Display
			dest.Display = &display
		}
		c.Destination = &dest
	}
	c.CurrentPath = append([]Point(nil), s.CurrentPath...)
	if s.Route != nil {
		route := *s.Route
		route.Path = c.CurrentPath
		route.Warnings = append([]string(nil), s.Route.Warnings...)
		c.Route = &route
	}
	return c
}

// EdgePadding is the margin, in device-independent pixels, kept around a fitted viewport.
type EdgePadding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Bounds is the smallest lat/lon box containing a path. SouthWest.Lon may exceed
// NorthEast.Lon when the box crosses the antimeridian.
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// ViewportFit asks the map to show every coordinate within Padding.
type ViewportFit struct {
	Coordinates []Point     `json:"coordinates"`
	Padding     EdgePadding `json:"padding"`
	Bounds      Bounds      `json:"bounds"`
}

type SessionCache interface {
	SetSession(ctx context.Context, session *SessionState) error
	GetSession(ctx context.Context, sessionID string) (*SessionState, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
