package navigation

import "errors"

var (
	ErrPermissionDenied   = errors.New("location permission denied")
	ErrNoPosition         = errors.New("no known position")
	ErrNetwork            = errors.New("network error")
	ErrMalformedResponse  = errors.New("malformed directions response")
	ErrNoRouteFound       = errors.New("no route found")
	ErrMalformedEncoding  = errors.New("malformed polyline encoding")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrTrackingTerminated = errors.New("tracking session terminated")
	ErrClosed             = errors.New("session closed")
	ErrSessionNotFound    = errors.New("session not found")
)

// ErrorKind is the error category recorded in SessionState.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindNoPosition        ErrorKind = "no_position"
	KindNetwork           ErrorKind = "network"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNoRouteFound      ErrorKind = "no_route_found"
	KindMalformedEncoding ErrorKind = "malformed_encoding"
	KindUnknown           ErrorKind = "unknown"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrNoPosition, KindNoPosition},
	{ErrMalformedEncoding, KindMalformedEncoding},
	{ErrMalformedResponse, KindMalformedResponse},
	{ErrNoRouteFound, KindNoRouteFound},
	{ErrNetwork, KindNetwork},
}

// KindOf maps an error chain onto the session error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
