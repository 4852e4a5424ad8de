package directions

import "fmt"

// TravelMode selects the kind of route the directions service computes.
type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeTransit   TravelMode = "transit"
)

func (m TravelMode) IsValid() bool {
	switch m {
	case TravelModeDriving, TravelModeWalking, TravelModeBicycling, TravelModeTransit:
		return true
	default:
		return false
	}
}

// Response specific

// Status values reported by the directions service.
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
	StatusNotFound    = "NOT_FOUND"
)

type Response struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Routes       []Route `json:"routes"`
}

type Route struct {
	Summary          string    `json:"summary"`
	Legs             []Leg     `json:"legs"`
	OverviewPolyline *Polyline `json:"overview_polyline"`
	Warnings         []string  `json:"warnings"`
	Copyrights       string    `json:"copyrights"`
}

type Polyline struct {
	Points *string `json:"points"`
}

type Leg struct {
	StartAddress string  `json:"start_address"`
	EndAddress   string  `json:"end_address"`
	Distance     Measure `json:"distance"`
	Duration     Measure `json:"duration"`
}

// Measure is a value in meters or seconds with its localized label.
type Measure struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

// StatusError is a non-OK status other than "no results" reported by the service.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directions service status %s", e.Status)
	}
	return fmt.Sprintf("directions service status %s: %s", e.Status, e.Message)
}
