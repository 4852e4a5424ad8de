package incidents

import (
	"fmt"
	"supmap-directions/internal/navigation"
)

type Incident struct {
	ID     int     `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	TypeID int     `json:"type_id"`
}

func (i *Incident) Point() navigation.Point {
	return navigation.Point{Lat: i.Lat, Lon: i.Lon}
}

func (i *Incident) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("invalid ID: %d", i.ID)
	}
	if i.TypeID <= 0 {
		return fmt.Errorf("invalid TypeID: %d", i.TypeID)
	}
	if i.Lat < -90 || i.Lat > 90 {
		return fmt.Errorf("invalid latitude: %f", i.Lat)
	}
	if i.Lon < -180 || i.Lon > 180 {
		return fmt.Errorf("invalid longitude: %f", i.Lon)
	}
	return nil
}

type Action string

const (
	Create    Action = "create"
	Certified Action = "certified"
	Deleted   Action = "deleted"
)

func (a Action) IsValid() bool {
	switch a {
	case Create, Certified, Deleted:
		return true
	}
	return false
}

// Payload is what a session receives when an incident lies on its route.
type Payload struct {
	Incident *Incident `json:"incident"`
	Action   Action    `json:"action"`
}
