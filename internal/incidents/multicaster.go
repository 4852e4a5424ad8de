package incidents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"supmap-directions/internal/gis"
	"supmap-directions/internal/navigation"
	"supmap-directions/internal/ws"
)

// Recipient is a connected session that may be told about incidents.
type Recipient interface {
	Snapshot() navigation.SessionState
	Send(msg ws.Message)
}

// Sessions enumerates the connected sessions.
type Sessions interface {
	ForEachClient(fn func(*ws.Client))
}

type Multicaster struct {
	sessions  Sessions
	tolerance float64
	logger    *slog.Logger
}

func NewMulticaster(sessions Sessions, toleranceMeters float64, logger *slog.Logger) *Multicaster {
	return &Multicaster{
		sessions:  sessions,
		tolerance: toleranceMeters,
		logger:    logger,
	}
}

// MulticastIncident sends the incident to every session whose current route
// passes within the tolerance of it, and returns how many were notified.
func (m *Multicaster) MulticastIncident(_ context.Context, incident *Incident, action Action) (int, error) {
	data, err := json.Marshal(Payload{Incident: incident, Action: action})
	if err != nil {
		return 0, fmt.Errorf("marshalling incident payload: %w", err)
	}
	msg := ws.Message{Type: ws.TypeIncident, Data: data}

	notified := 0
	m.sessions.ForEachClient(func(client *ws.Client) {
		if m.notify(client, incident, msg) {
			notified++
		}
	})
	m.logger.Debug("incident multicast", "incidentID", incident.ID, "action", action, "notified", notified)
	return notified, nil
}

func (m *Multicaster) notify(r Recipient, incident *Incident, msg ws.Message) bool {
	path := r.Snapshot().CurrentPath
	if !gis.IsPointInPolyline(incident.Point(), path, m.tolerance) {
		return false
	}
	r.Send(msg)
	return true
}
