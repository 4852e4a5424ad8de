package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"supmap-directions/internal/gis"
	"supmap-directions/internal/location"
	"supmap-directions/internal/navigation"
	"supmap-directions/internal/session"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/paulmach/orb/geojson"
)

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize = 16
	pingPeriod      = (60 * 9 * time.Second) / 10
)

// Message types exchanged with the device.
const (
	TypeInit          = "init"
	TypePosition      = "position"
	TypePositionError = "position_error"
	TypeDestination   = "destination"
	TypeState         = "state"
	TypeFitViewport   = "fit_viewport"
	TypeIncident      = "incident"
	TypeError         = "error"
)

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type InitPayload struct {
	Permission string `json:"permission"`
}

type PositionErrorPayload struct {
	Message    string `json:"message"`
	Terminated bool   `json:"terminated"`
}

type DestinationPayload struct {
	PlaceID string   `json:"place_id"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

type StatePayload struct {
	State   navigation.SessionState    `json:"state"`
	GeoJSON *geojson.FeatureCollection `json:"geojson"`
}

type ErrorPayload struct {
	Kind    navigation.ErrorKind `json:"kind"`
	Message string               `json:"message"`
}

type Client struct {
	ID      string
	Conn    *websocket.Conn
	Manager *Manager
	send    chan Message
	// destinations holds the latest selection not yet handed to the controller.
	destinations chan navigation.DestinationSelector
	ctx          context.Context
	cancel       context.CancelFunc
	feed         *deviceFeed
	controller   *session.Controller
	closeOnce    sync.Once
}

func NewClient(id string, conn *websocket.Conn, manager *Manager) *Client {
	ctx, cancel := context.WithCancel(manager.ctx)
	c := &Client{
		ID:           id,
		Conn:         conn,
		Manager:      manager,
		send:         make(chan Message, sendChannelSize),
		destinations: make(chan navigation.DestinationSelector, 1),
		ctx:          ctx,
		cancel:       cancel,
		feed:         newDeviceFeed(),
	}

	logger := manager.logger.With("clientID", id)
	tracker := location.NewTracker(c.feed, c.feed, logger)
	c.controller = session.NewController(tracker, manager.routes, c, logger, session.Options{
		SessionID: id,
		Padding:   manager.padding,
		Cache:     manager.sessionCache,
	})
	return c
}

func (c *Client) Start() {
	go c.readPump()
	go c.writePump()
	go c.selectPump()
	c.Manager.add(c)

	go func() {
		if err := c.controller.Start(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Manager.logger.Warn("failed to start route session", "clientID", c.ID, "error", err)
			c.Close()
		}
	}()
}

// Close ends the route session and the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.controller.Close()
		if err := c.Conn.Close(websocket.StatusNormalClosure, "bye :P"); err != nil {
			c.Manager.logger.Debug("failed to close connection", "clientID", c.ID, "error", err)
		}
	})
}

// Snapshot returns the current route session state of the client.
func (c *Client) Snapshot() navigation.SessionState {
	return c.controller.Snapshot()
}

// Send queues msg without blocking. A client whose queue is full is disconnected.
func (c *Client) Send(msg Message) {
	select {
	case <-c.ctx.Done():
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.Manager.logger.Warn("send queue full, disconnecting client", "clientID", c.ID)
		go c.Manager.forceDisconnect(c)
	}
}

// Render implements session.Renderer.
func (c *Client) Render(state navigation.SessionState) {
	c.sendJSON(TypeState, StatePayload{State: state, GeoJSON: gis.RouteGeoJSON(state.CurrentPath)})
}

// FitViewport implements session.Renderer.
func (c *Client) FitViewport(fit navigation.ViewportFit) {
	c.sendJSON(TypeFitViewport, fit)
}

func (c *Client) sendJSON(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.Manager.logger.Error("failed to marshal message", "clientID", c.ID, "type", msgType, "error", err)
		return
	}
	c.Send(Message{Type: msgType, Data: data})
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.remove(c)
		c.Close()
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, c.Conn, &msg); err != nil {
			c.Manager.logger.Debug("failed to read message", "clientID", c.ID, "error", err)
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			if err := wsjson.Write(c.ctx, c.Conn, msg); err != nil {
				c.Manager.logger.Warn("failed to write message", "clientID", c.ID, "error", err)
				return
			}
			c.Manager.logger.Debug("message sent", "clientID", c.ID, "type", msg.Type)
		case <-ticker.C:
			if err := c.Conn.Ping(c.ctx); err != nil {
				c.Manager.logger.Debug("failed to ping client", "clientID", c.ID, "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	logger := c.Manager.logger.With("clientID", c.ID, "type", msg.Type)

	switch msg.Type {
	case TypeInit:
		var init InitPayload
		if err := json.Unmarshal(msg.Data, &init); err != nil {
			logger.Warn("failed to unmarshal init message", "error", err)
			return
		}
		c.feed.resolvePermission(init.Permission)
	case TypePosition:
		var pos navigation.Position
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			logger.Warn("failed to unmarshal position", "error", err)
			return
		}
		if !pos.Point().Valid() {
			logger.Warn("ignoring out of range position", "lat", pos.Lat, "lon", pos.Lon)
			return
		}
		if pos.Timestamp.IsZero() {
			pos.Timestamp = time.Now()
		}
		if !c.feed.push(pos) {
			logger.Debug("position received while not tracking")
		}
	case TypePositionError:
		var payload PositionErrorPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("failed to unmarshal position error", "error", err)
			return
		}
		err := errors.New(payload.Message)
		if payload.Terminated {
			err = fmt.Errorf("%w: %s", navigation.ErrTrackingTerminated, payload.Message)
		}
		c.feed.fail(err)
	case TypeDestination:
		var payload DestinationPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("failed to unmarshal destination", "error", err)
			return
		}
		c.queueDestination(payload)
	default:
		logger.Debug("received unknown type message")
	}
}

// queueDestination hands the selection to selectPump without blocking the
// read pump. A selection still waiting is replaced, the latest one wins anyway.
func (c *Client) queueDestination(payload DestinationPayload) {
	dest := navigation.DestinationSelector{PlaceID: navigation.PlaceID(payload.PlaceID)}
	if payload.Lat != nil && payload.Lon != nil {
		dest.Display = &navigation.Point{Lat: *payload.Lat, Lon: *payload.Lon}
	}

	select {
	case dropped := <-c.destinations:
		c.Manager.logger.Debug("destination superseded", "clientID", c.ID, "placeID", dropped.PlaceID)
	default:
	}
	c.destinations <- dest
}

func (c *Client) selectPump() {
	for {
		select {
		case dest := <-c.destinations:
			c.selectDestination(dest)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) selectDestination(dest navigation.DestinationSelector) {
	seq, err := c.controller.SelectDestination(c.ctx, dest)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.Manager.logger.Info("destination rejected", "clientID", c.ID, "placeID", dest.PlaceID, "error", err)
		c.sendJSON(TypeError, ErrorPayload{Kind: navigation.KindOf(err), Message: err.Error()})
		return
	}
	c.Manager.logger.Debug("destination selected", "clientID", c.ID, "placeID", dest.PlaceID, "seq", seq)
}
