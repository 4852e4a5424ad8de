// Package session orchestrates position tracking and route fetching for one
// navigation session and publishes the state a map view renders.
//
// All SessionState mutation happens on the controller's event loop goroutine.
// Position fixes, tracking errors, destination selections and route
// completions are funneled into that loop through channels, so they may
// arrive in any order without locking the state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"supmap-directions/internal/gis"
	"supmap-directions/internal/location"
	"supmap-directions/internal/navigation"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
)

// cacheTimeout bounds each write of the session snapshot to the cache.
const cacheTimeout = 2 * time.Second

var errAlreadyStarted = errors.New("session already started")

type Tracker interface {
	RequestPermission(ctx context.Context) (location.Permission, error)
	StartTracking() (*location.Subscription, error)
	StopTracking()
}

type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin navigation.Point, destination navigation.PlaceID) (*navigation.Route, error)
}

// Renderer is the map view. Both methods are called from the event loop and must not block.
type Renderer interface {
	Render(state navigation.SessionState)
	FitViewport(fit navigation.ViewportFit)
}

type Options struct {
	SessionID string
	Padding   navigation.EdgePadding
	// Cache, when set, receives every published state and seeds the route on Start.
	Cache navigation.SessionCache
	Now   func() time.Time
}

type Controller struct {
	tracker  Tracker
	routes   RouteFetcher
	renderer Renderer
	logger   *slog.Logger
	opts     Options

	selections chan selection
	results    chan fetchResult
	quit       chan struct{}
	stopped    chan struct{}

	started   atomic.Bool
	running   atomic.Bool
	closeOnce sync.Once
	fetches   conc.WaitGroup
	snapshot  atomic.Pointer[navigation.SessionState]

	// pending holds the latest snapshot not yet written to the cache.
	pending   chan navigation.SessionState
	persister conc.WaitGroup

	// Owned by the event loop once Start has returned.
	state navigation.SessionState
	seq   uint64
	sub   *location.Subscription
}

type selection struct {
	dest  navigation.DestinationSelector
	reply chan selectionReply
}

type selectionReply struct {
	seq uint64
	err error
}

type fetchResult struct {
	req   navigation.RouteRequest
	route *navigation.Route
	err   error
}

func NewController(tracker Tracker, routes RouteFetcher, renderer Renderer, logger *slog.Logger, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		tracker:    tracker,
		routes:     routes,
		renderer:   renderer,
		logger:     logger.With("sessionID", opts.SessionID),
		opts:       opts,
		selections: make(chan selection),
		results:    make(chan fetchResult),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		pending:    make(chan navigation.SessionState, 1),
		state: navigation.SessionState{
			SessionID:   opts.SessionID,
			Status:      navigation.StatusIdle,
			CurrentPath: []navigation.Point{},
		},
	}
	initial := c.state.Clone()
	c.snapshot.Store(&initial)
	return c
}

// Start resolves the location permission, starts tracking when it is granted
// and runs the event loop until Close. A denied permission is not an error:
// it is recorded in the state and every later selection fails.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	select {
	case <-c.quit:
		close(c.stopped)
		return navigation.ErrClosed
	default:
	}

	perm, err := c.tracker.RequestPermission(ctx)
	if err != nil {
		close(c.stopped)
		return err
	}

	if perm == location.PermissionGranted {
		sub, err := c.tracker.StartTracking()
		if err != nil {
			close(c.stopped)
			return fmt.Errorf("starting tracking: %w", err)
		}
		c.sub = sub
		c.state.HasLocationPermission = true
		c.state.Status = navigation.StatusTracking
	} else {
		c.state.LastError = navigation.KindPermissionDenied
		c.logger.Info("location permission denied, session will not track or route")
	}

	c.restore(ctx)
	if c.persists() {
		c.persister.Go(c.persistLoop)
	}
	c.publish()

	c.running.Store(true)
	go c.loop()
	return nil
}

// restore seeds the path and destination from the cache so a reconnecting
// device gets its last route back. The position is not restored.
func (c *Controller) restore(ctx context.Context) {
	if !c.persists() {
		return
	}
	cached, err := c.opts.Cache.GetSession(ctx, c.opts.SessionID)
	if err != nil {
		if !errors.Is(err, navigation.ErrSessionNotFound) {
			c.logger.Warn("failed to restore cached session", "error", err)
		}
		return
	}
	if len(cached.CurrentPath) == 0 {
		return
	}
	c.state.CurrentPath = cached.CurrentPath
	c.state.Route = cached.Route
	c.state.Destination = cached.Destination
	if c.state.HasLocationPermission {
		c.state.Status = navigation.StatusRouteReady
	}
	c.logger.Debug("restored cached route", "points", len(cached.CurrentPath))
}

// SelectDestination starts fetching a route from the latest position to dest
// and returns the sequence number of the request. It fails with
// navigation.ErrNoPosition, without contacting the directions service, while
// no fix is known, which includes the time before Start has resolved the
// location permission.
func (c *Controller) SelectDestination(ctx context.Context, dest navigation.DestinationSelector) (uint64, error) {
	select {
	case <-c.quit:
		return 0, navigation.ErrClosed
	case <-c.stopped:
		return 0, navigation.ErrClosed
	default:
	}
	if !c.running.Load() {
		return 0, navigation.ErrNoPosition
	}

	sel := selection{dest: dest, reply: make(chan selectionReply, 1)}
	select {
	case c.selections <- sel:
	case <-c.quit:
		return 0, navigation.ErrClosed
	case <-c.stopped:
		return 0, navigation.ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-sel.reply:
		return r.seq, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Snapshot returns the last published state. Safe for concurrent use.
func (c *Controller) Snapshot() navigation.SessionState {
	return c.snapshot.Load().Clone()
}

// Close stops tracking, abandons in-flight fetches and waits for the event
// loop to exit. It is safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		if c.started.Load() {
			<-c.stopped
		}
		c.fetches.Wait()
		c.persister.Wait()
	})
}

func (c *Controller) loop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.tracker.StopTracking()
		close(c.stopped)
		c.logger.Debug("session event loop stopped")
	}()

	var updates <-chan navigation.Position
	var trackingErrs <-chan error
	if c.sub != nil {
		updates, trackingErrs = c.sub.Updates(), c.sub.Errors()
	}

	for {
		select {
		case pos, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.handlePosition(pos)
		case err, ok := <-trackingErrs:
			if !ok {
				trackingErrs = nil
				continue
			}
			c.handleTrackingError(err)
		case sel := <-c.selections:
			seq, err := c.handleSelection(ctx, sel.dest)
			sel.reply <- selectionReply{seq: seq, err: err}
		case res := <-c.results:
			c.handleResult(res)
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) handlePosition(pos navigation.Position) {
	c.state.CurrentPosition = &pos
	c.state.TrackingError = ""
	c.publish()
}

func (c *Controller) handleTrackingError(err error) {
	c.logger.Warn("position tracking error", "error", err)
	c.state.TrackingError = err.Error()
	c.publish()
}

func (c *Controller) handleSelection(ctx context.Context, dest navigation.DestinationSelector) (uint64, error) {
	if !c.state.HasLocationPermission {
		return 0, navigation.ErrPermissionDenied
	}
	if dest.PlaceID == "" {
		return 0, fmt.Errorf("%w: empty place id", navigation.ErrInvalidDestination)
	}
	if c.state.CurrentPosition == nil {
		return 0, navigation.ErrNoPosition
	}

	c.seq++
	req := navigation.RouteRequest{
		Seq:         c.seq,
		Origin:      c.state.CurrentPosition.Point(),
		Destination: dest.PlaceID,
	}
	c.state.Status = navigation.StatusRouteRequested
	c.state.Destination = &dest
	c.publish()

	c.logger.Debug("requesting route", "seq", req.Seq, "destination", req.Destination)
	c.fetches.Go(func() {
		route, err := c.routes.FetchRoute(ctx, req.Origin, req.Destination)
		select {
		case c.results <- fetchResult{req: req, route: route, err: err}:
		case <-c.quit:
		}
	})
	return req.Seq, nil
}

func (c *Controller) handleResult(res fetchResult) {
	if res.req.Seq != c.seq {
		c.logger.Debug("discarding stale route result", "seq", res.req.Seq, "latest", c.seq)
		return
	}

	if res.err != nil {
		c.logger.Warn("route request failed", "seq", res.req.Seq, "error", res.err)
		c.state.Status = navigation.StatusRouteFailed
		c.state.LastError = navigation.KindOf(res.err)
		c.publish()
		return
	}

	c.state.Status = navigation.StatusRouteReady
	c.state.LastError = navigation.KindNone
	c.state.CurrentPath = res.route.Path
	c.state.Route = res.route
	c.publish()

	c.renderer.FitViewport(navigation.ViewportFit{
		Coordinates: append([]navigation.Point(nil), res.route.Path...),
		Padding:     c.opts.Padding,
		Bounds:      gis.BoundsOf(res.route.Path),
	})
}

func (c *Controller) publish() {
	c.state.UpdatedAt = c.opts.Now()
	snap := c.state.Clone()
	c.snapshot.Store(&snap)
	c.renderer.Render(snap.Clone())
	if c.persists() {
		c.enqueuePersist(snap.Clone())
	}
}

func (c *Controller) persists() bool {
	return c.opts.Cache != nil && c.opts.SessionID != ""
}

// enqueuePersist replaces any snapshot still waiting for the persister.
// Only the event loop (or Start, before it) sends on pending.
func (c *Controller) enqueuePersist(snap navigation.SessionState) {
	// The live position is never cached.
	snap.CurrentPosition = nil
	select {
	case <-c.pending:
	default:
	}
	c.pending <- snap
}

// persistLoop writes snapshots to the cache off the event loop. The last
// pending snapshot is flushed once the event loop has stopped.
func (c *Controller) persistLoop() {
	for {
		select {
		case snap := <-c.pending:
			c.persist(&snap)
		case <-c.stopped:
			select {
			case snap := <-c.pending:
				c.persist(&snap)
			default:
			}
			return
		}
	}
}

func (c *Controller) persist(snap *navigation.SessionState) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := c.opts.Cache.SetSession(ctx, snap); err != nil {
		c.logger.Warn("failed to cache session", "error", err)
	}
}
