package session

import (
	"context"
	"io"
	"log/slog"
	"supmap-directions/internal/location"
	"supmap-directions/internal/navigation"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGate struct{ perm location.Permission }

func (g fakeGate) RequestFineLocation(context.Context) (location.Permission, error) {
	return g.perm, nil
}

// pendingGate holds the permission answer until answer is called.
type pendingGate struct {
	asked chan struct{}
	perm  chan location.Permission
}

func newPendingGate() *pendingGate {
	return &pendingGate{asked: make(chan struct{}, 1), perm: make(chan location.Permission, 1)}
}

func (g *pendingGate) RequestFineLocation(ctx context.Context) (location.Permission, error) {
	g.asked <- struct{}{}
	select {
	case perm := <-g.perm:
		return perm, nil
	case <-ctx.Done():
		return location.PermissionDenied, ctx.Err()
	}
}

func (g *pendingGate) answer(perm location.Permission) { g.perm <- perm }

type fakePositioner struct {
	mu       sync.Mutex
	onUpdate func(navigation.Position)
	onError  func(error)
	watches  int
	clears   int
}

func (p *fakePositioner) Watch(onUpdate func(navigation.Position), onError func(error)) (location.WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watches++
	p.onUpdate, p.onError = onUpdate, onError
	return location.WatchID(p.watches), nil
}

func (p *fakePositioner) ClearWatch(location.WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func (p *fakePositioner) emit(pos navigation.Position) {
	p.mu.Lock()
	f := p.onUpdate
	p.mu.Unlock()
	if f != nil {
		f(pos)
	}
}

func (p *fakePositioner) fail(err error) {
	p.mu.Lock()
	f := p.onError
	p.mu.Unlock()
	if f != nil {
		f(err)
	}
}

func (p *fakePositioner) counts() (watches, clears int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watches, p.clears
}

type outcome struct {
	route *navigation.Route
	err   error
}

type pendingFetch struct {
	origin      navigation.Point
	destination navigation.PlaceID
	done        chan outcome
}

func (p *pendingFetch) succeed(path ...navigation.Point) {
	p.done <- outcome{route: &navigation.Route{Path: path}}
}

func (p *pendingFetch) fail(err error) {
	p.done <- outcome{err: err}
}

type fakeFetcher struct {
	calls chan *pendingFetch
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *pendingFetch, 16)}
}

func (f *fakeFetcher) FetchRoute(ctx context.Context, origin navigation.Point, destination navigation.PlaceID) (*navigation.Route, error) {
	p := &pendingFetch{origin: origin, destination: destination, done: make(chan outcome, 1)}
	f.calls <- p
	select {
	case o := <-p.done:
		return o.route, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no route fetch issued")
		return nil
	}
}

func (f *fakeFetcher) requireNoCall(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected route fetch to %q", p.destination)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeRenderer struct {
	mu     sync.Mutex
	states []navigation.SessionState
	fits   []navigation.ViewportFit
}

func (r *fakeRenderer) Render(state navigation.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *fakeRenderer) FitViewport(fit navigation.ViewportFit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fits = append(r.fits, fit)
}

func (r *fakeRenderer) viewportFits() []navigation.ViewportFit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigation.ViewportFit(nil), r.fits...)
}

func (r *fakeRenderer) renderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

type memoryCache struct {
	mu       sync.Mutex
	sessions map[string]navigation.SessionState
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sessions: make(map[string]navigation.SessionState)}
}

func (m *memoryCache) SetSession(_ context.Context, s *navigation.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *memoryCache) GetSession(_ context.Context, id string) (*navigation.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, navigation.ErrSessionNotFound
	}
	c := s.Clone()
	return &c, nil
}

func (m *memoryCache) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// stuckCache blocks every write until release is closed.
type stuckCache struct {
	*memoryCache
	release chan struct{}
}

func (s *stuckCache) SetSession(ctx context.Context, state *navigation.SessionState) error {
	<-s.release
	return s.memoryCache.SetSession(ctx, state)
}

type harness struct {
	controller *Controller
	positioner *fakePositioner
	fetcher    *fakeFetcher
	renderer   *fakeRenderer
}

var testPadding = navigation.EdgePadding{Top: 200, Bottom: 80, Left: 40, Right: 40}

func newHarness(t *testing.T, perm location.Permission, cache navigation.SessionCache) *harness {
	t.Helper()
	h := &harness{
		positioner: &fakePositioner{},
		fetcher:    newFakeFetcher(),
		renderer:   &fakeRenderer{},
	}
	tracker := location.NewTracker(fakeGate{perm: perm}, h.positioner, discardLogger)
	opts := Options{SessionID: "session-1", Padding: testPadding}
	if cache != nil {
		opts.Cache = cache
	}
	h.controller = NewController(tracker, h.fetcher, h.renderer, discardLogger, opts)
	require.NoError(t, h.controller.Start(context.Background()))
	t.Cleanup(h.controller.Close)
	return h
}

// moveTo pushes a fix and waits until the controller has applied it.
func (h *harness) moveTo(t *testing.T, lat, lon float64) {
	t.Helper()
	h.positioner.emit(navigation.Position{Lat: lat, Lon: lon})
	require.Eventually(t, func() bool {
		pos := h.controller.Snapshot().CurrentPosition
		return pos != nil && pos.Lat == lat && pos.Lon == lon
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) waitStatus(t *testing.T, status navigation.Status) navigation.SessionState {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.controller.Snapshot().Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return h.controller.Snapshot()
}
