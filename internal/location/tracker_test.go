package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"supmap-directions/internal/navigation"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGate struct {
	perm  Permission
	err   error
	calls int
}

func (g *fakeGate) RequestFineLocation(context.Context) (Permission, error) {
	g.calls++
	return g.perm, g.err
}

type fakePositioner struct {
	mu       sync.Mutex
	onUpdate func(navigation.Position)
	onError  func(error)
	cleared  []WatchID
	nextID   WatchID
}

func (p *fakePositioner) Watch(onUpdate func(navigation.Position), onError func(error)) (WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.onUpdate, p.onError = onUpdate, onError
	return p.nextID, nil
}

func (p *fakePositioner) ClearWatch(id WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, id)
}

func (p *fakePositioner) emit(pos navigation.Position) {
	p.mu.Lock()
	f := p.onUpdate
	p.mu.Unlock()
	f(pos)
}

func (p *fakePositioner) fail(err error) {
	p.mu.Lock()
	f := p.onError
	p.mu.Unlock()
	f(err)
}

func (p *fakePositioner) clearedIDs() []WatchID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WatchID(nil), p.cleared...)
}

func TestRequestPermission(t *testing.T) {
	t.Run("granted once", func(t *testing.T) {
		gate := &fakeGate{perm: PermissionGranted}
		tracker := NewTracker(gate, &fakePositioner{}, discardLogger)

		for i := 0; i < 3; i++ {
			perm, err := tracker.RequestPermission(context.Background())
			require.NoError(t, err)
			assert.Equal(t, PermissionGranted, perm)
		}
		assert.Equal(t, 1, gate.calls)
	})

	t.Run("denied is cached", func(t *testing.T) {
		gate := &fakeGate{perm: PermissionDenied}
		tracker := NewTracker(gate, &fakePositioner{}, discardLogger)

		perm, err := tracker.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PermissionDenied, perm)

		_, err = tracker.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, gate.calls)
	})

	t.Run("ungated platform", func(t *testing.T) {
		tracker := NewTracker(nil, &fakePositioner{}, discardLogger)

		perm, err := tracker.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PermissionGranted, perm)
	})

	t.Run("gate error is retried", func(t *testing.T) {
		gate := &fakeGate{err: errors.New("dialog dismissed")}
		tracker := NewTracker(gate, &fakePositioner{}, discardLogger)

		perm, err := tracker.RequestPermission(context.Background())
		require.Error(t, err)
		assert.Equal(t, PermissionDenied, perm)

		gate.err, gate.perm = nil, PermissionGranted
		perm, err = tracker.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PermissionGranted, perm)
		assert.Equal(t, 2, gate.calls)
	})
}

func TestStartTrackingRequiresPermission(t *testing.T) {
	tracker := NewTracker(&fakeGate{perm: PermissionDenied}, &fakePositioner{}, discardLogger)

	_, err := tracker.StartTracking()
	require.ErrorIs(t, err, navigation.ErrPermissionDenied)

	_, err = tracker.RequestPermission(context.Background())
	require.NoError(t, err)
	_, err = tracker.StartTracking()
	require.ErrorIs(t, err, navigation.ErrPermissionDenied)
}

func grantedTracker(t *testing.T) (*Tracker, *fakePositioner) {
	t.Helper()
	positioner := &fakePositioner{}
	tracker := NewTracker(nil, positioner, discardLogger)
	_, err := tracker.RequestPermission(context.Background())
	require.NoError(t, err)
	return tracker, positioner
}

func TestSubscriptionKeepsLatestPosition(t *testing.T) {
	tracker, positioner := grantedTracker(t)

	sub, err := tracker.StartTracking()
	require.NoError(t, err)

	positioner.emit(navigation.Position{Lat: 1, Lon: 1})
	positioner.emit(navigation.Position{Lat: 2, Lon: 2})
	positioner.emit(navigation.Position{Lat: 2, Lon: 2})

	pos := <-sub.Updates()
	assert.Equal(t, navigation.Position{Lat: 2, Lon: 2}, pos)
	select {
	case extra := <-sub.Updates():
		t.Fatalf("unexpected buffered position %+v", extra)
	default:
	}
}

func TestSubscriptionErrorsDoNotStopStream(t *testing.T) {
	tracker, positioner := grantedTracker(t)
	sub, err := tracker.StartTracking()
	require.NoError(t, err)

	gpsLost := errors.New("gps signal lost")
	positioner.fail(gpsLost)
	require.ErrorIs(t, <-sub.Errors(), gpsLost)

	positioner.emit(navigation.Position{Lat: 3, Lon: 4})
	assert.Equal(t, navigation.Position{Lat: 3, Lon: 4}, <-sub.Updates())
	assert.False(t, sub.Done())
}

func TestSubscriptionTerminatedByPlatform(t *testing.T) {
	tracker, positioner := grantedTracker(t)
	sub, err := tracker.StartTracking()
	require.NoError(t, err)

	positioner.fail(navigation.ErrTrackingTerminated)

	_, open := <-sub.Updates()
	assert.False(t, open)
	_, open = <-sub.Errors()
	assert.False(t, open)
	assert.True(t, sub.Done())
	require.Eventually(t, func() bool {
		return len(positioner.clearedIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	tracker.StopTracking()
	assert.Len(t, positioner.clearedIDs(), 1)

	// Callbacks after termination are ignored.
	positioner.emit(navigation.Position{Lat: 9, Lon: 9})
}

func TestStopTrackingIsIdempotent(t *testing.T) {
	tracker, positioner := grantedTracker(t)

	sub, err := tracker.StartTracking()
	require.NoError(t, err)
	again, err := tracker.StartTracking()
	require.NoError(t, err)
	assert.Same(t, sub, again)

	tracker.StopTracking()
	tracker.StopTracking()
	sub.Stop()

	assert.Equal(t, []WatchID{1}, positioner.clearedIDs())
	assert.True(t, sub.Done())

	positioner.emit(navigation.Position{Lat: 5, Lon: 5})
	_, open := <-sub.Updates()
	assert.False(t, open)
}
