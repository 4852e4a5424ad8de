package ws

import (
	"context"
	"supmap-directions/internal/location"
	"supmap-directions/internal/navigation"
	"sync"
)

// deviceFeed is the connected device seen as the platform: it answers the
// location permission request and pushes the fixes the device reports.
type deviceFeed struct {
	permission chan location.Permission
	resolve    sync.Once

	mu       sync.Mutex
	watchID  location.WatchID
	onUpdate func(navigation.Position)
	onError  func(error)
}

func newDeviceFeed() *deviceFeed {
	return &deviceFeed{permission: make(chan location.Permission, 1)}
}

// resolvePermission records the answer the device sent in its init message.
// An empty answer comes from platforms without a runtime location permission.
// Only the first answer counts.
func (f *deviceFeed) resolvePermission(answer string) {
	perm := location.PermissionDenied
	switch location.Permission(answer) {
	case location.PermissionGranted, "":
		perm = location.PermissionGranted
	}
	f.resolve.Do(func() { f.permission <- perm })
}

func (f *deviceFeed) RequestFineLocation(ctx context.Context) (location.Permission, error) {
	select {
	case perm := <-f.permission:
		return perm, nil
	case <-ctx.Done():
		return location.PermissionDenied, ctx.Err()
	}
}

func (f *deviceFeed) Watch(onUpdate func(navigation.Position), onError func(error)) (location.WatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchID++
	f.onUpdate, f.onError = onUpdate, onError
	return f.watchID, nil
}

func (f *deviceFeed) ClearWatch(id location.WatchID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.watchID {
		f.onUpdate, f.onError = nil, nil
	}
}

func (f *deviceFeed) push(pos navigation.Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onUpdate == nil {
		return false
	}
	f.onUpdate(pos)
	return true
}

func (f *deviceFeed) fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onError == nil {
		return false
	}
	f.onError(err)
	return true
}
