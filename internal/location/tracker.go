// Package location bridges the platform permission and positioning
// collaborators into a permission-gated, cancellable position stream.
package location

import (
	"context"
	"fmt"
	"log/slog"
	"supmap-directions/internal/navigation"
	"sync"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PermissionGate asks the platform for the fine-location capability.
type PermissionGate interface {
	RequestFineLocation(ctx context.Context) (Permission, error)
}

// WatchID identifies a registration made with a Positioner.
type WatchID int

// Positioner pushes position fixes and tracking errors until the watch is cleared.
// Callbacks must not be invoked after ClearWatch returns.
type Positioner interface {
	Watch(onUpdate func(navigation.Position), onError func(error)) (WatchID, error)
	ClearWatch(id WatchID)
}

type Tracker struct {
	gate       PermissionGate
	positioner Positioner
	logger     *slog.Logger

	mu         sync.Mutex
	permission Permission
	sub        *Subscription
}

// NewTracker builds a tracker. A nil gate means the platform has no runtime
// permission for location, so the permission is granted implicitly.
func NewTracker(gate PermissionGate, positioner Positioner, logger *slog.Logger) *Tracker {
	return &Tracker{
		gate:       gate,
		positioner: positioner,
		logger:     logger,
	}
}

// RequestPermission resolves the location permission. Once resolved, the
// answer is cached and the gate is not asked again. A gate error leaves the
// permission unresolved.
func (t *Tracker) RequestPermission(ctx context.Context) (Permission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.permission != "" {
		return t.permission, nil
	}
	if t.gate == nil {
		t.permission = PermissionGranted
		return t.permission, nil
	}

	perm, err := t.gate.RequestFineLocation(ctx)
	if err != nil {
		return PermissionDenied, fmt.Errorf("requesting location permission: %w", err)
	}
	if perm != PermissionGranted {
		perm = PermissionDenied
	}
	t.permission = perm
	t.logger.Debug("location permission resolved", "permission", perm)
	return perm, nil
}

// StartTracking registers with the positioner and returns the subscription.
// Calling it while a subscription is active returns that subscription.
func (t *Tracker) StartTracking() (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.permission != PermissionGranted {
		return nil, navigation.ErrPermissionDenied
	}
	if t.sub != nil && !t.sub.Done() {
		return t.sub, nil
	}

	sub := newSubscription(t.positioner, t.logger)
	id, err := t.positioner.Watch(sub.push, sub.fail)
	if err != nil {
		return nil, fmt.Errorf("starting position watch: %w", err)
	}
	sub.attach(id)
	t.sub = sub
	return sub, nil
}

// StopTracking releases the active subscription, if any. Safe to call repeatedly.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
}
