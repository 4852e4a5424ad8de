package location

import (
	"errors"
	"log/slog"
	"supmap-directions/internal/navigation"
	"sync"
)

// errorChannelSize bounds the tracking errors queued for a slow consumer;
// further errors are dropped and logged.
const errorChannelSize = 8

// Subscription is the handle of a running position watch.
// Updates keeps only the most recent fix.
type Subscription struct {
	positioner Positioner
	logger     *slog.Logger

	updates chan navigation.Position
	errs    chan error
	done    chan struct{}

	mu       sync.Mutex
	id       WatchID
	attached bool
	stopped  bool
}

func newSubscription(positioner Positioner, logger *slog.Logger) *Subscription {
	return &Subscription{
		positioner: positioner,
		logger:     logger,
		updates:    make(chan navigation.Position, 1),
		errs:       make(chan error, errorChannelSize),
		done:       make(chan struct{}),
	}
}

func (s *Subscription) Updates() <-chan navigation.Position { return s.updates }

func (s *Subscription) Errors() <-chan error { return s.errs }

// Done reports whether the subscription has ended.
func (s *Subscription) Done() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) attach(id WatchID) {
	s.mu.Lock()
	s.id = id
	s.attached = true
	stopped := s.stopped
	s.mu.Unlock()

	// The platform ended the session before Watch returned.
	if stopped {
		s.positioner.ClearWatch(id)
	}
}

func (s *Subscription) push(pos navigation.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	select {
	case <-s.updates:
	default:
	}
	s.updates <- pos
}

func (s *Subscription) fail(err error) {
	if errors.Is(err, navigation.ErrTrackingTerminated) {
		s.logger.Warn("position tracking terminated by platform", "error", err)
		s.stop(true)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.errs <- err:
	default:
		s.logger.Warn("dropping tracking error, consumer is behind", "error", err)
	}
}

// Stop clears the position watch and closes both channels. Idempotent.
func (s *Subscription) Stop() {
	s.stop(false)
}

func (s *Subscription) stop(fromCallback bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	id, attached := s.id, s.attached
	close(s.updates)
	close(s.errs)
	close(s.done)
	s.mu.Unlock()

	if attached && !fromCallback {
		s.positioner.ClearWatch(id)
	}
	if attached && fromCallback {
		go s.positioner.ClearWatch(id)
	}
}
