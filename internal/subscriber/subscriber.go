package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"supmap-directions/internal/incidents"

	"github.com/redis/go-redis/v9"
)

// IncidentNotifier forwards a validated incident to the sessions it concerns.
type IncidentNotifier interface {
	MulticastIncident(ctx context.Context, incident *incidents.Incident, action incidents.Action) (int, error)
}

type Subscriber struct {
	logger   *slog.Logger
	client   *redis.Client
	topic    string
	notifier IncidentNotifier
}

func NewSubscriber(logger *slog.Logger, client *redis.Client, topic string, notifier IncidentNotifier) *Subscriber {
	return &Subscriber{
		logger:   logger,
		client:   client,
		topic:    topic,
		notifier: notifier,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("Redis subscriber is running", "topic", s.topic)
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", "error", err)
		}
	}()

	msgCh := pubsub.Channel()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Warn("pubsub channel closed by Redis")
				return nil
			}
			if err := s.handleMessage(ctx, msg); err != nil {
				s.logger.Error("error handling message", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down Redis subscriber")
			return nil
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, msg *redis.Message) error {
	var im IncidentMessage
	if err := json.Unmarshal([]byte(msg.Payload), &im); err != nil {
		return fmt.Errorf("unmarshalling incident message: %w", err)
	}
	if !im.Action.IsValid() {
		return fmt.Errorf("invalid action %q", im.Action)
	}
	if err := im.Data.Validate(); err != nil {
		return fmt.Errorf("invalid incident: %w", err)
	}

	notified, err := s.notifier.MulticastIncident(ctx, &im.Data, im.Action)
	if err != nil {
		return fmt.Errorf("multicasting incident %d: %w", im.Data.ID, err)
	}
	s.logger.Debug("incident dispatched", "incidentID", im.Data.ID, "action", im.Action, "sessions", notified)
	return nil
}
