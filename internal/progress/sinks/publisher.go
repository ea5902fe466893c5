package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/progress"
)

// Publisher delivers a payload to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, attrs map[string]string) (string, error)
}

// PublisherSink forwards every status transition to a message topic so
// downstream consumers can react without polling.
type PublisherSink struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink builds a PublisherSink for topic.
func NewPublisherSink(publisher Publisher, topic string, logger *zap.Logger) (*PublisherSink, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}, nil
}

// Consume publishes each record. It attempts every event and returns the
// joined errors of the failures.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		attrs := map[string]string{
			"client_id": evt.ClientID,
			"event":     evt.Name,
			"status":    string(evt.Record.Status),
		}
		id, err := s.publisher.Publish(ctx, s.topic, evt.Record, attrs)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", evt.ClientID, err))
			continue
		}
		s.logger.Debug("status published", zap.String("client_id", evt.ClientID), zap.String("message_id", id))
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
