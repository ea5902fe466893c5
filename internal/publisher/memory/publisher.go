// Package memory contains an in-memory publisher used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic      string
	Payload    any
	Attributes map[string]string
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{
		Topic:      topic,
		Payload:    payload,
		Attributes: maps.Clone(attrs),
	})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// ForClient returns the messages whose client_id attribute equals id.
func (p *Publisher) ForClient(id string) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []PublishedMessage
	for _, msg := range p.messages {
		if msg.Attributes["client_id"] == id {
			out = append(out, msg)
		}
	}
	return out
}
