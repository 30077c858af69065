// Package memory keeps published notifications in process. It backs the
// service when no Pub/Sub project is configured and doubles as a test spy.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message is one recorded publish.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher implements domain.Publisher without any broker.
type Publisher struct {
	mu      sync.Mutex
	log     []Message
	byTopic map[string]int
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{byTopic: make(map[string]int)}
}

// Publish appends the payload to the log. Ids are "memory-N" in publish
// order. A canceled ctx records nothing.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.log)+1)
	p.log = append(p.log, Message{ID: id, Topic: topic, Payload: payload})
	p.byTopic[topic]++
	return id, nil
}

// Messages returns a snapshot of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.log))
	copy(out, p.log)
	return out
}

// Count reports how many payloads went to topic.
func (p *Publisher) Count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byTopic[topic]
}
