// Package mq provides the judge task queue abstraction and its Kafka
// implementation.
package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageQueue is the transport carrying judge tasks between the API
// server and the judge daemon.
type MessageQueue interface {
	// Publish publishes a message to the specified topic.
	Publish(ctx context.Context, topic string, message *Message) error

	// Subscribe registers a handler for messages on a topic.
	// Consumption starts when Start is called.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	// Start begins consuming on all registered subscriptions.
	Start() error

	// Stop stops consuming and waits for in-flight handlers.
	Stop() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the queue connection.
	Close() error
}

// Message is one queued judge task.
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(body []byte) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// HandlerFunc processes one message. A non-nil error leaves the message
// uncommitted so the broker redelivers it.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions tunes one subscription.
type SubscribeOptions struct {
	// ConsumerGroup is the Kafka consumer group name.
	ConsumerGroup string `yaml:"consumerGroup"`

	// Concurrency sets the number of concurrent workers. Default 1.
	Concurrency int `yaml:"concurrency"`
}

// SetDefaults fills zero fields with defaults.
func (o *SubscribeOptions) SetDefaults() {
	if o.ConsumerGroup == "" {
		o.ConsumerGroup = "ojcore"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
}
