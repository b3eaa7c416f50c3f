package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig defines configuration for the Kafka implementation.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`

	// Producer settings
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	// Consumer settings
	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`
}

type kafkaSubscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	reader  *kafka.Reader
}

// KafkaQueue implements MessageQueue on top of segmentio/kafka-go.
type KafkaQueue struct {
	cfg    KafkaConfig
	writer *kafka.Writer

	mu            sync.Mutex
	subscriptions []*kafkaSubscription
	started       bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewKafkaQueue creates a Kafka message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaQueue{cfg: cfg, writer: writer}, nil
}

// Publish publishes a message to the specified topic.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if message == nil {
		return fmt.Errorf("message is required")
	}
	if err := k.writer.WriteMessages(ctx, toKafkaMessage(topic, message)); err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

// Subscribe registers a handler for a topic. Consumption starts on Start.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	options := SubscribeOptions{}
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return fmt.Errorf("cannot subscribe after start")
	}
	k.subscriptions = append(k.subscriptions, &kafkaSubscription{
		topic:   topic,
		handler: handler,
		opts:    options,
	})
	return nil
}

// Start begins consuming on all registered subscriptions.
// Each subscription runs opts.Concurrency reader workers; a message is
// committed only after its handler returns nil, so a crashed worker's
// in-flight task is redelivered.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	k.cancel = cancel
	k.group = group

	for _, sub := range k.subscriptions {
		sub := sub
		for i := 0; i < sub.opts.Concurrency; i++ {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  k.cfg.Brokers,
				GroupID:  sub.opts.ConsumerGroup,
				Topic:    sub.topic,
				MinBytes: k.cfg.MinBytes,
				MaxBytes: k.cfg.MaxBytes,
				MaxWait:  k.cfg.MaxWait,
			})
			if i == 0 {
				sub.reader = reader
			}
			group.Go(func() error {
				defer reader.Close()
				return k.consume(groupCtx, reader, sub.handler)
			})
		}
	}
	k.started = true
	return nil
}

func (k *KafkaQueue) consume(ctx context.Context, reader *kafka.Reader, handler HandlerFunc) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch failed: %w", err)
		}
		if err := handler(ctx, fromKafkaMessage(msg)); err != nil {
			// Leave uncommitted; the broker redelivers after rebalance.
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			return fmt.Errorf("kafka commit failed: %w", err)
		}
	}
}

// Stop stops consuming and waits for in-flight handlers.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	cancel := k.cancel
	group := k.group
	k.started = false
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		return group.Wait()
	}
	return nil
}

// Ping verifies the connection is alive.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial failed: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka brokers failed: %w", err)
	}
	return nil
}

// Close closes the queue connection.
func (k *KafkaQueue) Close() error {
	if err := k.Stop(); err != nil {
		return err
	}
	return k.writer.Close()
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	headers = append(headers,
		kafka.Header{Key: headerID, Value: []byte(message.ID)},
		kafka.Header{Key: headerTimestamp, Value: []byte(message.Timestamp.UTC().Format(time.RFC3339Nano))},
	)
	for key, value := range message.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
	}
}

func fromKafkaMessage(msg kafka.Message) *Message {
	message := &Message{
		Body:      msg.Value,
		Headers:   make(map[string]string),
		Timestamp: msg.Time,
	}
	for _, header := range msg.Headers {
		switch header.Key {
		case headerID:
			message.ID = string(header.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(header.Value)); err == nil {
				message.Timestamp = ts
			}
		default:
			message.Headers[header.Key] = string(header.Value)
		}
	}
	if message.ID == "" {
		message.ID = string(msg.Key)
	}
	return message
}
