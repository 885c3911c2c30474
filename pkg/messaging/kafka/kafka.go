package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging"
)

type Config struct {
	Brokers []string
	GroupID string
	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration
}

// KafkaBroker publishes JSON messages keyed by channel. The channel name is
// used as the topic.
type KafkaBroker struct {
	cfg    Config
	writer *kafka.Writer
	logger *zerolog.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaBroker(cfg Config, logger *zerolog.Logger) (messaging.Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "medapp"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}

	return &KafkaBroker{cfg: cfg, writer: writer, logger: logger}, nil
}

func (b *KafkaBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = b.writer.WriteMessages(ctx, kafka.Message{
		Topic: channel,
		Key:   []byte(messageKey(message)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *KafkaBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.cfg.Brokers,
		Topic:    channel,
		GroupID:  b.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	msgChan := make(chan []byte, 100)
	go func() {
		defer close(msgChan)
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Error().Err(err).Str("topic", channel).Msg("kafka read failed")
				}
				return
			}
			select {
			case msgChan <- msg.Value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// keyed is implemented by messages that want partition affinity.
type keyed interface {
	PartitionKey() string
}

func messageKey(message interface{}) string {
	if k, ok := message.(keyed); ok {
		return k.PartitionKey()
	}
	return ""
}
