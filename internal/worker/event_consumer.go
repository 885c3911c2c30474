package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

// EventConsumer reads appointment status events from the broker and records
// them in the log and metrics.
type EventConsumer struct {
	broker  messaging.Broker
	topic   string
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewEventConsumer(broker messaging.Broker, topic string, m *metrics.Metrics, log *logger.Logger) *EventConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &EventConsumer{broker: broker, topic: topic, metrics: m, log: log}
}

// Run blocks until ctx is done or the subscription closes.
func (c *EventConsumer) Run(ctx context.Context) error {
	msgs, err := c.broker.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	c.log.Info("Event consumer started", "topic", c.topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(payload)
		}
	}
}

func (c *EventConsumer) handle(payload []byte) {
	var event model.AppointmentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.log.Warn("Dropping malformed appointment event", "error", err.Error())
		return
	}

	if c.metrics != nil {
		c.metrics.EventsConsumed.WithLabelValues(string(event.To)).Inc()
	}
	c.log.Info("Appointment status changed",
		"appointment_id", event.AppointmentID.String(),
		"from", string(event.From),
		"to", string(event.To),
		"actor_role", string(event.ActorRole),
	)
}
