package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

const (
	TopicChargeStateChanged = "billing.charge.state_changed"
	TopicChargeRequested    = "billing.charge.requested"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.ChargeEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ChargeID, 10)),
		Value: eventJSON,
	})
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.ChargeEvent) error { return nil }
