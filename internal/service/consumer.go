package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ConsumeChargeRequests enqueues every charge request read from Kafka until
// ctx is done or the reader is closed.
func (m *BillingManager) ConsumeChargeRequests(ctx context.Context, reader MessageReader) {
	m.logger.Info("Started consuming charge requests")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				m.logger.Info("Stopped consuming charge requests")
				return
			}
			m.logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		var req models.ChargeRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			m.logger.Error("Error unmarshaling charge request", zap.Error(err))
			continue
		}
		if req.Amount == nil || req.CyclistID == nil {
			m.logger.Error("Charge request missing fields", zap.ByteString("value", msg.Value))
			continue
		}

		result := m.Enqueue(ctx, *req.CyclistID, *req.Amount)
		if result.Outcome != models.OutcomeSuccess {
			m.logger.Warn("Charge request not enqueued",
				zap.Int64("cyclist_id", *req.CyclistID),
				zap.String("outcome", result.Outcome.String()),
				zap.String("reason", result.Reason),
			)
		}
	}
}
