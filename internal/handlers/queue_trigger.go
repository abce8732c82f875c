package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const SubjectProcessQueue = "billing.queue.process"

type QueueDrainer interface {
	DrainQueue(ctx context.Context) models.DrainResult
}

type drainReply struct {
	Processed int             `json:"processadas"`
	Charges   []models.Charge `json:"cobrancas"`
}

type drainError struct {
	Error string `json:"erro"`
}

// QueueTrigger runs a queue drain for every message on SubjectProcessQueue.
type QueueTrigger struct {
	billing QueueDrainer
	timeout time.Duration
}

func NewQueueTrigger(billing QueueDrainer, timeout time.Duration) *QueueTrigger {
	return &QueueTrigger{billing: billing, timeout: timeout}
}

func (t *QueueTrigger) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(SubjectProcessQueue, t.handle)
}

func (t *QueueTrigger) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	payload := t.Reply(ctx)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(payload); err != nil {
		telemetry.Logger.Error("Failed to reply to queue trigger", zap.Error(err))
	}
}

// Reply drains the queue and encodes the result for a NATS reply.
func (t *QueueTrigger) Reply(ctx context.Context) []byte {
	result := t.billing.DrainQueue(ctx)

	var body any
	if result.Outcome == models.OutcomeSuccess {
		body = drainReply{Processed: len(result.Charges), Charges: result.Charges}
	} else {
		body = drainError{Error: result.Reason}
	}

	data, err := json.Marshal(body)
	if err != nil {
		telemetry.Logger.Error("Failed to encode queue trigger reply", zap.Error(err))
		data, _ = json.Marshal(drainError{Error: MsgInternalError})
	}
	telemetry.Logger.Info("Queue drain triggered over NATS",
		zap.String("outcome", result.Outcome.String()),
		zap.Int("finalized", len(result.Charges)),
	)
	return data
}
