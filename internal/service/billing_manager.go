package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/events"
	"github.com/akylbek/bike-rental/billing-service/internal/interfaces"
	"github.com/akylbek/bike-rental/billing-service/internal/lock"
	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/repository"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const (
	MsgChargeFailed     = "Erro ao processar a cobrança"
	MsgEnqueueFailed    = "Erro ao colocar a cobrança na fila"
	MsgDrainFailed      = "Erro ao processar a fila de cobranças"
	MsgFetchFailed      = "Erro ao buscar a cobrança"
	MsgChargeNotFound   = "Cobrança não encontrada"
	MsgChargeInProgress = "Cobrança em andamento para o ciclista"
	MsgDrainInProgress  = "Processamento da fila já em andamento"

	queueLockKey  = "cobranca_lock:fila"
	settleTimeout = 5 * time.Second
)

// BillingManager drives charges through PENDENTE/EM_FILA to FINALIZADA or
// FALHA. It holds no charge state between calls; the repository is the
// source of truth.
type BillingManager struct {
	repo      interfaces.ChargeRepository
	directory interfaces.CyclistDirectory
	gateway   interfaces.PaymentGateway
	locker    interfaces.Locker
	publisher interfaces.EventPublisher
	logger    *zap.Logger

	chargeLockTTL time.Duration
	queueLockTTL  time.Duration
}

type Option func(*BillingManager)

func WithLocker(locker interfaces.Locker) Option {
	return func(m *BillingManager) { m.locker = locker }
}

func WithPublisher(publisher interfaces.EventPublisher) Option {
	return func(m *BillingManager) { m.publisher = publisher }
}

func WithLockTTL(charge, queue time.Duration) Option {
	return func(m *BillingManager) {
		m.chargeLockTTL = charge
		m.queueLockTTL = queue
	}
}

func NewBillingManager(
	repo interfaces.ChargeRepository,
	directory interfaces.CyclistDirectory,
	gateway interfaces.PaymentGateway,
	logger *zap.Logger,
	opts ...Option,
) *BillingManager {
	m := &BillingManager{
		repo:          repo,
		directory:     directory,
		gateway:       gateway,
		locker:        lock.NopLocker{},
		publisher:     events.NopPublisher{},
		logger:        logger,
		chargeLockTTL: 30 * time.Second,
		queueLockTTL:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ChargeNow charges the cyclist's card on file immediately. Each call inserts
// exactly one charge and applies at most one terminal update to it.
func (m *BillingManager) ChargeNow(ctx context.Context, cyclistID int64, amount decimal.Decimal) (result models.ChargeResult) {
	ctx, span := telemetry.Tracer.Start(ctx, "billing.ChargeNow",
		trace.WithAttributes(attribute.Int64("cyclist.id", cyclistID)))
	defer span.End()
	start := time.Now()
	defer func() { m.observe(span, "charge_now", result.Outcome, result.Reason, start) }()

	release, acquired, err := m.locker.Acquire(ctx, cyclistLockKey(cyclistID), m.chargeLockTTL)
	if err != nil {
		m.logger.Error("Failed to acquire cyclist lock", zap.Int64("cyclist_id", cyclistID), zap.Error(err))
		return models.TransientError(MsgChargeFailed)
	}
	if !acquired {
		return models.Rejected(MsgChargeInProgress)
	}
	defer release()

	lookup, err := m.directory.LookupCard(ctx, cyclistID)
	if err != nil {
		m.logger.Error("Card lookup failed", zap.Int64("cyclist_id", cyclistID), zap.Error(err))
		return models.TransientError(MsgChargeFailed)
	}
	if !lookup.Found {
		return models.NotFound(lookup.Message)
	}

	chargeID, err := m.repo.InsertPending(ctx, amount, cyclistID)
	if err != nil {
		m.logger.Error("Failed to insert pending charge", zap.Int64("cyclist_id", cyclistID), zap.Error(err))
		return models.TransientError(MsgChargeFailed)
	}
	span.SetAttributes(attribute.Int64("charge.id", chargeID))
	m.publish(ctx, chargeID, cyclistID, amount, "", models.StatusPending)

	decision, err := m.gateway.Charge(ctx, *lookup.Card, amount)
	if err != nil {
		m.logger.Error("Payment gateway call failed",
			zap.Int64("charge_id", chargeID),
			zap.Error(err),
		)
		m.compensate(ctx, chargeID, cyclistID, amount)
		return models.TransientError(MsgChargeFailed)
	}

	// The gateway has decided; the terminal write must not depend on the
	// caller staying connected.
	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	if !decision.Approved {
		// No compensation here: the failure write is the one update.
		if err := m.repo.MarkFailed(settleCtx, chargeID); err != nil {
			m.logger.Error("Failed to mark rejected charge", zap.Int64("charge_id", chargeID), zap.Error(err))
			return models.TransientError(MsgChargeFailed)
		}
		m.publish(settleCtx, chargeID, cyclistID, amount, models.StatusPending, models.StatusFailed)
		m.logger.Info("Charge rejected",
			zap.Int64("charge_id", chargeID),
			zap.String("reason", decision.Reason),
		)
		return models.Rejected(decision.Reason)
	}

	charge, err := m.repo.Finalize(settleCtx, chargeID, models.StatusPending)
	if err != nil {
		m.logger.Error("Failed to finalize approved charge", zap.Int64("charge_id", chargeID), zap.Error(err))
		m.compensate(ctx, chargeID, cyclistID, amount)
		return models.TransientError(MsgChargeFailed)
	}
	m.publish(settleCtx, chargeID, cyclistID, amount, models.StatusPending, models.StatusFinalized)

	m.logger.Info("Charge finalized",
		zap.Int64("charge_id", chargeID),
		zap.Int64("cyclist_id", cyclistID),
		zap.String("amount", amount.String()),
	)
	return models.Succeeded(charge)
}

// Enqueue records a charge for the next queue drain once the cyclist's card
// is confirmed. No payment is attempted.
func (m *BillingManager) Enqueue(ctx context.Context, cyclistID int64, amount decimal.Decimal) (result models.ChargeResult) {
	ctx, span := telemetry.Tracer.Start(ctx, "billing.Enqueue",
		trace.WithAttributes(attribute.Int64("cyclist.id", cyclistID)))
	defer span.End()
	start := time.Now()
	defer func() { m.observe(span, "enqueue", result.Outcome, result.Reason, start) }()

	lookup, err := m.directory.LookupCard(ctx, cyclistID)
	if err != nil {
		m.logger.Error("Card lookup failed", zap.Int64("cyclist_id", cyclistID), zap.Error(err))
		return models.TransientError(MsgEnqueueFailed)
	}
	if !lookup.Found {
		return models.NotFound(lookup.Message)
	}

	charge, err := m.repo.InsertQueued(ctx, amount, cyclistID)
	if err != nil {
		m.logger.Error("Failed to insert queued charge", zap.Int64("cyclist_id", cyclistID), zap.Error(err))
		return models.TransientError(MsgEnqueueFailed)
	}
	m.publish(ctx, charge.ID, cyclistID, amount, "", models.StatusQueued)

	return models.Succeeded(charge)
}

// DrainQueue attempts every EM_FILA charge once, in id order, and returns the
// ones finalized in this pass. Charges whose lookup or payment fails stay
// EM_FILA and are retried on the next pass. The pass stops before the queue
// lock expires.
func (m *BillingManager) DrainQueue(ctx context.Context) (result models.DrainResult) {
	ctx, span := telemetry.Tracer.Start(ctx, "billing.DrainQueue")
	defer span.End()
	start := time.Now()
	defer func() { m.observe(span, "drain_queue", result.Outcome, result.Reason, start) }()

	release, acquired, err := m.locker.Acquire(ctx, queueLockKey, m.queueLockTTL)
	if err != nil {
		m.logger.Error("Failed to acquire queue lock", zap.Error(err))
		return models.DrainResult{Outcome: models.OutcomeTransientError, Reason: MsgDrainFailed}
	}
	if !acquired {
		return models.DrainResult{Outcome: models.OutcomeRejected, Reason: MsgDrainInProgress}
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, m.drainBudget())
	defer cancel()

	queued, err := m.repo.ListQueued(ctx)
	if err != nil {
		m.logger.Error("Failed to list queued charges", zap.Error(err))
		return models.DrainResult{Outcome: models.OutcomeTransientError, Reason: MsgDrainFailed}
	}

	finalized := make([]models.Charge, 0, len(queued))
	for _, charge := range queued {
		if err := ctx.Err(); err != nil {
			m.logger.Warn("Queue drain interrupted",
				zap.Int("finalized", len(finalized)),
				zap.Error(err),
			)
			return models.DrainResult{Outcome: models.OutcomeTransientError, Reason: MsgDrainFailed}
		}

		settled, err := m.settleQueued(ctx, charge)
		if err != nil {
			m.logger.Error("Queue drain aborted",
				zap.Int64("charge_id", charge.ID),
				zap.Int("finalized", len(finalized)),
				zap.Error(err),
			)
			return models.DrainResult{Outcome: models.OutcomeTransientError, Reason: MsgDrainFailed}
		}
		if settled == nil {
			telemetry.QueueRetained.Inc()
			continue
		}
		finalized = append(finalized, *settled)
	}

	span.SetAttributes(
		attribute.Int("queue.size", len(queued)),
		attribute.Int("queue.finalized", len(finalized)),
	)
	m.logger.Info("Queue drained",
		zap.Int("queued", len(queued)),
		zap.Int("finalized", len(finalized)),
	)
	return models.DrainResult{Outcome: models.OutcomeSuccess, Charges: finalized}
}

// settleQueued returns the finalized charge, nil when the charge stays queued,
// or an error when the store fails.
func (m *BillingManager) settleQueued(ctx context.Context, charge models.Charge) (*models.Charge, error) {
	logger := m.logger.With(zap.Int64("charge_id", charge.ID), zap.Int64("cyclist_id", charge.CyclistID))

	lookup, err := m.directory.LookupCard(ctx, charge.CyclistID)
	if err != nil {
		logger.Warn("Queued charge kept: card lookup failed", zap.Error(err))
		return nil, nil
	}
	if !lookup.Found {
		logger.Warn("Queued charge kept: card not found", zap.String("reason", lookup.Message))
		return nil, nil
	}

	decision, err := m.gateway.Charge(ctx, *lookup.Card, charge.Amount)
	if err != nil {
		logger.Warn("Queued charge kept: gateway call failed", zap.Error(err))
		return nil, nil
	}
	if !decision.Approved {
		logger.Warn("Queued charge kept: payment rejected", zap.String("reason", decision.Reason))
		return nil, nil
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	finalized, err := m.repo.Finalize(settleCtx, charge.ID, models.StatusQueued)
	if errors.Is(err, repository.ErrInvalidTransition) {
		logger.Error("Queued charge left EM_FILA before it could be finalized", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.publish(settleCtx, charge.ID, charge.CyclistID, charge.Amount, models.StatusQueued, models.StatusFinalized)
	return finalized, nil
}

func (m *BillingManager) GetByID(ctx context.Context, chargeID int64) (result models.ChargeResult) {
	ctx, span := telemetry.Tracer.Start(ctx, "billing.GetByID",
		trace.WithAttributes(attribute.Int64("charge.id", chargeID)))
	defer span.End()
	start := time.Now()
	defer func() { m.observe(span, "get_by_id", result.Outcome, result.Reason, start) }()

	charge, err := m.repo.GetByID(ctx, chargeID)
	if errors.Is(err, repository.ErrChargeNotFound) {
		return models.NotFound(MsgChargeNotFound)
	}
	if err != nil {
		m.logger.Error("Failed to fetch charge", zap.Int64("charge_id", chargeID), zap.Error(err))
		return models.TransientError(MsgFetchFailed)
	}
	return models.Succeeded(charge)
}

// ResetStore removes every charge record.
func (m *BillingManager) ResetStore(ctx context.Context) error {
	ctx, span := telemetry.Tracer.Start(ctx, "billing.ResetStore")
	defer span.End()

	if err := m.repo.Reset(ctx); err != nil {
		m.logger.Error("Failed to reset charge store", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	m.logger.Warn("Charge store reset")
	return nil
}

// compensate marks a pending charge FALHA after an unexpected failure. Its
// own failure is logged and dropped.
func (m *BillingManager) compensate(ctx context.Context, chargeID, cyclistID int64, amount decimal.Decimal) {
	ctx, cancel := settleContext(ctx)
	defer cancel()

	if err := m.repo.MarkFailed(ctx, chargeID); err != nil {
		m.logger.Error("Failed to mark charge as failed", zap.Int64("charge_id", chargeID), zap.Error(err))
		return
	}
	m.publish(ctx, chargeID, cyclistID, amount, models.StatusPending, models.StatusFailed)
}

func (m *BillingManager) publish(ctx context.Context, chargeID, cyclistID int64, amount decimal.Decimal, from, to models.ChargeStatus) {
	event := models.ChargeEvent{
		ChargeID:      chargeID,
		CyclistID:     cyclistID,
		State:         to,
		PreviousState: from,
		Amount:        amount,
		Timestamp:     time.Now().UTC(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("Failed to publish charge event",
			zap.Int64("charge_id", chargeID),
			zap.String("state", string(to)),
			zap.Error(err),
		)
	}
}

func (m *BillingManager) observe(span trace.Span, operation string, outcome models.Outcome, reason string, start time.Time) {
	span.SetAttributes(attribute.String("billing.outcome", outcome.String()))
	if outcome == models.OutcomeTransientError {
		span.SetStatus(codes.Error, reason)
	}
	telemetry.ObserveBilling(operation, outcome.String(), start)
}

// drainBudget leaves room for the last record's settle write inside the
// queue lock TTL.
func (m *BillingManager) drainBudget() time.Duration {
	if m.queueLockTTL > 2*settleTimeout {
		return m.queueLockTTL - settleTimeout
	}
	return m.queueLockTTL / 2
}

// settleContext detaches from the caller's cancellation and bounds the write.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func cyclistLockKey(cyclistID int64) string {
	return fmt.Sprintf("cobranca_lock:ciclista:%d", cyclistID)
}
