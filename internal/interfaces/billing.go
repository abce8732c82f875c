package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

// ChargeRepository defines the contract for charge data access
type ChargeRepository interface {
	InsertPending(ctx context.Context, amount decimal.Decimal, cyclistID int64) (int64, error)
	InsertQueued(ctx context.Context, amount decimal.Decimal, cyclistID int64) (*models.Charge, error)
	Finalize(ctx context.Context, chargeID int64, from models.ChargeStatus) (*models.Charge, error)
	MarkFailed(ctx context.Context, chargeID int64) error
	GetByID(ctx context.Context, chargeID int64) (*models.Charge, error)
	ListQueued(ctx context.Context) ([]models.Charge, error)
	Reset(ctx context.Context) error
}

// CyclistDirectory resolves a cyclist's card on file.
type CyclistDirectory interface {
	LookupCard(ctx context.Context, cyclistID int64) (models.CardLookup, error)
}

// PaymentGateway tokenizes cards and submits charges.
type PaymentGateway interface {
	Charge(ctx context.Context, card models.CardOnFile, amount decimal.Decimal) (models.GatewayDecision, error)
	ValidateCard(ctx context.Context, card models.CardOnFile) (models.CardValidation, error)
}

type Notifier interface {
	Send(ctx context.Context, req models.EmailRequest) (*models.Email, error)
}

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.ChargeEvent) error
}
