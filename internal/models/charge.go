package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	StatusQueued    ChargeStatus = "EM_FILA"
	StatusPending   ChargeStatus = "PENDENTE"
	StatusFinalized ChargeStatus = "FINALIZADA"
	StatusFailed    ChargeStatus = "FALHA"
)

// Charge is a single billing attempt for one cyclist.
type Charge struct {
	ID          int64
	Status      ChargeStatus
	RequestedAt time.Time
	CompletedAt *time.Time
	Amount      decimal.Decimal
	CyclistID   int64
}

type chargeJSON struct {
	ID          int64        `json:"id"`
	Status      ChargeStatus `json:"status"`
	RequestedAt string       `json:"hora_solicitacao"`
	CompletedAt *string      `json:"hora_finalizacao"`
	Amount      json.Number  `json:"valor"`
	CyclistID   int64        `json:"ciclista"`
}

// MarshalJSON renders timestamps as ISO-8601 and the amount as a plain number.
func (c Charge) MarshalJSON() ([]byte, error) {
	out := chargeJSON{
		ID:          c.ID,
		Status:      c.Status,
		RequestedAt: c.RequestedAt.Format(time.RFC3339Nano),
		Amount:      json.Number(c.Amount.String()),
		CyclistID:   c.CyclistID,
	}
	if c.CompletedAt != nil {
		completed := c.CompletedAt.Format(time.RFC3339Nano)
		out.CompletedAt = &completed
	}
	return json.Marshal(out)
}

func (c *Charge) UnmarshalJSON(data []byte) error {
	var in chargeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	requestedAt, err := time.Parse(time.RFC3339Nano, in.RequestedAt)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		return err
	}

	*c = Charge{
		ID:          in.ID,
		Status:      in.Status,
		RequestedAt: requestedAt,
		Amount:      amount,
		CyclistID:   in.CyclistID,
	}
	if in.CompletedAt != nil {
		completedAt, err := time.Parse(time.RFC3339Nano, *in.CompletedAt)
		if err != nil {
			return err
		}
		c.CompletedAt = &completedAt
	}
	return nil
}

// ChargeRequest is the inbound body of the charge and enqueue routes.
// Amount is forwarded as given; only presence is checked.
type ChargeRequest struct {
	Amount    *decimal.Decimal `json:"valor" binding:"required"`
	CyclistID *int64           `json:"ciclista" binding:"required"`
}

// ChargeEvent is published on every charge state change.
type ChargeEvent struct {
	ChargeID      int64           `json:"charge_id"`
	CyclistID     int64           `json:"cyclist_id"`
	State         ChargeStatus    `json:"state"`
	PreviousState ChargeStatus    `json:"previous_state,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}
