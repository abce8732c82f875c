package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

var (
	ErrChargeNotFound    = errors.New("charge not found")
	ErrInvalidTransition = errors.New("invalid charge state transition")
)

const chargeColumns = `id, status, hora_solicitacao, hora_finalizacao, valor, ciclista`

type ChargeRepository struct {
	db *sql.DB
}

func NewChargeRepository(db *sql.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

func (r *ChargeRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cobrancas (
			id SERIAL PRIMARY KEY,
			status VARCHAR(20) NOT NULL,
			hora_solicitacao TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			hora_finalizacao TIMESTAMPTZ,
			valor NUMERIC(12, 2) NOT NULL,
			ciclista INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cobrancas_status ON cobrancas(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *ChargeRepository) InsertPending(ctx context.Context, amount decimal.Decimal, cyclistID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cobrancas (status, hora_solicitacao, hora_finalizacao, valor, ciclista)
		VALUES ($1, NOW(), NULL, $2, $3)
		RETURNING id
	`, models.StatusPending, amount, cyclistID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pending charge: %w", err)
	}
	return id, nil
}

func (r *ChargeRepository) InsertQueued(ctx context.Context, amount decimal.Decimal, cyclistID int64) (*models.Charge, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO cobrancas (status, hora_solicitacao, hora_finalizacao, valor, ciclista)
		VALUES ($1, NOW(), NULL, $2, $3)
		RETURNING `+chargeColumns,
		models.StatusQueued, amount, cyclistID)

	charge, err := scanCharge(row)
	if err != nil {
		return nil, fmt.Errorf("insert queued charge: %w", err)
	}
	return charge, nil
}

// Finalize moves a charge from the given state to FINALIZADA. The update only
// applies while the row is still in that state.
func (r *ChargeRepository) Finalize(ctx context.Context, chargeID int64, from models.ChargeStatus) (*models.Charge, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE cobrancas
		SET status = $1, hora_finalizacao = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+chargeColumns,
		models.StatusFinalized, chargeID, from)

	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finalize charge %d from %s: %w", chargeID, from, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("finalize charge %d: %w", chargeID, err)
	}
	return charge, nil
}

func (r *ChargeRepository) MarkFailed(ctx context.Context, chargeID int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cobrancas
		SET status = $1, hora_finalizacao = NOW()
		WHERE id = $2 AND status = $3
	`, models.StatusFailed, chargeID, models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark charge %d failed: %w", chargeID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("mark charge %d failed: %w", chargeID, ErrInvalidTransition)
	}
	return nil
}

func (r *ChargeRepository) GetByID(ctx context.Context, chargeID int64) (*models.Charge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM cobrancas WHERE id = $1`, chargeID)

	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get charge %d: %w", chargeID, err)
	}
	return charge, nil
}

func (r *ChargeRepository) ListQueued(ctx context.Context) ([]models.Charge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chargeColumns+`
		FROM cobrancas
		WHERE status = $1
		ORDER BY id
	`, models.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued charges: %w", err)
	}
	defer rows.Close()

	charges := []models.Charge{}
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queued charge: %w", err)
		}
		charges = append(charges, *charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list queued charges: %w", err)
	}
	return charges, nil
}

// Reset drops every charge and restarts the id sequence.
func (r *ChargeRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE cobrancas RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset charges: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharge(row rowScanner) (*models.Charge, error) {
	var (
		charge      models.Charge
		status      string
		completedAt sql.NullTime
	)
	if err := row.Scan(&charge.ID, &status, &charge.RequestedAt, &completedAt, &charge.Amount, &charge.CyclistID); err != nil {
		return nil, err
	}

	charge.Status = models.ChargeStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		charge.CompletedAt = &t
	}
	return &charge, nil
}
