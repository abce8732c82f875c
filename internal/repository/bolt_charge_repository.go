package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/shopspring/decimal"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

const chargesBucket = "cobrancas"

// BoltChargeRepository keeps charges in an embedded BoltDB file. Keys are
// big-endian ids so a cursor walks charges in insertion order.
type BoltChargeRepository struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltChargeRepository(path string) (*BoltChargeRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(chargesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltChargeRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *BoltChargeRepository) Close() error {
	return r.db.Close()
}

func (r *BoltChargeRepository) InsertPending(ctx context.Context, amount decimal.Decimal, cyclistID int64) (int64, error) {
	charge, err := r.insert(models.StatusPending, amount, cyclistID)
	if err != nil {
		return 0, fmt.Errorf("insert pending charge: %w", err)
	}
	return charge.ID, nil
}

func (r *BoltChargeRepository) InsertQueued(ctx context.Context, amount decimal.Decimal, cyclistID int64) (*models.Charge, error) {
	charge, err := r.insert(models.StatusQueued, amount, cyclistID)
	if err != nil {
		return nil, fmt.Errorf("insert queued charge: %w", err)
	}
	return charge, nil
}

func (r *BoltChargeRepository) insert(status models.ChargeStatus, amount decimal.Decimal, cyclistID int64) (*models.Charge, error) {
	var charge models.Charge

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chargesBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		charge = models.Charge{
			ID:          int64(seq),
			Status:      status,
			RequestedAt: r.now(),
			Amount:      amount,
			CyclistID:   cyclistID,
		}
		return putCharge(b, &charge)
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *BoltChargeRepository) Finalize(ctx context.Context, chargeID int64, from models.ChargeStatus) (*models.Charge, error) {
	charge, err := r.transition(chargeID, from, models.StatusFinalized)
	if err != nil {
		return nil, fmt.Errorf("finalize charge %d from %s: %w", chargeID, from, err)
	}
	return charge, nil
}

func (r *BoltChargeRepository) MarkFailed(ctx context.Context, chargeID int64) error {
	if _, err := r.transition(chargeID, models.StatusPending, models.StatusFailed); err != nil {
		return fmt.Errorf("mark charge %d failed: %w", chargeID, err)
	}
	return nil
}

// transition applies from -> to inside a single write transaction, stamping
// the completion time.
func (r *BoltChargeRepository) transition(chargeID int64, from, to models.ChargeStatus) (*models.Charge, error) {
	var charge models.Charge

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chargesBucket))

		v := b.Get(chargeKey(chargeID))
		if v == nil {
			return ErrInvalidTransition
		}
		if err := json.Unmarshal(v, &charge); err != nil {
			return fmt.Errorf("decode charge %d: %w", chargeID, err)
		}
		if charge.Status != from {
			return ErrInvalidTransition
		}

		completedAt := r.now()
		charge.Status = to
		charge.CompletedAt = &completedAt
		return putCharge(b, &charge)
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *BoltChargeRepository) GetByID(ctx context.Context, chargeID int64) (*models.Charge, error) {
	var charge models.Charge

	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(chargesBucket)).Get(chargeKey(chargeID))
		if v == nil {
			return ErrChargeNotFound
		}
		return json.Unmarshal(v, &charge)
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *BoltChargeRepository) ListQueued(ctx context.Context) ([]models.Charge, error) {
	charges := []models.Charge{}

	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chargesBucket)).ForEach(func(k, v []byte) error {
			var charge models.Charge
			if err := json.Unmarshal(v, &charge); err != nil {
				return err
			}
			if charge.Status == models.StatusQueued {
				charges = append(charges, charge)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list queued charges: %w", err)
	}
	return charges, nil
}

// Reset recreates the bucket, which also restarts the id sequence.
func (r *BoltChargeRepository) Reset(ctx context.Context) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(chargesBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(chargesBucket))
		return err
	})
}

func putCharge(b *bolt.Bucket, charge *models.Charge) error {
	data, err := json.Marshal(charge)
	if err != nil {
		return err
	}
	return b.Put(chargeKey(charge.ID), data)
}

func chargeKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
