package repository_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	bolt "github.com/boltdb/bolt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/repository"
)

func newBoltRepo(t *testing.T) *repository.BoltChargeRepository {
	t.Helper()
	repo, err := repository.NewBoltChargeRepository(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestBoltPendingToFinalized(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	id, err := repo.InsertPending(ctx, decimal.RequireFromString("100.00"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	pending, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, pending.Status)
	assert.Nil(t, pending.CompletedAt)

	charge, err := repo.Finalize(ctx, id, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, charge.Status)
	require.NotNil(t, charge.CompletedAt)
	assert.False(t, charge.CompletedAt.Before(charge.RequestedAt))
}

func TestBoltTransitionsAreOneWay(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	id, err := repo.InsertPending(ctx, decimal.NewFromInt(10), 1)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, id))

	_, err = repo.Finalize(ctx, id, models.StatusPending)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.ErrorIs(t, repo.MarkFailed(ctx, id), repository.ErrInvalidTransition)

	charge, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, charge.Status)
}

func TestBoltQueuedListedInInsertionOrder(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	first, err := repo.InsertQueued(ctx, decimal.NewFromInt(50), 2)
	require.NoError(t, err)
	_, err = repo.InsertPending(ctx, decimal.NewFromInt(10), 3)
	require.NoError(t, err)
	second, err := repo.InsertQueued(ctx, decimal.NewFromInt(70), 4)
	require.NoError(t, err)

	queued, err := repo.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, first.ID, queued[0].ID)
	assert.Equal(t, second.ID, queued[1].ID)

	_, err = repo.Finalize(ctx, first.ID, models.StatusQueued)
	require.NoError(t, err)

	queued, err = repo.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, second.ID, queued[0].ID)
}

func TestBoltGetByIDIsStable(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	queued, err := repo.InsertQueued(ctx, decimal.RequireFromString("50.00"), 2)
	require.NoError(t, err)

	a, err := repo.GetByID(ctx, queued.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, queued.ID)
	require.NoError(t, err)

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, aJSON, bJSON)
}

func TestBoltGetByIDNotFound(t *testing.T) {
	repo := newBoltRepo(t)
	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrChargeNotFound)
}

func TestBoltReset(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	_, err := repo.InsertQueued(ctx, decimal.NewFromInt(5), 1)
	require.NoError(t, err)
	require.NoError(t, repo.Reset(ctx))

	queued, err := repo.ListQueued(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)

	id, err := repo.InsertPending(ctx, decimal.NewFromInt(5), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestBoltCorruptRecordIsNotATransitionConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.db")
	repo, err := repository.NewBoltChargeRepository(path)
	require.NoError(t, err)

	queued, err := repo.InsertQueued(context.Background(), decimal.NewFromInt(5), 1)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(queued.ID))
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("cobrancas")).Put(key, []byte("{not json"))
	}))
	require.NoError(t, db.Close())

	repo, err = repository.NewBoltChargeRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.Finalize(context.Background(), queued.ID, models.StatusQueued)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrInvalidTransition)

	err = repo.MarkFailed(context.Background(), queued.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrInvalidTransition)
}
