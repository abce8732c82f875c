package service_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/service"
)

type scriptedReader struct {
	messages []kafka.Message
	errs     []error
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func TestConsumeChargeRequests(t *testing.T) {
	repo := newFakeRepo()
	directory := newFakeDirectory().withCard(1, cardApproved)
	manager := service.NewBillingManager(repo, directory, newFakeGateway(), zap.NewNop())

	reader := &scriptedReader{
		errs: []error{errors.New("kafka: broker not available")},
		messages: []kafka.Message{
			{Value: []byte(`{"valor": 15.5, "ciclista": 1}`)},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"valor": 10}`)},
			{Value: []byte(`{"valor": 20, "ciclista": 42}`)},
			{Value: []byte(`{"valor": 7.25, "ciclista": 1}`)},
		},
	}

	manager.ConsumeChargeRequests(context.Background(), reader)

	queued, err := repo.ListQueued(context.Background())
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "15.5", queued[0].Amount.String())
	assert.Equal(t, "7.25", queued[1].Amount.String())
	for _, charge := range queued {
		assert.Equal(t, models.StatusQueued, charge.Status)
		assert.Equal(t, int64(1), charge.CyclistID)
	}
}

func TestConsumeChargeRequests_StopsOnCancel(t *testing.T) {
	repo := newFakeRepo()
	manager := service.NewBillingManager(repo, newFakeDirectory(), newFakeGateway(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		manager.ConsumeChargeRequests(ctx, &scriptedReader{messages: []kafka.Message{{Value: []byte(`{}`)}}})
		close(done)
	}()
	<-done

	inserts, _ := repo.counts()
	assert.Zero(t, inserts)
}
