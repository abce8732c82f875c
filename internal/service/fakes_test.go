package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/repository"
)

var errStore = errors.New("connection reset by peer")

type fakeRepo struct {
	mu      sync.Mutex
	charges map[int64]models.Charge
	nextID  int64

	inserts int
	updates int

	insertErr     error
	listErr       error
	getErr        error
	markFailedErr error
	finalizeErrs  map[int64]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{charges: map[int64]models.Charge{}, finalizeErrs: map[int64]error{}}
}

func (r *fakeRepo) insert(status models.ChargeStatus, amount decimal.Decimal, cyclistID int64) (models.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return models.Charge{}, r.insertErr
	}
	r.inserts++
	r.nextID++
	charge := models.Charge{
		ID:          r.nextID,
		Status:      status,
		RequestedAt: time.Now().UTC(),
		Amount:      amount,
		CyclistID:   cyclistID,
	}
	r.charges[charge.ID] = charge
	return charge, nil
}

func (r *fakeRepo) InsertPending(_ context.Context, amount decimal.Decimal, cyclistID int64) (int64, error) {
	charge, err := r.insert(models.StatusPending, amount, cyclistID)
	return charge.ID, err
}

func (r *fakeRepo) InsertQueued(_ context.Context, amount decimal.Decimal, cyclistID int64) (*models.Charge, error) {
	charge, err := r.insert(models.StatusQueued, amount, cyclistID)
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *fakeRepo) transition(id int64, from, to models.ChargeStatus) (*models.Charge, error) {
	charge, ok := r.charges[id]
	if !ok || charge.Status != from {
		return nil, fmt.Errorf("charge %d: %w", id, repository.ErrInvalidTransition)
	}
	completedAt := time.Now().UTC()
	charge.Status = to
	charge.CompletedAt = &completedAt
	r.charges[id] = charge
	return &charge, nil
}

func (r *fakeRepo) Finalize(_ context.Context, id int64, from models.ChargeStatus) (*models.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if err := r.finalizeErrs[id]; err != nil {
		return nil, err
	}
	return r.transition(id, from, models.StatusFinalized)
}

func (r *fakeRepo) MarkFailed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.markFailedErr != nil {
		return r.markFailedErr
	}
	_, err := r.transition(id, models.StatusPending, models.StatusFailed)
	return err
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*models.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	charge, ok := r.charges[id]
	if !ok {
		return nil, repository.ErrChargeNotFound
	}
	return &charge, nil
}

func (r *fakeRepo) ListQueued(_ context.Context) ([]models.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	queued := []models.Charge{}
	for id := int64(1); id <= r.nextID; id++ {
		if charge, ok := r.charges[id]; ok && charge.Status == models.StatusQueued {
			queued = append(queued, charge)
		}
	}
	return queued, nil
}

func (r *fakeRepo) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges = map[int64]models.Charge{}
	r.nextID = 0
	return nil
}

func (r *fakeRepo) counts() (inserts, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts, r.updates
}

func (r *fakeRepo) status(id int64) models.ChargeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.charges[id].Status
}

type fakeDirectory struct {
	mu     sync.Mutex
	cards  map[int64]models.CardOnFile
	errFor map[int64]error
	calls  int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{cards: map[int64]models.CardOnFile{}, errFor: map[int64]error{}}
}

func (d *fakeDirectory) withCard(cyclistID int64, number string) *fakeDirectory {
	d.cards[cyclistID] = models.CardOnFile{
		HolderName: fmt.Sprintf("Ciclista %d", cyclistID),
		Number:     number,
		Expiry:     "2030-12-01",
		CVV:        "123",
	}
	return d
}

func (d *fakeDirectory) LookupCard(_ context.Context, cyclistID int64) (models.CardLookup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if err := d.errFor[cyclistID]; err != nil {
		return models.CardLookup{}, err
	}
	card, ok := d.cards[cyclistID]
	if !ok {
		return models.CardLookup{Message: "Ciclista não encontrado"}, nil
	}
	return models.CardLookup{Found: true, Card: &card}, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	decisions map[string]models.GatewayDecision
	errFor    map[string]error
	calls     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{decisions: map[string]models.GatewayDecision{}, errFor: map[string]error{}}
}

func (g *fakeGateway) Charge(_ context.Context, card models.CardOnFile, _ decimal.Decimal) (models.GatewayDecision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err := g.errFor[card.Number]; err != nil {
		return models.GatewayDecision{}, err
	}
	if decision, ok := g.decisions[card.Number]; ok {
		return decision, nil
	}
	return models.GatewayDecision{Approved: true}, nil
}

func (g *fakeGateway) ValidateCard(context.Context, models.CardOnFile) (models.CardValidation, error) {
	return models.CardValidation{Valid: true}, nil
}

type heldLocker struct {
	held map[string]bool
	err  error
}

func (l *heldLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChargeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.ChargeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) states() []models.ChargeStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var states []models.ChargeStatus
	for _, e := range p.events {
		states = append(states, e.State)
	}
	return states
}
