package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"investor/domain/entities"
	"investor/domain/events"

	"github.com/google/uuid"
)

// MemoryInvestmentRepository is an in-memory InvestmentRepository with the same
// conditional update semantics as the PostgreSQL store. Safe for concurrent use.
type MemoryInvestmentRepository struct {
	mu          sync.Mutex
	investments map[uuid.UUID]*entities.Investment
	updates     int
}

// NewMemoryInvestmentRepository creates an empty store
func NewMemoryInvestmentRepository() *MemoryInvestmentRepository {
	return &MemoryInvestmentRepository{
		investments: make(map[uuid.UUID]*entities.Investment),
	}
}

func (r *MemoryInvestmentRepository) Create(ctx context.Context, inv *entities.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.investments[inv.ID]; exists {
		return fmt.Errorf("investment %s already exists", inv.ID)
	}
	if inv.HasCorrelation() && r.openCorrelationTaken(*inv.CorrelationID, inv.ID) {
		return entities.ErrDuplicateCorrelation
	}
	r.investments[inv.ID] = inv.Clone()
	return nil
}

func (r *MemoryInvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.investments[id]
	if !ok {
		return nil, nil
	}
	return inv.Clone(), nil
}

func (r *MemoryInvestmentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *entities.Investment
	for _, inv := range r.investments {
		if inv.CorrelationID == nil || *inv.CorrelationID != correlationID {
			continue
		}
		if !inv.IsTerminal() {
			return inv.Clone(), nil
		}
		if found == nil || inv.CreatedAt.After(found.CreatedAt) {
			found = inv
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

func (r *MemoryInvestmentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error) {
	return r.list(func(inv *entities.Investment) bool { return inv.OwnerID == ownerID }, true), nil
}

func (r *MemoryInvestmentRepository) ListByStatus(ctx context.Context, status entities.InvestmentStatus) ([]*entities.Investment, error) {
	return r.list(func(inv *entities.Investment) bool { return inv.Status == status }, false), nil
}

func (r *MemoryInvestmentRepository) ListPendingCreatedBefore(ctx context.Context, before time.Time) ([]*entities.Investment, error) {
	return r.list(func(inv *entities.Investment) bool {
		return inv.IsPending() && inv.CreatedAt.Before(before)
	}, false), nil
}

func (r *MemoryInvestmentRepository) UpdateIfStatus(ctx context.Context, id uuid.UUID, expected entities.InvestmentStatus, upd entities.InvestmentUpdate) (*entities.Investment, error) {
	if err := upd.Validate(expected); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.investments[id]
	if !ok || current.Status != expected {
		return nil, entities.ErrStaleState
	}

	next := upd.ApplyTo(current, time.Now().UTC())
	if next.HasCorrelation() && !next.IsTerminal() && r.openCorrelationTaken(*next.CorrelationID, id) {
		return nil, entities.ErrDuplicateCorrelation
	}

	r.investments[id] = next
	r.updates++
	return next.Clone(), nil
}

// Put stores inv as-is, bypassing every check. For seeding tests.
func (r *MemoryInvestmentRepository) Put(inv *entities.Investment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.investments[inv.ID] = inv.Clone()
}

// UpdateCount returns how many conditional updates succeeded
func (r *MemoryInvestmentRepository) UpdateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *MemoryInvestmentRepository) openCorrelationTaken(correlationID string, self uuid.UUID) bool {
	for id, inv := range r.investments {
		if id == self || inv.IsTerminal() || inv.CorrelationID == nil {
			continue
		}
		if *inv.CorrelationID == correlationID {
			return true
		}
	}
	return false
}

func (r *MemoryInvestmentRepository) list(match func(*entities.Investment) bool, newestFirst bool) []*entities.Investment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entities.Investment, 0)
	for _, inv := range r.investments {
		if match(inv) {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecordingEventPublisher keeps every published event. Safe for concurrent use.
type RecordingEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingEventPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns the published events of the given type
func (p *RecordingEventPublisher) Events(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.Event
	for _, e := range p.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}
