package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
)

// CreateParams describes a new event unit
type CreateParams struct {
	Admin       common.Address
	Name        string
	Description string
	Lifetime    time.Duration
	Decimals    uint8
}

// Registry owns every event unit in the process. Units share no state, so the
// registry lock only guards the index; operations on a unit never hold it.
type Registry struct {
	mu    sync.RWMutex
	units map[uuid.UUID]*Unit
	order []uuid.UUID
	clock Clock
	store Store
}

// NewRegistry creates an empty registry. A nil clock uses the system clock and
// a nil store keeps units in memory only.
func NewRegistry(clock Clock, store Store) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		units: make(map[uuid.UUID]*Unit),
		clock: clock,
		store: store,
	}
}

// Clock returns the registry's time source
func (r *Registry) Clock() Clock {
	return r.clock
}

// Create opens a new unit; its expiry is fixed at creation
func (r *Registry) Create(ctx context.Context, p CreateParams) (*Unit, error) {
	if p.Lifetime <= 0 {
		return nil, domain.ErrInvalidInput.Withf("lifetime must be positive")
	}
	if p.Decimals > domain.MaxDecimals {
		return nil, domain.ErrInvalidInput.Withf("decimals must not exceed %d", domain.MaxDecimals)
	}
	if p.Admin == (common.Address{}) {
		return nil, domain.ErrInvalidInput.Withf("admin identity is required")
	}

	now := r.clock.Now()
	s := &State{
		ID:          uuid.New(),
		Admin:       p.Admin,
		Name:        p.Name,
		Description: p.Description,
		Decimals:    p.Decimals,
		CreatedAt:   now,
		ExpiresAt:   now.Add(p.Lifetime),
		Donors:      make(map[common.Address]*Donor),
	}
	if r.store != nil {
		if err := r.store.SaveUnit(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to persist new unit: %w", err)
		}
	}

	u := newUnit(s, r.clock, r.store)
	r.mu.Lock()
	r.units[s.ID] = u
	r.order = append(r.order, s.ID)
	r.mu.Unlock()
	return u, nil
}

// Get looks up a unit by handle
func (r *Registry) Get(id uuid.UUID) (*Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, domain.ErrUnitNotFound.Withf("event unit %s not found", id)
	}
	return u, nil
}

// List returns units in creation order
func (r *Registry) List() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Unit, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.units[id])
	}
	return out
}

// Restore loads persisted units, ordered by creation time. Units already in
// the registry are left alone.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	states, err := r.store.LoadUnits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load units: %w", err)
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	restored := 0
	for _, s := range states {
		if _, exists := r.units[s.ID]; exists {
			continue
		}
		r.units[s.ID] = newUnit(s, r.clock, r.store)
		r.order = append(r.order, s.ID)
		restored++
	}
	return restored, nil
}
