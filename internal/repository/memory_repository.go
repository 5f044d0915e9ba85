package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
)

// MemoryUnitRepository keeps encoded snapshots in process memory. It is used
// when no database is configured; snapshots are stored encoded so callers can
// never alias stored state.
type MemoryUnitRepository struct {
	mu    sync.RWMutex
	units map[uuid.UUID][]byte
}

func NewMemoryUnitRepository() *MemoryUnitRepository {
	return &MemoryUnitRepository{units: make(map[uuid.UUID][]byte)}
}

// SaveUnit stores the snapshot, replacing any previous version
func (r *MemoryUnitRepository) SaveUnit(ctx context.Context, s *engine.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode unit %s: %w", s.ID, err)
	}
	r.mu.Lock()
	r.units[s.ID] = data
	r.mu.Unlock()
	return nil
}

// LoadUnits decodes every stored snapshot ordered by creation time
func (r *MemoryUnitRepository) LoadUnits(ctx context.Context) ([]*engine.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*engine.State, 0, len(r.units))
	for id, data := range r.units {
		var s engine.State
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode unit %s: %w", id, err)
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryUnitRepository) load(id uuid.UUID) (*engine.State, error) {
	r.mu.RLock()
	data, ok := r.units[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnitNotFound.Withf("event unit %s not found", id)
	}
	var s engine.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode unit %s: %w", id, err)
	}
	return &s, nil
}

// ListReceipts returns receipts embedded in the stored snapshot
func (r *MemoryUnitRepository) ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error) {
	s, err := r.load(unitID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransferReceipt, len(s.Receipts))
	copy(out, s.Receipts)
	return out, nil
}
