package repository

import (
	"context"

	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
)

// UnitRepository persists event unit snapshots. It satisfies engine.Store.
type UnitRepository interface {
	engine.Store

	// ListReceipts returns the transfers recorded for a unit, oldest first
	ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Unit UnitRepository
}
