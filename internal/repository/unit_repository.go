package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
	"relief-dao/pkg/database"
)

// PostgresUnitRepository stores snapshots in event_units and mirrors issued transfers
// into transfer_receipts
type PostgresUnitRepository struct {
	db *database.PostgresDB
}

func NewPostgresUnitRepository(db *database.PostgresDB) *PostgresUnitRepository {
	return &PostgresUnitRepository{db: db}
}

// SaveUnit upserts the snapshot and any receipts it carries in one transaction
func (r *PostgresUnitRepository) SaveUnit(ctx context.Context, s *engine.State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode unit %s: %w", s.ID, err)
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO event_units (id, admin, name, expires_at, created_at, state, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id) DO UPDATE
			SET state = EXCLUDED.state, updated_at = NOW()
		`
		if _, err := tx.Exec(ctx, query,
			s.ID,
			s.Admin.Hex(),
			s.Name,
			s.ExpiresAt,
			s.CreatedAt,
			payload,
		); err != nil {
			return fmt.Errorf("failed to save unit %s: %w", s.ID, err)
		}

		if len(s.Receipts) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, rc := range s.Receipts {
			batch.Queue(`
				INSERT INTO transfer_receipts (id, unit_id, kind, recipient, amount, issued_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING
			`, rc.ID, rc.UnitID, string(rc.Kind), rc.To.Hex(), rc.Amount, rc.IssuedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save receipts for unit %s: %w", s.ID, err)
		}
		return nil
	})
}

// LoadUnits reads every snapshot ordered by creation time
func (r *PostgresUnitRepository) LoadUnits(ctx context.Context) ([]*engine.State, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, state FROM event_units ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	defer rows.Close()

	var out []*engine.State
	for rows.Next() {
		var (
			id      uuid.UUID
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		var s engine.State
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("failed to decode unit %s: %w", id, err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}
	return out, nil
}

// ListReceipts returns the transfers recorded for a unit, oldest first
func (r *PostgresUnitRepository) ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error) {
	query := `
		SELECT id, unit_id, kind, recipient, amount, issued_at
		FROM transfer_receipts
		WHERE unit_id = $1
		ORDER BY issued_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]domain.TransferReceipt, 0)
	for rows.Next() {
		var (
			rc        domain.TransferReceipt
			kind      string
			recipient string
		)
		if err := rows.Scan(&rc.ID, &rc.UnitID, &kind, &recipient, &rc.Amount, &rc.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		rc.Kind = domain.ReceiptKind(kind)
		rc.To = common.HexToAddress(recipient)
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return receipts, nil
}
