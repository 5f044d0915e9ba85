package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
)

func TestMemoryUnitRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUnitRepository()
	clock := engine.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := engine.NewRegistry(clock, repo)

	admin := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	donor := common.HexToAddress("0x0000000000000000000000000000000000000001")

	unit, err := reg.Create(ctx, engine.CreateParams{Admin: admin, Name: "Quake", Lifetime: time.Hour, Decimals: 6})
	require.NoError(t, err)
	_, err = unit.Donate(ctx, donor, 1_500_000)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = unit.ConcludeElection(ctx)
	require.NoError(t, err)
	receipt, err := unit.ClaimRefund(ctx, donor)
	require.NoError(t, err)

	restored := engine.NewRegistry(clock, repo)
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restored.Get(unit.ID())
	require.NoError(t, err)
	assert.Equal(t, unit.Summary(), got.Summary())
	assert.Equal(t, unit.Donor(donor), got.Donor(donor))

	receipts, err := repo.ListReceipts(ctx, unit.ID())
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, receipt.ID, receipts[0].ID)
	assert.Equal(t, domain.ReceiptRefund, receipts[0].Kind)
	assert.Equal(t, int64(1_500_000), receipts[0].Amount)

	// restored units keep enforcing single-fire refunds
	_, err = got.ClaimRefund(ctx, donor)
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
}

func TestMemoryUnitRepository_UnknownUnit(t *testing.T) {
	repo := NewMemoryUnitRepository()

	_, err := repo.ListReceipts(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}

func TestMemoryUnitRepository_StoredCopyIsIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUnitRepository()

	s := &engine.State{ID: uuid.New(), Name: "before", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.SaveUnit(ctx, s))
	s.Name = "after"

	got, err := repo.LoadUnits(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "before", got[0].Name)
}

func TestMemoryUnitRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryUnitRepository().SaveUnit(ctx, &engine.State{ID: uuid.New()})
	assert.ErrorIs(t, err, context.Canceled)
}
