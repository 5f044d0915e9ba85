package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
	"relief-dao/internal/repository"
	"relief-dao/pkg/logger"
)

var (
	adminID = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	donorA  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	donorB  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	volA    = common.HexToAddress("0x0000000000000000000000000000000000000010")
	volB    = common.HexToAddress("0x0000000000000000000000000000000000000011")
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var testLimits = Limits{
	MinLifetime:     time.Minute,
	MaxLifetime:     24 * time.Hour,
	DefaultDecimals: 6,
}

// MockReceiptLedger is a mock implementation of ReceiptLedger
type MockReceiptLedger struct {
	mock.Mock
}

func (m *MockReceiptLedger) ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error) {
	args := m.Called(ctx, unitID)
	if v := args.Get(0); v != nil {
		return v.([]domain.TransferReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}

type eventsFixture struct {
	events *EventService
	clock  *engine.ManualClock
	repo   *repository.MemoryUnitRepository
	cache  *CacheService
}

func setupEvents(t *testing.T) *eventsFixture {
	t.Helper()
	_, client := setupRedis(t)
	clock := engine.NewManualClock(epoch)
	repo := repository.NewMemoryUnitRepository()
	cache := NewCacheService(client, nil)
	events := NewEventService(engine.NewRegistry(clock, repo), repo, cache, logger.NewNop(), testLimits)
	return &eventsFixture{events: events, clock: clock, repo: repo, cache: cache}
}

func (f *eventsFixture) createUnit(t *testing.T, lifetime time.Duration) uuid.UUID {
	t.Helper()
	summary, err := f.events.CreateUnit(context.Background(), adminID, domain.CreateUnitRequest{
		Name:            "Flood relief",
		LifetimeSeconds: int64(lifetime / time.Second),
	})
	require.NoError(t, err)
	return summary.ID
}

func (f *eventsFixture) approve(t *testing.T, unitID uuid.UUID, identities ...common.Address) {
	t.Helper()
	ctx := context.Background()
	for _, id := range identities {
		rec, err := f.events.RegisterVolunteer(ctx, unitID, id, domain.VolunteerRequest{DisplayName: "Volunteer " + id.Hex()[38:]})
		require.NoError(t, err)
		_, err = f.events.ApproveVolunteer(ctx, unitID, adminID, rec.Index)
		require.NoError(t, err)
	}
}

func TestEventService_CreateUnit(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	eight := uint8(8)
	tooMany := uint8(19)

	tests := []struct {
		name     string
		admin    common.Address
		req      domain.CreateUnitRequest
		wantErr  error
		decimals uint8
	}{
		{
			name:     "defaults",
			admin:    adminID,
			req:      domain.CreateUnitRequest{Name: "  Flood relief  ", LifetimeSeconds: 3600},
			decimals: 6,
		},
		{
			name:     "explicit decimals",
			admin:    adminID,
			req:      domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: 60, Decimals: &eight},
			decimals: 8,
		},
		{
			name:    "missing name",
			admin:   adminID,
			req:     domain.CreateUnitRequest{Name: " ", LifetimeSeconds: 3600},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "zero lifetime",
			admin:   adminID,
			req:     domain.CreateUnitRequest{Name: "Quake"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "lifetime below minimum",
			admin:   adminID,
			req:     domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: 59},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "lifetime above maximum",
			admin:   adminID,
			req:     domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: int64((25 * time.Hour) / time.Second)},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "decimals above maximum",
			admin:   adminID,
			req:     domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: 3600, Decimals: &tooMany},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "zero admin",
			req:     domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: 3600},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := f.events.CreateUnit(ctx, tt.admin, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, summary)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.decimals, summary.Decimals)
			assert.Equal(t, tt.admin, summary.Admin)
			assert.Equal(t, epoch.Add(time.Duration(tt.req.LifetimeSeconds)*time.Second), summary.ExpiresAt)
			assert.Equal(t, domain.StatusOpen, summary.Status)
			assert.Equal(t, strings.TrimSpace(tt.req.Name), summary.Name)

			// persisted on creation, so the receipt ledger knows the unit
			stored, err := f.repo.ListReceipts(ctx, summary.ID)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestEventService_ParseAmountUsesUnitScale(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	two := uint8(2)

	summary, err := f.events.CreateUnit(ctx, adminID, domain.CreateUnitRequest{Name: "Cents", LifetimeSeconds: 3600, Decimals: &two})
	require.NoError(t, err)

	amount, err := f.events.ParseAmount(ctx, summary.ID, "12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), amount)

	_, err = f.events.ParseAmount(ctx, summary.ID, "0.001")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.events.ParseAmount(ctx, uuid.New(), "1")
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}

func TestEventService_MutationsInvalidateCache(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)

	before, err := f.events.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.TotalPool)
	_, cached := f.cache.GetUnitSummary(ctx, unitID.String())
	require.True(t, cached)

	list, err := f.events.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.events.Donate(ctx, unitID, donorA, 500)
	require.NoError(t, err)

	_, cached = f.cache.GetUnitSummary(ctx, unitID.String())
	assert.False(t, cached)
	_, cached = f.cache.GetUnitList(ctx)
	assert.False(t, cached)

	after, err := f.events.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), after.TotalPool)
	assert.Equal(t, 1, after.DonorCount)

	list, err = f.events.ListUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), list[0].TotalPool)
}

func TestEventService_RejectedMutationKeepsState(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)
	f.approve(t, unitID, volA)

	_, err := f.events.Donate(ctx, unitID, volA, 100)
	assert.ErrorIs(t, err, domain.ErrVolunteerCannotDonate)

	_, err = f.events.Donate(ctx, unitID, donorA, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.events.Vote(ctx, unitID, donorA, 0)
	assert.ErrorIs(t, err, domain.ErrNoVotingPower)

	_, err = f.events.ApproveVolunteer(ctx, unitID, donorA, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	summary, err := f.events.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalPool)
	assert.Equal(t, 0, summary.DonorCount)

	donor, err := f.events.GetDonor(ctx, unitID, donorA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), donor.Contributed)
	assert.False(t, donor.HasVoted)
}

func TestEventService_RegisterVolunteerValidatesText(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)

	_, err := f.events.RegisterVolunteer(ctx, unitID, volA, domain.VolunteerRequest{DisplayName: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.events.RegisterVolunteer(ctx, unitID, volA, domain.VolunteerRequest{DisplayName: "Medic\x00"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rec, err := f.events.RegisterVolunteer(ctx, unitID, volA, domain.VolunteerRequest{
		DisplayName: "  Medic team ",
		Pitch:       "Field hospital\nand clean water",
	})
	require.NoError(t, err)
	assert.Equal(t, "Medic team", rec.DisplayName)
	assert.Equal(t, "Field hospital\nand clean water", rec.Pitch)
	assert.Equal(t, volA, rec.Identity)
	assert.Equal(t, epoch, rec.RegisteredAt)

	_, err = f.events.RegisterVolunteer(ctx, unitID, volA, domain.VolunteerRequest{DisplayName: "Again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestEventService_SettlementWithWinner(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)
	f.approve(t, unitID, volA, volB)

	_, err := f.events.Donate(ctx, unitID, donorA, 100)
	require.NoError(t, err)
	_, err = f.events.Donate(ctx, unitID, donorB, 50)
	require.NoError(t, err)
	_, err = f.events.Vote(ctx, unitID, donorA, 0)
	require.NoError(t, err)
	_, err = f.events.Vote(ctx, unitID, donorB, 1)
	require.NoError(t, err)

	out, concluded, err := f.events.GetOutcome(ctx, unitID)
	require.NoError(t, err)
	assert.False(t, concluded)
	assert.Nil(t, out)

	f.clock.Advance(time.Hour)

	out, err = f.events.ConcludeElection(ctx, unitID)
	require.NoError(t, err)
	require.True(t, out.HasWinner)
	assert.Equal(t, 0, *out.WinnerIndex)
	assert.Equal(t, volA, *out.Winner)
	assert.Equal(t, engine.GovernanceWeight(100), out.WinningTotal)
	assert.Equal(t, int64(150), out.TotalPool)

	receipt, err := f.events.DistributeFunds(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, volA, receipt.To)
	assert.Equal(t, int64(150), receipt.Amount)

	receipts, err := f.events.ListReceipts(ctx, unitID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	persisted, err := f.repo.ListReceipts(ctx, unitID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, receipt.ID, persisted[0].ID)
	assert.Equal(t, receipt.ID, receipts[0].ID)
	assert.Equal(t, "0.00015", receipts[0].AmountDisplay)

	_, err = f.events.ClaimRefund(ctx, unitID, donorA)
	assert.ErrorIs(t, err, domain.ErrWinnerExists)
}

func TestEventService_SettlementWithoutWinner(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)
	f.approve(t, unitID, volA)

	_, err := f.events.Donate(ctx, unitID, donorA, 70)
	require.NoError(t, err)
	_, err = f.events.Donate(ctx, unitID, donorB, 30)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	out, err := f.events.ConcludeElection(ctx, unitID)
	require.NoError(t, err)
	assert.False(t, out.HasWinner)

	_, err = f.events.DistributeFunds(ctx, unitID)
	assert.ErrorIs(t, err, domain.ErrNoWinner)

	a, err := f.events.ClaimRefund(ctx, unitID, donorA)
	require.NoError(t, err)
	assert.Equal(t, int64(70), a.Amount)
	b, err := f.events.ClaimRefund(ctx, unitID, donorB)
	require.NoError(t, err)
	assert.Equal(t, int64(30), b.Amount)

	summary, err := f.events.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefundsOpen, summary.Status)
	assert.Equal(t, int64(100), summary.TotalPool)
	assert.Equal(t, int64(100), summary.RefundedTotal)
}

func TestEventService_StateSurvivesRestart(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)
	f.approve(t, unitID, volA)

	_, err := f.events.Donate(ctx, unitID, donorA, 100)
	require.NoError(t, err)
	_, err = f.events.Vote(ctx, unitID, donorA, 0)
	require.NoError(t, err)

	registry := engine.NewRegistry(f.clock, f.repo)
	restored, err := registry.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	events := NewEventService(registry, nil, NewCacheService(nil, nil), logger.NewNop(), testLimits)

	donor, err := events.GetDonor(ctx, unitID, donorA)
	require.NoError(t, err)
	assert.Equal(t, int64(100), donor.Contributed)
	assert.True(t, donor.HasVoted)

	volunteers, err := events.ListVolunteers(ctx, unitID)
	require.NoError(t, err)
	require.Len(t, volunteers, 1)
	assert.Equal(t, engine.GovernanceWeight(100), volunteers[0].VoteTotal)

	_, err = events.Vote(ctx, unitID, donorA, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
}

func TestEventService_TryIdempotencyLock(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()

	assert.True(t, f.events.TryIdempotencyLock(ctx, donorA, ""))
	assert.True(t, f.events.TryIdempotencyLock(ctx, donorA, ""))

	assert.True(t, f.events.TryIdempotencyLock(ctx, donorA, "k1"))
	assert.False(t, f.events.TryIdempotencyLock(ctx, donorA, "k1"))
	assert.True(t, f.events.TryIdempotencyLock(ctx, donorB, "k1"))

	noCache := NewEventService(engine.NewRegistry(f.clock, nil), nil, NewCacheService(nil, nil), logger.NewNop(), testLimits)
	assert.True(t, noCache.TryIdempotencyLock(ctx, donorA, "k1"))
	assert.True(t, noCache.TryIdempotencyLock(ctx, donorA, "k1"))
}

func TestEventService_ReleaseIdempotencyLock(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()

	require.True(t, f.events.TryIdempotencyLock(ctx, donorA, "k1"))
	f.events.ReleaseIdempotencyLock(ctx, donorA, "k1")
	assert.True(t, f.events.TryIdempotencyLock(ctx, donorA, "k1"))
	assert.False(t, f.events.TryIdempotencyLock(ctx, donorA, "k1"))

	// releasing one wallet's key leaves the others claimed
	require.True(t, f.events.TryIdempotencyLock(ctx, donorB, "k2"))
	f.events.ReleaseIdempotencyLock(ctx, donorA, "k2")
	assert.False(t, f.events.TryIdempotencyLock(ctx, donorB, "k2"))

	f.events.ReleaseIdempotencyLock(ctx, donorA, "")
}

func TestEventService_StaleSummaryIsNotCached(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)

	unit, err := f.events.registry.Get(unitID)
	require.NoError(t, err)
	stale := unit.Summary()

	// a donation commits between reading the summary and caching it
	_, err = f.events.Donate(ctx, unitID, donorA, 40)
	require.NoError(t, err)
	f.events.cacheSummary(ctx, unit, stale)

	_, ok := f.cache.GetUnitSummary(ctx, unitID.String())
	assert.False(t, ok)

	summary, err := f.events.GetUnit(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), summary.TotalPool)

	cached, ok := f.cache.GetUnitSummary(ctx, unitID.String())
	require.True(t, ok)
	assert.Equal(t, summary.Version, cached.Version)
}

func TestEventService_StaleListIsDetected(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	unitID := f.createUnit(t, time.Hour)

	listed := f.events.currentSummaries()
	assert.False(t, listChanged(f.events.registry.List(), listed))

	_, err := f.events.Donate(ctx, unitID, donorA, 5)
	require.NoError(t, err)
	assert.True(t, listChanged(f.events.registry.List(), listed))

	f.createUnit(t, time.Hour)
	assert.True(t, listChanged(f.events.registry.List(), f.events.currentSummaries()[:1]))
}

func TestEventService_ListReceiptsReadsLedger(t *testing.T) {
	ctx := context.Background()
	clock := engine.NewManualClock(epoch)
	registry := engine.NewRegistry(clock, nil)
	ledger := new(MockReceiptLedger)
	events := NewEventService(registry, ledger, NewCacheService(nil, nil), logger.NewNop(), testLimits)

	summary, err := events.CreateUnit(ctx, adminID, domain.CreateUnitRequest{Name: "Quake", LifetimeSeconds: 3600})
	require.NoError(t, err)

	stored := []domain.TransferReceipt{{
		ID:     uuid.New(),
		UnitID: summary.ID,
		Kind:   domain.ReceiptRefund,
		To:     donorA,
		Amount: 1_250_000,
	}}
	ledger.On("ListReceipts", mock.Anything, summary.ID).Return(stored, nil).Once()
	ledger.On("ListReceipts", mock.Anything, summary.ID).Return(nil, errors.New("connection reset")).Once()

	receipts, err := events.ListReceipts(ctx, summary.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, stored[0].ID, receipts[0].ID)
	assert.Equal(t, "1.25", receipts[0].AmountDisplay)

	_, err = events.ListReceipts(ctx, summary.ID)
	assert.EqualError(t, err, "connection reset")

	// unknown units never reach the ledger
	_, err = events.ListReceipts(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
	ledger.AssertExpectations(t)
}

func TestEventService_UnknownUnit(t *testing.T) {
	f := setupEvents(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := f.events.GetUnit(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
	_, err = f.events.Donate(ctx, missing, donorA, 1)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
	_, err = f.events.ConcludeElection(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
	_, _, err = f.events.GetOutcome(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}
