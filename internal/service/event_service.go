package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/engine"
	"relief-dao/pkg/logger"
)

// Limits bounds what callers may request when opening a unit
type Limits struct {
	MinLifetime     time.Duration
	MaxLifetime     time.Duration
	DefaultDecimals uint8
}

// EventService exposes event unit operations to transports. It validates raw
// input, delegates state changes to the engine and keeps the read cache fresh.
type EventService struct {
	registry *engine.Registry
	receipts ReceiptLedger
	cache    *CacheService
	logger   *logger.Logger
	limits   Limits
}

// NewEventService creates a new event service. With a nil ledger receipts are
// read from the in-memory units.
func NewEventService(registry *engine.Registry, receipts ReceiptLedger, cache *CacheService, logger *logger.Logger, limits Limits) *EventService {
	return &EventService{
		registry: registry,
		receipts: receipts,
		cache:    cache,
		logger:   logger,
		limits:   limits,
	}
}

// CreateUnit opens a new event unit administered by admin
func (s *EventService) CreateUnit(ctx context.Context, admin common.Address, req domain.CreateUnitRequest) (*domain.UnitSummary, error) {
	name, err := domain.NormalizeText("name", req.Name, true, domain.MaxUnitNameLength)
	if err != nil {
		return nil, err
	}
	description, err := domain.NormalizeText("description", req.Description, false, domain.MaxUnitDescriptionLength)
	if err != nil {
		return nil, err
	}

	lifetime := time.Duration(req.LifetimeSeconds) * time.Second
	if req.LifetimeSeconds <= 0 || lifetime < s.limits.MinLifetime {
		return nil, domain.ErrInvalidInput.Withf("lifetime must be at least %s", s.limits.MinLifetime)
	}
	if s.limits.MaxLifetime > 0 && lifetime > s.limits.MaxLifetime {
		return nil, domain.ErrInvalidInput.Withf("lifetime must not exceed %s", s.limits.MaxLifetime)
	}

	decimals := s.limits.DefaultDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}

	unit, err := s.registry.Create(ctx, engine.CreateParams{
		Admin:       admin,
		Name:        name,
		Description: description,
		Lifetime:    lifetime,
		Decimals:    decimals,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to create event unit")
		return nil, err
	}

	summary := unit.Summary()
	s.cache.InvalidateUnit(ctx, summary.ID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":    summary.ID.String(),
		"admin":      admin.Hex(),
		"expires_at": summary.ExpiresAt,
		"decimals":   decimals,
	}).Info("Event unit created")
	return &summary, nil
}

// ParseAmount converts a decimal string to base units at the unit's scale
func (s *EventService) ParseAmount(ctx context.Context, unitID uuid.UUID, raw string) (int64, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return 0, err
	}
	return domain.ParseAmount(raw, unit.Summary().Decimals)
}

// Donate records a contribution in base units
func (s *EventService) Donate(ctx context.Context, unitID uuid.UUID, identity common.Address, amount int64) (*domain.DonorRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	rec, err := unit.Donate(ctx, identity, amount)
	if err != nil {
		s.logRejected(err, unitID, identity, "donate")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":           unitID.String(),
		"identity":          identity.Hex(),
		"amount":            amount,
		"contributed":       rec.Contributed,
		"governance_weight": rec.GovernanceWeight,
	}).Info("Donation accepted")
	return &rec, nil
}

// RegisterVolunteer registers identity as a candidate and returns its record
func (s *EventService) RegisterVolunteer(ctx context.Context, unitID uuid.UUID, identity common.Address, req domain.VolunteerRequest) (*domain.VolunteerRecord, error) {
	displayName, err := domain.NormalizeText("display_name", req.DisplayName, true, domain.MaxDisplayNameLength)
	if err != nil {
		return nil, err
	}
	pitch, err := domain.NormalizeText("pitch", req.Pitch, false, domain.MaxPitchLength)
	if err != nil {
		return nil, err
	}

	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	index, err := unit.RegisterVolunteer(ctx, identity, displayName, pitch)
	if err != nil {
		s.logRejected(err, unitID, identity, "register_volunteer")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":         unitID.String(),
		"identity":        identity.Hex(),
		"volunteer_index": index,
	}).Info("Volunteer registered")

	rec := unit.Volunteers()[index]
	return &rec, nil
}

// ApproveVolunteer marks a volunteer vote-eligible; caller must be the admin
func (s *EventService) ApproveVolunteer(ctx context.Context, unitID uuid.UUID, caller common.Address, index int) (*domain.VolunteerRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	if err := unit.ApproveVolunteer(ctx, caller, index); err != nil {
		s.logRejected(err, unitID, caller, "approve_volunteer")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":         unitID.String(),
		"volunteer_index": index,
	}).Info("Volunteer approved")

	rec := unit.Volunteers()[index]
	return &rec, nil
}

// Vote casts identity's weight for an approved volunteer
func (s *EventService) Vote(ctx context.Context, unitID uuid.UUID, identity common.Address, index int) (*domain.DonorRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	rec, err := unit.Vote(ctx, identity, index)
	if err != nil {
		s.logRejected(err, unitID, identity, "vote")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":         unitID.String(),
		"identity":        identity.Hex(),
		"volunteer_index": index,
		"weight":          rec.GovernanceWeight,
	}).Info("Vote recorded")
	return &rec, nil
}

// ConcludeElection freezes the outcome of an expired unit
func (s *EventService) ConcludeElection(ctx context.Context, unitID uuid.UUID) (*domain.Outcome, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	out, err := unit.ConcludeElection(ctx)
	if err != nil {
		s.logRejected(err, unitID, common.Address{}, "conclude_election")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	fields := map[string]interface{}{
		"unit_id":    unitID.String(),
		"has_winner": out.HasWinner,
		"total_pool": out.TotalPool,
	}
	if out.HasWinner {
		fields["winner_index"] = *out.WinnerIndex
		fields["winning_total"] = out.WinningTotal
	}
	s.logger.WithFields(fields).Info("Election concluded")
	return &out, nil
}

// DistributeFunds pays the whole pool to the elected volunteer
func (s *EventService) DistributeFunds(ctx context.Context, unitID uuid.UUID) (*domain.TransferReceipt, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	receipt, err := unit.DistributeFunds(ctx)
	if err != nil {
		s.logRejected(err, unitID, common.Address{}, "distribute_funds")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":    unitID.String(),
		"receipt_id": receipt.ID.String(),
		"to":         receipt.To.Hex(),
		"amount":     receipt.Amount,
	}).Info("Funds distributed")
	return &receipt, nil
}

// ClaimRefund returns identity's contribution from a unit without a winner
func (s *EventService) ClaimRefund(ctx context.Context, unitID uuid.UUID, identity common.Address) (*domain.TransferReceipt, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}

	receipt, err := unit.ClaimRefund(ctx, identity)
	if err != nil {
		s.logRejected(err, unitID, identity, "claim_refund")
		return nil, err
	}

	s.cache.InvalidateUnit(ctx, unitID.String())
	s.logger.WithFields(map[string]interface{}{
		"unit_id":    unitID.String(),
		"receipt_id": receipt.ID.String(),
		"identity":   identity.Hex(),
		"amount":     receipt.Amount,
	}).Info("Refund issued")
	return &receipt, nil
}

// GetUnit returns a unit summary, served from cache when fresh
func (s *EventService) GetUnit(ctx context.Context, unitID uuid.UUID) (*domain.UnitSummary, error) {
	if cached, ok := s.cache.GetUnitSummary(ctx, unitID.String()); ok {
		return cached, nil
	}

	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}
	summary := unit.Summary()
	s.cacheSummary(ctx, unit, summary)
	return &summary, nil
}

// cacheSummary stores summary, dropping it again if the unit committed a
// mutation in the meantime
func (s *EventService) cacheSummary(ctx context.Context, unit *engine.Unit, summary domain.UnitSummary) {
	s.cache.SetUnitSummary(ctx, summary, s.registry.Clock().Now())
	if unit.Version() != summary.Version {
		s.cache.InvalidateUnit(ctx, summary.ID.String())
	}
}

// ListUnits returns all unit summaries in creation order
func (s *EventService) ListUnits(ctx context.Context) ([]domain.UnitSummary, error) {
	if cached, ok := s.cache.GetUnitList(ctx); ok {
		return cached, nil
	}

	out := s.currentSummaries()
	s.cache.SetUnitList(ctx, out, s.registry.Clock().Now())
	if listChanged(s.registry.List(), out) {
		s.cache.InvalidateUnitList(ctx)
	}
	return out, nil
}

// listChanged reports whether units differ from the listing built from them
func listChanged(units []*engine.Unit, listed []domain.UnitSummary) bool {
	if len(units) != len(listed) {
		return true
	}
	for i, u := range units {
		if u.Version() != listed[i].Version {
			return true
		}
	}
	return false
}

// GetDonor returns identity's record; identities that never donated get a zero record
func (s *EventService) GetDonor(ctx context.Context, unitID uuid.UUID, identity common.Address) (*domain.DonorRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}
	rec := unit.Donor(identity)
	return &rec, nil
}

// ListDonors returns every donor of a unit in order of first contribution
func (s *EventService) ListDonors(ctx context.Context, unitID uuid.UUID) ([]domain.DonorRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}
	return unit.Donors(), nil
}

// ListVolunteers returns every registration with its current vote total
func (s *EventService) ListVolunteers(ctx context.Context, unitID uuid.UUID) ([]domain.VolunteerRecord, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}
	return unit.Volunteers(), nil
}

// GetOutcome returns the concluded outcome; the bool is false while pending
func (s *EventService) GetOutcome(ctx context.Context, unitID uuid.UUID) (*domain.Outcome, bool, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, false, err
	}
	out, ok := unit.Outcome()
	if !ok {
		return nil, false, nil
	}
	return &out, true, nil
}

// ListReceipts returns every transfer the unit has issued, read from the
// receipt ledger when one is configured
func (s *EventService) ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error) {
	unit, err := s.registry.Get(unitID)
	if err != nil {
		return nil, err
	}
	if s.receipts == nil {
		return unit.Receipts(), nil
	}

	receipts, err := s.receipts.ListReceipts(ctx, unitID)
	if err != nil {
		s.logger.WithError(err).WithField("unit_id", unitID.String()).Error("Failed to list receipts")
		return nil, err
	}
	decimals := unit.Summary().Decimals
	for i := range receipts {
		receipts[i].AmountDisplay = domain.FormatAmount(receipts[i].Amount, decimals)
	}
	return receipts, nil
}

// TryIdempotencyLock claims an Idempotency-Key for identity. Cache failures
// are logged and the request is let through.
func (s *EventService) TryIdempotencyLock(ctx context.Context, identity common.Address, key string) bool {
	if key == "" {
		return true
	}
	ok, err := s.cache.AcquireIdempotencyKey(ctx, identity.Hex(), key)
	if err != nil {
		s.logger.WithError(err).Warn("Idempotency check failed, allowing request")
		return true
	}
	return ok
}

// ReleaseIdempotencyLock frees a key claimed by TryIdempotencyLock
func (s *EventService) ReleaseIdempotencyLock(ctx context.Context, identity common.Address, key string) {
	if key == "" {
		return
	}
	if err := s.cache.ReleaseIdempotencyKey(ctx, identity.Hex(), key); err != nil {
		s.logger.WithError(err).Warn("Failed to release idempotency key")
	}
}

// currentSummaries reads every unit directly, bypassing the cache
func (s *EventService) currentSummaries() []domain.UnitSummary {
	units := s.registry.List()
	out := make([]domain.UnitSummary, 0, len(units))
	for _, u := range units {
		out = append(out, u.Summary())
	}
	return out
}

func (s *EventService) logRejected(err error, unitID uuid.UUID, identity common.Address, op string) {
	fields := map[string]interface{}{
		"unit_id":   unitID.String(),
		"operation": op,
	}
	if identity != (common.Address{}) {
		fields["identity"] = identity.Hex()
	}
	if _, ok := domain.KindOf(err); ok {
		s.logger.WithFields(fields).WithError(err).Debug("Operation rejected")
		return
	}
	s.logger.WithFields(fields).WithError(err).Error("Operation failed")
}
