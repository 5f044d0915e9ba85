package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
)

// Store persists committed unit snapshots
type Store interface {
	SaveUnit(ctx context.Context, s *State) error
	LoadUnits(ctx context.Context) ([]*State, error)
}

// Unit is a single event DAO. All mutations run under the unit's write lock
// against a private copy of the state; the copy replaces the live state only
// after it has been persisted, so a failed operation leaves nothing behind.
type Unit struct {
	mu    sync.RWMutex
	state *State
	clock Clock
	store Store
}

func newUnit(s *State, clock Clock, store Store) *Unit {
	s.normalize()
	return &Unit{state: s, clock: clock, store: store}
}

// ID returns the unit handle
func (u *Unit) ID() uuid.UUID {
	// immutable after creation
	return u.state.ID
}

func (u *Unit) commit(ctx context.Context, op func(s *State, now time.Time) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.clock.Now()
	next := u.state.clone()
	if err := op(next, now); err != nil {
		return err
	}
	next.Version++
	if u.store != nil {
		if err := u.store.SaveUnit(ctx, next); err != nil {
			return fmt.Errorf("failed to persist unit %s: %w", next.ID, err)
		}
	}
	u.state = next
	return nil
}

func (u *Unit) read(fn func(s *State, now time.Time)) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	fn(u.state, u.clock.Now())
}

// Donate adds amount to identity's contribution and recomputes its weight
func (u *Unit) Donate(ctx context.Context, identity common.Address, amount int64) (domain.DonorRecord, error) {
	var rec domain.DonorRecord
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if PhaseAt(now, s.ExpiresAt) != domain.PhaseOpen {
			return domain.ErrPhase.Withf("donations closed at %s", s.ExpiresAt.Format(time.RFC3339))
		}
		if amount <= 0 {
			return domain.ErrInvalidAmount
		}
		if s.volunteerIndexOf(identity) >= 0 {
			return domain.ErrVolunteerCannotDonate
		}
		d, ok := s.Donors[identity]
		if ok && d.HasVoted {
			return domain.ErrVoterCannotDonate
		}
		if s.TotalPool > math.MaxInt64-amount {
			return domain.ErrInvalidAmount.Withf("donation would overflow the pool")
		}
		if !ok {
			d = &Donor{VotedFor: -1}
			s.Donors[identity] = d
			s.DonorOrder = append(s.DonorOrder, identity)
		}
		d.Contributed += amount
		d.Weight = GovernanceWeight(d.Contributed)
		s.TotalPool += amount
		rec = s.donorRecord(identity)
		return nil
	})
	return rec, err
}

// RegisterVolunteer appends an unapproved volunteer and returns its index
func (u *Unit) RegisterVolunteer(ctx context.Context, identity common.Address, displayName, pitch string) (int, error) {
	index := -1
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if PhaseAt(now, s.ExpiresAt) != domain.PhaseOpen {
			return domain.ErrPhase.Withf("registration closed at %s", s.ExpiresAt.Format(time.RFC3339))
		}
		if d, ok := s.Donors[identity]; ok && d.HasVoted {
			return domain.ErrVoterCannotVolunteer
		}
		if s.volunteerIndexOf(identity) >= 0 {
			return domain.ErrAlreadyRegistered
		}
		s.Volunteers = append(s.Volunteers, &Volunteer{
			Identity:     identity,
			DisplayName:  displayName,
			Pitch:        pitch,
			RegisteredAt: now,
		})
		index = len(s.Volunteers) - 1
		return nil
	})
	return index, err
}

// ApproveVolunteer makes a registered volunteer eligible for votes. Only the
// admin may approve, and only while the unit is open.
func (u *Unit) ApproveVolunteer(ctx context.Context, caller common.Address, index int) error {
	return u.commit(ctx, func(s *State, now time.Time) error {
		if caller != s.Admin {
			return domain.ErrUnauthorized
		}
		if PhaseAt(now, s.ExpiresAt) != domain.PhaseOpen {
			return domain.ErrPhase.Withf("approvals closed at %s", s.ExpiresAt.Format(time.RFC3339))
		}
		if index < 0 || index >= len(s.Volunteers) {
			return domain.ErrInvalidIndex.Withf("volunteer index %d out of range [0,%d)", index, len(s.Volunteers))
		}
		v := s.Volunteers[index]
		if v.Approved {
			return domain.ErrAlreadyApproved
		}
		v.Approved = true
		return nil
	})
}

// Vote casts identity's full governance weight for an approved volunteer
func (u *Unit) Vote(ctx context.Context, identity common.Address, index int) (domain.DonorRecord, error) {
	var rec domain.DonorRecord
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if PhaseAt(now, s.ExpiresAt) != domain.PhaseOpen {
			return domain.ErrPhase.Withf("voting closed at %s", s.ExpiresAt.Format(time.RFC3339))
		}
		d, ok := s.Donors[identity]
		if !ok || d.Weight <= 0 {
			return domain.ErrNoVotingPower
		}
		if d.HasVoted {
			return domain.ErrAlreadyVoted
		}
		if index < 0 || index >= len(s.Volunteers) || !s.Volunteers[index].Approved {
			return domain.ErrInvalidVolunteer.Withf("volunteer %d does not exist or is not approved", index)
		}
		if s.Volunteers[index].VoteTotal > math.MaxInt64-d.Weight {
			return domain.ErrTallyOverflow
		}
		s.Volunteers[index].VoteTotal += d.Weight
		d.HasVoted = true
		d.VotedFor = index
		rec = s.donorRecord(identity)
		return nil
	})
	return rec, err
}

// ConcludeElection freezes the outcome once the unit has expired
func (u *Unit) ConcludeElection(ctx context.Context) (domain.Outcome, error) {
	var out domain.Outcome
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if s.ElectionConcluded {
			return domain.ErrAlreadyConcluded
		}
		if PhaseAt(now, s.ExpiresAt) != domain.PhaseExpired {
			return domain.ErrPhase.Withf("election cannot conclude before %s", s.ExpiresAt.Format(time.RFC3339))
		}
		totals := make([]int64, len(s.Volunteers))
		for i, v := range s.Volunteers {
			totals[i] = v.VoteTotal
		}
		idx, ok := SelectWinner(totals)
		s.ElectionConcluded = true
		s.HasWinner = ok
		s.WinnerIndex = idx
		s.ConcludedAt = now
		out = s.outcome()
		return nil
	})
	return out, err
}

// DistributeFunds transfers the whole pool to the elected volunteer
func (u *Unit) DistributeFunds(ctx context.Context) (domain.TransferReceipt, error) {
	var receipt domain.TransferReceipt
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if !s.ElectionConcluded {
			return domain.ErrNotConcluded
		}
		if !s.HasWinner {
			return domain.ErrNoWinner
		}
		if s.FundsDistributed {
			return domain.ErrAlreadyDistributed
		}
		receipt = s.receipt(domain.ReceiptDistribution, s.Volunteers[s.WinnerIndex].Identity, s.TotalPool, now)
		s.FundsDistributed = true
		s.Receipts = append(s.Receipts, receipt)
		return nil
	})
	return receipt, err
}

// ClaimRefund returns identity's contribution when the election had no winner
func (u *Unit) ClaimRefund(ctx context.Context, identity common.Address) (domain.TransferReceipt, error) {
	var receipt domain.TransferReceipt
	err := u.commit(ctx, func(s *State, now time.Time) error {
		if !s.ElectionConcluded {
			return domain.ErrNotConcluded
		}
		if s.HasWinner {
			return domain.ErrWinnerExists
		}
		d, ok := s.Donors[identity]
		if !ok || d.Contributed <= 0 {
			return domain.ErrNothingToRefund
		}
		if d.Refunded {
			return domain.ErrAlreadyRefunded
		}
		receipt = s.receipt(domain.ReceiptRefund, identity, d.Contributed, now)
		d.Refunded = true
		s.RefundedTotal += d.Contributed
		s.Receipts = append(s.Receipts, receipt)
		return nil
	})
	return receipt, err
}

// Summary returns unit metadata with the phase evaluated now
func (u *Unit) Summary() domain.UnitSummary {
	var out domain.UnitSummary
	u.read(func(s *State, now time.Time) {
		out = s.summary(now)
	})
	return out
}

// Phase returns the current lifecycle phase
func (u *Unit) Phase() domain.Phase {
	var p domain.Phase
	u.read(func(s *State, now time.Time) {
		p = PhaseAt(now, s.ExpiresAt)
	})
	return p
}

// Donor returns identity's record; unknown identities get a zero record
func (u *Unit) Donor(identity common.Address) domain.DonorRecord {
	var rec domain.DonorRecord
	u.read(func(s *State, _ time.Time) {
		rec = s.donorRecord(identity)
	})
	return rec
}

// Donors lists donor records in order of first contribution
func (u *Unit) Donors() []domain.DonorRecord {
	var out []domain.DonorRecord
	u.read(func(s *State, _ time.Time) {
		out = make([]domain.DonorRecord, len(s.DonorOrder))
		for i, id := range s.DonorOrder {
			out[i] = s.donorRecord(id)
		}
	})
	return out
}

// Volunteers lists all registrations with their current totals
func (u *Unit) Volunteers() []domain.VolunteerRecord {
	var out []domain.VolunteerRecord
	u.read(func(s *State, _ time.Time) {
		out = s.volunteerRecords()
	})
	return out
}

// Outcome returns the concluded result, or false if the election is still pending
func (u *Unit) Outcome() (domain.Outcome, bool) {
	var (
		out domain.Outcome
		ok  bool
	)
	u.read(func(s *State, _ time.Time) {
		if s.ElectionConcluded {
			out, ok = s.outcome(), true
		}
	})
	return out, ok
}

// Receipts lists every transfer issued by the unit
func (u *Unit) Receipts() []domain.TransferReceipt {
	var out []domain.TransferReceipt
	u.read(func(s *State, _ time.Time) {
		out = make([]domain.TransferReceipt, len(s.Receipts))
		copy(out, s.Receipts)
	})
	return out
}

// Version returns the number of committed mutations
func (u *Unit) Version() uint64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state.Version
}
