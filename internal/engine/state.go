package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
)

// Donor is the ledger entry for one contributing identity
type Donor struct {
	Contributed int64 `json:"contributed"`
	Weight      int64 `json:"weight"`
	HasVoted    bool  `json:"has_voted"`
	VotedFor    int   `json:"voted_for"`
	Refunded    bool  `json:"refunded"`
}

// Volunteer is one registration in the append-only candidate list
type Volunteer struct {
	Identity     common.Address `json:"identity"`
	DisplayName  string         `json:"display_name"`
	Pitch        string         `json:"pitch"`
	Approved     bool           `json:"approved"`
	VoteTotal    int64          `json:"vote_total"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// State is the complete, serializable aggregate of an event unit. It owns its
// donor map and volunteer list; nothing outside the unit holds references to them.
type State struct {
	ID          uuid.UUID      `json:"id"`
	Admin       common.Address `json:"admin"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Decimals    uint8          `json:"decimals"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`

	TotalPool     int64 `json:"total_pool"`
	RefundedTotal int64 `json:"refunded_total"`

	Donors     map[common.Address]*Donor `json:"donors"`
	DonorOrder []common.Address          `json:"donor_order"`
	Volunteers []*Volunteer              `json:"volunteers"`

	ElectionConcluded bool      `json:"election_concluded"`
	HasWinner         bool      `json:"has_winner"`
	WinnerIndex       int       `json:"winner_index"`
	FundsDistributed  bool      `json:"funds_distributed"`
	ConcludedAt       time.Time `json:"concluded_at,omitempty"`

	Receipts []domain.TransferReceipt `json:"receipts"`

	// Version counts committed mutations
	Version uint64 `json:"version"`
}

func (s *State) clone() *State {
	c := *s
	c.Donors = make(map[common.Address]*Donor, len(s.Donors))
	for k, d := range s.Donors {
		dc := *d
		c.Donors[k] = &dc
	}
	c.DonorOrder = append([]common.Address(nil), s.DonorOrder...)
	c.Volunteers = make([]*Volunteer, len(s.Volunteers))
	for i, v := range s.Volunteers {
		vc := *v
		c.Volunteers[i] = &vc
	}
	c.Receipts = append([]domain.TransferReceipt(nil), s.Receipts...)
	return &c
}

// normalize fills collections that may be missing from an older snapshot
func (s *State) normalize() {
	if s.Donors == nil {
		s.Donors = make(map[common.Address]*Donor)
	}
}

// display renders base units at the unit's scale
func (s *State) display(amount int64) string {
	return domain.FormatAmount(amount, s.Decimals)
}

func (s *State) receipt(kind domain.ReceiptKind, to common.Address, amount int64, now time.Time) domain.TransferReceipt {
	return domain.TransferReceipt{
		ID:            uuid.New(),
		UnitID:        s.ID,
		Kind:          kind,
		To:            to,
		Amount:        amount,
		AmountDisplay: s.display(amount),
		IssuedAt:      now,
	}
}

func (s *State) volunteerIndexOf(identity common.Address) int {
	for i, v := range s.Volunteers {
		if v.Identity == identity {
			return i
		}
	}
	return -1
}

func (s *State) status(now time.Time) domain.Status {
	switch {
	case PhaseAt(now, s.ExpiresAt) == domain.PhaseOpen:
		return domain.StatusOpen
	case !s.ElectionConcluded:
		return domain.StatusAwaitingConclusion
	case s.HasWinner && !s.FundsDistributed:
		return domain.StatusDistributionPending
	case s.HasWinner:
		return domain.StatusSettled
	default:
		return domain.StatusRefundsOpen
	}
}

func (s *State) summary(now time.Time) domain.UnitSummary {
	out := domain.UnitSummary{
		ID:                s.ID,
		Admin:             s.Admin,
		Name:              s.Name,
		Description:       s.Description,
		Decimals:          s.Decimals,
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
		TotalPool:         s.TotalPool,
		RefundedTotal:     s.RefundedTotal,
		DonorCount:        len(s.DonorOrder),
		VolunteerCount:    len(s.Volunteers),
		Phase:             PhaseAt(now, s.ExpiresAt),
		Status:            s.status(now),
		ElectionConcluded: s.ElectionConcluded,
		HasWinner:         s.HasWinner,
		FundsDistributed:  s.FundsDistributed,
		Version:           s.Version,
	}
	out.TotalPoolDisplay = s.display(s.TotalPool)
	out.RefundedTotalDisplay = s.display(s.RefundedTotal)
	if s.HasWinner {
		idx := s.WinnerIndex
		out.WinningVolunteerIndex = &idx
	}
	return out
}

func (s *State) donorRecord(identity common.Address) domain.DonorRecord {
	rec := domain.DonorRecord{Identity: identity, ContributedDisplay: s.display(0)}
	d, ok := s.Donors[identity]
	if !ok {
		return rec
	}
	rec.Contributed = d.Contributed
	rec.ContributedDisplay = s.display(d.Contributed)
	rec.GovernanceWeight = d.Weight
	rec.HasVoted = d.HasVoted
	rec.Refunded = d.Refunded
	if d.HasVoted {
		idx := d.VotedFor
		rec.VotedFor = &idx
	}
	return rec
}

func (s *State) volunteerRecords() []domain.VolunteerRecord {
	out := make([]domain.VolunteerRecord, len(s.Volunteers))
	for i, v := range s.Volunteers {
		out[i] = domain.VolunteerRecord{
			Index:        i,
			Identity:     v.Identity,
			DisplayName:  v.DisplayName,
			Pitch:        v.Pitch,
			Approved:     v.Approved,
			VoteTotal:    v.VoteTotal,
			RegisteredAt: v.RegisteredAt,
		}
	}
	return out
}

func (s *State) outcome() domain.Outcome {
	out := domain.Outcome{
		UnitID:           s.ID,
		HasWinner:        s.HasWinner,
		TotalPool:        s.TotalPool,
		TotalPoolDisplay: s.display(s.TotalPool),
		ConcludedAt:      s.ConcludedAt,
	}
	if s.HasWinner {
		idx := s.WinnerIndex
		winner := s.Volunteers[idx].Identity
		out.WinnerIndex = &idx
		out.Winner = &winner
		out.WinningTotal = s.Volunteers[idx].VoteTotal
	}
	return out
}
