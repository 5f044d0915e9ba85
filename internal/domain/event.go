package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Phase is derived from the wall clock and the unit's expiry
type Phase string

const (
	PhaseOpen    Phase = "open"
	PhaseExpired Phase = "expired"
)

// Status is the unit's position in the settlement state machine
type Status string

const (
	StatusOpen                Status = "open"
	StatusAwaitingConclusion  Status = "awaiting_conclusion"
	StatusDistributionPending Status = "distribution_pending"
	StatusSettled             Status = "settled"
	StatusRefundsOpen         Status = "refunds_open"
)

// UnitSummary is the read model of an event unit
type UnitSummary struct {
	ID                    uuid.UUID      `json:"id"`
	Admin                 common.Address `json:"admin"`
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	Decimals              uint8          `json:"decimals"`
	CreatedAt             time.Time      `json:"created_at"`
	ExpiresAt             time.Time      `json:"expires_at"`
	TotalPool             int64          `json:"total_pool"`
	TotalPoolDisplay      string         `json:"total_pool_display"`
	RefundedTotal         int64          `json:"refunded_total"`
	RefundedTotalDisplay  string         `json:"refunded_total_display"`
	DonorCount            int            `json:"donor_count"`
	VolunteerCount        int            `json:"volunteer_count"`
	Phase                 Phase          `json:"phase"`
	Status                Status         `json:"status"`
	ElectionConcluded     bool           `json:"election_concluded"`
	HasWinner             bool           `json:"has_winner"`
	WinningVolunteerIndex *int           `json:"winning_volunteer_index,omitempty"`
	FundsDistributed      bool           `json:"funds_distributed"`
	Version               uint64         `json:"version"`
}

// DonorRecord is the read model of a single identity's participation
type DonorRecord struct {
	Identity           common.Address `json:"identity"`
	Contributed        int64          `json:"contributed"`
	ContributedDisplay string         `json:"contributed_display"`
	GovernanceWeight   int64          `json:"governance_weight"`
	HasVoted           bool           `json:"has_voted"`
	VotedFor           *int           `json:"voted_for,omitempty"`
	Refunded           bool           `json:"refunded"`
}

// VolunteerRecord is the read model of a registered volunteer
type VolunteerRecord struct {
	Index        int            `json:"index"`
	Identity     common.Address `json:"identity"`
	DisplayName  string         `json:"display_name"`
	Pitch        string         `json:"pitch"`
	Approved     bool           `json:"approved"`
	VoteTotal    int64          `json:"vote_total"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// Outcome is the frozen result of an election
type Outcome struct {
	UnitID           uuid.UUID       `json:"unit_id"`
	HasWinner        bool            `json:"has_winner"`
	WinnerIndex      *int            `json:"winner_index,omitempty"`
	Winner           *common.Address `json:"winner,omitempty"`
	WinningTotal     int64           `json:"winning_total"`
	TotalPool        int64           `json:"total_pool"`
	TotalPoolDisplay string          `json:"total_pool_display"`
	ConcludedAt      time.Time       `json:"concluded_at"`
}

// ReceiptKind tells distributions and refunds apart
type ReceiptKind string

const (
	ReceiptDistribution ReceiptKind = "distribution"
	ReceiptRefund       ReceiptKind = "refund"
)

// TransferReceipt records a single outbound transfer of pooled funds. Amounts
// are base units; the display fields render them at the unit's decimal scale.
type TransferReceipt struct {
	ID            uuid.UUID      `json:"id"`
	UnitID        uuid.UUID      `json:"unit_id"`
	Kind          ReceiptKind    `json:"kind"`
	To            common.Address `json:"to"`
	Amount        int64          `json:"amount"`
	AmountDisplay string         `json:"amount_display"`
	IssuedAt      time.Time      `json:"issued_at"`
}

// CreateUnitRequest represents a request to open a new event unit
type CreateUnitRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	LifetimeSeconds int64  `json:"lifetime_seconds"`
	Decimals        *uint8 `json:"decimals,omitempty"`
}

// DonationRequest represents a donation submission; amount is a decimal string
type DonationRequest struct {
	Amount string `json:"amount"`
}

// VolunteerRequest represents a volunteer registration
type VolunteerRequest struct {
	DisplayName string `json:"display_name"`
	Pitch       string `json:"pitch"`
}

// VoteRequest represents a vote for a volunteer
type VoteRequest struct {
	VolunteerIndex int `json:"volunteer_index"`
}
