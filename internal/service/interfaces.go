package service

import (
	"context"

	"github.com/google/uuid"

	"relief-dao/internal/domain"
)

// ReceiptLedger reads the transfers persisted for a unit
type ReceiptLedger interface {
	ListReceipts(ctx context.Context, unitID uuid.UUID) ([]domain.TransferReceipt, error)
}

// AuthService defines the interface for wallet sign-in
type AuthService interface {
	// IssueChallenge creates a single-use message for address to sign
	IssueChallenge(ctx context.Context, address string) (*domain.AuthChallenge, error)

	// VerifyChallenge consumes the pending challenge and issues a session token
	VerifyChallenge(ctx context.Context, address, signature string) (*domain.AuthSession, error)

	// ValidateToken validates a session token and returns its claims
	ValidateToken(ctx context.Context, token string) (*domain.AuthClaims, error)
}

// SettlementMonitor defines the interface for the background settlement sweeper
type SettlementMonitor interface {
	// Start begins periodic sweeps
	Start(ctx context.Context) error

	// Stop gracefully shuts down the monitor
	Stop(ctx context.Context) error

	// Sweep runs one pass over all units
	Sweep(ctx context.Context) SweepResult
}

// Services aggregates all services
type Services struct {
	Auth    AuthService
	Events  *EventService
	Monitor SettlementMonitor
}
