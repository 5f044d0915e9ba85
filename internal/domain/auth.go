package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AuthChallenge is the message a wallet must sign to obtain a session
type AuthChallenge struct {
	Address   common.Address `json:"address"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// AuthSession is returned after a successful signature verification
type AuthSession struct {
	Address   common.Address `json:"address"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// AuthClaims represents validated session token claims
type AuthClaims struct {
	Address   common.Address `json:"address"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ChallengeRequest asks for a sign-in challenge
type ChallengeRequest struct {
	Address string `json:"address"`
}

// VerifyRequest submits a signed challenge
type VerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}
