package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/service"
	"relief-dao/pkg/errors"
	"relief-dao/pkg/logger"
	"relief-dao/pkg/redis"
	"relief-dao/pkg/wallet"
)

const issuer = "relief-dao"

// Config holds the auth service settings
type Config struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
}

// Service implements the AuthService interface with wallet signatures and
// HS256 session tokens
type Service struct {
	redis  *redis.Client
	secret []byte
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a new auth service. Challenges live in Redis; without it
// sign-in is unavailable but existing tokens still validate.
func NewService(redisClient *redis.Client, cfg Config, logger *logger.Logger) service.AuthService {
	return newService(redisClient, cfg, logger, func() time.Time { return time.Now().UTC() })
}

func newService(redisClient *redis.Client, cfg Config, logger *logger.Logger, now func() time.Time) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return &Service{
		redis:  redisClient,
		secret: []byte(cfg.JWTSecret),
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

// sessionClaims are the JWT claims of a session token
type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueChallenge creates a single-use sign-in message for address
func (s *Service) IssueChallenge(ctx context.Context, address string) (*domain.AuthChallenge, error) {
	if s.redis == nil {
		return nil, errors.NewUnavailableError("Wallet sign-in is not configured")
	}

	addr, err := wallet.ParseAddress(address)
	if err != nil {
		return nil, errors.NewValidationError("Invalid wallet address", map[string]interface{}{"address": address})
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.ChallengeTTL)
	message := fmt.Sprintf("Sign in to relief-dao\n\nAddress: %s\nNonce: %s\nIssued At: %s\nExpires At: %s",
		addr.Hex(),
		uuid.NewString(),
		now.Format(time.RFC3339),
		expiresAt.Format(time.RFC3339),
	)

	if err := s.redis.Set(ctx, s.redis.KeyBuilder.KeyAuthChallenge(addr.Hex()), message, s.cfg.ChallengeTTL); err != nil {
		s.logger.WithError(err).Error("Failed to store sign-in challenge")
		return nil, errors.NewInternalError("Failed to create challenge", err)
	}

	s.logger.WithField("address", addr.Hex()).Debug("Sign-in challenge issued")
	return &domain.AuthChallenge{Address: addr, Message: message, ExpiresAt: expiresAt}, nil
}

// VerifyChallenge consumes the pending challenge for address, checks the
// signature and issues a session token
func (s *Service) VerifyChallenge(ctx context.Context, address, signature string) (*domain.AuthSession, error) {
	if s.redis == nil {
		return nil, errors.NewUnavailableError("Wallet sign-in is not configured")
	}

	addr, err := wallet.ParseAddress(address)
	if err != nil {
		return nil, errors.NewValidationError("Invalid wallet address", map[string]interface{}{"address": address})
	}

	// consumed even when the signature is wrong, so a challenge gets one attempt
	message, err := s.redis.GetDel(ctx, s.redis.KeyBuilder.KeyAuthChallenge(addr.Hex()))
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NewAuthenticationError("Challenge expired or not found")
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load sign-in challenge")
		return nil, errors.NewInternalError("Failed to load challenge", err)
	}

	if err := wallet.VerifySignature(addr, message, signature); err != nil {
		s.logger.WithField("address", addr.Hex()).WithError(err).Warn("Signature verification failed")
		return nil, errors.NewAuthenticationError("Invalid signature")
	}

	session, err := s.issueToken(addr)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("address", addr.Hex()).Info("Wallet signed in")
	return session, nil
}

func (s *Service) issueToken(addr common.Address) (*domain.AuthSession, error) {
	if len(s.secret) == 0 {
		return nil, errors.NewUnavailableError("Session signing is not configured")
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   addr.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign session token")
		return nil, errors.NewInternalError("Failed to issue session", err)
	}
	return &domain.AuthSession{Address: addr, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken validates a session token and returns its claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.AuthClaims, error) {
	if len(s.secret) == 0 {
		return nil, errors.NewAuthenticationError("JWT validation not configured")
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing algorithm
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		s.logger.WithError(err).Debug("Session token rejected")
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}

	addr, err := wallet.ParseAddress(claims.Subject)
	if err != nil {
		return nil, errors.NewAuthenticationError("Invalid token subject")
	}

	out := &domain.AuthClaims{Address: addr}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
