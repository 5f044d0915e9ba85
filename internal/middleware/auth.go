package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/service"
	"relief-dao/pkg/errors"
	"relief-dao/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// ClaimsContextKey is the key for validated session claims in context
	ClaimsContextKey ContextKey = "claims"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// Auth creates an authentication middleware requiring a wallet session token
func Auth(authService service.AuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r)
			if appErr != nil {
				WriteError(w, r, appErr, logger)
				return
			}

			ctx := r.Context()
			claims, err := authService.ValidateToken(ctx, token)
			if err != nil {
				logger.WithError(err).Debug("Token validation failed")
				WriteError(w, r, errors.NewAuthenticationError("Invalid or expired token"), logger)
				return
			}

			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			r = r.WithContext(ctx)

			logger.WithField("address", claims.Address.Hex()).Debug("Wallet authenticated successfully")

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, *errors.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.NewAuthenticationError("Authorization header is required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.NewAuthenticationError("Invalid authorization header format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", errors.NewAuthenticationError("Token is required")
	}
	return token, nil
}

// IdentityFrom returns the authenticated wallet address, if any
func IdentityFrom(ctx context.Context) (common.Address, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*domain.AuthClaims)
	if !ok || claims == nil {
		return common.Address{}, false
	}
	return claims.Address, true
}

// WithIdentity returns a context carrying identity as if it had signed in.
// Used by tests and internal callers.
func WithIdentity(ctx context.Context, identity common.Address) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, &domain.AuthClaims{Address: identity})
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDFrom returns the request ID set by RequestID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// WriteError writes an AppError as the standard JSON error body
func WriteError(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	requestID := RequestIDFrom(r.Context())
	log := logger.WithFields(map[string]interface{}{
		"request_id": requestID,
		"status":     appErr.StatusCode,
		"path":       r.URL.Path,
	}).WithError(appErr)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("Request error")
	} else {
		log.Debug("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(errors.NewErrorResponse(appErr, requestID))
}
