package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"relief-dao/internal/domain"
	"relief-dao/internal/middleware"
	"relief-dao/internal/service"
	"relief-dao/pkg/errors"
	"relief-dao/pkg/logger"
)

// AuthHandler handles wallet sign-in requests
type AuthHandler struct {
	auth   service.AuthService
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth service.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// RegisterRoutes mounts the sign-in routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/challenge", h.Challenge)
		r.Post("/verify", h.Verify)
		r.With(requireAuth).Get("/me", h.Me)
	})
}

// Challenge handles POST /api/v1/auth/challenge
func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req domain.ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	challenge, err := h.auth.IssueChallenge(r.Context(), req.Address)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, challenge)
}

// Verify handles POST /api/v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.Signature == "" {
		respondError(w, r, errors.NewValidationError("Signature is required", nil), h.logger)
		return
	}

	session, err := h.auth.VerifyChallenge(r.Context(), req.Address, req.Signature)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, session)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*domain.AuthClaims)
	if !ok || claims == nil {
		respondError(w, r, errors.NewAuthenticationError("User not authenticated"), h.logger)
		return
	}
	respondData(w, http.StatusOK, claims)
}
