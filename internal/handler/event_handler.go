package handler

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"relief-dao/internal/domain"
	"relief-dao/internal/middleware"
	"relief-dao/internal/service"
	"relief-dao/pkg/errors"
	"relief-dao/pkg/logger"
	"relief-dao/pkg/wallet"
)

// IdempotencyHeader lets clients make retries of mutating requests safe
const IdempotencyHeader = "Idempotency-Key"

// EventHandler serves the event unit API
type EventHandler struct {
	events *service.EventService
	logger *logger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *service.EventService, logger *logger.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// OutcomeResponse reports whether the election has concluded and, if so, how
type OutcomeResponse struct {
	Concluded bool            `json:"concluded"`
	Outcome   *domain.Outcome `json:"outcome,omitempty"`
}

// RegisterRoutes mounts the unit routes. requireAuth guards the routes acting
// on behalf of a wallet.
func (h *EventHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/units", func(r chi.Router) {
		r.Get("/", h.ListUnits)
		r.With(requireAuth).Post("/", h.CreateUnit)

		r.Route("/{unitID}", func(r chi.Router) {
			r.Get("/", h.GetUnit)
			r.Get("/volunteers", h.ListVolunteers)
			r.Get("/donors", h.ListDonors)
			r.Get("/donors/{address}", h.GetDonor)
			r.Get("/outcome", h.GetOutcome)
			r.Get("/receipts", h.ListReceipts)

			// Settlement steps are permissionless
			r.Post("/conclude", h.ConcludeElection)
			r.Post("/distribute", h.DistributeFunds)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/donations", h.Donate)
				r.Post("/volunteers", h.RegisterVolunteer)
				r.Post("/volunteers/{index}/approve", h.ApproveVolunteer)
				r.Post("/votes", h.Vote)
				r.Post("/refunds", h.ClaimRefund)
			})
		})
	})
}

// ListUnits handles GET /api/v1/units
func (h *EventHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.events.ListUnits(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, units)
}

// CreateUnit handles POST /api/v1/units
func (h *EventHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.CreateUnitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if !h.claimIdempotency(w, r, admin) {
		return
	}

	summary, err := h.events.CreateUnit(r.Context(), admin, req)
	if err != nil {
		h.releaseIdempotency(r, admin, err)
		respondError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Location", "/api/v1/units/"+summary.ID.String())
	respondData(w, http.StatusCreated, summary)
}

// GetUnit handles GET /api/v1/units/{unitID}
func (h *EventHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}

	summary, err := h.events.GetUnit(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	etag := generateETag(summary)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	respondData(w, http.StatusOK, summary)
}

// ListVolunteers handles GET /api/v1/units/{unitID}/volunteers
func (h *EventHandler) ListVolunteers(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	volunteers, err := h.events.ListVolunteers(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, volunteers)
}

// ListDonors handles GET /api/v1/units/{unitID}/donors
func (h *EventHandler) ListDonors(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	donors, err := h.events.ListDonors(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, donors)
}

// GetDonor handles GET /api/v1/units/{unitID}/donors/{address}
func (h *EventHandler) GetDonor(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	address, err := wallet.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		respondError(w, r, errors.NewValidationError("Invalid wallet address", nil), h.logger)
		return
	}

	donor, err := h.events.GetDonor(r.Context(), unitID, address)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, donor)
}

// GetOutcome handles GET /api/v1/units/{unitID}/outcome
func (h *EventHandler) GetOutcome(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	out, concluded, err := h.events.GetOutcome(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, OutcomeResponse{Concluded: concluded, Outcome: out})
}

// ListReceipts handles GET /api/v1/units/{unitID}/receipts
func (h *EventHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	receipts, err := h.events.ListReceipts(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, receipts)
}

// Donate handles POST /api/v1/units/{unitID}/donations
func (h *EventHandler) Donate(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.DonationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	ctx := r.Context()
	amount, err := h.events.ParseAmount(ctx, unitID, req.Amount)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if !h.claimIdempotency(w, r, identity) {
		return
	}

	donor, err := h.events.Donate(ctx, unitID, identity, amount)
	if err != nil {
		h.releaseIdempotency(r, identity, err)
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, donor)
}

// RegisterVolunteer handles POST /api/v1/units/{unitID}/volunteers
func (h *EventHandler) RegisterVolunteer(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.VolunteerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if !h.claimIdempotency(w, r, identity) {
		return
	}

	volunteer, err := h.events.RegisterVolunteer(r.Context(), unitID, identity, req)
	if err != nil {
		h.releaseIdempotency(r, identity, err)
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusCreated, volunteer)
}

// ApproveVolunteer handles POST /api/v1/units/{unitID}/volunteers/{index}/approve
func (h *EventHandler) ApproveVolunteer(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondError(w, r, errors.NewValidationError("Volunteer index must be a non-negative integer", nil), h.logger)
		return
	}

	volunteer, err := h.events.ApproveVolunteer(r.Context(), unitID, caller, index)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, volunteer)
}

// Vote handles POST /api/v1/units/{unitID}/votes
func (h *EventHandler) Vote(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if !h.claimIdempotency(w, r, identity) {
		return
	}

	donor, err := h.events.Vote(r.Context(), unitID, identity, req.VolunteerIndex)
	if err != nil {
		h.releaseIdempotency(r, identity, err)
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, donor)
}

// ClaimRefund handles POST /api/v1/units/{unitID}/refunds
func (h *EventHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	receipt, err := h.events.ClaimRefund(r.Context(), unitID, identity)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, receipt)
}

// ConcludeElection handles POST /api/v1/units/{unitID}/conclude
func (h *EventHandler) ConcludeElection(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	out, err := h.events.ConcludeElection(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, out)
}

// DistributeFunds handles POST /api/v1/units/{unitID}/distribute
func (h *EventHandler) DistributeFunds(w http.ResponseWriter, r *http.Request) {
	unitID, ok := h.unitID(w, r)
	if !ok {
		return
	}
	receipt, err := h.events.DistributeFunds(r.Context(), unitID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, receipt)
}

// Helper methods

func (h *EventHandler) unitID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "unitID"))
	if err != nil {
		respondError(w, r, errors.NewValidationError("Invalid unit ID", nil), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *EventHandler) identity(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, r, errors.NewAuthenticationError("Authentication required"), h.logger)
		return common.Address{}, false
	}
	return identity, true
}

// claimIdempotency rejects a replayed Idempotency-Key with 409
func (h *EventHandler) claimIdempotency(w http.ResponseWriter, r *http.Request, identity common.Address) bool {
	key := r.Header.Get(IdempotencyHeader)
	if len(key) > 128 {
		respondError(w, r, errors.NewValidationError("Idempotency-Key is too long", nil), h.logger)
		return false
	}
	if !h.events.TryIdempotencyLock(r.Context(), identity, key) {
		respondError(w, r, errors.NewConflictError("Duplicate request", map[string]interface{}{
			"idempotency_key": key,
		}), h.logger)
		return false
	}
	return true
}

// releaseIdempotency frees the claimed key when the request failed for a
// reason other than an engine rejection, so the same key can be retried
func (h *EventHandler) releaseIdempotency(r *http.Request, identity common.Address, err error) {
	if _, ok := domain.KindOf(err); ok {
		return
	}
	h.events.ReleaseIdempotencyLock(r.Context(), identity, r.Header.Get(IdempotencyHeader))
}
