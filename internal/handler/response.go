package handler

import (
	"crypto/sha256"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"relief-dao/internal/domain"
	"relief-dao/internal/middleware"
	"relief-dao/pkg/errors"
	"relief-dao/pkg/logger"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a unit description
const maxBodyBytes = 64 << 10

// Response is the envelope for successful responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, Response{Success: true, Data: data})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError translates engine and service errors into the JSON error body
func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	middleware.WriteError(w, r, toAppError(err), log)
}

func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var domErr *domain.Error
	if !stderrors.As(err, &domErr) {
		return errors.NewInternalError("Internal server error", err)
	}

	details := map[string]interface{}{
		"code": domErr.Code,
		"kind": string(domErr.Kind),
	}
	switch domErr.Kind {
	case domain.KindInvalidAmount, domain.KindInvalidInput:
		return errors.NewValidationError(domErr.Message, details)
	case domain.KindUnauthorized:
		appErr := errors.NewAuthorizationError(domErr.Message)
		appErr.Details = details
		return appErr
	case domain.KindNotFound:
		appErr := errors.NewNotFoundError(domErr.Message)
		appErr.Details = details
		return appErr
	case domain.KindNoVotingPower:
		return errors.NewUnprocessableError(domErr.Message, details)
	default:
		// phase, role conflict, invalid state and settlement path
		return errors.NewConflictError(domErr.Message, details)
	}
}

// decodeJSON reads a bounded JSON body and rejects unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return nil
}

func generateETag(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf(`"%x"`, hash[:16])
}
