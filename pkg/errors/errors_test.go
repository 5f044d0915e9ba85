package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		typ    ErrorType
	}{
		{"validation", NewValidationError("bad", nil), http.StatusBadRequest, ErrorTypeValidation},
		{"authentication", NewAuthenticationError("who"), http.StatusUnauthorized, ErrorTypeAuthentication},
		{"authorization", NewAuthorizationError("no"), http.StatusForbidden, ErrorTypeAuthorization},
		{"not found", NewNotFoundError("gone"), http.StatusNotFound, ErrorTypeNotFound},
		{"conflict", NewConflictError("state", nil), http.StatusConflict, ErrorTypeConflict},
		{"unprocessable", NewUnprocessableError("weight", nil), http.StatusUnprocessableEntity, ErrorTypeUnprocessable},
		{"internal", NewInternalError("oops", nil), http.StatusInternalServerError, ErrorTypeInternal},
		{"unavailable", NewUnavailableError("off"), http.StatusServiceUnavailable, ErrorTypeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.typ, tt.err.Type)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewInternalError("failed to save", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal: failed to save (connection reset)", err.Error())
	assert.Equal(t, "not_found: missing", NewNotFoundError("missing").Error())
}

func TestNewErrorResponse(t *testing.T) {
	err := NewConflictError("already voted", map[string]interface{}{"code": "already_voted"})
	resp := NewErrorResponse(err, "req-1")

	assert.Equal(t, ErrorTypeConflict, resp.Error.Type)
	assert.Equal(t, "already voted", resp.Error.Message)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "already_voted", resp.Error.Details["code"])
	assert.NotEmpty(t, resp.Error.Timestamp)
}
