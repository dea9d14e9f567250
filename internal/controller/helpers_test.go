package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "balance",
			status:       http.StatusOK,
			payload:      BalanceResponse{Balance: "70.00"},
			expectedBody: `{"balance":"70.00"}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "bad request", Code: "validation_error"},
			expectedBody: `{"error":"bad request","code":"validation_error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("email", "must be a valid email address"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "validation_error", response.Code)
	assert.Equal(t, "email", response.Field)
	assert.Contains(t, response.Error, "email")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"invalid input", fmt.Errorf("parse: %w", domainErrors.ErrInvalidInput), http.StatusBadRequest, "validation_error"},
		{"invalid amount", domainErrors.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{"self transfer", domainErrors.ErrInvalidSelfTransfer, http.StatusBadRequest, "invalid_self_transfer"},
		{"conflict", domainErrors.ErrConflict, http.StatusConflict, "conflict"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"recipient not found", domainErrors.ErrRecipientNotFound, http.StatusNotFound, "recipient_not_found"},
		{"account not found", domainErrors.ErrAccountNotFound, http.StatusNotFound, "not_found"},
		{"insufficient funds", domainErrors.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"service unavailable", domainErrors.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{
			"transfer failed wrapping a timeout",
			fmt.Errorf("%w: %w", domainErrors.ErrTransferFailed, context.DeadlineExceeded),
			http.StatusServiceUnavailable,
			"transfer_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_TransientErrorsCarryRetryAfter(t *testing.T) {
	for _, err := range []error{domainErrors.ErrTransferFailed, domainErrors.ErrServiceUnavailable} {
		w := httptest.NewRecorder()
		writeError(w, err)
		assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"), err.Error())
	}

	w := httptest.NewRecorder()
	writeError(w, domainErrors.ErrInsufficientFunds)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteError_HidesWrappedDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("lock sender: %w", domainErrors.ErrInsufficientFunds))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, domainErrors.ErrInsufficientFunds.Error(), response.Error)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("unexpected error"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"name":"Ana","email":"ana@example.com","national_id":"529.982.247-25","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	var result RegisterRequest
	require.NoError(t, decodeAndValidate(httptest.NewRecorder(), req, &result))
	assert.Equal(t, "Ana", result.Name)
	assert.Equal(t, "529.982.247-25", result.NationalID)
}

func TestDecodeAndValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{"invalid json", `{invalid json}`, "body", "invalid JSON"},
		{"empty body", ``, "body", "invalid JSON"},
		{"missing name", `{"email":"ana@example.com","national_id":"52998224725","password":"secret1"}`, "name", "is required"},
		{"bad email", `{"name":"Ana","email":"nope","national_id":"52998224725","password":"secret1"}`, "email", "valid email"},
		{"bad cpf", `{"name":"Ana","email":"ana@example.com","national_id":"11111111111","password":"secret1"}`, "national_id", "valid CPF"},
		{"short password", `{"name":"Ana","email":"ana@example.com","national_id":"52998224725","password":"123"}`, "password", "at least 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))

			var result RegisterRequest
			err := decodeAndValidate(httptest.NewRecorder(), req, &result)

			var validationErr *domainErrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
			assert.Contains(t, validationErr.Message, tt.wantMsg)
		})
	}
}

func TestDecodeAndValidate_BodyTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte(body)))

	var result LoginRequest
	err := decodeAndValidate(httptest.NewRecorder(), req, &result)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
}
