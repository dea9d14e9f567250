package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 64 << 10

// retryAfterSeconds is sent with transfer_failed so clients back off before
// resubmitting with the same idempotency key.
const retryAfterSeconds = "1"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// national_id accepts punctuated input ("123.456.789-09")
	_ = v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return account.ValidateNationalID(account.NormalizeNationalID(fl.Field().String())) == nil
	})
	return v
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins, and transfer failures may wrap
// context or storage errors.
var errorMappings = []errorMapping{
	{domainErrors.ErrTransferFailed, http.StatusServiceUnavailable, "transfer_failed"},
	{domainErrors.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	{domainErrors.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domainErrors.ErrInvalidSelfTransfer, http.StatusBadRequest, "invalid_self_transfer"},
	{domainErrors.ErrConflict, http.StatusConflict, "conflict"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrRecipientNotFound, http.StatusNotFound, "recipient_not_found"},
	{domainErrors.ErrAccountNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: validationErr.Error(),
			Code:  "validation_error",
			Field: validationErr.Field,
		})
		return
	}
	if errors.Is(err, domainErrors.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_error"})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp := ErrorResponse{Error: m.err.Error(), Code: m.code}
			if m.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", retryAfterSeconds)
				log.Warn().Err(err).Str("code", m.code).Msg("request failed with transient error")
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "internal server error",
		Code:  "internal_error",
	})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), validationMessage(ve[0]))
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "national_id":
		return "must be a valid CPF"
	case "min":
		return "must have at least " + fe.Param() + " characters"
	case "max":
		return "must have at most " + fe.Param() + " characters"
	}
	return fe.Tag() + " validation failed"
}
