package controller

import (
	"net/http"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/middleware"
	"github.com/cassiomorais/wallet/internal/service"
)

type AuthController struct {
	accountService *service.AccountService
	authService    *service.AuthService
}

func NewAuthController(accountService *service.AccountService, authService *service.AuthService) *AuthController {
	return &AuthController{
		accountService: accountService,
		authService:    authService,
	}
}

// Register creates the account, credits the signup bonus and signs the
// caller in.
func (h *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	acct, err := h.accountService.Register(r.Context(), service.RegisterRequest{
		Name:       req.Name,
		Email:      req.Email,
		NationalID: req.NationalID,
		Password:   req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	issued, err := h.authService.Issue(r.Context(), acct)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromSession(issued))
}

func (h *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	issued, err := h.authService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromSession(issued))
}

func (h *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.SessionToken(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}
	if err := h.authService.Revoke(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
