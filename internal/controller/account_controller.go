package controller

import (
	"net/http"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/middleware"
	"github.com/cassiomorais/wallet/internal/service"
)

type AccountController struct {
	accountService *service.AccountService
}

func NewAccountController(accountService *service.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

func (h *AccountController) Profile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	acct, err := h.accountService.GetProfile(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromAccount(acct))
}

func (h *AccountController) Balance(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	balance, err := h.accountService.GetBalance(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Balance: ledger.Format(balance)})
}

// Search suggests transfer recipients by partial name, email or national id.
func (h *AccountController) Search(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	hits, err := h.accountService.Search(r.Context(), callerID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]SearchResult, 0, len(hits))
	for _, a := range hits {
		resp = append(resp, FromSearchHit(a))
	}
	writeJSON(w, http.StatusOK, resp)
}
