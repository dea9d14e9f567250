package controller

import (
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/middleware"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/google/uuid"
)

const replayedHeader = "Idempotent-Replayed"

type TransferController struct {
	ledgerService  *service.LedgerService
	historyService *service.HistoryService
}

func NewTransferController(ledgerService *service.LedgerService, historyService *service.HistoryService) *TransferController {
	return &TransferController{
		ledgerService:  ledgerService,
		historyService: historyService,
	}
}

// Transfer answers 201 for a new commit and 200 when the idempotency key
// replays an earlier one.
func (h *TransferController) Transfer(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req TransferRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	// a key in the body wins over the header or the per-request nonce
	key := req.IdempotencyKey
	if key == "" {
		key = middleware.IdempotencyKey(r.Context())
	}

	res, err := h.ledgerService.Transfer(r.Context(), service.TransferRequest{
		CallerID:            callerID,
		RecipientIdentifier: req.RecipientIdentifier,
		Amount:              req.Amount,
		Description:         req.Description,
		IdempotencyKey:      key,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
		w.Header().Set(replayedHeader, "true")
	}
	writeJSON(w, status, FromTransferResult(res, callerID))
}

// Transactions lists the caller's history newest first. Query parameters:
// limit, offset and before (a transaction id cursor). Offsets count from the
// newest entry, so a commit between requests shifts offset pages; clients
// that need a stable prefix page with before=next_before instead.
func (h *TransferController) Transactions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	txns, err := h.historyService.List(r.Context(), callerID, page)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := HistoryResponse{Transactions: make([]TransactionResponse, 0, len(txns))}
	for _, tx := range txns {
		resp.Transactions = append(resp.Transactions, FromTransaction(tx, callerID))
	}
	if len(txns) > 0 {
		resp.NextBefore = txns[len(txns)-1].ID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parsePage(r *http.Request) (ledger.Page, error) {
	q := r.URL.Query()
	var page ledger.Page

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, domainErrors.NewValidationError("limit", "must be an integer")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, domainErrors.NewValidationError("offset", "must be an integer")
		}
		page.Offset = n
	}
	if v := q.Get("before"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return page, domainErrors.NewValidationError("before", "must be a transaction id")
		}
		page.Before = &id
	}
	return page, nil
}
