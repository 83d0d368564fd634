package withdrawals

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/middleware"
	"github.com/encorelive/backend/internal/models"
)

// Handler serves the withdrawal endpoints.
type Handler struct {
	Svc    *Service
	Logger *slog.Logger
}

type requestWithdrawalRequest struct {
	AmountCents   int64     `json:"amount_cents"`
	BankAccountID uuid.UUID `json:"bank_account_id"`
}

// RequestWithdrawal handles POST /v1/withdrawals.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req requestWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	wd, err := h.Svc.RequestWithdrawal(r.Context(), u.ID, req.AmountCents, req.BankAccountID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, wd)
	case errors.Is(err, ErrInvalidAmount):
		http.Error(w, `{"error":"withdrawal amount below minimum"}`, http.StatusBadRequest)
	case errors.Is(err, ErrBankAccountNotFound):
		http.Error(w, `{"error":"bank account not found"}`, http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
	default:
		h.Logger.Error("request withdrawal", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// ListOwnWithdrawals handles GET /v1/withdrawals.
func (h *Handler) ListOwnWithdrawals(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Svc.ListByUser(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list withdrawals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- admin: GET /v1/admin/withdrawals ---

// ListWithdrawals handles GET /v1/admin/withdrawals?status=pending.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.WithdrawalStatusPending
	}
	switch status {
	case models.WithdrawalStatusPending, models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected:
	default:
		http.Error(w, `{"error":"invalid status"}`, http.StatusBadRequest)
		return
	}
	list, err := h.Svc.ListByStatus(r.Context(), status)
	if err != nil {
		h.Logger.Error("list withdrawals by status", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- admin: POST /v1/admin/withdrawals/{id}/process ---

type processRequest struct {
	Approved bool    `json:"approved"`
	Notes    *string `json:"notes,omitempty"`
}

// ProcessWithdrawal handles POST /v1/admin/withdrawals/{id}/process.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	err = h.Svc.ProcessWithdrawal(r.Context(), id, admin.ID, req.Approved, req.Notes)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrAlreadyProcessed):
		http.Error(w, `{"error":"withdrawal already processed"}`, http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient balance at debit time"}`, http.StatusPaymentRequired)
	default:
		h.Logger.Error("process withdrawal", "withdrawal_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
