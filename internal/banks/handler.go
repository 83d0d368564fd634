package banks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/encorelive/backend/internal/middleware"
	"github.com/encorelive/backend/internal/models"
)

// Repo is the subset of the repository the handler needs.
type Repo interface {
	Create(ctx context.Context, a *models.BankAccount) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.BankAccount, error)
}

type Handler struct {
	Repo   Repo
	Logger *slog.Logger
}

type createBankAccountRequest struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	IsDefault     bool   `json:"is_default"`
}

// CreateBankAccount handles POST /v1/bank-accounts.
func (h *Handler) CreateBankAccount(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AccountHolder) == "" || strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.BankName) == "" {
		http.Error(w, `{"error":"account_holder, account_number and bank_name are required"}`, http.StatusBadRequest)
		return
	}

	a := &models.BankAccount{
		ID:            uuid.New(),
		UserID:        u.ID,
		AccountHolder: req.AccountHolder,
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		IsDefault:     req.IsDefault,
	}
	if err := h.Repo.Create(r.Context(), a); err != nil {
		h.Logger.Error("create bank account", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(a)
}

// ListBankAccounts handles GET /v1/bank-accounts.
func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Repo.ListByUser(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list bank accounts", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.BankAccount{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
