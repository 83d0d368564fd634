package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/encorelive/backend/internal/deposits"
	"github.com/encorelive/backend/internal/payments"
	"github.com/encorelive/backend/internal/withdrawals"
)

// DepositStats, WithdrawalStats and PaymentStats are satisfied by the
// corresponding *Repository types.
type DepositStats interface {
	Stats(ctx context.Context) (*deposits.Stats, error)
}

type WithdrawalStats interface {
	Stats(ctx context.Context) (*withdrawals.Stats, error)
}

type PaymentStats interface {
	Stats(ctx context.Context) (*payments.Stats, error)
}

// Handler serves the admin overview.
type Handler struct {
	Deposits    DepositStats
	Withdrawals WithdrawalStats
	Payments    PaymentStats
	Logger      *slog.Logger
}

type statsResponse struct {
	Deposits    *deposits.Stats    `json:"deposits"`
	Withdrawals *withdrawals.Stats `json:"withdrawals"`
	Payments    *payments.Stats    `json:"payments"`
}

// GetStats handles GET /v1/admin/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ds, err := h.Deposits.Stats(ctx)
	if err != nil {
		h.fail(w, "deposit stats", err)
		return
	}
	ws, err := h.Withdrawals.Stats(ctx)
	if err != nil {
		h.fail(w, "withdrawal stats", err)
		return
	}
	ps, err := h.Payments.Stats(ctx)
	if err != nil {
		h.fail(w, "payment stats", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(statsResponse{Deposits: ds, Withdrawals: ws, Payments: ps})
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.Logger.Error(what, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
