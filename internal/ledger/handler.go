package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/encorelive/backend/internal/middleware"
	"github.com/encorelive/backend/internal/models"
)

// Handler serves the balance endpoints.
type Handler struct {
	Svc    Service
	Logger *slog.Logger
}

// GetBalance handles GET /v1/balance. Users with no ledger activity yet get
// a zero balance, not a 404.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	b, err := h.Svc.GetBalance(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("get balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListEntries handles GET /v1/balance/history.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Svc.ListEntries(r.Context(), u.ID, limit)
	if err != nil {
		h.Logger.Error("list ledger entries", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
