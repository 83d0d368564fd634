package payments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/encorelive/backend/internal/auth"
	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/middleware"
)

// Handler serves the event settlement endpoint.
type Handler struct {
	Svc    *Service
	Logger *slog.Logger
}

type payRequest struct {
	MusicianID  uuid.UUID `json:"musician_id"`
	AmountCents int64     `json:"amount_cents"`
}

// PayEvent handles POST /v1/events/{id}/pay. Only organizers pay out; the
// authenticated caller is the paying party.
func (h *Handler) PayEvent(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if u.Role != auth.RoleOrganizer && u.Role != auth.RoleAdmin {
		http.Error(w, `{"error":"only organizers can pay for events"}`, http.StatusForbidden)
		return
	}
	eventID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid event id"}`, http.StatusBadRequest)
		return
	}
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	p, err := h.Svc.PayMusicianForEvent(r.Context(), eventID, u.ID, req.MusicianID, req.AmountCents)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, p)
	case errors.Is(err, ErrInvalidAmount):
		http.Error(w, `{"error":"payment amount must be positive"}`, http.StatusBadRequest)
	case errors.Is(err, ErrSameParty):
		http.Error(w, `{"error":"organizer and musician must differ"}`, http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
	case errors.Is(err, ErrPaymentFailed):
		http.Error(w, `{"error":"payment failed, funds restored"}`, http.StatusBadGateway)
	default:
		h.Logger.Error("pay event", "event_id", eventID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
