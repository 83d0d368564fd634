package deposits

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/encorelive/backend/internal/blobstore"
	"github.com/encorelive/backend/internal/middleware"
	"github.com/encorelive/backend/internal/models"
)

// Handler serves the deposit endpoints: user intake and the admin
// verification surface.
type Handler struct {
	Svc    *Service
	Logger *slog.Logger
}

// --- POST /v1/deposits (multipart: metadata JSON + voucher file) ---

type submitMetadata struct {
	AmountCents       int64   `json:"amount_cents"`
	AccountHolderName string  `json:"account_holder_name"`
	AccountNumber     *string `json:"account_number,omitempty"`
	BankName          string  `json:"bank_name"`
	DepositDate       string  `json:"deposit_date"`
	DepositTime       *string `json:"deposit_time,omitempty"`
	ReferenceNumber   *string `json:"reference_number,omitempty"`
	Comments          *string `json:"comments,omitempty"`
}

// SubmitDeposit handles POST /v1/deposits.
func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, `{"error":"invalid multipart body"}`, http.StatusBadRequest)
		return
	}

	var meta submitMetadata
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		http.Error(w, `{"error":"invalid metadata JSON"}`, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("voucher")
	if err != nil {
		http.Error(w, `{"error":"voucher file is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()
	voucher, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, `{"error":"failed to read voucher"}`, http.StatusBadRequest)
		return
	}

	d, err := h.Svc.SubmitDeposit(r.Context(), u.ID, SubmitInput{
		AmountCents:       meta.AmountCents,
		AccountHolderName: meta.AccountHolderName,
		AccountNumber:     meta.AccountNumber,
		BankName:          meta.BankName,
		DepositDate:       meta.DepositDate,
		DepositTime:       meta.DepositTime,
		ReferenceNumber:   meta.ReferenceNumber,
		Comments:          meta.Comments,
		Voucher:           voucher,
		VoucherType:       header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		http.Error(w, `{"error":"deposit amount out of range"}`, http.StatusBadRequest)
	case errors.Is(err, ErrMissingRequiredField):
		http.Error(w, `{"error":"account holder, bank name, deposit date and voucher are required"}`, http.StatusBadRequest)
	case errors.Is(err, ErrVoucherTooLarge):
		http.Error(w, `{"error":"voucher file too large"}`, http.StatusBadRequest)
	case errors.Is(err, ErrVoucherType):
		http.Error(w, `{"error":"voucher must be jpeg, png or pdf"}`, http.StatusBadRequest)
	case errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, blobstore.ErrStorageUnavailable):
		http.Error(w, `{"error":"storage unavailable"}`, http.StatusServiceUnavailable)
	default:
		h.Logger.Error("submit deposit", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// --- GET /v1/deposits ---

// ListOwnDeposits handles GET /v1/deposits.
func (h *Handler) ListOwnDeposits(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Svc.ListByUser(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list deposits", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Deposit{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- GET /v1/deposits/{id}/voucher-url ---

// VoucherURL handles GET /v1/deposits/{id}/voucher-url. The owner and admins
// may view; the URL is freshly signed on every call.
func (h *Handler) VoucherURL(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid deposit id"}`, http.StatusBadRequest)
		return
	}

	d, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	if d.UserID != u.ID && u.Role != "admin" {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	url, err := h.Svc.VoucherURL(r.Context(), id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			http.Error(w, `{"error":"voucher blob missing"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("issue voucher url", "deposit_id", id, "error", err)
		http.Error(w, `{"error":"storage unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// --- admin: GET /v1/admin/deposits ---

// ListDeposits handles GET /v1/admin/deposits?status=pending.
func (h *Handler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.DepositStatusPending
	}
	switch status {
	case models.DepositStatusPending, models.DepositStatusApproved, models.DepositStatusRejected:
	default:
		http.Error(w, `{"error":"invalid status"}`, http.StatusBadRequest)
		return
	}
	list, err := h.Svc.ListByStatus(r.Context(), status)
	if err != nil {
		h.Logger.Error("list deposits by status", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Deposit{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- admin: GET /v1/admin/deposits/{id} ---

func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid deposit id"}`, http.StatusBadRequest)
		return
	}
	d, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- admin: GET /v1/admin/deposits/{id}/duplicates ---

// CheckDuplicates handles GET /v1/admin/deposits/{id}/duplicates, the
// advisory review surface for the verification step.
func (h *Handler) CheckDuplicates(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid deposit id"}`, http.StatusBadRequest)
		return
	}
	d, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	dupes, err := h.Svc.FindDuplicates(r.Context(), d)
	if err != nil {
		h.Logger.Error("check duplicates", "deposit_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if dupes == nil {
		dupes = []*models.Deposit{}
	}
	writeJSON(w, http.StatusOK, dupes)
}

// --- admin: POST /v1/admin/deposits/{id}/verify ---

type verifyRequest struct {
	Approved bool                      `json:"approved"`
	Notes    *string                   `json:"notes,omitempty"`
	Proof    *models.VerificationProof `json:"verification_data,omitempty"`
}

// VerifyDeposit handles POST /v1/admin/deposits/{id}/verify.
func (h *Handler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid deposit id"}`, http.StatusBadRequest)
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	err = h.Svc.Verify(r.Context(), id, admin.ID, req.Approved, req.Notes, req.Proof)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error":"deposit not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrAlreadyProcessed):
		http.Error(w, `{"error":"deposit already processed"}`, http.StatusConflict)
	case errors.Is(err, ErrMissingVerificationProof):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "bank deposit date and reference number are required to approve"})
	default:
		h.Logger.Error("verify deposit", "deposit_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error":"deposit not found"}`, http.StatusNotFound)
		return
	}
	h.Logger.Error("load deposit", "deposit_id", id, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
