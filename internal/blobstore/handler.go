package blobstore

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Handler serves the signed URLs DiskStore issues: GET /vouchers/{key}?exp&sig.
// It is the read side of the presign contract; an expired or tampered URL
// gets 403, never the bytes.
type Handler struct {
	store *DiskStore
	log   *slog.Logger
}

func NewHandler(store *DiskStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, log: log}
}

func (h *Handler) ServeVoucher(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid signature"}`, http.StatusForbidden)
		return
	}
	sig := r.URL.Query().Get("sig")
	if !h.store.Verify(key, exp, sig) {
		http.Error(w, `{"error":"expired or invalid signature"}`, http.StatusForbidden)
		return
	}

	f, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("open voucher blob", "key", key, "error", err)
		http.Error(w, `{"error":"storage unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = io.Copy(w, f)
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
