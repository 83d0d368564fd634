package blobstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob key does not address any stored bytes.
var ErrNotFound = errors.New("blob not found")

// ErrStorageUnavailable is returned on transport errors to the object store.
var ErrStorageUnavailable = errors.New("object storage unavailable")

const (
	// DefaultTTL is used when a caller asks for a signed URL without a TTL.
	DefaultTTL = 3600 * time.Second

	minTTL = 60 * time.Second
	maxTTL = 86400 * time.Second

	// presignTimeout bounds the hot display path.
	presignTimeout = 3 * time.Second
)

// HeadInfo describes a stored blob without fetching its bytes.
type HeadInfo struct {
	Exists       bool
	Size         int64
	LastModified time.Time
}

// ObjectStore is the object-storage collaborator. Implementations must treat
// keys as opaque and never hand out permanently-valid URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Head(ctx context.Context, key string) (HeadInfo, error)
}

// Service stores voucher blobs and issues fresh time-bound URLs for them.
// It performs no caching across calls: every request signs anew, so a leaked
// URL self-invalidates when its expiry passes.
type Service struct {
	store ObjectStore
}

func NewService(store ObjectStore) *Service {
	return &Service{store: store}
}

// Store writes the bytes under a fresh opaque key and returns the key. The
// key, not a URL, is what gets persisted alongside the deposit.
func (s *Service) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	key := uuid.New().String() + extensionFor(contentType)
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// IssueSignedURL returns a URL valid for ttl (clamped to [1m, 24h], default
// 1h). It first confirms the blob still exists so a dangling key surfaces as
// ErrNotFound rather than a broken link. A transient Head failure gets one
// transparent retry within the presign timeout.
func (s *Service) IssueSignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}

	ctx, cancel := context.WithTimeout(ctx, presignTimeout)
	defer cancel()

	info, err := s.store.Head(ctx, key)
	if err != nil && ctx.Err() == nil {
		info, err = s.store.Head(ctx, key)
	}
	if err != nil {
		return "", err
	}
	if !info.Exists {
		return "", ErrNotFound
	}
	return s.store.Presign(ctx, key, ttl)
}

// Head reports whether a blob is still reachable, with one transparent retry
// on transient failure.
func (s *Service) Head(ctx context.Context, key string) (HeadInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, presignTimeout)
	defer cancel()
	info, err := s.store.Head(ctx, key)
	if err != nil && ctx.Err() == nil {
		info, err = s.store.Head(ctx, key)
	}
	return info, err
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
