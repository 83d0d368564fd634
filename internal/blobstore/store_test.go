package blobstore

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080", []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return store
}

// ---------------------------------------------------------------------------
// 1. Store then issue: the URL is signed, time-bound, and verifiable.
// ---------------------------------------------------------------------------

func TestStoreAndIssueSignedURL(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	key, err := svc.Store(ctx, []byte("voucher bytes"), "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key should carry the content-type extension: %q", key)
	}

	signed, err := svc.IssueSignedURL(ctx, key, 0)
	if err != nil {
		t.Fatalf("IssueSignedURL: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if u.Query().Get("exp") == "" || u.Query().Get("sig") == "" {
		t.Errorf("signed url missing exp/sig: %s", signed)
	}

	// Head confirms the blob is reachable.
	info, err := svc.Head(ctx, key)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if !info.Exists || info.Size != int64(len("voucher bytes")) {
		t.Errorf("head info wrong: %+v", info)
	}
}

// ---------------------------------------------------------------------------
// 2. Unknown key fails with ErrNotFound.
// ---------------------------------------------------------------------------

func TestIssueSignedURLNotFound(t *testing.T) {
	svc := NewService(newTestStore(t))

	_, err := svc.IssueSignedURL(context.Background(), "nope.png", time.Minute)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 3. URLs issued an hour apart differ, and the first one's signature is dead
//    after its TTL passes — no stale signature survives expiry.
// ---------------------------------------------------------------------------

func TestSignedURLExpiry(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	key, err := svc.Store(ctx, []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	now := time.Now()
	store.now = func() time.Time { return now }
	first, err := svc.IssueSignedURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("first IssueSignedURL: %v", err)
	}

	store.now = func() time.Time { return now.Add(time.Hour + time.Minute) }
	second, err := svc.IssueSignedURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("second IssueSignedURL: %v", err)
	}
	if first == second {
		t.Error("urls issued an hour apart must differ")
	}

	// The first URL no longer verifies.
	u, _ := url.Parse(first)
	expUnix, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("parse exp: %v", err)
	}
	if store.Verify(key, expUnix, u.Query().Get("sig")) {
		t.Error("expired signature must not verify")
	}
}

// ---------------------------------------------------------------------------
// 4. Tampered key or expiry breaks the signature.
// ---------------------------------------------------------------------------

func TestSignatureTamperResistance(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	key, _ := svc.Store(ctx, []byte("x"), "image/png")
	signed, _ := svc.IssueSignedURL(ctx, key, time.Hour)
	u, _ := url.Parse(signed)

	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("parse exp: %v", err)
	}
	sig := u.Query().Get("sig")

	if store.Verify("other.png", exp, sig) {
		t.Error("signature must be bound to the key")
	}
	if store.Verify(key, exp+9999, sig) {
		t.Error("signature must be bound to the expiry")
	}
	if !store.Verify(key, exp, sig) {
		t.Error("untampered signature must verify")
	}
}

// ---------------------------------------------------------------------------
// 5. The existence check behind IssueSignedURL absorbs one transient store
//    failure; a second consecutive failure surfaces.
// ---------------------------------------------------------------------------

// flakyStore fails the next n Head calls.
type flakyStore struct {
	ObjectStore
	headFailures int
}

func (f *flakyStore) Head(ctx context.Context, key string) (HeadInfo, error) {
	if f.headFailures > 0 {
		f.headFailures--
		return HeadInfo{}, ErrStorageUnavailable
	}
	return f.ObjectStore.Head(ctx, key)
}

func TestIssueSignedURLHeadRetry(t *testing.T) {
	disk := newTestStore(t)
	flaky := &flakyStore{ObjectStore: disk}
	svc := NewService(flaky)
	ctx := context.Background()

	key, err := svc.Store(ctx, []byte("voucher bytes"), "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	flaky.headFailures = 1
	if _, err := svc.IssueSignedURL(ctx, key, time.Minute); err != nil {
		t.Fatalf("issue with one transient failure: %v", err)
	}

	flaky.headFailures = 2
	if _, err := svc.IssueSignedURL(ctx, key, time.Minute); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("issue with two consecutive failures: got %v, want ErrStorageUnavailable", err)
	}
}
