package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/encorelive/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory Repo mock. ApplyDelta emulates the SQL contract: the check and
// the write happen under one lock, and a failed debit writes nothing.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockRepo struct {
	mu          sync.Mutex
	balances    map[uuid.UUID]int64
	entries     []*models.LedgerEntry
	getFailures int
}

func newMockRepo() *mockRepo {
	return &mockRepo{balances: make(map[uuid.UUID]int64)}
}

func (m *mockRepo) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockRepo) EnsureBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return nil
}

func (m *mockRepo) ApplyDelta(_ context.Context, _ pgx.Tx, userID uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID]+delta < 0 {
		return 0, errInsufficientBalance
	}
	m.balances[userID] += delta
	return m.balances[userID], nil
}

func (m *mockRepo) RecordEntry(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockRepo) GetBalance(_ context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getFailures > 0 {
		m.getFailures--
		return nil, errors.New("connection reset by peer")
	}
	return &models.UserBalance{UserID: userID, AvailableCents: m.balances[userID], Currency: "MXN"}, nil
}

func (m *mockRepo) ListEntries(_ context.Context, userID uuid.UUID, _ int) ([]*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepo) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *mockRepo) setGetFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getFailures = n
}

// ---------------------------------------------------------------------------
// 1. Credit then debit, with audit trail.
// ---------------------------------------------------------------------------

func TestAdjustCreditAndDebit(t *testing.T) {
	user := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	got, err := svc.Adjust(ctx, user, 5000, models.LedgerReasonDepositApproved, nil)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got != 5000 {
		t.Errorf("balance after credit: got %d, want 5000", got)
	}

	got, err = svc.Adjust(ctx, user, -2000, models.LedgerReasonWithdrawal, nil)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got != 3000 {
		t.Errorf("balance after debit: got %d, want 3000", got)
	}

	entries, _ := svc.ListEntries(ctx, user, 10)
	if len(entries) != 2 {
		t.Fatalf("ledger entries: got %d, want 2", len(entries))
	}
	if entries[0].BalanceAfterCents != 5000 || entries[1].BalanceAfterCents != 3000 {
		t.Errorf("balance_after trail wrong: %d, %d", entries[0].BalanceAfterCents, entries[1].BalanceAfterCents)
	}
}

// ---------------------------------------------------------------------------
// 2. A debit past zero fails with ErrInsufficientBalance and writes nothing.
// ---------------------------------------------------------------------------

func TestAdjustInsufficientBalance(t *testing.T) {
	user := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, user, 150, models.LedgerReasonDepositApproved, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	_, err := svc.Adjust(ctx, user, -200, models.LedgerReasonWithdrawal, nil)
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
	}
	if got := repo.balance(user); got != 150 {
		t.Errorf("balance must be untouched after failed debit: got %d, want 150", got)
	}

	// No audit entry for the failed debit.
	entries, _ := svc.ListEntries(ctx, user, 10)
	if len(entries) != 1 {
		t.Errorf("ledger entries after failed debit: got %d, want 1", len(entries))
	}
}

// ---------------------------------------------------------------------------
// 3. Concurrent adjusts against one user serialize: no lost updates, and the
//    balance never goes negative no matter how debits interleave.
// ---------------------------------------------------------------------------

func TestAdjustConcurrentNoLostUpdates(t *testing.T) {
	user := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := svc.Adjust(ctx, user, 10, "test_credit", nil); err != nil {
					t.Errorf("concurrent credit: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	want := int64(workers * perWorker * 10)
	if got := repo.balance(user); got != want {
		t.Errorf("lost updates: got %d, want %d", got, want)
	}

	// Concurrent debits that collectively exceed the balance: some fail,
	// none drive the balance negative.
	var debits sync.WaitGroup
	for i := 0; i < workers; i++ {
		debits.Add(1)
		go func() {
			defer debits.Done()
			_, _ = svc.Adjust(ctx, user, -want/2, "test_debit", nil)
		}()
	}
	debits.Wait()

	if got := repo.balance(user); got < 0 {
		t.Errorf("balance went negative: %d", got)
	}
}

// ---------------------------------------------------------------------------
// 4. Balance reads absorb one transient failure; a second consecutive
//    failure surfaces.
// ---------------------------------------------------------------------------

func TestGetBalanceReadRetry(t *testing.T) {
	user := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, user, 1000, models.LedgerReasonDepositApproved, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	repo.setGetFailures(1)
	b, err := svc.GetBalance(ctx, user)
	if err != nil {
		t.Fatalf("get with one transient failure: %v", err)
	}
	if b.AvailableCents != 1000 {
		t.Errorf("balance: got %d, want 1000", b.AvailableCents)
	}

	repo.setGetFailures(2)
	if _, err := svc.GetBalance(ctx, user); err == nil {
		t.Fatal("get with two consecutive failures: want error, got nil")
	}
}
