package withdrawals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/models"
	"github.com/encorelive/backend/internal/notify"
)

// ---------------------------------------------------------------------------
// Mocks. TransitionIfPending is a compare-and-set on status under one lock,
// matching the guarded UPDATE it stands in for.
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

// rollbackTx reverts the status flip it performed if it is rolled back
// uncommitted, emulating the transactional coupling of the status write and
// the ledger debit. All fields are guarded by the repo lock.
type rollbackTx struct {
	noopTx
	repo      *mockRepo
	id        uuid.UUID
	flipped   bool
	committed bool
}

func (tx *rollbackTx) Rollback(context.Context) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if !tx.flipped || tx.committed {
		return nil
	}
	if wd, ok := tx.repo.withdrawals[tx.id]; ok {
		wd.Status = models.WithdrawalStatusPending
		wd.ProcessedBy = nil
		wd.ProcessedAt = nil
		wd.Notes = nil
	}
	return nil
}

func (tx *rollbackTx) Commit(context.Context) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.committed = true
	return nil
}

type mockRepo struct {
	mu          sync.Mutex
	withdrawals map[uuid.UUID]*models.Withdrawal
}

func newMockRepo() *mockRepo {
	return &mockRepo{withdrawals: make(map[uuid.UUID]*models.Withdrawal)}
}

func (m *mockRepo) Begin(context.Context) (pgx.Tx, error) {
	return &rollbackTx{repo: m}, nil
}

func (m *mockRepo) Create(_ context.Context, wd *models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd.CreatedAt = time.Now()
	cp := *wd
	m.withdrawals[wd.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *wd
	return &cp, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Withdrawal
	for _, wd := range m.withdrawals {
		if wd.UserID == userID {
			cp := *wd
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status string) ([]*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Withdrawal
	for _, wd := range m.withdrawals {
		if wd.Status == status {
			cp := *wd
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) TransitionIfPending(_ context.Context, tx pgx.Tx, id uuid.UUID, status string, adminID uuid.UUID, notes *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[id]
	if !ok || wd.Status != models.WithdrawalStatusPending {
		return false, nil
	}
	now := time.Now()
	wd.Status = status
	wd.ProcessedBy = &adminID
	wd.ProcessedAt = &now
	wd.Notes = notes
	if rtx, ok := tx.(*rollbackTx); ok {
		rtx.id = id
		rtx.flipped = true
	}
	return true, nil
}

func (m *mockRepo) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withdrawals[id].Status
}

type mockBanks struct {
	owned map[uuid.UUID]uuid.UUID // account id -> owner
}

func (m *mockBanks) GetOwned(_ context.Context, id, userID uuid.UUID) (*models.BankAccount, error) {
	if m.owned[id] != userID {
		return nil, errors.New("bank account not found")
	}
	return &models.BankAccount{ID: id, UserID: userID}, nil
}

// mockLedger enforces the non-negative invariant under one lock.
type mockLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[uuid.UUID]int64)}
}

func (m *mockLedger) Adjust(ctx context.Context, userID uuid.UUID, delta int64, reason string, refID *uuid.UUID) (int64, error) {
	return m.AdjustTx(ctx, nil, userID, delta, reason, refID)
}

func (m *mockLedger) AdjustTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, delta int64, _ string, _ *uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID]+delta < 0 {
		return 0, ledger.ErrInsufficientBalance
	}
	m.balances[userID] += delta
	return m.balances[userID], nil
}

func (m *mockLedger) GetBalance(_ context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.UserBalance{UserID: userID, AvailableCents: m.balances[userID], Currency: "MXN"}, nil
}

func (m *mockLedger) ListEntries(context.Context, uuid.UUID, int) ([]*models.LedgerEntry, error) {
	return nil, nil
}

func (m *mockLedger) set(userID uuid.UUID, cents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = cents
}

func (m *mockLedger) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func strPtr(s string) *string { return &s }

func newTestService(user, account uuid.UUID) (*Service, *mockRepo, *mockLedger) {
	repo := newMockRepo()
	led := newMockLedger()
	banks := &mockBanks{owned: map[uuid.UUID]uuid.UUID{account: user}}
	svc := NewService(repo, banks, led, notify.Noop{}, DefaultConfig(), nil)
	return svc, repo, led
}

// ---------------------------------------------------------------------------
// 1. Request validation: minimum amount, account ownership, optimistic
//    balance check.
// ---------------------------------------------------------------------------

func TestRequestWithdrawal(t *testing.T) {
	user, account := uuid.New(), uuid.New()
	svc, _, led := newTestService(user, account)
	ctx := context.Background()
	led.set(user, 10_000)

	if _, err := svc.RequestWithdrawal(ctx, user, 500, account); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("below minimum: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, user, 5_000, uuid.New()); !errors.Is(err, ErrBankAccountNotFound) {
		t.Errorf("unknown account: got %v, want ErrBankAccountNotFound", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, user, 20_000, account); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("over balance: got %v, want ErrInsufficientBalance", err)
	}

	wd, err := svc.RequestWithdrawal(ctx, user, 5_000, account)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if wd.Status != models.WithdrawalStatusPending {
		t.Errorf("status: got %q, want pending", wd.Status)
	}
	// Requesting holds no funds; the balance moves only on approval.
	if got := led.balance(user); got != 10_000 {
		t.Errorf("balance after request: got %d, want 10000", got)
	}
}

// ---------------------------------------------------------------------------
// 2. Approval debits exactly once and completes; replay fails.
// ---------------------------------------------------------------------------

func TestProcessApprove(t *testing.T) {
	user, account := uuid.New(), uuid.New()
	svc, repo, led := newTestService(user, account)
	ctx := context.Background()
	led.set(user, 10_000)

	wd, err := svc.RequestWithdrawal(ctx, user, 5_000, account)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	admin := uuid.New()
	if err := svc.ProcessWithdrawal(ctx, wd.ID, admin, true, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := led.balance(user); got != 5_000 {
		t.Errorf("balance after approval: got %d, want 5000", got)
	}
	if got := repo.status(wd.ID); got != models.WithdrawalStatusCompleted {
		t.Errorf("status: got %q, want completed", got)
	}

	err = svc.ProcessWithdrawal(ctx, wd.ID, admin, true, nil)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("replay: got %v, want ErrAlreadyProcessed", err)
	}
	if got := led.balance(user); got != 5_000 {
		t.Errorf("balance after replay: got %d, want 5000 (single debit)", got)
	}
}

// ---------------------------------------------------------------------------
// 3. Rejection flips status and never touches the balance.
// ---------------------------------------------------------------------------

func TestProcessReject(t *testing.T) {
	user, account := uuid.New(), uuid.New()
	svc, repo, led := newTestService(user, account)
	ctx := context.Background()
	led.set(user, 10_000)

	wd, err := svc.RequestWithdrawal(ctx, user, 5_000, account)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := svc.ProcessWithdrawal(ctx, wd.ID, uuid.New(), false, strPtr("account name mismatch")); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := led.balance(user); got != 10_000 {
		t.Errorf("balance after rejection: got %d, want 10000", got)
	}
	if got := repo.status(wd.ID); got != models.WithdrawalStatusRejected {
		t.Errorf("status: got %q, want rejected", got)
	}
}

// ---------------------------------------------------------------------------
// 4. The balance is re-validated at debit time. A request that was covered
//    when filed but is not covered at approval fails and stays pending.
// ---------------------------------------------------------------------------

func TestProcessApproveBalanceDrained(t *testing.T) {
	user, account := uuid.New(), uuid.New()
	svc, repo, led := newTestService(user, account)
	ctx := context.Background()
	led.set(user, 200)

	svcCfg := Config{MinWithdrawalCents: 100}
	svc = NewService(repo, &mockBanks{owned: map[uuid.UUID]uuid.UUID{account: user}}, led, notify.Noop{}, svcCfg, nil)

	wd, err := svc.RequestWithdrawal(ctx, user, 200, account)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// Funds drain between request and approval.
	led.set(user, 150)

	err = svc.ProcessWithdrawal(ctx, wd.ID, uuid.New(), true, nil)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("approve after drain: got %v, want ErrInsufficientBalance", err)
	}
	if got := led.balance(user); got != 150 {
		t.Errorf("balance after failed approval: got %d, want 150", got)
	}
	// The request survives for a later attempt.
	if got := repo.status(wd.ID); got != models.WithdrawalStatusPending {
		t.Errorf("status after failed approval: got %q, want pending", got)
	}

	// Topped back up, the same request can be approved.
	led.set(user, 300)
	if err := svc.ProcessWithdrawal(ctx, wd.ID, uuid.New(), true, nil); err != nil {
		t.Fatalf("approve after top-up: %v", err)
	}
	if got := led.balance(user); got != 100 {
		t.Errorf("balance after approval: got %d, want 100", got)
	}
}
