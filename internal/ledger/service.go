package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/encorelive/backend/internal/db"
	"github.com/encorelive/backend/internal/models"
)

// ErrInsufficientBalance is returned when a debit would take the balance negative.
var ErrInsufficientBalance = errInsufficientBalance

// Service is the only path for mutating user balances. Every credit or debit
// in the system (deposit approval, withdrawal, event payment) funnels through
// Adjust or AdjustTx.
type Service interface {
	Adjust(ctx context.Context, userID uuid.UUID, deltaCents int64, reason string, refID *uuid.UUID) (int64, error)
	AdjustTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCents int64, reason string, refID *uuid.UUID) (int64, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

// Repo is the persistence contract the service needs. Satisfied by *Repository.
type Repo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	EnsureBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	ApplyDelta(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCents int64) (int64, error)
	RecordEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type service struct {
	repo Repo
}

func NewService(repo Repo) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

// Adjust applies deltaCents to the user's balance in its own transaction.
// Once initiated the mutation runs to a committed success or a clean failure;
// the caller's context is not consulted between apply and commit.
func (s *service) Adjust(ctx context.Context, userID uuid.UUID, deltaCents int64, reason string, refID *uuid.UUID) (int64, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.AdjustTx(ctx, tx, userID, deltaCents, reason, refID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// AdjustTx applies the delta inside the caller's transaction, so a status
// transition and its balance mutation commit or roll back together.
func (s *service) AdjustTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCents int64, reason string, refID *uuid.UUID) (int64, error) {
	if err := s.repo.EnsureBalance(ctx, tx, userID); err != nil {
		return 0, err
	}
	newBalance, err := s.repo.ApplyDelta(ctx, tx, userID, deltaCents)
	if err != nil {
		return 0, err
	}
	entry := &models.LedgerEntry{
		ID:                uuid.New(),
		UserID:            userID,
		DeltaCents:        deltaCents,
		BalanceAfterCents: newBalance,
		Reason:            reason,
		RefID:             refID,
	}
	if err := s.repo.RecordEntry(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetBalance is a plain read with one transparent retry on transient
// failure. The amount may be stale versus a concurrent Adjust; callers must
// not treat it as a reservation.
func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) (*models.UserBalance, error) {
		return s.repo.GetBalance(ctx, userID)
	})
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return db.ReadRetry(ctx, func(ctx context.Context) ([]*models.LedgerEntry, error) {
		return s.repo.ListEntries(ctx, userID, limit)
	})
}
