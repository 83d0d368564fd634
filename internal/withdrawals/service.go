package withdrawals

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/encorelive/backend/internal/db"
	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/models"
	"github.com/encorelive/backend/internal/notify"
)

var (
	// ErrInvalidAmount is returned when the requested payout is below the
	// configured minimum.
	ErrInvalidAmount = errors.New("withdrawal amount below minimum")
	// ErrBankAccountNotFound is returned when the payout destination does
	// not exist or belongs to someone else.
	ErrBankAccountNotFound = errors.New("bank account not found")
	// ErrAlreadyProcessed is returned on a second transition attempt for the
	// same withdrawal.
	ErrAlreadyProcessed = errors.New("withdrawal already processed")

	errNotFound = errors.New("withdrawal not found")
)

// ErrNotFound is returned when the withdrawal id does not exist.
var ErrNotFound = errNotFound

// Config holds withdrawal policy limits.
type Config struct {
	MinWithdrawalCents int64
}

func DefaultConfig() Config {
	return Config{MinWithdrawalCents: 2_000}
}

// Repo is the persistence contract for withdrawals. Satisfied by *Repository.
type Repo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, wd *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Withdrawal, error)
	TransitionIfPending(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, adminID uuid.UUID, notes *string) (bool, error)
}

// BankAccounts resolves payout destinations. Satisfied by *banks.Repository.
type BankAccounts interface {
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.BankAccount, error)
}

// Service implements the withdrawal state machine.
type Service struct {
	repo     Repo
	banks    BankAccounts
	ledger   ledger.Service
	notifier notify.Notifier
	cfg      Config
	log      *slog.Logger
}

func NewService(repo Repo, bankAccounts BankAccounts, ledgerSvc ledger.Service, notifier notify.Notifier, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		banks:    bankAccounts,
		ledger:   ledgerSvc,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// RequestWithdrawal creates a pending payout request. The balance check here
// is optimistic — it keeps obviously-hopeless requests out of the admin
// queue, but the authoritative check happens again at debit time.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amountCents int64, bankAccountID uuid.UUID) (*models.Withdrawal, error) {
	if amountCents < s.cfg.MinWithdrawalCents {
		return nil, ErrInvalidAmount
	}
	if _, err := s.banks.GetOwned(ctx, bankAccountID, userID); err != nil {
		return nil, ErrBankAccountNotFound
	}
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.AvailableCents < amountCents {
		return nil, ledger.ErrInsufficientBalance
	}

	wd := &models.Withdrawal{
		ID:            uuid.New(),
		UserID:        userID,
		AmountCents:   amountCents,
		BankAccountID: bankAccountID,
		Status:        models.WithdrawalStatusPending,
	}
	if err := s.repo.Create(ctx, wd); err != nil {
		return nil, err
	}
	return wd, nil
}

// ProcessWithdrawal is the admin decision. Approval debits the ledger — with
// the balance re-validated at this moment, since time may have passed since
// the request — and marks the withdrawal completed; the debit and the status
// flip share one transaction, so an insufficient balance leaves the request
// pending and untouched. Rejection changes no balance. A second call on the
// same id fails with ErrAlreadyProcessed.
func (s *Service) ProcessWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, approved bool, notes *string) error {
	wd, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if wd.Status != models.WithdrawalStatusPending {
		return ErrAlreadyProcessed
	}

	newStatus := models.WithdrawalStatusRejected
	if approved {
		newStatus = models.WithdrawalStatusCompleted
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	won, err := s.repo.TransitionIfPending(ctx, tx, withdrawalID, newStatus, adminID, notes)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	if approved {
		if _, err := s.ledger.AdjustTx(ctx, tx, wd.UserID, -wd.AmountCents, models.LedgerReasonWithdrawal, &wd.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	outcome := "rejected"
	body := "Your withdrawal request was rejected."
	if approved {
		outcome = "completed"
		body = "Your withdrawal has been processed and the transfer initiated."
	}
	meta := map[string]string{"withdrawal_id": wd.ID.String(), "outcome": outcome}
	if notes != nil && *notes != "" {
		meta["notes"] = *notes
	}
	s.notifier.Notify(context.WithoutCancel(ctx), wd.UserID, "Withdrawal "+outcome, body, meta)

	return nil
}

// Reads retry once transparently on transient persistence failures;
// not-found is surfaced immediately.

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) (*models.Withdrawal, error) {
		return s.repo.GetByID(ctx, id)
	}, errNotFound)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) ([]*models.Withdrawal, error) {
		return s.repo.ListByUser(ctx, userID)
	})
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]*models.Withdrawal, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) ([]*models.Withdrawal, error) {
		return s.repo.ListByStatus(ctx, status)
	})
}
