package payments

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/models"
	"github.com/encorelive/backend/internal/notify"
)

var (
	// ErrPaymentFailed is returned when the transfer could not complete and
	// the organizer's funds were restored. The payment did not occur.
	ErrPaymentFailed = errors.New("payment failed, funds restored")
	// ErrInvalidAmount is returned for non-positive transfer amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrSameParty is returned when organizer and musician are the same user.
	ErrSameParty = errors.New("organizer and musician must differ")
)

// Repo persists immutable event payment records. Satisfied by *Repository.
type Repo interface {
	Create(ctx context.Context, p *models.EventPayment) error
}

// Service settles an event: organizer pays musician. The two-party transfer
// is a debit-then-credit with compensation — the organizer's debit is undone
// if the credit or the record insert fails, so the observable outcome is
// both balances moved or neither.
type Service struct {
	repo     Repo
	ledger   ledger.Service
	notifier notify.Notifier
	log      *slog.Logger
}

func NewService(repo Repo, ledgerSvc ledger.Service, notifier notify.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerSvc, notifier: notifier, log: log}
}

// PayMusicianForEvent debits the organizer and credits the musician for a
// settled event. Fails with ledger.ErrInsufficientBalance if the organizer
// cannot cover the amount, or ErrPaymentFailed (after compensation) if a
// later step breaks.
func (s *Service) PayMusicianForEvent(ctx context.Context, eventID, organizerID, musicianID uuid.UUID, amountCents int64) (*models.EventPayment, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if organizerID == musicianID {
		return nil, ErrSameParty
	}

	// Once the debit lands, this flow must not be abandoned mid-way; the
	// compensation paths below are the only exits.
	ctx = context.WithoutCancel(ctx)

	if _, err := s.ledger.Adjust(ctx, organizerID, -amountCents, models.LedgerReasonEventDebit, &eventID); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Adjust(ctx, musicianID, amountCents, models.LedgerReasonEventCredit, &eventID); err != nil {
		s.log.Error("event payment credit failed, compensating organizer",
			"event_id", eventID, "organizer_id", organizerID, "error", err)
		s.compensate(ctx, eventID, organizerID, amountCents)
		return nil, ErrPaymentFailed
	}

	p := &models.EventPayment{
		ID:          uuid.New(),
		EventID:     eventID,
		OrganizerID: organizerID,
		MusicianID:  musicianID,
		AmountCents: amountCents,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("event payment record failed, reversing transfer",
			"event_id", eventID, "error", err)
		if _, rerr := s.ledger.Adjust(ctx, musicianID, -amountCents, models.LedgerReasonEventCompensation, &eventID); rerr != nil {
			s.log.Error("CRITICAL: could not reverse musician credit, manual reconciliation required",
				"event_id", eventID, "musician_id", musicianID, "amount_cents", amountCents, "error", rerr)
		}
		s.compensate(ctx, eventID, organizerID, amountCents)
		return nil, ErrPaymentFailed
	}

	s.notifier.Notify(ctx, musicianID, "Event payment received",
		"You have been paid for a settled event.",
		map[string]string{"event_id": eventID.String()})

	return p, nil
}

// compensate credits the organizer back after a failed transfer. A credit
// cannot fail the non-negative check, so failure here means the store itself
// is down; that is logged for manual reconciliation.
func (s *Service) compensate(ctx context.Context, eventID, organizerID uuid.UUID, amountCents int64) {
	if _, err := s.ledger.Adjust(ctx, organizerID, amountCents, models.LedgerReasonEventCompensation, &eventID); err != nil {
		s.log.Error("CRITICAL: compensation credit failed, manual reconciliation required",
			"event_id", eventID, "organizer_id", organizerID, "amount_cents", amountCents, "error", err)
	}
}
