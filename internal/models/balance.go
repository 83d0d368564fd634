package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry reasons. Every balance mutation carries one of these.
const (
	LedgerReasonDepositApproved   = "deposit_approved"
	LedgerReasonWithdrawal        = "withdrawal"
	LedgerReasonEventDebit        = "event_payment_debit"
	LedgerReasonEventCredit       = "event_payment_credit"
	LedgerReasonEventCompensation = "event_payment_compensation"
)

// UserBalance is the single source of truth for a user's available funds.
// available_cents is only ever mutated through the ledger's atomic adjust;
// the invariant available_cents >= 0 is enforced in SQL, not application code.
type UserBalance struct {
	UserID         uuid.UUID `json:"user_id"`
	AvailableCents int64     `json:"available_cents"`
	Currency       string    `json:"currency"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LedgerEntry is one audit-trail row for a balance mutation.
type LedgerEntry struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	DeltaCents        int64      `json:"delta_cents"`
	BalanceAfterCents int64      `json:"balance_after_cents"`
	Reason            string     `json:"reason"`
	RefID             *uuid.UUID `json:"ref_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
