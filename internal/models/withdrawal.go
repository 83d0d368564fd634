package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal status enums. rejected and completed are terminal; an approval
// debits the ledger and lands directly on completed.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

// Withdrawal is a musician's payout request against a registered bank account.
type Withdrawal struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	AmountCents   int64      `json:"amount_cents"`
	BankAccountID uuid.UUID  `json:"bank_account_id"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	ProcessedBy   *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
