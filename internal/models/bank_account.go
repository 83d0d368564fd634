package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is a verified payout destination owned by exactly one user.
// At most one account per user has is_default = true.
type BankAccount struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AccountHolder string    `json:"account_holder"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}
