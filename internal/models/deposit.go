package models

import (
	"time"

	"github.com/google/uuid"
)

// Deposit status enums. A deposit transitions exactly once out of pending.
const (
	DepositStatusPending  = "pending"
	DepositStatusApproved = "approved"
	DepositStatusRejected = "rejected"
)

// Deposit is a user's claim of a bank deposit, backed by an uploaded voucher
// image. The voucher bytes live in object storage; only the blob key is
// persisted, never a URL.
type Deposit struct {
	ID                uuid.UUID          `json:"id"`
	UserID            uuid.UUID          `json:"user_id"`
	AmountCents       int64              `json:"amount_cents"`
	VoucherBlobKey    string             `json:"-"`
	AccountHolderName string             `json:"account_holder_name"`
	AccountNumber     *string            `json:"account_number,omitempty"`
	BankName          string             `json:"bank_name"`
	DepositDate       string             `json:"deposit_date"`
	DepositTime       *string            `json:"deposit_time,omitempty"`
	ReferenceNumber   *string            `json:"reference_number,omitempty"`
	Comments          *string            `json:"comments,omitempty"`
	Status            string             `json:"status"`
	Verification      *VerificationProof `json:"verification_data,omitempty"`
	VerifiedBy        *uuid.UUID         `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time         `json:"verified_at,omitempty"`
	Notes             *string            `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// VerificationProof is the admin's cross-check against the real bank record,
// required before a deposit may be approved.
type VerificationProof struct {
	BankDepositDate string `json:"bank_deposit_date"`
	ReferenceNumber string `json:"reference_number"`
}
