package deposits

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/encorelive/backend/internal/blobstore"
	"github.com/encorelive/backend/internal/db"
	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/models"
	"github.com/encorelive/backend/internal/notify"
)

var (
	// ErrInvalidAmount is returned when the claimed amount is outside the
	// configured deposit window.
	ErrInvalidAmount = errors.New("deposit amount out of range")
	// ErrMissingRequiredField is returned when bank metadata is incomplete.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrMissingVerificationProof is returned when an approval lacks the
	// admin's bank cross-check data.
	ErrMissingVerificationProof = errors.New("missing verification proof")
	// ErrAlreadyProcessed is returned on a second transition attempt for the
	// same deposit.
	ErrAlreadyProcessed = errors.New("deposit already processed")
	// ErrVoucherTooLarge is returned when the upload exceeds the size limit.
	ErrVoucherTooLarge = errors.New("voucher file too large")
	// ErrVoucherType is returned for content types outside the allow list.
	ErrVoucherType = errors.New("unsupported voucher content type")

	errNotFound = errors.New("deposit not found")
)

// ErrNotFound is returned when the deposit id does not exist.
var ErrNotFound = errNotFound

// Config holds deposit policy limits.
type Config struct {
	MinDepositCents int64
	MaxDepositCents int64
	MaxVoucherBytes int64
}

// DefaultConfig mirrors production policy: 10.00 to 50,000.00, vouchers up
// to 5 MiB.
func DefaultConfig() Config {
	return Config{
		MinDepositCents: 1_000,
		MaxDepositCents: 5_000_000,
		MaxVoucherBytes: 5 << 20,
	}
}

var allowedVoucherTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// Repo is the persistence contract for deposits. Satisfied by *Repository.
type Repo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, d *models.Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deposit, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Deposit, error)
	ListCandidates(ctx context.Context, amountCents int64) ([]*models.Deposit, error)
	TransitionIfPending(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, adminID uuid.UUID, notes *string, proof *models.VerificationProof) (bool, error)
}

// Blobs is the voucher blob collaborator. Satisfied by *blobstore.Service.
type Blobs interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	IssueSignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service implements voucher intake, duplicate detection and the
// verification workflow.
type Service struct {
	repo      Repo
	ledger    ledger.Service
	blobs     Blobs
	notifier  notify.Notifier
	validator *Validator
	cfg       Config
	log       *slog.Logger
}

func NewService(repo Repo, ledgerSvc ledger.Service, blobs Blobs, notifier notify.Notifier, validator *Validator, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		blobs:     blobs,
		notifier:  notifier,
		validator: validator,
		cfg:       cfg,
		log:       log,
	}
}

// SubmitInput is one deposit claim: the voucher bytes plus the bank metadata
// the user typed in.
type SubmitInput struct {
	AmountCents       int64
	AccountHolderName string
	AccountNumber     *string
	BankName          string
	DepositDate       string
	DepositTime       *string
	ReferenceNumber   *string
	Comments          *string
	Voucher           []byte
	VoucherType       string
}

// SubmitDeposit validates the claim, stores the voucher blob, and creates
// the Deposit in pending state. Duplicate detection is advisory: matches are
// logged and surfaced to the admin review, never block intake. The "new
// deposit" notification is fire-and-forget.
func (s *Service) SubmitDeposit(ctx context.Context, userID uuid.UUID, in SubmitInput) (*models.Deposit, error) {
	if in.AmountCents < s.cfg.MinDepositCents || in.AmountCents > s.cfg.MaxDepositCents {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(in.AccountHolderName) == "" || strings.TrimSpace(in.BankName) == "" {
		return nil, ErrMissingRequiredField
	}
	if in.DepositDate == "" {
		return nil, ErrMissingRequiredField
	}
	if len(in.Voucher) == 0 {
		return nil, ErrMissingRequiredField
	}
	if int64(len(in.Voucher)) > s.cfg.MaxVoucherBytes {
		return nil, ErrVoucherTooLarge
	}
	if !allowedVoucherTypes[in.VoucherType] {
		return nil, ErrVoucherType
	}
	if s.validator != nil {
		if err := s.validator.Validate(in.metadataDoc()); err != nil {
			return nil, err
		}
	}

	blobKey, err := s.blobs.Store(ctx, in.Voucher, in.VoucherType)
	if err != nil {
		return nil, err
	}

	d := &models.Deposit{
		ID:                uuid.New(),
		UserID:            userID,
		AmountCents:       in.AmountCents,
		VoucherBlobKey:    blobKey,
		AccountHolderName: in.AccountHolderName,
		AccountNumber:     in.AccountNumber,
		BankName:          in.BankName,
		DepositDate:       in.DepositDate,
		DepositTime:       in.DepositTime,
		ReferenceNumber:   in.ReferenceNumber,
		Comments:          in.Comments,
		Status:            models.DepositStatusPending,
	}

	// Advisory: count likely duplicates before the record itself exists, so
	// the candidate set never includes the new deposit.
	dupes, err := s.FindDuplicates(ctx, d)
	if err != nil {
		s.log.Warn("duplicate scan failed", "error", err)
		dupes = nil
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	meta := map[string]string{"deposit_id": d.ID.String()}
	if len(dupes) > 0 {
		s.log.Warn("deposit matches existing fingerprint", "deposit_id", d.ID, "matches", len(dupes))
		meta["duplicate_matches"] = strconv.Itoa(len(dupes))
	}
	s.notifier.Notify(context.WithoutCancel(ctx), userID, "New deposit received",
		"Your deposit claim is pending verification.", meta)

	return d, nil
}

// FindDuplicates returns non-rejected deposits whose fingerprint
// (bank name, account holder, reference number, amount) matches the
// candidate. Comparison is case-insensitive and whitespace-normalized.
// Rejected deposits do not count: a rejected voucher may legitimately be
// resubmitted.
func (s *Service) FindDuplicates(ctx context.Context, candidate *models.Deposit) ([]*models.Deposit, error) {
	pool, err := db.ReadRetry(ctx, func(ctx context.Context) ([]*models.Deposit, error) {
		return s.repo.ListCandidates(ctx, candidate.AmountCents)
	})
	if err != nil {
		return nil, err
	}
	want := fingerprint(candidate)
	var out []*models.Deposit
	for _, d := range pool {
		if d.ID == candidate.ID {
			continue
		}
		if fingerprint(d) == want {
			out = append(out, d)
		}
	}
	return out, nil
}

// Verify transitions a pending deposit to approved or rejected. Approval
// credits the depositor's balance exactly once, in the same transaction as
// the status flip: if the credit fails the deposit stays pending. A second
// call on the same id fails with ErrAlreadyProcessed.
func (s *Service) Verify(ctx context.Context, depositID, adminID uuid.UUID, approved bool, notes *string, proof *models.VerificationProof) error {
	d, err := s.repo.GetByID(ctx, depositID)
	if err != nil {
		return err
	}
	if d.Status != models.DepositStatusPending {
		return ErrAlreadyProcessed
	}
	if approved {
		if proof == nil || strings.TrimSpace(proof.BankDepositDate) == "" || strings.TrimSpace(proof.ReferenceNumber) == "" {
			return ErrMissingVerificationProof
		}
	}

	newStatus := models.DepositStatusRejected
	if approved {
		newStatus = models.DepositStatusApproved
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Authoritative guard: the conditional write decides the race, the
	// status read above was only a fast path.
	var storedProof *models.VerificationProof
	if approved {
		storedProof = proof
	}
	won, err := s.repo.TransitionIfPending(ctx, tx, depositID, newStatus, adminID, notes, storedProof)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	if approved {
		if _, err := s.ledger.AdjustTx(ctx, tx, d.UserID, d.AmountCents, models.LedgerReasonDepositApproved, &d.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	outcome := "rejected"
	body := "Your deposit was rejected."
	if approved {
		outcome = "approved"
		body = "Your deposit was approved and your balance has been credited."
	}
	meta := map[string]string{"deposit_id": d.ID.String(), "outcome": outcome}
	if notes != nil && *notes != "" {
		meta["notes"] = *notes
	}
	s.notifier.Notify(context.WithoutCancel(ctx), d.UserID, "Deposit "+outcome, body, meta)

	return nil
}

// VoucherURL issues a fresh signed display URL for the deposit's voucher.
// The issuer checks the blob still exists before signing, so a missing blob
// surfaces as blobstore.ErrNotFound.
func (s *Service) VoucherURL(ctx context.Context, depositID uuid.UUID) (string, error) {
	d, err := s.Get(ctx, depositID)
	if err != nil {
		return "", err
	}
	return s.blobs.IssueSignedURL(ctx, d.VoucherBlobKey, blobstore.DefaultTTL)
}

// Reads retry once transparently on transient persistence failures;
// not-found is surfaced immediately.

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) (*models.Deposit, error) {
		return s.repo.GetByID(ctx, id)
	}, errNotFound)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deposit, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) ([]*models.Deposit, error) {
		return s.repo.ListByUser(ctx, userID)
	})
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]*models.Deposit, error) {
	return db.ReadRetry(ctx, func(ctx context.Context) ([]*models.Deposit, error) {
		return s.repo.ListByStatus(ctx, status)
	})
}

// fingerprint normalizes the duplicate-detection tuple. Nil optional fields
// normalize to the empty string.
func fingerprint(d *models.Deposit) string {
	ref := ""
	if d.ReferenceNumber != nil {
		ref = *d.ReferenceNumber
	}
	return normalize(d.BankName) + "\x00" + normalize(d.AccountHolderName) + "\x00" + normalize(ref)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (in SubmitInput) metadataDoc() map[string]any {
	doc := map[string]any{
		"amount_cents":        in.AmountCents,
		"account_holder_name": in.AccountHolderName,
		"bank_name":           in.BankName,
		"deposit_date":        in.DepositDate,
	}
	if in.AccountNumber != nil {
		doc["account_number"] = *in.AccountNumber
	}
	if in.DepositTime != nil {
		doc["deposit_time"] = *in.DepositTime
	}
	if in.ReferenceNumber != nil {
		doc["reference_number"] = *in.ReferenceNumber
	}
	if in.Comments != nil {
		doc["comments"] = *in.Comments
	}
	return doc
}
