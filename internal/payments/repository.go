package payments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p *models.EventPayment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO event_payments (id, event_id, organizer_id, musician_id, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING processed_at
	`, p.ID, p.EventID, p.OrganizerID, p.MusicianID, p.AmountCents).Scan(&p.ProcessedAt)
}

// Stats aggregates for the admin dashboard.
type Stats struct {
	PaymentCount   int64 `json:"payment_count"`
	PaidTotalCents int64 `json:"paid_total_cents"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM event_payments
	`).Scan(&s.PaymentCount, &s.PaidTotalCents)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
