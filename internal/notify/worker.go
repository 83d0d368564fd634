package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
)

// Repository persists delivered notifications so ops has a record of what
// went out. The push/email transport itself is an external collaborator.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, title, body string, metadata map[string]string) error {
	var meta *string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		s := string(raw)
		meta = &s
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, body, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, uuid.New(), userID, title, body, meta)
	return err
}

// DeliverNotificationWorker records the notification and logs it. Returning
// an error lets river retry the delivery.
type DeliverNotificationWorker struct {
	river.WorkerDefaults[DeliverNotificationArgs]
	repo *Repository
	log  *slog.Logger
}

func NewDeliverNotificationWorker(repo *Repository, log *slog.Logger) *DeliverNotificationWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverNotificationWorker{repo: repo, log: log}
}

func (w *DeliverNotificationWorker) Work(ctx context.Context, job *river.Job[DeliverNotificationArgs]) error {
	args := job.Args
	if err := w.repo.Create(ctx, args.UserID, args.Title, args.Body, args.Metadata); err != nil {
		return err
	}
	w.log.Info("notification delivered", "user_id", args.UserID, "title", args.Title)
	return nil
}
