package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notifier is the best-effort notification collaborator. Callers fire and
// forget: a delivery failure is logged, never propagated into the operation
// that triggered it.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, metadata map[string]string)
}

// DeliverNotificationArgs is the river job payload for one notification.
type DeliverNotificationArgs struct {
	UserID   uuid.UUID         `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (DeliverNotificationArgs) Kind() string { return "deliver_notification" }

// EnqueueFunc inserts a notification job. Provided by main as a closure over
// river.Client.Insert (breaks the init cycle between service wiring and the
// river client).
type EnqueueFunc func(ctx context.Context, args DeliverNotificationArgs) error

type queueNotifier struct {
	enqueue EnqueueFunc
	log     *slog.Logger
}

// NewQueueNotifier returns a Notifier that hands deliveries to the job queue.
func NewQueueNotifier(enqueue EnqueueFunc, log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &queueNotifier{enqueue: enqueue, log: log}
}

func (n *queueNotifier) Notify(ctx context.Context, userID uuid.UUID, title, body string, metadata map[string]string) {
	err := n.enqueue(ctx, DeliverNotificationArgs{
		UserID:   userID,
		Title:    title,
		Body:     body,
		Metadata: metadata,
	})
	if err != nil {
		n.log.Error("enqueue notification failed", "user_id", userID, "title", title, "error", err)
	}
}

// Noop is a Notifier that drops everything. Used in tests and when the queue
// is not wired.
type Noop struct{}

func (Noop) Notify(context.Context, uuid.UUID, string, string, map[string]string) {}
