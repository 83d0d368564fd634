package models

import (
	"time"

	"github.com/google/uuid"
)

// EventPayment records one atomic organizer→musician transfer for a settled
// event. Immutable once created.
type EventPayment struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	MusicianID  uuid.UUID `json:"musician_id"`
	AmountCents int64     `json:"amount_cents"`
	ProcessedAt time.Time `json:"processed_at"`
}
