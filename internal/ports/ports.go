package ports

import (
	"context"
	"time"

	"trackdesk/internal/domain"
)

// Source normalizes one kind of record into trackables for an owner.
// A store failure must come back as an error, never as an empty slice.
type Source interface {
	Kind() domain.SourceType
	ListActive(ctx context.Context, ownerScope string, now time.Time) ([]domain.Trackable, error)
}

type FeedRequest struct {
	OwnerScope string
	Now        time.Time
	Search     string
}

// Feeds builds the aggregated expiration feed.
type Feeds interface {
	BuildFeed(ctx context.Context, req FeedRequest) (*domain.Feed, error)
}

// Reminders drives the invoice follow-up state machine.
type Reminders interface {
	Materialize(ctx context.Context, inv domain.Invoice, now time.Time) (domain.ReminderState, bool, error)
	MaterializeOverdue(ctx context.Context, ownerScope string, now time.Time) (int, error)
	Escalate(ctx context.Context, ownerScope, id string, now time.Time) (domain.ReminderState, error)
	Resolve(ctx context.Context, ownerScope, id string, now time.Time) (domain.ReminderState, error)
	List(ctx context.Context, ownerScope string, now time.Time) ([]domain.ReminderView, error)
	Summary(ctx context.Context, ownerScope string, now time.Time) (domain.ReminderSummary, error)
	Contacts(ctx context.Context, ownerScope, id string) ([]domain.ReminderContact, error)
}
