package ports

import (
	"context"
	"time"
)

// SweepJob asks for the overdue invoices of one owner to be materialized.
type SweepJob struct {
	OwnerID string
	Now     time.Time
}

// OverdueOwners finds the owners a sweep has to visit.
type OverdueOwners interface {
	ListOverdueOwners(ctx context.Context, day time.Time) ([]string, error)
}

// Materializer processes a sweep job.
type Materializer interface {
	MaterializeOverdue(ctx context.Context, ownerScope string, now time.Time) (int, error)
}
