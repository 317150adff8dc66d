package ports

import (
	"context"
	"time"

	"trackdesk/internal/domain"
)

// DomainStore lists domain registrations for an owner.
type DomainStore interface {
	ListDomains(ctx context.Context, ownerID string) ([]domain.DomainRecord, error)
}

// HostingStore lists hosting contracts for an owner.
type HostingStore interface {
	ListHosting(ctx context.Context, ownerID string) ([]domain.HostingRecord, error)
}

// Loi25Store lists Law 25 compliance entries for an owner.
type Loi25Store interface {
	ListLoi25(ctx context.Context, ownerID string) ([]domain.Loi25Record, error)
}

// InvoiceStore reads invoices. Invoices are owned elsewhere; nothing here writes them.
type InvoiceStore interface {
	// ListUnpaidDueBefore returns unpaid invoices whose due date is strictly before day.
	ListUnpaidDueBefore(ctx context.Context, ownerID string, day time.Time) ([]domain.Invoice, error)
	// GetInvoices returns the invoices with the given ids, keyed by id. Missing ids are omitted.
	GetInvoices(ctx context.Context, ids []string) (map[string]domain.Invoice, error)
	// ListOverdueOwners returns the owners having at least one unpaid invoice due before day.
	ListOverdueOwners(ctx context.Context, day time.Time) ([]string, error)
}

// Transition is a compare-and-set request on a reminder's state.
type Transition struct {
	ReminderID string
	// OwnerID scopes the update; a reminder of another owner is not found.
	OwnerID string
	From    []domain.ReminderStatus
	To      domain.ReminderStatus
	At      time.Time
}

// ReminderStore persists reminder states. Transition must be atomic per row:
// it applies only when the reminder belongs to OwnerID and its current state
// is one of From, otherwise it fails with ierr.ErrNotFound (unknown id or
// another owner's reminder) or ierr.ErrInvalidTransition.
// A transition to escalated stamps LastContactAt and records a contact.
type ReminderStore interface {
	CreateIfAbsent(ctx context.Context, r domain.ReminderState) (domain.ReminderState, bool, error)
	GetReminder(ctx context.Context, ownerID, id string) (domain.ReminderState, error)
	ListReminders(ctx context.Context, ownerID string) ([]domain.ReminderState, error)
	Transition(ctx context.Context, t Transition) (domain.ReminderState, error)
	ListContacts(ctx context.Context, reminderID string) ([]domain.ReminderContact, error)
}
