package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderEscalated ReminderStatus = "escalated"
	ReminderResolved  ReminderStatus = "resolved"
)

// reachableFrom lists, for each target state, the states a reminder may be in
// for the transition to be accepted. Resolved is terminal.
var reachableFrom = map[ReminderStatus][]ReminderStatus{
	ReminderEscalated: {ReminderPending, ReminderEscalated},
	ReminderResolved:  {ReminderPending, ReminderEscalated},
}

// AllowedFrom returns the states from which a transition to `to` is valid.
// Used as the expected-state set of the compare-and-set update.
func AllowedFrom(to ReminderStatus) []ReminderStatus {
	return append([]ReminderStatus(nil), reachableFrom[to]...)
}

// ReminderState is the persisted follow-up record of an overdue invoice.
// Days overdue is deliberately absent; see ReminderView.
type ReminderState struct {
	ID            string         `json:"id"`
	InvoiceID     string         `json:"invoice_id"`
	OwnerID       string         `json:"owner_id"`
	State         ReminderStatus `json:"state"`
	LastContactAt *time.Time     `json:"last_contact_at,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ReminderContact is one recorded outbound contact.
type ReminderContact struct {
	ID          string    `json:"id"`
	ReminderID  string    `json:"reminder_id"`
	ContactedAt time.Time `json:"contacted_at"`
}

// ReminderView joins a reminder with its invoice and the live overdue count.
type ReminderView struct {
	ReminderState
	InvoiceNumber string          `json:"invoice_number"`
	ClientName    string          `json:"client_name"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	DaysOverdue   int             `json:"days_overdue"`
}

// ReminderSummary backs the reminders dashboard tiles.
type ReminderSummary struct {
	Pending           int `json:"pending"`
	Escalated         int `json:"escalated"`
	ResolvedThisMonth int `json:"resolved_this_month"`
}

// NewReminderState builds the initial pending record for an invoice.
func NewReminderState(inv Invoice, now time.Time) ReminderState {
	return ReminderState{
		ID:        NewID("rem"),
		InvoiceID: inv.ID,
		OwnerID:   inv.OwnerID,
		State:     ReminderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a k-sortable identifier with the given prefix, e.g. rem_01J...
func NewID(prefix string) string {
	id := ulid.Make().String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
