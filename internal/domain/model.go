package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store-side records. Each source adapter maps one of these onto a Trackable;
// keep them close to the table columns and free of derived fields.

type DomainRecord struct {
	ID             string
	OwnerID        string
	ClientName     string
	DomainName     string
	Hosted         bool
	ExpirationDate time.Time
	ReminderDate   *time.Time
}

type HostingRecord struct {
	ID             string
	OwnerID        string
	ClientName     string
	Server         string
	HostingType    string
	ExpirationDate time.Time
	ReminderDate   *time.Time
}

// Loi25Record is a Quebec Law 25 (privacy compliance) engagement for a client domain.
type Loi25Record struct {
	ID             string
	OwnerID        string
	ClientName     string
	Domain         string
	ExpirationDate time.Time
	ReminderDate   *time.Time
}

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type Invoice struct {
	ID         string
	OwnerID    string
	Number     string
	ClientName string
	DueDate    time.Time
	Total      decimal.Decimal
	Status     InvoiceStatus
}

// IsPaid reports whether the invoice has been fully settled. There is no
// partial payment: anything other than paid is outstanding.
func (i Invoice) IsPaid() bool {
	return i.Status == InvoicePaid
}

// IsOverdue reports whether the invoice is unpaid and its due date is
// strictly before the calendar day of now.
func (i Invoice) IsOverdue(now time.Time) bool {
	return !i.IsPaid() && DaysUntil(i.DueDate, now) < 0
}

// DaysOverdue is the number of whole days past the due date, never negative.
func (i Invoice) DaysOverdue(now time.Time) int {
	d := -DaysUntil(i.DueDate, now)
	if d < 0 {
		return 0
	}
	return d
}
