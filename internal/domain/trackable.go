package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SourceType string

const (
	SourceDomain          SourceType = "domain"
	SourceHosting         SourceType = "hosting"
	SourceLoi25           SourceType = "loi25"
	SourceInvoiceReminder SourceType = "invoice_reminder"
)

// SourceTypes lists every source in tie-break order.
var SourceTypes = []SourceType{SourceDomain, SourceHosting, SourceLoi25, SourceInvoiceReminder}

// Ordinal is the position of s in SourceTypes; unknown sources sort last.
func (s SourceType) Ordinal() int {
	for i, st := range SourceTypes {
		if st == s {
			return i
		}
	}
	return len(SourceTypes)
}

// Trackable is the read-time view of anything with an expiration lifecycle.
// It is never persisted; DaysRemaining, Status and Reminder are filled by Annotate.
type Trackable struct {
	ID             string           `json:"id"`
	SourceType     SourceType       `json:"source_type"`
	Label          string           `json:"label"`
	Owner          string           `json:"owner"`
	Detail         string           `json:"detail,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ExpirationDate time.Time        `json:"expiration_date"`
	ReminderDate   *time.Time       `json:"reminder_date,omitempty"`

	DaysRemaining int           `json:"days_remaining"`
	Status        Status        `json:"status"`
	Reminder      *ReminderBand `json:"reminder,omitempty"`
}

// Annotate derives the time-based fields of t relative to now.
// An expired trackable never carries a reminder band: expiration wins.
func Annotate(t Trackable, now time.Time) Trackable {
	t.DaysRemaining = DaysUntil(t.ExpirationDate, now)
	t.Status = statusForDays(t.DaysRemaining)
	t.Reminder = nil
	if t.Status != StatusExpired {
		t.Reminder = ClassifyReminder(t.ReminderDate, now)
	}
	return t
}

// InWindow reports whether t expires within the upcoming renewals window.
// t must already be annotated.
func (t Trackable) InWindow() bool {
	return t.DaysRemaining >= 0 && t.DaysRemaining <= ExpiringWindowDays
}

// Matches is a case-insensitive substring match on the searchable fields.
// An empty term matches everything.
func (t Trackable) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range []string{t.Label, t.Owner, t.Detail} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Less orders trackables by expiration date, then source, then label.
// ID is the final tie-break so the order is total.
func Less(a, b Trackable) bool {
	ad, bd := CalendarDay(a.ExpirationDate), CalendarDay(b.ExpirationDate)
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	if ao, bo := a.SourceType.Ordinal(), b.SourceType.Ordinal(); ao != bo {
		return ao < bo
	}
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.ID < b.ID
}
