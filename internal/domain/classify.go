package domain

import "time"

const (
	// ExpiringWindowDays is the inclusive horizon for the expiring band and
	// for the upcoming renewals window.
	ExpiringWindowDays = 30
	// ReminderHorizonDays bounds how far ahead a configured reminder surfaces.
	ReminderHorizonDays = 30
	// ImminentDays marks upcoming reminders that are close enough to flag.
	ImminentDays = 7
)

type Status string

const (
	StatusActive   Status = "active"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
)

type ReminderBandKind string

const (
	ReminderDueNow   ReminderBandKind = "due_now"
	ReminderUpcoming ReminderBandKind = "upcoming"
)

// ReminderBand is the imminence of a configured reminder date.
// Days is only meaningful for ReminderUpcoming.
type ReminderBand struct {
	Kind     ReminderBandKind `json:"kind"`
	Days     int              `json:"days,omitempty"`
	Imminent bool             `json:"imminent,omitempty"`
}

// CalendarDay drops the time of day, keeping the date as seen in t's location.
// The result is midnight UTC so that differences are exact multiples of 24h.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the whole calendar days from the day of now to the day of
// date. It is negative when date is in the past and 0 when both fall on the
// same day, whatever the time of day.
//
// now is always supplied by the caller; a zero now is a programming error.
func DaysUntil(date, now time.Time) int {
	if now.IsZero() {
		panic("domain: DaysUntil called with zero now")
	}
	return int(CalendarDay(date).Sub(CalendarDay(now)) / (24 * time.Hour))
}

// ClassifyExpiration maps an expiration date to its status band.
func ClassifyExpiration(expiration, now time.Time) Status {
	return statusForDays(DaysUntil(expiration, now))
}

func statusForDays(days int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= ExpiringWindowDays:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// ClassifyReminder maps an optional reminder date to a band. It returns nil
// when no reminder is configured or it is too far out to surface.
func ClassifyReminder(reminder *time.Time, now time.Time) *ReminderBand {
	if reminder == nil {
		return nil
	}
	days := DaysUntil(*reminder, now)
	switch {
	case days <= 0:
		return &ReminderBand{Kind: ReminderDueNow}
	case days <= ReminderHorizonDays:
		return &ReminderBand{Kind: ReminderUpcoming, Days: days, Imminent: days <= ImminentDays}
	default:
		return nil
	}
}
