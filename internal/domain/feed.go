package domain

import "time"

type Counts struct {
	Active   int `json:"active"`
	Expiring int `json:"expiring"`
	Expired  int `json:"expired"`
}

func (c *Counts) Add(s Status) {
	switch s {
	case StatusActive:
		c.Active++
	case StatusExpiring:
		c.Expiring++
	case StatusExpired:
		c.Expired++
	}
}

// SourceFailure records a source that could not be loaded for a feed.
type SourceFailure struct {
	Source  SourceType `json:"source"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// Feed is the aggregated, ranked view over every source.
type Feed struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Items       []Trackable        `json:"items"`
	WindowItems []Trackable        `json:"window_items"`
	Counts      Counts             `json:"counts"`
	BySource    map[SourceType]int `json:"by_source"`
	Failures    []SourceFailure    `json:"failures,omitempty"`
}

// Partial reports whether at least one source failed.
func (f *Feed) Partial() bool {
	return len(f.Failures) > 0
}
