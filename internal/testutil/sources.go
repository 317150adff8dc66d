package testutil

import (
	"context"
	"errors"
	"time"

	"trackdesk/internal/domain"
)

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DatePtr(y int, m time.Month, d int) *time.Time {
	t := Date(y, m, d)
	return &t
}

var ErrStoreDown = errors.New("connection refused")

// StaticSource returns fixed items or a fixed error.
type StaticSource struct {
	SourceKind domain.SourceType
	Items      []domain.Trackable
	Err        error
}

func (s StaticSource) Kind() domain.SourceType { return s.SourceKind }

func (s StaticSource) ListActive(context.Context, string, time.Time) ([]domain.Trackable, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.Trackable(nil), s.Items...), nil
}

// StuckSource never honours its context and only returns after Delay.
type StuckSource struct {
	SourceKind domain.SourceType
	Delay      time.Duration
}

func (s StuckSource) Kind() domain.SourceType { return s.SourceKind }

func (s StuckSource) ListActive(context.Context, string, time.Time) ([]domain.Trackable, error) {
	time.Sleep(s.Delay)
	return nil, nil
}

// PanickingSource panics when listed.
type PanickingSource struct{ SourceKind domain.SourceType }

func (s PanickingSource) Kind() domain.SourceType { return s.SourceKind }

func (s PanickingSource) ListActive(context.Context, string, time.Time) ([]domain.Trackable, error) {
	panic("source exploded")
}

// FailingStore fails every read with ErrStoreDown.
type FailingStore struct{}

func (FailingStore) ListDomains(context.Context, string) ([]domain.DomainRecord, error) {
	return nil, ErrStoreDown
}

func (FailingStore) ListHosting(context.Context, string) ([]domain.HostingRecord, error) {
	return nil, ErrStoreDown
}

func (FailingStore) ListLoi25(context.Context, string) ([]domain.Loi25Record, error) {
	return nil, ErrStoreDown
}

func (FailingStore) ListUnpaidDueBefore(context.Context, string, time.Time) ([]domain.Invoice, error) {
	return nil, ErrStoreDown
}

func (FailingStore) GetInvoices(context.Context, []string) (map[string]domain.Invoice, error) {
	return nil, ErrStoreDown
}

func (FailingStore) ListOverdueOwners(context.Context, time.Time) ([]string, error) {
	return nil, ErrStoreDown
}
