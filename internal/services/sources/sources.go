// Package sources adapts the record stores to the common Trackable shape.
package sources

import (
	"context"
	"strings"
	"time"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/ports"
)

func checkScope(ownerScope string) error {
	if strings.TrimSpace(ownerScope) == "" {
		return ierr.NewError("owner scope is required").
			WithHint("An owner scope is required to list records").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func unavailable(err error, kind domain.SourceType) error {
	return ierr.WithError(err).
		WithHintf("Could not load %s records", kind).
		WithReportableDetails(map[string]any{"source": string(kind)}).
		Mark(ierr.ErrSourceUnavailable)
}

// Domains lists domain registrations.
type Domains struct{ store ports.DomainStore }

func NewDomains(store ports.DomainStore) *Domains { return &Domains{store: store} }

func (s *Domains) Kind() domain.SourceType { return domain.SourceDomain }

func (s *Domains) ListActive(ctx context.Context, ownerScope string, _ time.Time) ([]domain.Trackable, error) {
	if err := checkScope(ownerScope); err != nil {
		return nil, err
	}
	rows, err := s.store.ListDomains(ctx, ownerScope)
	if err != nil {
		return nil, unavailable(err, s.Kind())
	}
	out := make([]domain.Trackable, 0, len(rows))
	for _, r := range rows {
		detail := ""
		if r.Hosted {
			detail = "hosted"
		}
		out = append(out, domain.Trackable{
			ID:             r.ID,
			SourceType:     domain.SourceDomain,
			Label:          RegistrableDomain(r.DomainName),
			Owner:          r.ClientName,
			Detail:         detail,
			ExpirationDate: r.ExpirationDate,
			ReminderDate:   r.ReminderDate,
		})
	}
	return out, nil
}

// Hosting lists hosting contracts.
type Hosting struct{ store ports.HostingStore }

func NewHosting(store ports.HostingStore) *Hosting { return &Hosting{store: store} }

func (s *Hosting) Kind() domain.SourceType { return domain.SourceHosting }

func (s *Hosting) ListActive(ctx context.Context, ownerScope string, _ time.Time) ([]domain.Trackable, error) {
	if err := checkScope(ownerScope); err != nil {
		return nil, err
	}
	rows, err := s.store.ListHosting(ctx, ownerScope)
	if err != nil {
		return nil, unavailable(err, s.Kind())
	}
	out := make([]domain.Trackable, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Trackable{
			ID:             r.ID,
			SourceType:     domain.SourceHosting,
			Label:          r.Server,
			Owner:          r.ClientName,
			Detail:         r.HostingType,
			ExpirationDate: r.ExpirationDate,
			ReminderDate:   r.ReminderDate,
		})
	}
	return out, nil
}

// Loi25 lists Law 25 compliance entries.
type Loi25 struct{ store ports.Loi25Store }

func NewLoi25(store ports.Loi25Store) *Loi25 { return &Loi25{store: store} }

func (s *Loi25) Kind() domain.SourceType { return domain.SourceLoi25 }

func (s *Loi25) ListActive(ctx context.Context, ownerScope string, _ time.Time) ([]domain.Trackable, error) {
	if err := checkScope(ownerScope); err != nil {
		return nil, err
	}
	rows, err := s.store.ListLoi25(ctx, ownerScope)
	if err != nil {
		return nil, unavailable(err, s.Kind())
	}
	out := make([]domain.Trackable, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Trackable{
			ID:             r.ID,
			SourceType:     domain.SourceLoi25,
			Label:          RegistrableDomain(r.Domain),
			Owner:          r.ClientName,
			ExpirationDate: r.ExpirationDate,
			ReminderDate:   r.ReminderDate,
		})
	}
	return out, nil
}

// Invoices lists only invoices still unpaid past their due date. Their
// urgency comes from days overdue, so no reminder date is ever set.
type Invoices struct{ store ports.InvoiceStore }

func NewInvoices(store ports.InvoiceStore) *Invoices { return &Invoices{store: store} }

func (s *Invoices) Kind() domain.SourceType { return domain.SourceInvoiceReminder }

func (s *Invoices) ListActive(ctx context.Context, ownerScope string, now time.Time) ([]domain.Trackable, error) {
	if err := checkScope(ownerScope); err != nil {
		return nil, err
	}
	rows, err := s.store.ListUnpaidDueBefore(ctx, ownerScope, domain.CalendarDay(now))
	if err != nil {
		return nil, unavailable(err, s.Kind())
	}
	out := make([]domain.Trackable, 0, len(rows))
	for _, inv := range rows {
		// stores filter already; keep the adapter honest if one does not
		if !inv.IsOverdue(now) {
			continue
		}
		amount := inv.Total
		out = append(out, domain.Trackable{
			ID:             inv.ID,
			SourceType:     domain.SourceInvoiceReminder,
			Label:          inv.Number,
			Owner:          inv.ClientName,
			Amount:         &amount,
			ExpirationDate: inv.DueDate,
		})
	}
	return out, nil
}

// All returns the four sources over a store implementing every read port.
func All(store interface {
	ports.DomainStore
	ports.HostingStore
	ports.Loi25Store
	ports.InvoiceStore
}) []ports.Source {
	return []ports.Source{
		NewDomains(store),
		NewHosting(store),
		NewLoi25(store),
		NewInvoices(store),
	}
}
