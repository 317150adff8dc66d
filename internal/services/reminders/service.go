package reminders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/logger"
	"trackdesk/internal/metrics"
	"trackdesk/internal/ports"
)

// Service is the payment follow-up state machine:
// pending -> escalated (repeatable) -> resolved, with resolve also allowed from pending.
type Service struct {
	reminders ports.ReminderStore
	invoices  ports.InvoiceStore
	log       *logger.Logger
}

func New(reminders ports.ReminderStore, invoices ports.InvoiceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{reminders: reminders, invoices: invoices, log: log}
}

func requireNow(now time.Time) error {
	if now.IsZero() {
		return ierr.NewError("now is required").
			WithHint("A reference time is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func requireScope(ownerScope string) error {
	if strings.TrimSpace(ownerScope) == "" {
		return ierr.NewError("owner scope is required").
			WithHint("An owner scope is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Materialize creates the pending reminder of an overdue, unpaid invoice.
// It is idempotent: an existing reminder is returned with created=false.
func (s *Service) Materialize(ctx context.Context, inv domain.Invoice, now time.Time) (domain.ReminderState, bool, error) {
	if err := requireNow(now); err != nil {
		return domain.ReminderState{}, false, err
	}
	if inv.ID == "" {
		return domain.ReminderState{}, false, ierr.NewError("invoice id is required").
			WithHint("An invoice id is required").
			Mark(ierr.ErrValidation)
	}
	if inv.IsPaid() {
		return domain.ReminderState{}, false, ierr.NewError("invoice is paid").
			WithHintf("Invoice %s is already paid", inv.Number).
			Mark(ierr.ErrInvalidOperation)
	}
	if !inv.IsOverdue(now) {
		return domain.ReminderState{}, false, ierr.NewError("invoice is not overdue").
			WithHintf("Invoice %s is not past its due date", inv.Number).
			Mark(ierr.ErrInvalidOperation)
	}

	r, created, err := s.reminders.CreateIfAbsent(ctx, domain.NewReminderState(inv, now))
	if err != nil {
		return domain.ReminderState{}, false, err
	}
	if created {
		metrics.RemindersMaterialized.Inc()
		s.log.Infow("reminder materialized",
			"reminder_id", r.ID,
			"invoice_id", inv.ID,
			"owner", inv.OwnerID,
		)
	}
	return r, created, nil
}

// MaterializeOverdue materializes reminders for every overdue invoice of an owner
// and returns how many were created.
func (s *Service) MaterializeOverdue(ctx context.Context, ownerScope string, now time.Time) (int, error) {
	if err := requireNow(now); err != nil {
		return 0, err
	}
	if err := requireScope(ownerScope); err != nil {
		return 0, err
	}
	invoices, err := s.invoices.ListUnpaidDueBefore(ctx, ownerScope, domain.CalendarDay(now))
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Could not load overdue invoices").
			Mark(ierr.ErrSourceUnavailable)
	}

	created := 0
	for _, inv := range invoices {
		if !inv.IsOverdue(now) {
			continue
		}
		_, ok, err := s.Materialize(ctx, inv, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// Escalate records that a reminder was sent. It may be repeated; each call
// refreshes LastContactAt and adds a contact to the audit trail.
func (s *Service) Escalate(ctx context.Context, ownerScope, id string, now time.Time) (domain.ReminderState, error) {
	return s.transition(ctx, ownerScope, id, domain.ReminderEscalated, now)
}

// Resolve closes a reminder for good.
func (s *Service) Resolve(ctx context.Context, ownerScope, id string, now time.Time) (domain.ReminderState, error) {
	return s.transition(ctx, ownerScope, id, domain.ReminderResolved, now)
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ierr.NewError("reminder id is required").
			WithHint("A reminder id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, ownerScope, id string, to domain.ReminderStatus, now time.Time) (domain.ReminderState, error) {
	if err := requireNow(now); err != nil {
		return domain.ReminderState{}, err
	}
	if err := requireScope(ownerScope); err != nil {
		return domain.ReminderState{}, err
	}
	if err := requireID(id); err != nil {
		return domain.ReminderState{}, err
	}

	r, err := s.reminders.Transition(ctx, ports.Transition{
		ReminderID: id,
		OwnerID:    ownerScope,
		From:       domain.AllowedFrom(to),
		To:         to,
		At:         now,
	})
	if err != nil {
		metrics.ReminderTransitions.WithLabelValues(string(to), ierr.Code(err)).Inc()
		return domain.ReminderState{}, err
	}
	metrics.ReminderTransitions.WithLabelValues(string(to), "ok").Inc()
	s.log.Infow("reminder transitioned",
		"reminder_id", r.ID,
		"state", r.State,
		"owner", r.OwnerID,
	)
	return r, nil
}

// List returns the reminders of an owner joined with their invoices, most
// overdue first. Days overdue is computed against now.
func (s *Service) List(ctx context.Context, ownerScope string, now time.Time) ([]domain.ReminderView, error) {
	if err := requireNow(now); err != nil {
		return nil, err
	}
	if err := requireScope(ownerScope); err != nil {
		return nil, err
	}
	states, err := s.reminders.ListReminders(ctx, ownerScope)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return []domain.ReminderView{}, nil
	}

	ids := lo.Uniq(lo.Map(states, func(r domain.ReminderState, _ int) string { return r.InvoiceID }))
	invoices, err := s.invoices.GetInvoices(ctx, ids)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not load invoices for reminders").
			Mark(ierr.ErrSourceUnavailable)
	}

	views := make([]domain.ReminderView, 0, len(states))
	for _, r := range states {
		v := domain.ReminderView{ReminderState: r}
		if inv, ok := invoices[r.InvoiceID]; ok {
			v.InvoiceNumber = inv.Number
			v.ClientName = inv.ClientName
			v.Amount = inv.Total
			v.DueDate = inv.DueDate
			v.DaysOverdue = inv.DaysOverdue(now)
		} else {
			s.log.Warnw("reminder references unknown invoice",
				"reminder_id", r.ID,
				"invoice_id", r.InvoiceID,
			)
		}
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].DaysOverdue != views[j].DaysOverdue {
			return views[i].DaysOverdue > views[j].DaysOverdue
		}
		if views[i].InvoiceNumber != views[j].InvoiceNumber {
			return views[i].InvoiceNumber < views[j].InvoiceNumber
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

// Summary counts open reminders by state and those resolved during the
// calendar month of now.
func (s *Service) Summary(ctx context.Context, ownerScope string, now time.Time) (domain.ReminderSummary, error) {
	var sum domain.ReminderSummary
	if err := requireNow(now); err != nil {
		return sum, err
	}
	if err := requireScope(ownerScope); err != nil {
		return sum, err
	}
	states, err := s.reminders.ListReminders(ctx, ownerScope)
	if err != nil {
		return sum, err
	}
	year, month, _ := now.Date()
	for _, r := range states {
		switch r.State {
		case domain.ReminderPending:
			sum.Pending++
		case domain.ReminderEscalated:
			sum.Escalated++
		case domain.ReminderResolved:
			if r.ResolvedAt == nil {
				continue
			}
			ry, rm, _ := r.ResolvedAt.In(now.Location()).Date()
			if ry == year && rm == month {
				sum.ResolvedThisMonth++
			}
		}
	}
	return sum, nil
}

// Contacts returns the audit trail of a reminder, oldest first. A reminder
// of another owner is reported as not found.
func (s *Service) Contacts(ctx context.Context, ownerScope, id string) ([]domain.ReminderContact, error) {
	if err := requireScope(ownerScope); err != nil {
		return nil, err
	}
	if err := requireID(id); err != nil {
		return nil, err
	}
	if _, err := s.reminders.GetReminder(ctx, ownerScope, id); err != nil {
		return nil, err
	}
	contacts, err := s.reminders.ListContacts(ctx, id)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []domain.ReminderContact{}
	}
	return contacts, nil
}
