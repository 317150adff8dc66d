package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/ports"
)

// InMemoryStore implements every store port over maps guarded by one mutex.
// Transitions hold the write lock for the whole compare-and-set.
type InMemoryStore struct {
	mu        sync.RWMutex
	domains   []domain.DomainRecord
	hosting   []domain.HostingRecord
	loi25     []domain.Loi25Record
	invoices  map[string]domain.Invoice
	reminders map[string]domain.ReminderState
	byInvoice map[string]string
	contacts  map[string][]domain.ReminderContact
}

var (
	_ ports.DomainStore   = (*InMemoryStore)(nil)
	_ ports.HostingStore  = (*InMemoryStore)(nil)
	_ ports.Loi25Store    = (*InMemoryStore)(nil)
	_ ports.InvoiceStore  = (*InMemoryStore)(nil)
	_ ports.ReminderStore = (*InMemoryStore)(nil)
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		invoices:  make(map[string]domain.Invoice),
		reminders: make(map[string]domain.ReminderState),
		byInvoice: make(map[string]string),
		contacts:  make(map[string][]domain.ReminderContact),
	}
}

func (s *InMemoryStore) AddDomain(r domain.DomainRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = append(s.domains, r)
}

func (s *InMemoryStore) AddHosting(r domain.HostingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosting = append(s.hosting, r)
}

func (s *InMemoryStore) AddLoi25(r domain.Loi25Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loi25 = append(s.loi25, r)
}

func (s *InMemoryStore) AddInvoice(inv domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
}

func (s *InMemoryStore) ListDomains(_ context.Context, ownerID string) ([]domain.DomainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.domains, func(r domain.DomainRecord, _ int) bool { return r.OwnerID == ownerID }), nil
}

func (s *InMemoryStore) ListHosting(_ context.Context, ownerID string) ([]domain.HostingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.hosting, func(r domain.HostingRecord, _ int) bool { return r.OwnerID == ownerID }), nil
}

func (s *InMemoryStore) ListLoi25(_ context.Context, ownerID string) ([]domain.Loi25Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.loi25, func(r domain.Loi25Record, _ int) bool { return r.OwnerID == ownerID }), nil
}

func (s *InMemoryStore) ListUnpaidDueBefore(_ context.Context, ownerID string, day time.Time) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Invoice
	for _, inv := range s.invoices {
		if inv.OwnerID == ownerID && !inv.IsPaid() && domain.CalendarDay(inv.DueDate).Before(domain.CalendarDay(day)) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) GetInvoices(_ context.Context, ids []string) (map[string]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Invoice, len(ids))
	for _, id := range ids {
		if inv, ok := s.invoices[id]; ok {
			out[id] = inv
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListOverdueOwners(_ context.Context, day time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owners []string
	for _, inv := range s.invoices {
		if !inv.IsPaid() && domain.CalendarDay(inv.DueDate).Before(domain.CalendarDay(day)) {
			owners = append(owners, inv.OwnerID)
		}
	}
	owners = lo.Uniq(owners)
	sort.Strings(owners)
	return owners, nil
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, r domain.ReminderState) (domain.ReminderState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byInvoice[r.InvoiceID]; ok {
		return s.reminders[id], false, nil
	}
	s.reminders[r.ID] = r
	s.byInvoice[r.InvoiceID] = r.ID
	return r, true, nil
}

func reminderNotFound(id string) error {
	return ierr.NewError("reminder not found").WithHintf("reminder %s not found", id).Mark(ierr.ErrNotFound)
}

func (s *InMemoryStore) GetReminder(_ context.Context, ownerID, id string) (domain.ReminderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok || r.OwnerID != ownerID {
		return domain.ReminderState{}, reminderNotFound(id)
	}
	return r, nil
}

func (s *InMemoryStore) ListReminders(_ context.Context, ownerID string) ([]domain.ReminderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Filter(lo.Values(s.reminders), func(r domain.ReminderState, _ int) bool { return r.OwnerID == ownerID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) Transition(_ context.Context, t ports.Transition) (domain.ReminderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[t.ReminderID]
	if !ok || r.OwnerID != t.OwnerID {
		return domain.ReminderState{}, reminderNotFound(t.ReminderID)
	}
	if !lo.Contains(t.From, r.State) {
		return domain.ReminderState{}, ierr.NewError("invalid reminder transition").
			WithHintf("cannot move reminder from %s to %s", r.State, t.To).
			Mark(ierr.ErrInvalidTransition)
	}
	at := t.At
	r.State = t.To
	r.UpdatedAt = at
	switch t.To {
	case domain.ReminderEscalated:
		r.LastContactAt = &at
		s.contacts[r.ID] = append(s.contacts[r.ID], domain.ReminderContact{
			ID:          domain.NewID("rct"),
			ReminderID:  r.ID,
			ContactedAt: at,
		})
	case domain.ReminderResolved:
		r.ResolvedAt = &at
	}
	s.reminders[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) ListContacts(_ context.Context, reminderID string) ([]domain.ReminderContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ReminderContact(nil), s.contacts[reminderID]...), nil
}

// ReminderCount is the number of stored reminders, for idempotence checks.
func (s *InMemoryStore) ReminderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reminders)
}
