package sources

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/testutil"
)

func seededStore() *testutil.InMemoryStore {
	s := testutil.NewInMemoryStore()
	s.AddDomain(domain.DomainRecord{
		ID: "d1", OwnerID: "owner-1", ClientName: "Acme",
		DomainName: "https://www.Acme.ca/", Hosted: true,
		ExpirationDate: testutil.Date(2025, time.March, 1),
		ReminderDate:   testutil.DatePtr(2025, time.February, 1),
	})
	s.AddDomain(domain.DomainRecord{
		ID: "d2", OwnerID: "owner-2", ClientName: "Other",
		DomainName: "other.com", ExpirationDate: testutil.Date(2025, time.March, 1),
	})
	s.AddHosting(domain.HostingRecord{
		ID: "h1", OwnerID: "owner-1", ClientName: "Acme",
		Server: "srv-01", HostingType: "VPS",
		ExpirationDate: testutil.Date(2025, time.April, 1),
	})
	s.AddLoi25(domain.Loi25Record{
		ID: "l1", OwnerID: "owner-1", ClientName: "Acme",
		Domain: "boutique.acme.co.uk", ExpirationDate: testutil.Date(2025, time.May, 1),
	})
	s.AddInvoice(domain.Invoice{
		ID: "i1", OwnerID: "owner-1", Number: "F-2025-001", ClientName: "Acme",
		DueDate: testutil.Date(2024, time.December, 15), Total: decimal.RequireFromString("1250.00"),
		Status: domain.InvoicePending,
	})
	s.AddInvoice(domain.Invoice{
		ID: "i2", OwnerID: "owner-1", Number: "F-2025-002",
		DueDate: testutil.Date(2024, time.December, 1), Status: domain.InvoicePaid,
	})
	s.AddInvoice(domain.Invoice{
		ID: "i3", OwnerID: "owner-1", Number: "F-2025-003",
		DueDate: testutil.Date(2025, time.January, 1), Status: domain.InvoiceOverdue,
	})
	return s
}

func TestDomains(t *testing.T) {
	items, err := NewDomains(seededStore()).ListActive(context.Background(), "owner-1", testutil.Date(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, domain.SourceDomain, got.SourceType)
	assert.Equal(t, "acme.ca", got.Label)
	assert.Equal(t, "Acme", got.Owner)
	assert.Equal(t, "hosted", got.Detail)
	assert.Equal(t, testutil.Date(2025, time.March, 1), got.ExpirationDate)
	require.NotNil(t, got.ReminderDate)
	assert.Empty(t, got.Status, "adapters do not classify")
}

func TestHostingAndLoi25(t *testing.T) {
	store := seededStore()
	now := testutil.Date(2025, time.January, 1)

	hosting, err := NewHosting(store).ListActive(context.Background(), "owner-1", now)
	require.NoError(t, err)
	require.Len(t, hosting, 1)
	assert.Equal(t, "srv-01", hosting[0].Label)
	assert.Equal(t, "VPS", hosting[0].Detail)

	loi25, err := NewLoi25(store).ListActive(context.Background(), "owner-1", now)
	require.NoError(t, err)
	require.Len(t, loi25, 1)
	assert.Equal(t, "acme.co.uk", loi25[0].Label)
	assert.Equal(t, domain.SourceLoi25, loi25[0].SourceType)
}

func TestInvoicesOnlyOverdueUnpaid(t *testing.T) {
	items, err := NewInvoices(seededStore()).ListActive(context.Background(), "owner-1", testutil.Date(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "i1", got.ID)
	assert.Equal(t, domain.SourceInvoiceReminder, got.SourceType)
	assert.Equal(t, "F-2025-001", got.Label)
	assert.Nil(t, got.ReminderDate)
	require.NotNil(t, got.Amount)
	assert.True(t, decimal.RequireFromString("1250").Equal(*got.Amount))
}

func TestUnknownOwnerIsEmpty(t *testing.T) {
	for _, src := range All(seededStore()) {
		items, err := src.ListActive(context.Background(), "nobody", testutil.Date(2025, time.January, 1))
		require.NoError(t, err, src.Kind())
		assert.Empty(t, items, src.Kind())
	}
}

func TestEmptyScopeIsRejected(t *testing.T) {
	for _, src := range All(seededStore()) {
		_, err := src.ListActive(context.Background(), "  ", testutil.Date(2025, time.January, 1))
		assert.True(t, ierr.IsValidation(err), src.Kind())
	}
}

func TestStoreFailureIsSourceUnavailable(t *testing.T) {
	for _, src := range All(testutil.FailingStore{}) {
		_, err := src.ListActive(context.Background(), "owner-1", testutil.Date(2025, time.January, 1))
		require.Error(t, err)
		assert.True(t, ierr.IsSourceUnavailable(err), src.Kind())
		assert.ErrorIs(t, err, testutil.ErrStoreDown)
		assert.Contains(t, ierr.Hints(err), "Could not load "+string(src.Kind())+" records")
	}
}

func TestAllOrder(t *testing.T) {
	srcs := All(seededStore())
	require.Len(t, srcs, len(domain.SourceTypes))
	for i, src := range srcs {
		assert.Equal(t, domain.SourceTypes[i], src.Kind())
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "example.com", want: "example.com"},
		{in: "  WWW.Example.COM ", want: "example.com"},
		{in: "https://shop.example.com/path?q=1", want: "example.com"},
		{in: "http://example.com:8080", want: "example.com"},
		{in: "boutique.exemple.qc.ca", want: "exemple.qc.ca"},
		{in: "a.b.example.co.uk", want: "example.co.uk"},
		{in: "localhost", want: "localhost"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistrableDomain(tt.in))
		})
	}
}
