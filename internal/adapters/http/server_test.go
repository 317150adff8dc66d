package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"trackdesk/internal/domain"
	"trackdesk/internal/ports"
	"trackdesk/internal/services/feed"
	"trackdesk/internal/services/reminders"
	"trackdesk/internal/services/sources"
	"trackdesk/internal/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type ServerSuite struct {
	suite.Suite
	store   *testutil.InMemoryStore
	handler http.Handler
	health  error
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.store = testutil.NewInMemoryStore()
	s.health = nil
	s.store.AddDomain(domain.DomainRecord{
		ID: "d1", OwnerID: "owner-1", ClientName: "Acme", DomainName: "acme.ca",
		ExpirationDate: testutil.Date(2025, time.January, 15),
	})
	s.store.AddHosting(domain.HostingRecord{
		ID: "h1", OwnerID: "owner-1", ClientName: "Globex", Server: "srv-01",
		ExpirationDate: testutil.Date(2025, time.June, 1),
	})
	s.store.AddInvoice(domain.Invoice{
		ID: "inv-1", OwnerID: "owner-1", Number: "F-001", ClientName: "Acme",
		DueDate: testutil.Date(2024, time.December, 20),
		Total:   decimal.RequireFromString("300"),
		Status:  domain.InvoicePending,
	})

	feeds := feed.New(sources.All(s.store), time.Second, nil)
	rem := reminders.New(s.store, s.store, nil)
	clock := func() time.Time { return time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC) }
	s.handler = New(feeds, rem, pingFunc(func(context.Context) error { return s.health }), Options{Now: clock}).Routes()
}

func (s *ServerSuite) do(method, target, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *ServerSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)

	s.health = errors.New("db down")
	rec = s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *ServerSuite) TestFeed() {
	rec := s.do(http.MethodGet, "/v1/feed", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Header().Get("Content-Type"), "application/json")

	var f domain.Feed
	s.decode(rec, &f)
	s.Require().Len(f.Items, 3)
	s.Equal("inv-1", f.Items[0].ID)
	s.Equal(domain.StatusExpired, f.Items[0].Status)
	s.Equal("d1", f.Items[1].ID)
	s.Equal(14, f.Items[1].DaysRemaining)
	s.Equal(domain.Counts{Active: 1, Expiring: 1, Expired: 1}, f.Counts)
	s.Len(f.WindowItems, 1)
	s.Empty(f.Failures)
}

func (s *ServerSuite) TestFeedSearchAndPinnedDate() {
	rec := s.do(http.MethodGet, "/v1/feed?search=globex&now=2025-05-15", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)

	var f domain.Feed
	s.decode(rec, &f)
	s.Require().Len(f.Items, 1)
	s.Equal("h1", f.Items[0].ID)
	s.Equal(17, f.Items[0].DaysRemaining)
	s.Equal(domain.StatusExpiring, f.Items[0].Status)
}

func (s *ServerSuite) TestMissingOwner() {
	rec := s.do(http.MethodGet, "/v1/feed", "")
	s.Equal(http.StatusBadRequest, rec.Code)

	var body errorResponse
	s.decode(rec, &body)
	s.Equal("validation_error", body.Error.Code)
	s.Equal("The X-Owner-ID header is required", body.Error.Message)
}

func (s *ServerSuite) TestBadNow() {
	rec := s.do(http.MethodGet, "/v1/feed?now=yesterday", "owner-1")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestReminderLifecycle() {
	rec := s.do(http.MethodPost, "/v1/reminders/materialize", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var created map[string]int
	s.decode(rec, &created)
	s.Equal(1, created["created"])

	rec = s.do(http.MethodGet, "/v1/reminders", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var list struct {
		Items []domain.ReminderView `json:"items"`
	}
	s.decode(rec, &list)
	s.Require().Len(list.Items, 1)
	s.Equal(12, list.Items[0].DaysOverdue)
	s.Equal("F-001", list.Items[0].InvoiceNumber)
	id := list.Items[0].ID

	rec = s.do(http.MethodPost, "/v1/reminders/"+id+"/escalate", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var escalated domain.ReminderState
	s.decode(rec, &escalated)
	s.Equal(domain.ReminderEscalated, escalated.State)
	s.NotNil(escalated.LastContactAt)

	rec = s.do(http.MethodGet, "/v1/reminders/"+id+"/contacts", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var contacts struct {
		Items []domain.ReminderContact `json:"items"`
	}
	s.decode(rec, &contacts)
	s.Len(contacts.Items, 1)

	rec = s.do(http.MethodPost, "/v1/reminders/"+id+"/resolve", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/v1/reminders/"+id+"/escalate", "owner-1")
	s.Equal(http.StatusConflict, rec.Code)
	var body errorResponse
	s.decode(rec, &body)
	s.Equal("invalid_transition", body.Error.Code)

	rec = s.do(http.MethodGet, "/v1/reminders/summary", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var sum domain.ReminderSummary
	s.decode(rec, &sum)
	s.Equal(domain.ReminderSummary{ResolvedThisMonth: 1}, sum)
}

func (s *ServerSuite) TestUnknownReminder() {
	rec := s.do(http.MethodPost, "/v1/reminders/rem_missing/escalate", "owner-1")
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/v1/reminders/rem_missing/contacts", "owner-1")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/healthz", "")
	rec := s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "trackdesk_http_requests_total")
}

func (s *ServerSuite) materialize() string {
	rec := s.do(http.MethodPost, "/v1/reminders/materialize", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	views, err := reminders.New(s.store, s.store, nil).List(context.Background(), "owner-1", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	return views[0].ID
}

func (s *ServerSuite) TestOtherTenantGetsNotFound() {
	id := s.materialize()

	for _, target := range []string{
		"/v1/reminders/" + id + "/resolve",
		"/v1/reminders/" + id + "/escalate",
	} {
		rec := s.do(http.MethodPost, target, "intruder")
		s.Equal(http.StatusNotFound, rec.Code, target)
	}
	rec := s.do(http.MethodGet, "/v1/reminders/"+id+"/contacts", "intruder")
	s.Equal(http.StatusNotFound, rec.Code)

	stored, err := s.store.GetReminder(context.Background(), "owner-1", id)
	s.Require().NoError(err)
	s.Equal(domain.ReminderPending, stored.State)
}

func (s *ServerSuite) TestReminderRoutesRequireOwner() {
	id := s.materialize()

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/v1/reminders/"+id+"/resolve", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/v1/reminders/"+id+"/escalate", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/reminders/"+id+"/contacts", "").Code)
}

func (s *ServerSuite) TestEmptyContactsRenderAsList() {
	id := s.materialize()

	rec := s.do(http.MethodGet, "/v1/reminders/"+id+"/contacts", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"items":[]}`, rec.Body.String())
}

func (s *ServerSuite) TestNowAcceptsInstant() {
	rec := s.do(http.MethodGet, "/v1/feed?now=2025-01-10T23:30:00Z", "owner-1")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var f domain.Feed
	s.decode(rec, &f)
	s.Require().Len(f.Items, 3)
	s.Equal("d1", f.Items[1].ID)
	s.Equal(5, f.Items[1].DaysRemaining)
}

func (s *ServerSuite) TestNowDateUsesBusinessZone() {
	loc, err := time.LoadLocation("America/Toronto")
	s.Require().NoError(err)
	handler := New(feed.New(sources.All(s.store), time.Second, nil), reminders.New(s.store, s.store, nil), nil, Options{Location: loc}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/feed?now=2025-01-14", nil)
	req.Header.Set(OwnerHeader, "owner-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var f domain.Feed
	s.decode(rec, &f)
	s.Equal(1, f.Items[1].DaysRemaining)
	s.True(f.GeneratedAt.Equal(time.Date(2025, time.January, 14, 0, 0, 0, 0, loc)))
}

func (s *ServerSuite) TestPartialFeedHeader() {
	s.Empty(s.do(http.MethodGet, "/v1/feed", "owner-1").Header().Get(PartialHeader))

	failing := feed.New([]ports.Source{
		testutil.StaticSource{SourceKind: domain.SourceDomain, Err: testutil.ErrStoreDown},
	}, time.Second, nil)
	handler := New(failing, reminders.New(s.store, s.store, nil), nil, Options{}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set(OwnerHeader, "owner-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("true", rec.Header().Get(PartialHeader))
}
