package httpadapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/logger"
	"trackdesk/internal/metrics"
	"trackdesk/internal/ports"
)

// OwnerHeader carries the tenant the request is scoped to. Authentication
// happens upstream; this service trusts the header.
const OwnerHeader = "X-Owner-ID"

// PartialHeader is set on feed responses when at least one source failed.
const PartialHeader = "X-Feed-Partial"

// HealthChecker reports whether backing stores are reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// Location is the business time zone "today" is evaluated in.
	Location *time.Location
	// Now is the server clock; tests pin it.
	Now func() time.Time
	Log *logger.Logger
}

type Server struct {
	feeds     ports.Feeds
	reminders ports.Reminders
	health    HealthChecker
	loc       *time.Location
	now       func() time.Time
	log       *logger.Logger
}

func New(feeds ports.Feeds, reminders ports.Reminders, health HealthChecker, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Server{
		feeds:     feeds,
		reminders: reminders,
		health:    health,
		loc:       opts.Location,
		now:       opts.Now,
		log:       opts.Log,
	}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		MaxAge:         300,
	}))
	r.Use(s.observe)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", s.getHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		v.Get("/feed", s.getFeed)
		v.Route("/reminders", func(rr chi.Router) {
			rr.Get("/", s.listReminders)
			rr.Get("/summary", s.getReminderSummary)
			rr.Post("/materialize", s.postMaterialize)
			rr.Post("/{id}/escalate", s.postEscalate)
			rr.Post("/{id}/resolve", s.postResolve)
			rr.Get("/{id}/contacts", s.getContacts)
		})
	})
	return r
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debugw("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	owner, now, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	feed, err := s.feeds.BuildFeed(r.Context(), ports.FeedRequest{
		OwnerScope: owner,
		Now:        now,
		Search:     r.URL.Query().Get("search"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if feed.Partial() {
		w.Header().Set(PartialHeader, "true")
	}
	render.JSON(w, r, feed)
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	owner, now, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views, err := s.reminders.List(r.Context(), owner, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"items": views})
}

func (s *Server) getReminderSummary(w http.ResponseWriter, r *http.Request) {
	owner, now, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.reminders.Summary(r.Context(), owner, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, sum)
}

func (s *Server) postMaterialize(w http.ResponseWriter, r *http.Request) {
	owner, now, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.reminders.MaterializeOverdue(r.Context(), owner, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int{"created": created})
}

func (s *Server) postEscalate(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.reminders.Escalate)
}

func (s *Server) postResolve(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.reminders.Resolve)
}

type transitionFunc func(ctx context.Context, ownerScope, id string, now time.Time) (domain.ReminderState, error)

func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	owner, now, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := reminderID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rem, err := apply(r.Context(), owner, id, now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, rem)
}

func (s *Server) getContacts(w http.ResponseWriter, r *http.Request) {
	owner, _, err := s.scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := reminderID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contacts, err := s.reminders.Contacts(r.Context(), owner, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"items": contacts})
}

func reminderID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Invalid format for parameter id").
			Mark(ierr.ErrValidation)
	}
	return id, nil
}

// scope extracts the owner and the reference time of a request. The time
// defaults to the server clock; ?now=YYYY-MM-DD or RFC 3339 pins it.
func (s *Server) scope(r *http.Request) (string, time.Time, error) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		return "", time.Time{}, ierr.NewError("missing owner header").
			WithHintf("The %s header is required", OwnerHeader).
			Mark(ierr.ErrValidation)
	}
	now, err := s.pinnedNow(r.URL.Query())
	if err != nil {
		return "", time.Time{}, err
	}
	return owner, now, nil
}

// pinnedNow binds the optional now query parameter. A calendar date is read
// as midnight in the business time zone.
func (s *Server) pinnedNow(query url.Values) (time.Time, error) {
	if query.Get("now") == "" {
		return s.now().In(s.loc), nil
	}

	var day *openapi_types.Date
	if err := runtime.BindQueryParameter("form", true, false, "now", query, &day); err == nil && day != nil {
		y, m, d := day.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, s.loc), nil
	}

	var instant *time.Time
	if err := runtime.BindQueryParameter("form", true, false, "now", query, &instant); err != nil || instant == nil {
		return time.Time{}, ierr.NewError("invalid now parameter").
			WithHint("now must be YYYY-MM-DD or RFC 3339").
			Mark(ierr.ErrValidation)
	}
	return instant.In(s.loc), nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ierr.HTTPStatusFromErr(err)
	msg := http.StatusText(status)
	if hints := ierr.Hints(err); len(hints) > 0 && status < http.StatusInternalServerError {
		msg = hints[0]
	}
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: errorBody{Code: ierr.Code(err), Message: msg}})
}
