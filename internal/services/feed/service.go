package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/logger"
	"trackdesk/internal/metrics"
	"trackdesk/internal/ports"
)

// DefaultSourceTimeout bounds a single source call when none is configured.
const DefaultSourceTimeout = 5 * time.Second

type Service struct {
	sources []ports.Source
	timeout time.Duration
	log     *logger.Logger
}

func New(sources []ports.Source, timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{sources: sources, timeout: timeout, log: log}
}

// SourceResult is what one source returned for a feed build.
type SourceResult struct {
	Kind  domain.SourceType
	Items []domain.Trackable
	Err   error
}

// BuildFeed queries every source concurrently and aggregates whatever came
// back. Source failures, including timeouts, are reported in Feed.Failures;
// the only errors returned are caller mistakes.
func (s *Service) BuildFeed(ctx context.Context, req ports.FeedRequest) (*domain.Feed, error) {
	if req.Now.IsZero() {
		return nil, ierr.NewError("now is required").
			WithHint("A reference time is required to build the feed").
			Mark(ierr.ErrValidation)
	}
	if strings.TrimSpace(req.OwnerScope) == "" {
		return nil, ierr.NewError("owner scope is required").
			WithHint("An owner scope is required to build the feed").
			Mark(ierr.ErrValidation)
	}

	start := time.Now()
	defer func() { metrics.FeedBuildDuration.Observe(time.Since(start).Seconds()) }()

	p := pool.NewWithResults[SourceResult]()
	for _, src := range s.sources {
		p.Go(func() SourceResult {
			return s.call(ctx, src, req)
		})
	}
	results := p.Wait()

	f := Aggregate(req.Now, results, req.Search)
	for _, fl := range f.Failures {
		metrics.SourceFailures.WithLabelValues(string(fl.Source)).Inc()
		s.log.Warnw("feed source failed",
			"owner", req.OwnerScope,
			"source", fl.Source,
			"code", fl.Code,
			"error", fl.Message,
		)
	}
	s.log.Debugw("feed built",
		"owner", req.OwnerScope,
		"items", len(f.Items),
		"window", len(f.WindowItems),
		"failures", len(f.Failures),
	)
	return f, nil
}

// call runs one source under the per-source timeout. A source that ignores
// its context is abandoned when the deadline passes; a panic becomes a failure.
func (s *Service) call(ctx context.Context, src ports.Source, req ports.FeedRequest) SourceResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan SourceResult, 1)
	go func() {
		var res SourceResult
		var pc panics.Catcher
		pc.Try(func() {
			items, err := src.ListActive(ctx, req.OwnerScope, req.Now)
			res = SourceResult{Kind: src.Kind(), Items: items, Err: err}
		})
		if r := pc.Recovered(); r != nil {
			res = SourceResult{
				Kind: src.Kind(),
				Err: ierr.WithError(r.AsError()).
					WithHintf("Loading %s records failed unexpectedly", src.Kind()).
					Mark(ierr.ErrSystem),
			}
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return SourceResult{
			Kind: src.Kind(),
			Err: ierr.WithError(ctx.Err()).
				WithHintf("Timed out loading %s records", src.Kind()).
				Mark(ierr.ErrSourceUnavailable),
		}
	}
}

// Aggregate merges source results into a feed. It is pure: the same results
// and now always produce the same feed, whatever order results arrive in.
func Aggregate(now time.Time, results []SourceResult, search string) *domain.Feed {
	f := &domain.Feed{
		GeneratedAt: now,
		Items:       []domain.Trackable{},
		WindowItems: []domain.Trackable{},
		BySource:    make(map[domain.SourceType]int, len(domain.SourceTypes)),
	}

	for _, res := range results {
		if res.Err != nil {
			f.Failures = append(f.Failures, domain.SourceFailure{
				Source:  res.Kind,
				Code:    failureCode(res.Err),
				Message: failureMessage(res.Err),
			})
			continue
		}
		for _, t := range res.Items {
			if !t.Matches(search) {
				continue
			}
			f.Items = append(f.Items, domain.Annotate(t, now))
		}
	}

	sort.Slice(f.Items, func(i, j int) bool { return domain.Less(f.Items[i], f.Items[j]) })
	sort.Slice(f.Failures, func(i, j int) bool {
		return f.Failures[i].Source.Ordinal() < f.Failures[j].Source.Ordinal()
	})

	for _, t := range f.Items {
		f.Counts.Add(t.Status)
		f.BySource[t.SourceType]++
	}
	f.WindowItems = lo.Filter(f.Items, func(t domain.Trackable, _ int) bool { return t.InWindow() })
	return f
}

func failureCode(err error) string {
	if ierr.IsSourceUnavailable(err) {
		return ierr.ErrCodeSourceUnavailable
	}
	return ierr.Code(err)
}

func failureMessage(err error) string {
	if hints := ierr.Hints(err); len(hints) > 0 {
		return hints[0]
	}
	return err.Error()
}
