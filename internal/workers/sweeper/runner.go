package sweeper

import (
	"context"
	"sync"
	"time"

	"trackdesk/internal/domain"
	"trackdesk/internal/logger"
	"trackdesk/internal/ports"
)

// Runner periodically materializes reminders for every owner with overdue invoices.
type Runner struct {
	Owners       ports.OverdueOwners
	Materializer ports.Materializer
	Workers      int
	Interval     time.Duration
	// Now supplies the sweep reference time, already in the business time zone.
	Now func() time.Time
	Log *logger.Logger
}

// Run starts the dispatcher and worker goroutines and returns immediately.
// Everything stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.Workers < 1 || r.Interval <= 0 {
		return
	}
	jobsCh := make(chan ports.SweepJob, r.Workers)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			if !r.dispatch(ctx, jobsCh) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// workers
	for i := 0; i < r.Workers; i++ {
		go func(idx int) {
			for job := range jobsCh {
				r.process(ctx, idx, job)
			}
		}(i)
	}
}

// dispatch queues one job per overdue owner. It returns false once ctx is done.
func (r *Runner) dispatch(ctx context.Context, jobsCh chan<- ports.SweepJob) bool {
	now := r.Now()
	owners, err := r.Owners.ListOverdueOwners(ctx, domain.CalendarDay(now))
	if err != nil {
		r.Log.Errorw("sweep owner listing failed", "error", err)
		return ctx.Err() == nil
	}
	for _, owner := range owners {
		select {
		case <-ctx.Done():
			return false
		case jobsCh <- ports.SweepJob{OwnerID: owner, Now: now}:
		}
	}
	return true
}

func (r *Runner) process(ctx context.Context, worker int, job ports.SweepJob) int {
	created, err := r.Materializer.MaterializeOverdue(ctx, job.OwnerID, job.Now)
	if err != nil {
		r.Log.Errorw("sweep failed", "worker", worker, "owner", job.OwnerID, "error", err)
		return created
	}
	if created > 0 {
		r.Log.Infow("sweep materialized reminders", "worker", worker, "owner", job.OwnerID, "created", created)
	}
	return created
}

// SweepOnce runs one full sweep synchronously with the same worker count and
// returns the number of reminders created.
func (r *Runner) SweepOnce(ctx context.Context) (int, error) {
	now := r.Now()
	owners, err := r.Owners.ListOverdueOwners(ctx, domain.CalendarDay(now))
	if err != nil {
		return 0, err
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	jobsCh := make(chan ports.SweepJob)
	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				n := r.process(ctx, idx, job)
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}(i)
	}
	for _, owner := range owners {
		jobsCh <- ports.SweepJob{OwnerID: owner, Now: now}
	}
	close(jobsCh)
	wg.Wait()
	return total, ctx.Err()
}
