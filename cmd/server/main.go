package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "trackdesk/internal/adapters/http"
	pg "trackdesk/internal/adapters/postgres"
	sb "trackdesk/internal/adapters/supabase"
	"trackdesk/internal/config"
	"trackdesk/internal/logger"
	"trackdesk/internal/ports"
	feedsvc "trackdesk/internal/services/feed"
	remindersvc "trackdesk/internal/services/reminders"
	"trackdesk/internal/services/sources"
	"trackdesk/internal/workers/sweeper"
)

// recordStore is everything the sources and the reminder joins read from.
type recordStore interface {
	ports.DomainStore
	ports.HostingStore
	ports.Loi25Store
	ports.InvoiceStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.Fatalf("db connect error: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			lg.Fatalf("migrations failed: %v", err)
		}
		lg.Infow("migrations applied")
	}

	// Reminder state always lives in Postgres; records may come from Supabase.
	var records recordStore = db
	if cfg.StoreBackend == config.BackendSupabase {
		store, err := sb.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			lg.Fatalf("supabase: %v", err)
		}
		records = store
	}
	lg.Infow("record store selected", "backend", cfg.StoreBackend)

	feeds := feedsvc.New(sources.All(records), cfg.FeedSourceTimeout, lg.With("component", "feed"))
	reminders := remindersvc.New(db, records, lg.With("component", "reminders"))

	clock := func() time.Time { return time.Now().In(cfg.Location) }

	if cfg.SweepWorkers > 0 && cfg.SweepInterval > 0 {
		runner := &sweeper.Runner{
			Owners:       records,
			Materializer: reminders,
			Workers:      cfg.SweepWorkers,
			Interval:     cfg.SweepInterval,
			Now:          clock,
			Log:          lg.With("component", "sweeper"),
		}
		runner.Run(ctx)
		lg.Infow("sweeper started", "workers", cfg.SweepWorkers, "interval", cfg.SweepInterval)
	}

	srv := httpadapter.New(feeds, reminders, db, httpadapter.Options{
		Location: cfg.Location,
		Now:      time.Now,
		Log:      lg.With("component", "http"),
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	lg.Infow("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		lg.Infow("shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Errorw("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalf("server error: %v", err)
		}
	}
}
