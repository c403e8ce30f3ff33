// Package main is the entry point for the medcore background worker.
// It relays outbox events and expires idempotency keys; it needs the
// postgres store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"medcore/internal/app"
	appctx "medcore/internal/core/context"
	"medcore/internal/domain/notification"
	"medcore/internal/infrastructure/config"
	"medcore/internal/infrastructure/storage/postgres"
	"medcore/pkg/logger"
)

const cleanupInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.App.Store != config.StorePostgres {
		log.Fatalw("worker requires the postgres store", "store", cfg.App.Store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting medcore worker")

	backend, err := app.NewPostgresBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer backend.Close()

	worker := &Worker{
		pool:        backend.Pool,
		relay:       postgres.NewOutboxRelay(backend.Pool, cfg.Outbox.BatchSize, notification.LogSender{}),
		idempotency: backend.Idempotency,
		cfg:         cfg.Outbox,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic outbox and idempotency jobs.
type Worker struct {
	pool        *postgres.Pool
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	cfg         config.OutboxConfig
	log         *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	pollTicker := time.NewTicker(w.cfg.PollInterval)
	defer pollTicker.Stop()

	dlqTicker := time.NewTicker(w.cfg.DLQInterval)
	defer dlqTicker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			w.processOutbox(appctx.ForJob(ctx, "outbox"))
		case <-dlqTicker.C:
			w.moveToDLQ(appctx.ForJob(ctx, "outbox-dlq"))
		case <-cleanupTicker.C:
			jobCtx := appctx.ForJob(ctx, "cleanup")
			w.purgeOutbox(jobCtx)
			w.cleanupIdempotency(jobCtx)
			w.pool.LogStats(jobCtx)
		}
	}
}

// processOutbox drains full batches so a backlog clears within one tick.
func (w *Worker) processOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.WithContext(ctx).Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.WithContext(ctx).Debugw("processed outbox batch", "count", n)
		}
		if n < w.cfg.BatchSize {
			return
		}
	}
}

func (w *Worker) moveToDLQ(ctx context.Context) {
	n, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.WithContext(ctx).Errorw("outbox dlq sweep failed", "error", err)
		return
	}
	if n > 0 {
		w.log.WithContext(ctx).Warnw("moved outbox messages to dlq", "count", n)
	}
}

func (w *Worker) purgeOutbox(ctx context.Context) {
	n, err := w.relay.PurgePublished(ctx, w.cfg.PurgeRetention)
	if err != nil {
		w.log.WithContext(ctx).Errorw("outbox purge failed", "error", err)
		return
	}
	if n > 0 {
		w.log.WithContext(ctx).Infow("purged published outbox messages", "count", n)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.WithContext(ctx).Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.WithContext(ctx).Infow("cleaned up idempotency keys", "count", n)
	}
}
