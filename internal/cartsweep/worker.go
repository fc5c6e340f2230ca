package cartsweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// SweepCartsArgs carries no payload; the TTL is worker configuration.
type SweepCartsArgs struct{}

func (SweepCartsArgs) Kind() string { return "sweep_carts" }

// CartStore purges cart lines staged before the cutoff.
type CartStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Worker drops cart lines older than the TTL. Carts are staging only, so
// stale lines carry no reservations and can be purged without touching
// balances or inventory.
type Worker struct {
	river.WorkerDefaults[SweepCartsArgs]
	carts CartStore
	ttl   time.Duration
	log   *slog.Logger
}

func NewWorker(carts CartStore, ttl time.Duration, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Worker{carts: carts, ttl: ttl, log: log}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[SweepCartsArgs]) error {
	cutoff := time.Now().Add(-w.ttl)
	purged, err := w.carts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		w.log.Info("swept stale cart lines", "purged", purged, "cutoff", cutoff)
	}
	return nil
}
