package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/karakol/delivery/internal/dal/uow"
)

// assigner is the slice of the dispatch engine the worker needs.
type assigner interface {
	AttemptAssign(ctx context.Context, orderID int64) (bool, error)
}

// Worker periodically sweeps unassigned orders and retries automatic courier
// assignment, picking up orders that checked out while no courier was free.
type Worker struct {
	uowFactory   uow.Factory
	dispatch     assigner
	pollInterval time.Duration
	batchSize    int
	stopCh       chan struct{}
}

// NewWorker creates a new dispatch worker.
func NewWorker(uowFactory uow.Factory, dispatch assigner) *Worker {
	pollIntervalSeconds := viper.GetInt("dispatch.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 15
	}

	batchSize := viper.GetInt("dispatch.batch_size")
	if batchSize == 0 {
		batchSize = 50
	}

	return &Worker{
		uowFactory:   uowFactory,
		dispatch:     dispatch,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the assignment sweep loop.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Dispatch worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatch worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Dispatch worker stopped")

			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) sweep(ctx context.Context) {
	work := w.uowFactory()

	ids, err := work.Orders().ListUnassigned(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to list unassigned orders", "error", err)

		return
	}

	assigned := 0
	for _, id := range ids {
		ok, err := w.dispatch.AttemptAssign(ctx, id)
		if err != nil {
			slog.Error("Failed to assign order", "order_id", id, "error", err)

			continue
		}
		if ok {
			assigned++
		}
	}

	if assigned > 0 {
		slog.Info("Dispatch sweep finished", "candidates", len(ids), "assigned", assigned)
	}
}
