package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultDiscardRatio is the share of stale data a value-log file must hold
// before it is rewritten.
const DefaultDiscardRatio = 0.5

// Collector reclaims space in the on-disk body store.
// This allows us to fake the GC step in tests.
type Collector interface {
	RunGC(discardRatio float64) error
}

type Worker struct {
	collector    Collector
	logger       *zap.Logger
	interval     time.Duration
	discardRatio float64
}

// NewWorker runs GC on collector every interval.
func NewWorker(collector Collector, interval time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		collector:    collector,
		logger:       logger,
		interval:     interval,
		discardRatio: DefaultDiscardRatio,
	}
}

// Start runs the GC loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Value log GC disabled")
		return
	}
	w.logger.Info("Value log GC worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down")
			return
		case <-ticker.C:
			w.collect()
		}
	}
}

func (w *Worker) collect() {
	start := time.Now()
	if err := w.collector.RunGC(w.discardRatio); err != nil {
		w.logger.Error("Value log GC failed", zap.Error(err))
		return
	}
	w.logger.Debug("Value log GC complete", zap.Duration("took", time.Since(start)))
}
