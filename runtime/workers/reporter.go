package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/observability"
)

// ReporterWorker periodically logs a snapshot of the relay's telemetry.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			w.log.Info("Reporter stopped")
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time) {
	stats := w.monitoring.Snapshot()
	w.log.Info("Relay stats",
		"uptime", observability.Uptime(startTime),
		"connections", stats.ActiveConnections,
		"stored", stats.MessagesStored,
		"broadcasts", stats.Broadcasts,
		"dropped", stats.FramesDropped,
		"rejected", stats.FramesRejected,
		"alloc_mb", stats.AllocMemMb,
	)
}
