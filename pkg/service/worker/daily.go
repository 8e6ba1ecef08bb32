package worker

import (
	"context"
	"time"

	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// Job is one unit of scheduled work. Jobs must be idempotent; running them
// extra times is safe.
type Job func(ctx context.Context) error

// DailyWorker runs a job once per day at a fixed UTC clock time
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type DailyWorker struct {
	name       string
	hour       int
	minute     int
	runAtStart bool
	job        Job
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewDailyWorker creates a worker that runs job at hour:minute UTC every day.
// When runAtStart is true the job also runs once immediately on Start.
func NewDailyWorker(name string, hour, minute int, runAtStart bool, job Job) *DailyWorker {
	return &DailyWorker{
		name:       name,
		hour:       hour,
		minute:     minute,
		runAtStart: runAtStart,
		job:        job,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background loop; it does not block server startup
func (w *DailyWorker) Start(ctx context.Context) {
	logging.Default().Info("daily worker starting",
		"name", w.name,
		"at_utc", time.Date(0, 1, 1, w.hour, w.minute, 0, 0, time.UTC).Format("15:04"),
		"run_at_start", w.runAtStart,
	)

	go w.run(ctx)
}

// Stop signals the worker to stop and waits for completion
func (w *DailyWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("daily worker stopped", "name", w.name)
}

// run is the main worker loop (runs in goroutine)
func (w *DailyWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if w.runAtStart {
		w.runOnce(ctx)
	}

	for {
		timer := time.NewTimer(time.Until(w.nextRun(time.Now())))

		select {
		case <-timer.C:
			w.runOnce(ctx)

		case <-w.stopCh:
			timer.Stop()
			return

		case <-ctx.Done():
			timer.Stop()
			logging.Default().Info("daily worker context cancelled", "name", w.name)
			return
		}
	}
}

// nextRun computes the next occurrence of the configured UTC clock time.
// The time zone is explicit; the ambient process zone is never consulted.
func (w *DailyWorker) nextRun(now time.Time) time.Time {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), w.hour, w.minute, 0, 0, time.UTC)
	if !next.After(utc) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// runOnce executes the job, logging failures without stopping the loop
func (w *DailyWorker) runOnce(ctx context.Context) {
	start := time.Now()
	if err := w.job(ctx); err != nil {
		logging.Default().Error("daily job failed (will retry next day)",
			"name", w.name,
			"error", err.Error(),
		)
		return
	}
	logging.Default().Info("daily job completed",
		"name", w.name,
		"duration", time.Since(start).String(),
	)
}
