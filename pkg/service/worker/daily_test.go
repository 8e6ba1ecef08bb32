package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestNextRun(t *testing.T) {
	w := NewDailyWorker("test", 6, 0, false, nil)

	t.Run("later today when the slot is still ahead", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC)
		gt.Value(t, w.nextRun(now)).Equal(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC))
	})

	t.Run("tomorrow when the slot has passed", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)
		gt.Value(t, w.nextRun(now)).Equal(time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC))
	})

	t.Run("exactly on the slot rolls to tomorrow", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
		gt.Value(t, w.nextRun(now)).Equal(time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC))
	})

	t.Run("non-UTC input resolves on the UTC calendar", func(t *testing.T) {
		est := time.FixedZone("EST", -5*60*60)
		// 03:00 EST is 08:00 UTC, past the 06:00 slot
		now := time.Date(2025, 3, 10, 3, 0, 0, 0, est)
		gt.Value(t, w.nextRun(now)).Equal(time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC))
	})
}

func TestRunAtStart(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{})
	w := NewDailyWorker("test", 6, 0, true, func(context.Context) error {
		if runs.Add(1) == 1 {
			close(done)
		}
		return nil
	})

	w.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run at start")
	}
	w.Stop()

	gt.Value(t, runs.Load()).Equal(int32(1))
}
