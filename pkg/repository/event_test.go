package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
)

func TestEventRepository(t *testing.T) {
	runOnBothBackends(t, runEventRepositoryTest)
}

func runEventRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Run("MarkProcessed deduplicates deliveries", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D001")
		if err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
		if !first {
			t.Error("first delivery should be fresh")
		}

		again, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D001")
		if err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
		if again {
			t.Error("redelivery should be reported as seen")
		}
	})

	t.Run("same timestamp in another channel is fresh", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D001"); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
		fresh, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D002")
		if err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
		if !fresh {
			t.Error("the dedup key is the (ts, channel) pair")
		}
	})

	t.Run("PruneBefore removes old records", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D001"); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}

		pruned, err := repo.Event().PruneBefore(ctx, time.Now().UTC().Add(-time.Hour))
		if err != nil {
			t.Fatalf("PruneBefore failed: %v", err)
		}
		if pruned != 0 {
			t.Errorf("expected 0 pruned, got %d", pruned)
		}

		pruned, err = repo.Event().PruneBefore(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("PruneBefore failed: %v", err)
		}
		if pruned != 1 {
			t.Errorf("expected 1 pruned, got %d", pruned)
		}

		// the pair is fresh again once pruned
		fresh, err := repo.Event().MarkProcessed(ctx, "1724832000.000100", "D001")
		if err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
		if !fresh {
			t.Error("pruned pair should be markable again")
		}
	})
}
