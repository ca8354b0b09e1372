package store

import (
	"context"
	"testing"
	"time"
)

func TestAnnotationMergeWrite(t *testing.T) {
	// Try to connect, skip if fails (local dev only)
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx)
	if err != nil {
		t.Skip("Key-value store not reachable, skipping integration test")
	}
	defer rdb.Close()

	const bidID = "merge-write-test-bid"
	key := annotationPrefix + bidID
	defer rdb.Del(ctx, key)

	// Seed the key with a field SetDuration knows nothing about.
	if err := rdb.HSet(ctx, key, "memo", "keep me").Err(); err != nil {
		t.Fatalf("failed to seed annotation hash: %v", err)
	}

	annotations := NewAnnotations(rdb)
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	if err := annotations.SetDuration(ctx, bidID, 12, now); err != nil {
		t.Fatalf("SetDuration failed: %v", err)
	}

	ann, ok, err := annotations.Get(ctx, bidID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("annotation missing after write")
	}
	if ann.ServiceDurationMonths != 12 {
		t.Errorf("duration round-trip = %d, want 12", ann.ServiceDurationMonths)
	}
	if ann.ModifiedBy != annotationModifier {
		t.Errorf("modified by = %q, want %q", ann.ModifiedBy, annotationModifier)
	}
	if ann.LastModifiedAt != "2025-06-15 09:30:00" {
		t.Errorf("last modified = %q", ann.LastModifiedAt)
	}

	// The write must merge into the hash, not replace it: the unrelated
	// seeded field survives.
	memo, err := rdb.HGet(ctx, key, "memo").Result()
	if err != nil {
		t.Fatalf("failed to read seeded field back: %v", err)
	}
	if memo != "keep me" {
		t.Errorf("unrelated field = %q, want untouched", memo)
	}

	// A second write updates in place without disturbing the extra field.
	if err := annotations.SetDuration(ctx, bidID, 6, now.Add(time.Hour)); err != nil {
		t.Fatalf("second SetDuration failed: %v", err)
	}
	ann, _, err = annotations.Get(ctx, bidID)
	if err != nil {
		t.Fatalf("Get after rewrite failed: %v", err)
	}
	if ann.ServiceDurationMonths != 6 {
		t.Errorf("rewritten duration = %d, want 6", ann.ServiceDurationMonths)
	}
	if memo, _ := rdb.HGet(ctx, key, "memo").Result(); memo != "keep me" {
		t.Errorf("unrelated field lost on rewrite: %q", memo)
	}

	all, err := annotations.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if all[bidID].ServiceDurationMonths != 6 {
		t.Errorf("All()[%s].ServiceDurationMonths = %d, want 6", bidID, all[bidID].ServiceDurationMonths)
	}
}
