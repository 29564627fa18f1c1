package manifest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetAfterLeaseExpiryReturnsSnapshotExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTestManifest(t, WithClock(func() time.Time { return clock() }), WithLeaseTTL(time.Millisecond), WithLeaseGrace(0))

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("k"), []byte("v1"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	r, err := m.OpenRead(ctx)
	if err != nil {
		t.Fatalf("open_read: %v", err)
	}

	now = now.Add(time.Hour)
	if _, err := r.Get(ctx, []byte("k")); !errors.Is(err, ErrSnapshotExpired) {
		t.Fatalf("got %v, want ErrSnapshotExpired", err)
	}
}

func TestGetAfterLeaseDeletedByGCReturnsSnapshotExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTestManifest(t, WithClock(func() time.Time { return clock() }), WithLeaseTTL(time.Millisecond), WithLeaseGrace(0))

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("k"), []byte("v1"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	r, err := m.OpenRead(ctx)
	if err != nil {
		t.Fatalf("open_read: %v", err)
	}

	now = now.Add(time.Hour)
	if err := m.NewGC().RunOnce(ctx); err != nil {
		t.Fatalf("gc: %v", err)
	}

	if _, err := r.Get(ctx, []byte("k")); !errors.Is(err, ErrSnapshotExpired) {
		t.Fatalf("got %v, want ErrSnapshotExpired", err)
	}
}
