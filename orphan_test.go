package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/viant/fusio-manifest/objectstore/memstore"
)

// TestCrashBetweenSegmentWriteAndHeadCASLeavesOrphan simulates a process
// dying in the window between the segment PUT landing and the HEAD CAS
// running. The next open_write must recover (delete) the orphan segment
// before staging its own.
func TestCrashBetweenSegmentWriteAndHeadCASLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	crashed := false
	faults := FaultInjectorFunc(func(point FaultPoint) error {
		if point == FaultAfterSegmentWrite && !crashed {
			crashed = true
			return errors.New("simulated crash after segment write")
		}
		return nil
	})

	m := New(store, "test/", WithFaultInjector(faults))
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	w, err := m.OpenWrite(ctx)
	if err != nil {
		t.Fatalf("open_write: %v", err)
	}
	_ = w.Put([]byte("k"), []byte("v1"))
	if err := w.Commit(ctx); err == nil {
		t.Fatalf("expected commit to fail from injected fault")
	}
	if got := w.State(); got != Failed {
		t.Fatalf("got state %v, want Failed", got)
	}

	// HEAD must still report nothing committed.
	r, err := m.OpenRead(ctx)
	if err != nil {
		t.Fatalf("open_read: %v", err)
	}
	if _, err := r.Get(ctx, []byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound (orphan segment must not be visible)", err)
	}
	_ = r.End(ctx)

	// The orphan segment exists until the next open_write recovers it.
	orphans, err := m.segments.ListAfter(ctx, 0)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("got %d orphan segments, want 1", len(orphans))
	}

	w2, err := m.OpenWrite(ctx)
	if err != nil {
		t.Fatalf("open_write 2: %v", err)
	}
	orphans, err = m.segments.ListAfter(ctx, 0)
	if err != nil {
		t.Fatalf("list after recovery: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("got %d orphan segments after recovery, want 0", len(orphans))
	}

	_ = w2.Put([]byte("k"), []byte("v2"))
	if err := w2.Commit(ctx); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	r2, _ := m.OpenRead(ctx)
	defer r2.End(ctx)
	value, err := r2.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v2" {
		t.Fatalf("got %q, want v2", value)
	}
}

func TestOrphanRecoveryIsIdempotentAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := New(store, "test/")
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	snap, err := m.loadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load_snapshot: %v", err)
	}

	deleted1, err := m.recoverOrphans(ctx, snap)
	if err != nil {
		t.Fatalf("recover 1: %v", err)
	}
	deleted2, err := m.recoverOrphans(ctx, snap)
	if err != nil {
		t.Fatalf("recover 2: %v", err)
	}
	if deleted1 != 0 || deleted2 != 0 {
		t.Fatalf("got deleted1=%d deleted2=%d, want 0/0 with no orphans", deleted1, deleted2)
	}
}
