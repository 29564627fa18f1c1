package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viant/fusio-manifest/objectstore/memstore"
)

func newTestManifest(t *testing.T, opts ...Option) *Manifest {
	t.Helper()
	store := memstore.New()
	m := New(store, "test/", opts...)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m
}

func TestReadYourWrites(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	w, err := m.OpenWrite(ctx)
	if err != nil {
		t.Fatalf("open_write: %v", err)
	}
	if err := w.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := w.State(); got != Committed {
		t.Fatalf("got state %v, want Committed", got)
	}

	r, err := m.OpenRead(ctx)
	if err != nil {
		t.Fatalf("open_read: %v", err)
	}
	defer r.End(ctx)

	value, err := r.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v1" {
		t.Fatalf("got %q, want v1", value)
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("k"), []byte("v1"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	w2, _ := m.OpenWrite(ctx)
	_ = w2.Delete([]byte("k"))
	if err := w2.Commit(ctx); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	r, _ := m.OpenRead(ctx)
	defer r.End(ctx)
	if _, err := r.Get(ctx, []byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSnapshotIsolationReaderDoesNotSeeLaterCommit(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("k"), []byte("v1"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	r, err := m.OpenRead(ctx)
	if err != nil {
		t.Fatalf("open_read: %v", err)
	}
	defer r.End(ctx)

	w2, _ := m.OpenWrite(ctx)
	_ = w2.Put([]byte("k"), []byte("v2"))
	if err := w2.Commit(ctx); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	value, err := r.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v1" {
		t.Fatalf("got %q, want pinned snapshot value v1", value)
	}
}

func TestOnlyOneOfTwoRacingWritersCommits(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	w1, _ := m.OpenWrite(ctx)
	w2, _ := m.OpenWrite(ctx)
	_ = w1.Put([]byte("k"), []byte("from-1"))
	_ = w2.Put([]byte("k"), []byte("from-2"))

	err1 := w1.Commit(ctx)
	err2 := w2.Commit(ctx)

	committed, conflicted := 0, 0
	for _, err := range []error{err1, err2} {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if committed != 1 || conflicted != 1 {
		t.Fatalf("got committed=%d conflicted=%d, want 1/1", committed, conflicted)
	}
}

func TestScanMergesCheckpointAndSegments(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t, WithCheckpointInterval(1), WithGCSafetyMargin(0))

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("a"), []byte("1"))
	_ = w.Put([]byte("b"), []byte("2"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	if err := m.NewCheckpointer().RunOnce(ctx); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	w2, _ := m.OpenWrite(ctx)
	_ = w2.Put([]byte("c"), []byte("3"))
	_ = w2.Delete([]byte("a"))
	if err := w2.Commit(ctx); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	r, _ := m.OpenRead(ctx)
	defer r.End(ctx)
	rows, err := r.Scan(ctx, nil, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	got := map[string]string{}
	for _, kv := range rows {
		got[string(kv.Key)] = string(kv.Value)
	}
	want := map[string]string{"b": "2", "c": "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	m := newTestManifest(t)
	if err := m.Initialize(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("got %v, want ErrAlreadyInitialized", err)
	}
}

func TestOpenReadBeforeInitializeFails(t *testing.T) {
	store := memstore.New()
	m := New(store, "test/")
	if _, err := m.OpenRead(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestCommitOnTerminalSessionIsInvalidState(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	w, _ := m.OpenWrite(ctx)
	_ = w.Put([]byte("k"), []byte("v"))
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Commit(ctx); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestClockOptionIsHonored(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManifest(t, WithClock(func() time.Time { return fixed }))
	if got := m.cfg.Now(); !got.Equal(fixed) {
		t.Fatalf("got %v, want %v", got, fixed)
	}
}
