package memstore

import (
	"context"
	"testing"

	"github.com/viant/fusio-manifest/objectstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	tag, err := s.Put(ctx, "k", []byte("v1"), objectstore.IfNotExists())
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if tag == "" {
		t.Fatalf("expected non-empty tag")
	}

	data, gotTag, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "v1" || gotTag != tag {
		t.Fatalf("got data=%q tag=%q, want v1/%q", data, gotTag, tag)
	}
}

func TestIfNotExistsRejectsSecondWrite(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Put(ctx, "k", []byte("v1"), objectstore.IfNotExists()); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := s.Put(ctx, "k", []byte("v2"), objectstore.IfNotExists()); err != objectstore.ErrPreconditionFailed {
		t.Fatalf("got %v, want ErrPreconditionFailed", err)
	}
}

func TestIfMatchRejectsStaleTag(t *testing.T) {
	ctx := context.Background()
	s := New()

	tag, _ := s.Put(ctx, "k", []byte("v1"), objectstore.IfNotExists())
	if _, err := s.Put(ctx, "k", []byte("v2"), objectstore.IfMatch(tag)); err != nil {
		t.Fatalf("put with current tag: %v", err)
	}
	if _, err := s.Put(ctx, "k", []byte("v3"), objectstore.IfMatch(tag)); err != objectstore.ErrPreconditionFailed {
		t.Fatalf("got %v, want ErrPreconditionFailed for stale tag", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, _, err := s.Get(ctx, "missing"); err != objectstore.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListOrderedAfterStartKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"p/b", "p/a", "p/c"} {
		if _, err := s.Put(ctx, k, []byte("v"), objectstore.Precondition{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	metas, err := s.List(ctx, "p/", "p/a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 2 || metas[0].Key != "p/b" || metas[1].Key != "p/c" {
		t.Fatalf("got %+v, want [p/b p/c]", metas)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "k", []byte("v"), objectstore.Precondition{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "k"); err != objectstore.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound after delete", err)
	}
}
