package checkpoint

import (
	"testing"

	"github.com/viant/fusio-manifest/segment"
)

func TestFoldFromScratch(t *testing.T) {
	segs := []*segment.Segment{
		{Seq: 1, Records: []segment.Record{{Key: []byte("a"), Op: segment.OpPut, Value: []byte("1")}}},
		{Seq: 2, Records: []segment.Record{{Key: []byte("b"), Op: segment.OpPut, Value: []byte("2")}}},
	}
	payload := Fold(nil, segs)

	a, found := payload.Get("a")
	if !found || a.Op != segment.OpPut || string(a.Value) != "1" {
		t.Fatalf("got a=%+v found=%v", a, found)
	}
	b, found := payload.Get("b")
	if !found || string(b.Value) != "2" {
		t.Fatalf("got b=%+v found=%v", b, found)
	}
}

func TestFoldOverwritesAndTombstones(t *testing.T) {
	prior := Payload{"a": Entry{Op: segment.OpPut, Value: []byte("old")}}
	segs := []*segment.Segment{
		{Seq: 1, Records: []segment.Record{
			{Key: []byte("a"), Op: segment.OpPut, Value: []byte("new")},
			{Key: []byte("c"), Op: segment.OpPut, Value: []byte("3")},
		}},
		{Seq: 2, Records: []segment.Record{{Key: []byte("c"), Op: segment.OpDel}}},
	}
	payload := Fold(prior, segs)

	a, _ := payload.Get("a")
	if string(a.Value) != "new" {
		t.Fatalf("got a.Value=%q, want new", a.Value)
	}
	c, found := payload.Get("c")
	if !found || c.Op != segment.OpDel {
		t.Fatalf("got c=%+v found=%v, want explicit tombstone", c, found)
	}
}

func TestFoldDoesNotMutatePrior(t *testing.T) {
	prior := Payload{"a": Entry{Op: segment.OpPut, Value: []byte("old")}}
	Fold(prior, []*segment.Segment{
		{Seq: 1, Records: []segment.Record{{Key: []byte("a"), Op: segment.OpDel}}},
	})
	a := prior["a"]
	if a.Op != segment.OpPut || string(a.Value) != "old" {
		t.Fatalf("prior payload was mutated: %+v", a)
	}
}
