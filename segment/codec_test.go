package segment

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := []Record{
		{Key: []byte("a"), Op: OpPut, Value: []byte("1")},
		{Key: []byte("b"), Op: OpPut, Value: []byte("")},
		{Key: []byte("a"), Op: OpDel},
	}

	data := Encode(42, records)
	txnID, got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if txnID != 42 {
		t.Fatalf("got txnID %d, want 42", txnID)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, r := range records {
		if string(got[i].Key) != string(r.Key) || got[i].Op != r.Op || string(got[i].Value) != string(r.Value) {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got[i], r)
		}
	}
}

func TestEncodeDecodeEmpty(t *testing.T) {
	data := Encode(0, nil)
	_, got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records, want 0", len(got))
	}
}

func TestDecodeBadMagic(t *testing.T) {
	if _, _, err := Decode([]byte("not a segment at all")); err != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	data := Encode(1, []Record{{Key: []byte("k"), Op: OpPut, Value: []byte("v")}})
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, _, err := Decode(corrupted); err != ErrChecksumMismatch {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestSegmentGetLastWriteWins(t *testing.T) {
	seg := &Segment{Records: []Record{
		{Key: []byte("k"), Op: OpPut, Value: []byte("old")},
		{Key: []byte("k"), Op: OpPut, Value: []byte("new")},
	}}
	value, op, found := seg.Get([]byte("k"))
	if !found || op != OpPut || string(value) != "new" {
		t.Fatalf("got value=%q op=%v found=%v, want new/OpPut/true", value, op, found)
	}
}

func TestSegmentGetNotFound(t *testing.T) {
	seg := &Segment{}
	if _, _, found := seg.Get([]byte("missing")); found {
		t.Fatalf("expected not found")
	}
}
