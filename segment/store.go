package segment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/fusio-manifest/objectstore"
)

// seqWidth gives segment keys a fixed-width, lexicographically sortable
// sequence component (<seq:020d>).
const seqWidth = 20

// Key returns the object key for segment seq under prefix.
func Key(prefix string, seq uint64) string {
	return fmt.Sprintf("%ssegments/%0*d.seg", prefix, seqWidth, seq)
}

// Store writes and reads immutable segment objects.
type Store struct {
	objects objectstore.Store
	prefix  string
}

// New wraps an objectstore.Store scoped to one manifest prefix.
func New(objects objectstore.Store, prefix string) *Store {
	return &Store{objects: objects, prefix: prefix}
}

// Write puts a new segment at seq with an IfNotExists precondition: the
// object must not already exist. ErrPreconditionFailed (via
// objectstore.ErrPreconditionFailed) means another writer claimed the same
// seq first.
func (s *Store) Write(ctx context.Context, seq, txnID uint64, records []Record) error {
	payload := Encode(txnID, records)
	_, err := s.objects.Put(ctx, Key(s.prefix, seq), payload, objectstore.IfNotExists())
	if err != nil {
		return fmt.Errorf("segment: write seq=%d: %w", seq, err)
	}
	return nil
}

// Read loads and decodes the segment at seq. A checksum failure or bad
// magic surfaces codec.go's ErrChecksumMismatch or ErrBadMagic, which the
// manifest package classifies as ErrCorrupted.
func (s *Store) Read(ctx context.Context, seq uint64) (*Segment, error) {
	data, _, err := s.objects.Get(ctx, Key(s.prefix, seq))
	if err != nil {
		return nil, fmt.Errorf("segment: read seq=%d: %w", seq, err)
	}
	txnID, records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("segment: decode seq=%d: %w", seq, err)
	}
	return &Segment{Seq: seq, TxnID: txnID, Records: records}, nil
}

// ListAfter returns the ordered sequence numbers of every segment with
// seq > after, by listing the segments/ prefix and parsing each key's seq
// component.
func (s *Store) ListAfter(ctx context.Context, after uint64) ([]uint64, error) {
	startAfter := Key(s.prefix, after)
	metas, err := s.objects.List(ctx, s.prefix+"segments/", startAfter)
	if err != nil {
		return nil, fmt.Errorf("segment: list after %d: %w", after, err)
	}
	seqs := make([]uint64, 0, len(metas))
	for _, m := range metas {
		seq, ok := parseSeq(s.prefix, m.Key)
		if !ok {
			continue
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// ListUpTo returns the ordered sequence numbers of every segment with
// seq <= upto, used by GC to find segments already subsumed by a
// checkpoint.
func (s *Store) ListUpTo(ctx context.Context, upto uint64) ([]uint64, error) {
	metas, err := s.objects.List(ctx, s.prefix+"segments/", "")
	if err != nil {
		return nil, fmt.Errorf("segment: list upto %d: %w", upto, err)
	}
	seqs := make([]uint64, 0, len(metas))
	for _, m := range metas {
		seq, ok := parseSeq(s.prefix, m.Key)
		if !ok || seq > upto {
			continue
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// Delete removes the segment at seq. Idempotent.
func (s *Store) Delete(ctx context.Context, seq uint64) error {
	if err := s.objects.Delete(ctx, Key(s.prefix, seq)); err != nil {
		return fmt.Errorf("segment: delete seq=%d: %w", seq, err)
	}
	return nil
}

func parseSeq(prefix, key string) (uint64, bool) {
	base := strings.TrimPrefix(key, prefix+"segments/")
	base = strings.TrimSuffix(base, ".seg")
	if base == key {
		return 0, false
	}
	seq, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
