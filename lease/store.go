package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/fusio-manifest/objectstore"
)

// Store creates, renews, lists, and deletes lease objects. Leases are
// exclusively owned by their session, so Create/Renew
// use an unconditional Put rather than CAS: session ids are unique, and
// renewal is only ever performed by the owning session itself.
type Store struct {
	objects objectstore.Store
	prefix  string
}

func New(objects objectstore.Store, prefix string) *Store {
	return &Store{objects: objects, prefix: prefix}
}

// Create writes a new lease for sessionID, pinning both the snapshot's txn
// id and the checkpoint boundary (upto_seq, 0 if none) it was opened
// against.
func (s *Store) Create(ctx context.Context, sessionID string, snapshotTxnID, snapshotCheckpointSeq uint64, kind Kind, ttl time.Duration, now time.Time) (Lease, error) {
	l := Lease{SessionID: sessionID, SnapshotTxnID: snapshotTxnID, SnapshotCheckpointSeq: snapshotCheckpointSeq, Kind: kind, ExpiresAt: now.Add(ttl)}
	data, err := encode(l)
	if err != nil {
		return Lease{}, err
	}
	if _, err := s.objects.Put(ctx, Key(s.prefix, sessionID), data, objectstore.Precondition{}); err != nil {
		return Lease{}, fmt.Errorf("lease: create %s: %w", sessionID, err)
	}
	return l, nil
}

// Renew extends the lease's ExpiresAt. Returns the renewed lease.
func (s *Store) Renew(ctx context.Context, sessionID string, ttl time.Duration, now time.Time) (Lease, error) {
	l, _, err := s.Load(ctx, sessionID)
	if err != nil {
		return Lease{}, err
	}
	l.ExpiresAt = now.Add(ttl)
	data, err := encode(l)
	if err != nil {
		return Lease{}, err
	}
	if _, err := s.objects.Put(ctx, Key(s.prefix, sessionID), data, objectstore.Precondition{}); err != nil {
		return Lease{}, fmt.Errorf("lease: renew %s: %w", sessionID, err)
	}
	return l, nil
}

// Load reads a single lease by session id.
func (s *Store) Load(ctx context.Context, sessionID string) (Lease, objectstore.Tag, error) {
	data, tag, err := s.objects.Get(ctx, Key(s.prefix, sessionID))
	if err != nil {
		return Lease{}, "", fmt.Errorf("lease: load %s: %w", sessionID, err)
	}
	l, err := decode(data)
	if err != nil {
		return Lease{}, "", err
	}
	return l, tag, nil
}

// Delete removes a lease. Idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.objects.Delete(ctx, Key(s.prefix, sessionID)); err != nil {
		return fmt.Errorf("lease: delete %s: %w", sessionID, err)
	}
	return nil
}

// List returns every currently-stored lease, used by GC to compute the
// minimum live lease watermark and by operators to inspect active sessions.
func (s *Store) List(ctx context.Context) ([]Lease, error) {
	metas, err := s.objects.List(ctx, s.prefix+"leases/", "")
	if err != nil {
		return nil, fmt.Errorf("lease: list: %w", err)
	}
	out := make([]Lease, 0, len(metas))
	for _, m := range metas {
		data, _, err := s.objects.Get(ctx, m.Key)
		if err != nil {
			// Lease deleted concurrently between List and Get; skip it.
			continue
		}
		l, err := decode(data)
		if err != nil {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// MinLiveSnapshot returns the minimum SnapshotTxnID across every non-expired
// lease, and whether any live lease exists at all.
func MinLiveSnapshot(leases []Lease, now time.Time, grace time.Duration) (floor uint64, any bool) {
	for _, l := range leases {
		if l.Expired(now, grace) {
			continue
		}
		if !any || l.SnapshotTxnID < floor {
			floor = l.SnapshotTxnID
			any = true
		}
	}
	return floor, any
}

// MinLiveCheckpointSeq returns the minimum SnapshotCheckpointSeq across every
// non-expired lease, and whether any live lease exists. GC uses this as the
// ceiling at or below which segments are safe to delete: a live session
// reads raw segments only above its own SnapshotCheckpointSeq, so nothing
// above the minimum of those may be reclaimed.
func MinLiveCheckpointSeq(leases []Lease, now time.Time, grace time.Duration) (ceiling uint64, any bool) {
	for _, l := range leases {
		if l.Expired(now, grace) {
			continue
		}
		if !any || l.SnapshotCheckpointSeq < ceiling {
			ceiling = l.SnapshotCheckpointSeq
			any = true
		}
	}
	return ceiling, any
}
