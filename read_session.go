package manifest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/lease"
	"github.com/viant/fusio-manifest/objectstore"
	"github.com/viant/fusio-manifest/segment"
	"github.com/viant/fusio-manifest/snapshot"
)

// ReadSession pins a snapshot for the duration of a sequence of gets/scans.
// Safe for sequential use by one goroutine; open multiple ReadSessions for
// concurrent readers.
type ReadSession struct {
	m    *Manifest
	snap *snapshot.Snapshot

	sessionID string
	payload   checkpoint.Payload // lazily loaded on first Get/Scan
	loaded    bool
	ended     bool
}

// OpenRead loads a snapshot and registers a reader lease pinning it so GC
// never reclaims anything this session might still read.
func (m *Manifest) OpenRead(ctx context.Context) (*ReadSession, error) {
	snap, err := m.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	sessionID := lease.NewSessionID()
	now := m.cfg.Now()
	checkpointSeq := uint64(0)
	if snap.CheckpointMeta != nil {
		checkpointSeq = snap.CheckpointMeta.UptoSeq
	}
	if _, err := m.leases.Create(ctx, sessionID, snap.LastTxnID, checkpointSeq, lease.Read, m.cfg.LeaseTTL, now); err != nil {
		return nil, wrapStoreErr("manifest: open_read: register lease", err)
	}

	return &ReadSession{m: m, snap: snap, sessionID: sessionID}, nil
}

// checkExpired loads the session's own lease from the store and reports
// ErrSnapshotExpired if it's gone (deleted by GC after expiry+grace) or its
// ExpiresAt+grace has passed without renewal. Checked against the store
// rather than a locally cached timestamp so a running Keeper's renewals
// are reflected without the session needing to observe them directly.
func (r *ReadSession) checkExpired(ctx context.Context) error {
	l, _, err := r.m.leases.Load(ctx, r.sessionID)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return ErrSnapshotExpired
		}
		return wrapStoreErr("manifest: read: load lease", err)
	}
	if l.Expired(r.m.cfg.Now(), r.m.cfg.LeaseGrace) {
		return ErrSnapshotExpired
	}
	return nil
}

// Snapshot returns the (txn id, segment seq) pair this session is pinned to.
func (r *ReadSession) Snapshot() (lastTxnID, lastSegmentSeq uint64) {
	return r.snap.LastTxnID, r.snap.LastSegmentSeq
}

func (r *ReadSession) ensurePayload(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	if r.snap.CheckpointMeta != nil {
		p, err := r.m.checkpoints.LoadPayload(ctx, r.snap.CheckpointMeta.ID)
		if err != nil {
			return wrapStoreErr("manifest: read: load checkpoint payload", err)
		}
		r.payload = p
	}
	r.loaded = true
	return nil
}

// Get scans segments in (checkpoint.upto_seq, last_segment_seq] from
// newest to oldest, first match wins; falls back to the checkpoint
// payload; otherwise ErrNotFound.
func (r *ReadSession) Get(ctx context.Context, key []byte) ([]byte, error) {
	if r.ended {
		return nil, fmt.Errorf("%w: get on ended read session", ErrInvalidState)
	}
	if err := r.checkExpired(ctx); err != nil {
		return nil, err
	}
	if err := r.ensurePayload(ctx); err != nil {
		return nil, err
	}

	lowSeq := uint64(0)
	if r.snap.CheckpointMeta != nil {
		lowSeq = r.snap.CheckpointMeta.UptoSeq
	}

	for seq := r.snap.LastSegmentSeq; seq > lowSeq; seq-- {
		seg, err := r.m.segments.Read(ctx, seq)
		if err != nil {
			return nil, wrapStoreErr(fmt.Sprintf("manifest: get: read segment seq=%d", seq), err)
		}
		if value, op, found := seg.Get(key); found {
			if op == segment.OpDel {
				return nil, ErrNotFound
			}
			return value, nil
		}
	}

	if r.payload != nil {
		if entry, found := r.payload.Get(string(key)); found {
			if entry.Op == segment.OpDel {
				return nil, ErrNotFound
			}
			return entry.Value, nil
		}
	}

	return nil, ErrNotFound
}

// Scan merges the checkpoint payload with every segment in range, newest
// write per key wins, tombstones mask the checkpoint and are then dropped
// from the result. Scan materializes the full merged view up front and
// returns it as a slice sorted by key; it does not pull results lazily.
func (r *ReadSession) Scan(ctx context.Context, start, end []byte) ([]KV, error) {
	if r.ended {
		return nil, fmt.Errorf("%w: scan on ended read session", ErrInvalidState)
	}
	if err := r.checkExpired(ctx); err != nil {
		return nil, err
	}
	if err := r.ensurePayload(ctx); err != nil {
		return nil, err
	}

	merged := map[string]segment.Record{}
	for k, entry := range r.payload {
		if inRange(k, start, end) {
			merged[k] = segment.Record{Key: []byte(k), Op: entry.Op, Value: entry.Value}
		}
	}

	lowSeq := uint64(0)
	if r.snap.CheckpointMeta != nil {
		lowSeq = r.snap.CheckpointMeta.UptoSeq
	}
	for seq := lowSeq + 1; seq <= r.snap.LastSegmentSeq; seq++ {
		seg, err := r.m.segments.Read(ctx, seq)
		if err != nil {
			return nil, wrapStoreErr(fmt.Sprintf("manifest: scan: read segment seq=%d", seq), err)
		}
		for _, rec := range seg.Records {
			if inRange(string(rec.Key), start, end) {
				merged[string(rec.Key)] = rec
			}
		}
	}

	out := make([]KV, 0, len(merged))
	for k, rec := range merged {
		if rec.Op == segment.OpDel {
			continue
		}
		out = append(out, KV{Key: []byte(k), Value: rec.Value})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })
	return out, nil
}

// KV is one key/value pair returned by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

func inRange(key string, start, end []byte) bool {
	if len(start) > 0 && key < string(start) {
		return false
	}
	if len(end) > 0 && key >= string(end) {
		return false
	}
	return true
}

// End releases the session's reader lease. Idempotent.
func (r *ReadSession) End(ctx context.Context) error {
	if r.ended {
		return nil
	}
	r.ended = true
	return wrapStoreErr("manifest: read: end: delete lease", r.m.leases.Delete(ctx, r.sessionID))
}

// Keeper returns a lease.Keeper that renews this session's lease at ttl/2
// for as long as the caller runs it. Only needed when a ReadSession is held
// open longer than LeaseTTL/2; short-lived get/scan calls can skip it and
// just call End when done.
func (r *ReadSession) Keeper(onLost func(error)) *lease.Keeper {
	return lease.NewKeeper(r.m.leases, r.sessionID, r.m.cfg.LeaseTTL, r.m.cfg.Now, onLost)
}
