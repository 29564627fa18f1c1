package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/head"
	"github.com/viant/fusio-manifest/lease"
	"github.com/viant/fusio-manifest/objectstore"
	"github.com/viant/fusio-manifest/segment"
	"github.com/viant/fusio-manifest/snapshot"
)

// State is a write session's position in its state machine:
// Staging -> Flushing -> Committing -> {Committed | Conflicted | Failed}.
type State int

const (
	Staging State = iota
	Flushing
	Committing
	Committed
	Conflicted
	Failed
)

func (s State) String() string {
	switch s {
	case Staging:
		return "Staging"
	case Flushing:
		return "Flushing"
	case Committing:
		return "Committing"
	case Committed:
		return "Committed"
	case Conflicted:
		return "Conflicted"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s State) terminal() bool {
	return s == Committed || s == Conflicted || s == Failed
}

// WriteSession stages puts/deletes and commits them as one segment + one
// HEAD CAS. Not safe for concurrent use by multiple goroutines: a session
// is single-threaded from the caller's perspective.
type WriteSession struct {
	m    *Manifest
	snap *snapshot.Snapshot

	sessionID string
	stagedTxn uint64
	stagedSeq uint64

	records []segment.Record
	state   State
}

// OpenWrite loads a snapshot, runs orphan recovery, computes the staged
// txn/seq, and registers a writer lease.
func (m *Manifest) OpenWrite(ctx context.Context) (*WriteSession, error) {
	snap, err := m.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := m.recoverOrphans(ctx, snap); err != nil {
		return nil, err
	}
	// The default (delete) orphan policy never mutates HEAD, so re-loading
	// the snapshot after recovery is unnecessary here; it would only matter
	// for the optional adopt policy, which this implementation does not
	// provide (DESIGN.md, Open Question a).

	sessionID := lease.NewSessionID()
	now := m.cfg.Now()
	checkpointSeq := uint64(0)
	if snap.CheckpointMeta != nil {
		checkpointSeq = snap.CheckpointMeta.UptoSeq
	}
	if _, err := m.leases.Create(ctx, sessionID, snap.LastTxnID, checkpointSeq, lease.Write, m.cfg.LeaseTTL, now); err != nil {
		return nil, wrapStoreErr("manifest: open_write: register lease", err)
	}

	return &WriteSession{
		m:         m,
		snap:      snap,
		sessionID: sessionID,
		stagedTxn: snap.LastTxnID + 1,
		stagedSeq: snap.LastSegmentSeq + 1,
		state:     Staging,
	}, nil
}

// State reports the session's current position in its state machine.
func (w *WriteSession) State() State { return w.state }

// Put stages a Put(k, v). Not visible to any reader until Commit succeeds.
func (w *WriteSession) Put(key, value []byte) error {
	if w.state != Staging {
		return fmt.Errorf("%w: put on session in state %s", ErrInvalidState, w.state)
	}
	w.records = append(w.records, segment.Record{Key: append([]byte(nil), key...), Op: segment.OpPut, Value: append([]byte(nil), value...)})
	return nil
}

// Delete stages a Del(k).
func (w *WriteSession) Delete(key []byte) error {
	if w.state != Staging {
		return fmt.Errorf("%w: delete on session in state %s", ErrInvalidState, w.state)
	}
	w.records = append(w.records, segment.Record{Key: append([]byte(nil), key...), Op: segment.OpDel})
	return nil
}

// Commit flushes staged records into a new segment and attempts one HEAD
// CAS. ErrConflict means another writer won the race; the
// caller may call Close and restart from OpenWrite. A non-conflict error
// transitions the session to Failed and is returned wrapped.
func (w *WriteSession) Commit(ctx context.Context) error {
	if w.state != Staging {
		return fmt.Errorf("%w: commit on session in state %s", ErrInvalidState, w.state)
	}

	w.state = Flushing
	err := w.m.segments.Write(ctx, w.stagedSeq, w.stagedTxn, w.records)
	if err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			w.state = Conflicted
			w.m.cfg.Logf("manifest: commit conflict writing segment seq=%d", w.stagedSeq)
			if w.m.cfg.Metrics != nil {
				w.m.cfg.Metrics.OnConflict("segment_write")
			}
			_ = w.Close(ctx)
			return ErrConflict
		}
		w.state = Failed
		_ = w.Close(ctx)
		return wrapStoreErr("manifest: commit: flush segment", err)
	}

	if err := injectFault(w.m.cfg.Faults, FaultAfterSegmentWrite); err != nil {
		w.state = Failed
		_ = w.Close(ctx)
		return fmt.Errorf("manifest: commit: fault after segment write: %w", err)
	}

	w.state = Committing
	if err := injectFault(w.m.cfg.Faults, FaultBeforeHeadCAS); err != nil {
		w.state = Failed
		_ = w.Close(ctx)
		return fmt.Errorf("manifest: commit: fault before head cas: %w", err)
	}

	newHead := head.Head{LastTxnID: w.stagedTxn, LastSegmentSeq: w.stagedSeq, CheckpointID: checkpointIDPtr(w.snap)}
	_, err = w.m.heads.CAS(ctx, newHead, w.snap.HeadTag)
	if err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			w.state = Conflicted
			w.m.cfg.Logf("manifest: commit conflict on head cas, segment seq=%d orphaned", w.stagedSeq)
			if w.m.cfg.Metrics != nil {
				w.m.cfg.Metrics.OnConflict("head_cas")
			}
			_ = w.Close(ctx)
			return ErrConflict
		}
		w.state = Failed
		_ = w.Close(ctx)
		return wrapStoreErr("manifest: commit: head cas", err)
	}

	w.state = Committed
	if w.m.cfg.Metrics != nil {
		w.m.cfg.Metrics.OnCommit(w.stagedTxn, w.stagedSeq)
	}
	return w.Close(ctx)
}

// Close releases the session's lease. Idempotent; safe to call multiple
// times or after a terminal state.
func (w *WriteSession) Close(ctx context.Context) error {
	return wrapStoreErr("manifest: write: close: delete lease", w.m.leases.Delete(ctx, w.sessionID))
}

// Keeper returns a lease.Keeper that renews this session's lease at ttl/2
// for as long as the caller runs it. Only needed when staging runs longer
// than LeaseTTL/2 before Commit is called.
func (w *WriteSession) Keeper(onLost func(error)) *lease.Keeper {
	return lease.NewKeeper(w.m.leases, w.sessionID, w.m.cfg.LeaseTTL, w.m.cfg.Now, onLost)
}

func checkpointIDPtr(snap *snapshot.Snapshot) *string {
	if snap.CheckpointMeta == nil {
		return nil
	}
	id := snap.CheckpointMeta.ID
	return &id
}
