package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/head"
	"github.com/viant/fusio-manifest/objectstore"
	"github.com/viant/fusio-manifest/segment"
	"github.com/viant/fusio-manifest/snapshot"
)

// Checkpointer periodically folds segments into a fresh checkpoint and
// links it into HEAD, bounding recovery cost. It never blocks a writer: the
// fold-and-write happens off the HEAD, and only the final link is a CAS, so
// a lost race just means retrying against the newer HEAD written by
// whoever won.
type Checkpointer struct {
	m *Manifest
}

// NewCheckpointer returns a Checkpointer bound to m.
func (m *Manifest) NewCheckpointer() *Checkpointer { return &Checkpointer{m: m} }

// Due reports whether the gap between HEAD.last_segment_seq and the current
// checkpoint's upto_seq has reached the configured CheckpointInterval, the
// policy knob bounding how far a reader may need to scan raw segments.
// Callers typically poll Due on a timer and call RunOnce when it returns
// true.
func (c *Checkpointer) Due(ctx context.Context) (bool, error) {
	snap, err := c.m.loadSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return c.gap(snap) >= c.m.cfg.CheckpointInterval, nil
}

func (c *Checkpointer) gap(snap *snapshot.Snapshot) uint64 {
	uptoSeq := uint64(0)
	if snap.CheckpointMeta != nil {
		uptoSeq = snap.CheckpointMeta.UptoSeq
	}
	if snap.LastSegmentSeq < uptoSeq {
		return 0
	}
	return snap.LastSegmentSeq - uptoSeq
}

// RunOnce folds every segment since the last checkpoint (or from scratch)
// up to the current HEAD's last_segment_seq minus GCSafetyMargin, writes
// the result under a fresh checkpoint id, and attempts one HEAD CAS
// linking it in. It returns nil without writing anything when that target
// is not past the current checkpoint. Returns ErrConflict if another
// writer or checkpointer advanced HEAD first; the caller may simply call
// RunOnce again.
func (c *Checkpointer) RunOnce(ctx context.Context) error {
	snap, err := c.m.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	uptoSeq := uint64(0)
	var prior checkpoint.Payload
	if snap.CheckpointMeta != nil {
		uptoSeq = snap.CheckpointMeta.UptoSeq
		prior, err = c.m.checkpoints.LoadPayload(ctx, snap.CheckpointMeta.ID)
		if err != nil {
			return wrapStoreErr("manifest: checkpoint: load prior payload", err)
		}
	}

	// GCSafetyMargin keeps the trailing margin segments out of
	// the checkpoint even when due, so the most recent writes stay quickly
	// readable straight from their segment rather than requiring a brand
	// new checkpoint payload fetch; GC then naturally leaves them alone too
	// since they're not yet consolidated.
	target := snap.LastSegmentSeq
	if margin := c.m.cfg.GCSafetyMargin; margin > 0 {
		if snap.LastSegmentSeq > margin {
			target = snap.LastSegmentSeq - margin
		} else {
			target = 0
		}
	}
	if target <= uptoSeq {
		return nil // nothing new to fold past the safety margin yet
	}

	segs := make([]*segment.Segment, 0, target-uptoSeq)
	for seq := uptoSeq + 1; seq <= target; seq++ {
		seg, err := c.m.segments.Read(ctx, seq)
		if err != nil {
			return wrapStoreErr(fmt.Sprintf("manifest: checkpoint: read segment seq=%d", seq), err)
		}
		segs = append(segs, seg)
	}

	payload := checkpoint.Fold(prior, segs)
	id := fmt.Sprintf("cp-%020d", target)
	meta := checkpoint.Meta{
		ID:              id,
		UptoTxnID:       target,
		UptoSeq:         target,
		PayloadLocation: checkpoint.PayloadKey(c.m.prefix, id),
	}
	if err := c.m.checkpoints.Write(ctx, meta, payload); err != nil {
		return wrapStoreErr(fmt.Sprintf("manifest: checkpoint: write %s", id), err)
	}

	newHead := head.Head{LastTxnID: snap.LastTxnID, LastSegmentSeq: snap.LastSegmentSeq, CheckpointID: &id}
	if _, err := c.m.heads.CAS(ctx, newHead, snap.HeadTag); err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			// Another writer or checkpointer moved HEAD first; this
			// checkpoint object is simply unreferenced and GC-eligible.
			return ErrConflict
		}
		return wrapStoreErr("manifest: checkpoint: head cas", err)
	}

	c.m.cfg.Logf("manifest: checkpoint %s linked, upto_seq=%d upto_txn=%d", id, meta.UptoSeq, meta.UptoTxnID)
	if c.m.cfg.Metrics != nil {
		c.m.cfg.Metrics.OnCheckpoint(id, meta.UptoSeq)
	}
	return nil
}
