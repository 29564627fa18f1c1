package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/lease"
	"github.com/viant/fusio-manifest/objectstore"
)

// gcPhase is the durable position of an in-flight GC plan, stored at
// gcPlanKey. A plan is only ever written in phase Applying, once the
// deletion set is committed; the deletions then run and the plan object is
// removed, so gcDeleting is declared but no code path persists it.
// "Computing" is never persisted; it is the in-memory step that produces
// the plan this file then CAS-writes.
type gcPhase string

const (
	gcApplying gcPhase = "applying"
	gcDeleting gcPhase = "deleting"
)

// gcPlan is the single object that makes a GC run crash-recoverable: once
// written, any coordinator (even a different process) can pick it up and
// finish rather than recomputing a possibly-different deletion set.
type gcPlan struct {
	Phase               gcPhase  `json:"phase"`
	SegmentsToDelete    []uint64 `json:"segmentsToDelete"`
	CheckpointsToDelete []string `json:"checkpointsToDelete"`
	Floor               uint64   `json:"floor"`
}

func encodeGCPlan(p gcPlan) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("manifest: gc: encode plan: %w", err)
	}
	return b, nil
}

func decodeGCPlan(data []byte) (gcPlan, error) {
	var p gcPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return gcPlan{}, fmt.Errorf("manifest: gc: decode plan: %w", err)
	}
	return p, nil
}

// GC coordinates space reclamation: segments folded into a checkpoint,
// checkpoints superseded by a newer one, and leases past expiry plus grace.
// It never deletes an object a live lease's snapshot might still need;
// MinLiveCheckpointSeq is the safety floor below everything else,
// MinLiveSnapshot supplies the oldest-pinned-txn figure logged alongside it
// for operator visibility.
type GC struct {
	m *Manifest
}

// NewGC returns a GC coordinator bound to m.
func (m *Manifest) NewGC() *GC { return &GC{m: m} }

// RunOnce performs (or resumes) one GC cycle. Phase Computing: decide the
// deletion set in memory. Phase Applying: CAS-write the plan, the single
// point at which the deletion set becomes durable and binding. Phase
// Deleting: delete every object in the plan (idempotent, so re-running a
// stale plan is always safe), then remove the plan object itself.
func (g *GC) RunOnce(ctx context.Context) error {
	existing, tag, err := g.loadPlan(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return g.apply(ctx, *existing, tag)
	}

	// Computing: determine the deletion set from the current snapshot and
	// the live lease watermark.
	snap, err := g.m.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	leases, err := g.m.leases.List(ctx)
	if err != nil {
		return wrapStoreErr("manifest: gc: list leases", err)
	}
	now := g.m.cfg.Now()
	for _, l := range leases {
		if l.Expired(now, g.m.cfg.LeaseGrace) {
			if err := g.m.leases.Delete(ctx, l.SessionID); err != nil {
				return wrapStoreErr(fmt.Sprintf("manifest: gc: delete expired lease %s", l.SessionID), err)
			}
			g.m.cfg.Logf("manifest: gc deleted expired lease session=%s", l.SessionID)
		}
	}
	liveLeases, err := g.m.leases.List(ctx)
	if err != nil {
		return wrapStoreErr("manifest: gc: relist leases", err)
	}

	// floor bounds which segments are safe to delete: it is the smallest
	// checkpoint boundary any live lease's snapshot depends on. A lease
	// opened before any checkpoint existed pins floor at 0, blocking all
	// segment reclamation until it ends.
	floor, anyLive := lease.MinLiveCheckpointSeq(liveLeases, now, g.m.cfg.LeaseGrace)
	if !anyLive && snap.CheckpointMeta != nil {
		floor = snap.CheckpointMeta.UptoSeq
	}
	if !anyLive && snap.CheckpointMeta == nil {
		floor = 0
	}
	if oldestTxn, ok := lease.MinLiveSnapshot(liveLeases, now, g.m.cfg.LeaseGrace); ok {
		g.m.cfg.Logf("manifest: gc floor=%d oldest_live_txn=%d", floor, oldestTxn)
	}

	segs, err := g.m.segments.ListUpTo(ctx, floor)
	if err != nil {
		return wrapStoreErr("manifest: gc: list segments", err)
	}

	var cps []string
	if snap.CheckpointMeta != nil {
		metas, err := g.m.checkpoints.List(ctx)
		if err != nil {
			return wrapStoreErr("manifest: gc: list checkpoints", err)
		}
		for _, meta := range metas {
			if meta.ID == snap.CheckpointMeta.ID {
				continue // the checkpoint currently linked from HEAD is never deleted
			}
			if meta.UptoSeq < floor {
				// A checkpoint exactly at floor may be the one the oldest
				// live session still loads its payload from, so it stays.
				cps = append(cps, meta.ID)
			}
		}
	}

	if len(segs) == 0 && len(cps) == 0 {
		return nil // nothing to reclaim this cycle
	}

	plan := gcPlan{Phase: gcApplying, SegmentsToDelete: segs, CheckpointsToDelete: cps, Floor: floor}
	data, err := encodeGCPlan(plan)
	if err != nil {
		return err
	}
	if _, err := g.m.objects.Put(ctx, gcPlanKey(g.m.prefix), data, objectstore.IfNotExists()); err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			// Another coordinator just committed a plan; pick it up instead
			// of computing a second, possibly conflicting, one.
			existing, tag, err := g.loadPlan(ctx)
			if err != nil {
				return err
			}
			if existing == nil {
				return nil // it finished between our Get and our Put
			}
			return g.apply(ctx, *existing, tag)
		}
		return wrapStoreErr("manifest: gc: write plan", err)
	}

	return g.apply(ctx, plan, "")
}

func (g *GC) loadPlan(ctx context.Context) (*gcPlan, objectstore.Tag, error) {
	data, tag, err := g.m.objects.Get(ctx, gcPlanKey(g.m.prefix))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", wrapStoreErr("manifest: gc: load plan", err)
	}
	plan, err := decodeGCPlan(data)
	if err != nil {
		return nil, "", err
	}
	return &plan, tag, nil
}

// apply performs the Deleting phase: delete every planned object (each
// delete is independently idempotent) and finally remove the plan itself.
func (g *GC) apply(ctx context.Context, plan gcPlan, _ objectstore.Tag) error {
	for _, seq := range plan.SegmentsToDelete {
		if err := g.m.segments.Delete(ctx, seq); err != nil {
			return wrapStoreErr(fmt.Sprintf("manifest: gc: delete segment seq=%d", seq), err)
		}
	}
	for _, id := range plan.CheckpointsToDelete {
		if err := g.m.checkpoints.Delete(ctx, id); err != nil {
			return wrapStoreErr(fmt.Sprintf("manifest: gc: delete checkpoint %s", id), err)
		}
	}
	if err := g.m.objects.Delete(ctx, gcPlanKey(g.m.prefix)); err != nil {
		return wrapStoreErr("manifest: gc: delete plan", err)
	}

	g.m.cfg.Logf("manifest: gc reclaimed %d segments, %d checkpoints, floor=%d",
		len(plan.SegmentsToDelete), len(plan.CheckpointsToDelete), plan.Floor)
	if g.m.cfg.Metrics != nil {
		g.m.cfg.Metrics.OnGC(len(plan.SegmentsToDelete)+len(plan.CheckpointsToDelete), plan.Floor)
	}
	return nil
}
