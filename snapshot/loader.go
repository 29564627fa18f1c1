package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/head"
	"github.com/viant/fusio-manifest/objectstore"
)

// ErrNotInitialized is returned by Load when HEAD is absent.
var ErrNotInitialized = errors.New("snapshot: not initialized")

// Load reads HEAD, and if it links a checkpoint, reads that checkpoint's
// metadata too (the payload itself is fetched lazily by callers that
// actually need it).
func Load(ctx context.Context, heads *head.Store, checkpoints *checkpoint.Store) (*Snapshot, error) {
	h, tag, err := heads.Load(ctx)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("snapshot: load head: %w", err)
	}

	snap := &Snapshot{HeadTag: tag, LastTxnID: h.LastTxnID, LastSegmentSeq: h.LastSegmentSeq}
	if h.CheckpointID != nil {
		meta, err := checkpoints.LoadMeta(ctx, *h.CheckpointID)
		if err != nil {
			return nil, fmt.Errorf("snapshot: load checkpoint meta %s: %w", *h.CheckpointID, err)
		}
		snap.CheckpointMeta = &meta
	}
	return snap, nil
}
