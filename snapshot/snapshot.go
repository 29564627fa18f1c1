// Package snapshot loads the combined (HEAD, checkpoint-metadata) view that
// fixes a reader's or writer's vantage point.
package snapshot

import (
	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/objectstore"
)

// Snapshot is the (etag, last_txn_id, last_segment_seq, checkpoint_id?)
// tuple described in the GLOSSARY.
type Snapshot struct {
	HeadTag        objectstore.Tag
	LastTxnID      uint64
	LastSegmentSeq uint64
	CheckpointMeta *checkpoint.Meta // nil if HEAD has no linked checkpoint
}
