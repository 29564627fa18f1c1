package manifest

import (
	"context"
	"fmt"

	"github.com/viant/fusio-manifest/snapshot"
)

// recoverOrphans lists segments with seq > snap.LastSegmentSeq and deletes
// them. The default policy is delete, never adopt (see DESIGN.md's Open
// Question decisions); re-running recovery against the same HEAD state is a
// no-op since a second deletion of an already-deleted key is itself
// idempotent.
func (m *Manifest) recoverOrphans(ctx context.Context, snap *snapshot.Snapshot) (deleted int, err error) {
	orphans, err := m.segments.ListAfter(ctx, snap.LastSegmentSeq)
	if err != nil {
		return 0, wrapStoreErr("manifest: orphan recovery: list", err)
	}
	for _, seq := range orphans {
		if err := m.segments.Delete(ctx, seq); err != nil {
			return deleted, wrapStoreErr(fmt.Sprintf("manifest: orphan recovery: delete seq=%d", seq), err)
		}
		deleted++
		m.cfg.Logf("manifest: orphan recovery deleted segment seq=%d", seq)
	}
	return deleted, nil
}
