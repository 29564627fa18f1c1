package manifest

import (
	"context"
	"errors"

	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/head"
	"github.com/viant/fusio-manifest/lease"
	"github.com/viant/fusio-manifest/objectstore"
	"github.com/viant/fusio-manifest/segment"
	"github.com/viant/fusio-manifest/snapshot"
)

// Manifest is the entry point: one Manifest instance owns the adapter and
// configuration for exactly one manifest prefix, i.e. one serializability
// domain; there are no cross-prefix transactions.
type Manifest struct {
	objects objectstore.Store
	prefix  string
	cfg     Config

	heads       *head.Store
	segments    *segment.Store
	checkpoints *checkpoint.Store
	leases      *lease.Store
}

// New constructs a Manifest bound to prefix over objects. objects should
// already be wrapped with objectstore.Retrying if retry-on-transient-fault
// behavior is wanted.
func New(objects objectstore.Store, prefix string, opts ...Option) *Manifest {
	prefix = normalizePrefix(prefix)
	cfg := newConfig(opts...)
	return &Manifest{
		objects:     objects,
		prefix:      prefix,
		cfg:         cfg,
		heads:       head.New(objects, prefix),
		segments:    segment.New(objects, prefix),
		checkpoints: checkpoint.New(objects, prefix),
		leases:      lease.New(objects, prefix),
	}
}

// Initialize creates HEAD at {0,0,nil}. Only this path may create HEAD;
// calling it twice returns ErrAlreadyInitialized.
func (m *Manifest) Initialize(ctx context.Context) error {
	if _, err := m.heads.Initialize(ctx); err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			return ErrAlreadyInitialized
		}
		return wrapStoreErr("manifest: initialize", err)
	}
	return nil
}

// loadSnapshot loads the current snapshot, translating the
// object-store-not-found case into ErrNotInitialized.
func (m *Manifest) loadSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := snapshot.Load(ctx, m.heads, m.checkpoints)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotInitialized) {
			return nil, ErrNotInitialized
		}
		return nil, wrapStoreErr("manifest: load snapshot", err)
	}
	return snap, nil
}
