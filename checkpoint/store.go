package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/fusio-manifest/objectstore"
)

// Store writes and loads checkpoint metadata/payload pairs. Checkpoints are
// immutable once written; only the HEAD CAS that links a checkpoint's ID is
// a mutation.
type Store struct {
	objects objectstore.Store
	prefix  string
}

func New(objects objectstore.Store, prefix string) *Store {
	return &Store{objects: objects, prefix: prefix}
}

// Write persists both halves of a checkpoint under a fresh id. Callers pick
// the id (typically derived from UptoTxnID) before calling Write.
func (s *Store) Write(ctx context.Context, meta Meta, payload Payload) error {
	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, PayloadKey(s.prefix, meta.ID), payloadBytes, objectstore.Precondition{}); err != nil {
		return fmt.Errorf("checkpoint: write payload %s: %w", meta.ID, err)
	}

	metaBytes, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, MetaKey(s.prefix, meta.ID), metaBytes, objectstore.Precondition{}); err != nil {
		return fmt.Errorf("checkpoint: write meta %s: %w", meta.ID, err)
	}
	return nil
}

// LoadMeta reads checkpoint metadata by id.
func (s *Store) LoadMeta(ctx context.Context, id string) (Meta, error) {
	data, _, err := s.objects.Get(ctx, MetaKey(s.prefix, id))
	if err != nil {
		return Meta{}, fmt.Errorf("checkpoint: load meta %s: %w", id, err)
	}
	return decodeMeta(data)
}

// LoadPayload reads the consolidated payload by id. Fetched lazily: callers
// that only need UptoSeq/UptoTxnID should call LoadMeta alone.
func (s *Store) LoadPayload(ctx context.Context, id string) (Payload, error) {
	data, _, err := s.objects.Get(ctx, PayloadKey(s.prefix, id))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load payload %s: %w", id, err)
	}
	return decodePayload(data)
}

// List returns the metadata of every checkpoint, used by GC to find
// checkpoints superseded by a newer one.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	metas, err := s.objects.List(ctx, s.prefix+"checkpoints/", "")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	out := make([]Meta, 0, len(metas)/2)
	for _, om := range metas {
		if !strings.HasSuffix(om.Key, ".meta") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(om.Key, s.prefix+"checkpoints/"), ".meta")
		meta, err := s.LoadMeta(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Delete removes both halves of a checkpoint. Used by GC; idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.objects.Delete(ctx, MetaKey(s.prefix, id)); err != nil {
		return fmt.Errorf("checkpoint: delete meta %s: %w", id, err)
	}
	if err := s.objects.Delete(ctx, PayloadKey(s.prefix, id)); err != nil {
		return fmt.Errorf("checkpoint: delete payload %s: %w", id, err)
	}
	return nil
}
