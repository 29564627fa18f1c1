// Package memstore is an in-process fake implementing objectstore.Store. It
// is intended for unit tests and local experimentation only, backed by a
// key->object map with real CAS semantics.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/fusio-manifest/objectstore"
)

type object struct {
	data []byte
	tag  objectstore.Tag
}

// Store is a mutex-guarded map[string]object. Tags are monotonically
// increasing per-key version counters rendered as strings, which is enough
// to exercise every precondition path the core relies on.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	seq     map[string]uint64
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: map[string]object{}, seq: map[string]uint64{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, objectstore.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", objectstore.ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.tag, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte, precond objectstore.Precondition) (objectstore.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.objects[key]
	switch precond.Kind {
	case objectstore.PreconditionIfNotExists:
		if exists {
			return "", objectstore.ErrPreconditionFailed
		}
	case objectstore.PreconditionIfMatch:
		if !exists || current.tag != precond.Tag {
			return "", objectstore.ErrPreconditionFailed
		}
	case objectstore.PreconditionNone:
		// unconditional
	}

	s.seq[key]++
	tag := objectstore.Tag(strconv.FormatUint(s.seq[key], 10))
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = object{data: cp, tag: tag}
	return tag, nil
}

func (s *Store) List(_ context.Context, prefix string, startAfter string) ([]objectstore.ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && k > startAfter {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]objectstore.ObjectMeta, 0, len(keys))
	for _, k := range keys {
		obj := s.objects[k]
		out = append(out, objectstore.ObjectMeta{Key: k, Tag: obj.tag, Size: int64(len(obj.data))})
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

var _ objectstore.Store = (*Store)(nil)
