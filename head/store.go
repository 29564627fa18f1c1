package head

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/objectstore"
)

// Store reads and CAS-updates HEAD. All mutators follow the same contract:
// read with tag E, compute the new value, then Put with IfMatch(E), or
// IfNotExists for the one-time Initialize.
type Store struct {
	objects objectstore.Store
	prefix  string
}

func New(objects objectstore.Store, prefix string) *Store {
	return &Store{objects: objects, prefix: prefix}
}

// Load reads HEAD and its tag. Returns manifest-level ErrNotInitialized
// semantics via objectstore.ErrNotFound, which callers translate.
func (s *Store) Load(ctx context.Context) (Head, objectstore.Tag, error) {
	data, tag, err := s.objects.Get(ctx, Key(s.prefix))
	if err != nil {
		return Head{}, "", err
	}
	h, err := Decode(data)
	if err != nil {
		return Head{}, "", err
	}
	return h, tag, nil
}

// Initialize creates HEAD at {0,0,nil} if it does not already exist. This is
// the only path permitted to create HEAD.
func (s *Store) Initialize(ctx context.Context) (objectstore.Tag, error) {
	data, err := Encode(Head{})
	if err != nil {
		return "", err
	}
	tag, err := s.objects.Put(ctx, Key(s.prefix), data, objectstore.IfNotExists())
	if err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			return "", fmt.Errorf("head: initialize: %w", objectstore.ErrPreconditionFailed)
		}
		return "", fmt.Errorf("head: initialize: %w", err)
	}
	return tag, nil
}

// CAS writes newHead conditioned on the current tag equalling expected,
// returning the new tag on success or objectstore.ErrPreconditionFailed on
// a lost race.
func (s *Store) CAS(ctx context.Context, newHead Head, expected objectstore.Tag) (objectstore.Tag, error) {
	data, err := Encode(newHead)
	if err != nil {
		return "", err
	}
	tag, err := s.objects.Put(ctx, Key(s.prefix), data, objectstore.IfMatch(expected))
	if err != nil {
		return "", err
	}
	return tag, nil
}
