package manifest

import (
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/checkpoint"
	"github.com/viant/fusio-manifest/head"
	"github.com/viant/fusio-manifest/objectstore"
	"github.com/viant/fusio-manifest/segment"
)

// Error kinds returned by manifest operations. Callers should compare with
// errors.Is; wrapped errors carry additional context via fmt.Errorf("%w").
var (
	// ErrConflict is returned when a write session's segment PUT or HEAD CAS
	// loses a race. It is benign: the caller may restart open_write.
	ErrConflict = errors.New("manifest: conflict")

	// ErrUnavailable is returned when the object-store adapter exhausts its
	// retry budget on a transient fault.
	ErrUnavailable = errors.New("manifest: object store unavailable")

	// ErrCorrupted is returned for a checksum or decode failure in HEAD,
	// a segment, or a checkpoint. A corrupted HEAD requires operator
	// intervention; a corrupted segment fails the get, scan, or checkpoint
	// run that reads it.
	ErrCorrupted = errors.New("manifest: corrupted object")

	// ErrSnapshotExpired is returned to a read session whose lease has
	// expired past its grace period; the objects backing its snapshot may
	// have been garbage collected.
	ErrSnapshotExpired = errors.New("manifest: snapshot expired")

	// ErrNotInitialized is returned when HEAD is absent and the caller is
	// not the one performing Initialize.
	ErrNotInitialized = errors.New("manifest: not initialized")

	// ErrAlreadyInitialized is returned by Initialize when HEAD already
	// exists.
	ErrAlreadyInitialized = errors.New("manifest: already initialized")

	// ErrInvalidState is returned for API misuse, such as committing a
	// session that has already reached a terminal state.
	ErrInvalidState = errors.New("manifest: invalid session state")

	// ErrNotFound is returned by get when the key is absent at the session's
	// snapshot.
	ErrNotFound = errors.New("manifest: key not found")
)

// wrapStoreErr translates a lower-layer error into the caller-facing
// sentinel it should surface as, wrapping op for context. A retry-exhausted
// transient fault becomes ErrUnavailable; a decode/checksum failure in
// HEAD, a segment, or a checkpoint becomes ErrCorrupted; everything else
// passes through unchanged (NotFound/PreconditionFailed are handled by
// each call site since their translation depends on what the caller was
// attempting).
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, objectstore.ErrRetriesExhausted) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if errors.Is(err, head.ErrDecode) || errors.Is(err, checkpoint.ErrDecode) ||
		errors.Is(err, segment.ErrBadMagic) || errors.Is(err, segment.ErrChecksumMismatch) {
		return fmt.Errorf("%s: %w: %w", op, ErrCorrupted, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
