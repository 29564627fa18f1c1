// Package lease implements the short-lived objects that declare an active
// read or write session and pin its snapshot, so GC never reclaims an
// object a live session still needs.
package lease

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes a reader's lease from a writer's.
type Kind string

const (
	Read  Kind = "read"
	Write Kind = "write"
)

// Lease is the JSON body stored at Key(prefix, SessionID).
type Lease struct {
	SessionID     string    `json:"sessionId"`
	SnapshotTxnID uint64    `json:"snapshotTxnId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Kind          Kind      `json:"kind"`

	// SnapshotCheckpointSeq is the upto_seq of whatever checkpoint was
	// linked in HEAD when this session captured its snapshot (0 if none was
	// linked yet). A session reads raw segments only above this boundary
	// (and the checkpoint payload at it), so GC may delete only segments at
	// or below the minimum SnapshotCheckpointSeq across every live lease;
	// SnapshotTxnID alone is not a safe bound, since a later, larger
	// checkpoint does not retroactively cover a session that opened before
	// it existed.
	SnapshotCheckpointSeq uint64 `json:"snapshotCheckpointSeq"`
}

// NewSessionID generates a fresh session id. A real UUID is used rather than
// a hand-rolled owner string, since each read or write session needs its own
// collision-free identity independent of any single named slot.
func NewSessionID() string { return uuid.NewString() }

func Key(prefix, sessionID string) string {
	return fmt.Sprintf("%sleases/%s.lease", prefix, sessionID)
}

// Expired reports whether the lease is invalid as of now, i.e. past
// ExpiresAt plus grace.
func (l Lease) Expired(now time.Time, grace time.Duration) bool {
	return now.After(l.ExpiresAt.Add(grace))
}

func encode(l Lease) ([]byte, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("lease: encode: %w", err)
	}
	return b, nil
}

func decode(data []byte) (Lease, error) {
	var l Lease
	if err := json.Unmarshal(data, &l); err != nil {
		return Lease{}, fmt.Errorf("lease: decode: %w", err)
	}
	return l, nil
}
