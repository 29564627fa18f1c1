// Package checkpoint implements the read-optimization that bounds recovery
// cost: a consolidated key->value map subsuming every segment up to
// upto_seq. A checkpoint is never required for correctness, only for
// recovery latency.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/fusio-manifest/segment"
)

// ErrDecode is returned when stored checkpoint bytes do not parse. The
// manifest package classifies this as ErrCorrupted.
var ErrDecode = errors.New("checkpoint: decode failed")

// Meta is the immutable metadata half of a checkpoint pair.
type Meta struct {
	ID              string `json:"id"`
	UptoTxnID       uint64 `json:"uptoTxnId"`
	UptoSeq         uint64 `json:"uptoSeq"`
	PayloadLocation string `json:"payloadLocation"`
}

// Entry is a single payload slot. Op distinguishes a live value from an
// explicit tombstone; this implementation materializes deletions explicitly
// rather than by omission (see DESIGN.md, Open Question b).
type Entry struct {
	Op    segment.OpKind `json:"op"`
	Value []byte         `json:"value,omitempty"`
}

// Payload is the consolidated key->entry map for every key touched at or
// before UptoTxnID.
type Payload map[string]Entry

func MetaKey(prefix, id string) string { return fmt.Sprintf("%scheckpoints/%s.meta", prefix, id) }

func PayloadKey(prefix, id string) string { return fmt.Sprintf("%scheckpoints/%s.payload", prefix, id) }

func encodeMeta(m Meta) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode meta: %w", err)
	}
	return b, nil
}

func decodeMeta(data []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("checkpoint: decode meta: %w: %w", ErrDecode, err)
	}
	return m, nil
}

func encodePayload(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode payload: %w", err)
	}
	return b, nil
}

func decodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("checkpoint: decode payload: %w: %w", ErrDecode, err)
	}
	return p, nil
}

// Get looks up key in the payload, reporting whether it was present at all
// (a present tombstone still reports found=true with op=OpDel).
func (p Payload) Get(key string) (entry Entry, found bool) {
	entry, found = p[key]
	return entry, found
}
