// Package head implements the single mutable HEAD object that anchors
// fusio-manifest's commit protocol: every commit is a conditional update of
// HEAD against its prior tag.
package head

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode is returned by Decode when the stored bytes do not parse as a
// valid Head. The manifest package classifies this as ErrCorrupted.
var ErrDecode = errors.New("head: decode failed")

// Key is the fixed object key for HEAD under a manifest prefix.
func Key(prefix string) string { return prefix + "HEAD" }

// Head is the self-describing structure stored at Key(prefix), serialized
// compactly as JSON (a few hundred bytes at most).
type Head struct {
	LastTxnID      uint64  `json:"lastTxnId"`
	LastSegmentSeq uint64  `json:"lastSegmentSeq"`
	CheckpointID   *string `json:"checkpointId,omitempty"`
}

// Encode serializes h as compact JSON.
func Encode(h Head) ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("head: encode: %w", err)
	}
	return b, nil
}

// Decode parses the bytes written by Encode.
func Decode(data []byte) (Head, error) {
	var h Head
	if err := json.Unmarshal(data, &h); err != nil {
		return Head{}, fmt.Errorf("head: decode: %w: %w", ErrDecode, err)
	}
	return h, nil
}
