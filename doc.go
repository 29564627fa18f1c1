// Package manifest implements fusio-manifest: a transactional metadata layer
// for LSM-tree databases whose durable state lives entirely in an object
// store. It provides serializable isolation over a key-value mapping using
// only conditional PUT, strongly consistent GET, and LIST, with no external
// coordinator.
//
// The package is organized the way the concerns are owned: object-store
// access and its concrete backends live under objectstore/, segment framing
// under segment/, HEAD under head/, checkpoints under checkpoint/, leases
// under lease/, and the combined read view under snapshot/. This package
// wires them into write sessions, read sessions, and the background
// checkpointer and GC coordinator.
package manifest
