package manifest

// Metrics is an optional sink for commit/conflict/checkpoint/GC counters. It
// is a hook into mechanisms the core already performs, not a benchmarking
// harness in its own right, so implementations are free to aggregate,
// sample, or export these calls however a deployment needs.
type Metrics interface {
	OnCommit(txnID uint64, seq uint64)
	OnConflict(stage string)
	OnCheckpoint(id string, uptoSeq uint64)
	OnGC(deleted int, floor uint64)
}

// FaultPoint names a point at which FaultInjector may be consulted to
// deterministically exercise crash recovery in tests.
type FaultPoint string

const (
	// FaultAfterSegmentWrite fires immediately after the segment PUT
	// succeeds, before the HEAD CAS is attempted. This is the window in
	// which a crash leaves an orphan segment.
	FaultAfterSegmentWrite FaultPoint = "after-segment-write"
	// FaultBeforeHeadCAS fires immediately before the HEAD CAS attempt.
	FaultBeforeHeadCAS FaultPoint = "before-head-cas"
)

// FaultInjector lets a test harness force a specific write session to
// abort at a named point, so orphan recovery and conflict handling can be
// exercised deterministically instead of relying on real races. A nil
// FaultInjector (the default) never fires.
type FaultInjector interface {
	// Inject returns a non-nil error to abort the write session at point.
	Inject(point FaultPoint) error
}

// FaultInjectorFunc adapts a function to FaultInjector.
type FaultInjectorFunc func(point FaultPoint) error

func (f FaultInjectorFunc) Inject(point FaultPoint) error { return f(point) }

func injectFault(faults FaultInjector, point FaultPoint) error {
	if faults == nil {
		return nil
	}
	return faults.Inject(point)
}
