package manifest

import (
	"log"
	"time"

	"github.com/viant/fusio-manifest/objectstore"
)

// Config holds the policy constants passed at construction time. It is
// built with functional options so most callers only need to override the
// handful of fields relevant to them, leaving the rest at their defaults.
type Config struct {
	// CheckpointInterval is K: the checkpointer's target bound on
	// HEAD.last_segment_seq - checkpoint.upto_seq.
	CheckpointInterval uint64
	// LeaseTTL is the wall-clock hint leases are created/renewed with.
	LeaseTTL time.Duration
	// LeaseGrace extends LeaseTTL before a lease is considered dead.
	LeaseGrace time.Duration
	// GCSafetyMargin is the policy constant separating a checkpoint's
	// upto_seq from HEAD.last_segment_seq that the checkpointer targets; not
	// a correctness parameter.
	GCSafetyMargin uint64
	// Retry holds a backoff policy for transient object-store faults, set by
	// WithRetryPolicy or FileConfig.AsOptions. New does not apply it: the
	// Manifest retries nothing itself, and retries happen only when the
	// store passed to New is already wrapped with objectstore.Retrying.
	Retry objectstore.RetryPolicy
	// Now is the clock used throughout, overridable for deterministic tests.
	Now func() time.Time
	// Logf receives progress/diagnostic lines (commit conflicts, orphan
	// deletions, checkpoint links, GC lease expiry and reclamation). Retry
	// attempts are not logged. Defaults to log.Printf; no
	// structured logging library is introduced.
	Logf func(format string, args ...any)
	// Metrics, if set, receives commit/conflict/checkpoint/GC counters.
	// Nil is a valid no-op default.
	Metrics Metrics
	// Faults, if set, is consulted at the two crash-vulnerable points
	// (after segment PUT, before HEAD CAS) so a test harness can exercise
	// orphan recovery deterministically. Nil by default.
	Faults FaultInjector
}

// Option mutates a Config being built by New.
type Option func(*Config)

func WithCheckpointInterval(n uint64) Option { return func(c *Config) { c.CheckpointInterval = n } }
func WithLeaseTTL(d time.Duration) Option    { return func(c *Config) { c.LeaseTTL = d } }
func WithLeaseGrace(d time.Duration) Option  { return func(c *Config) { c.LeaseGrace = d } }
func WithGCSafetyMargin(n uint64) Option     { return func(c *Config) { c.GCSafetyMargin = n } }
func WithRetryPolicy(p objectstore.RetryPolicy) Option {
	return func(c *Config) { c.Retry = p }
}
func WithClock(now func() time.Time) Option { return func(c *Config) { c.Now = now } }
func WithLogf(f func(format string, args ...any)) Option {
	return func(c *Config) { c.Logf = f }
}
func WithMetrics(m Metrics) Option { return func(c *Config) { c.Metrics = m } }
func WithFaultInjector(f FaultInjector) Option {
	return func(c *Config) { c.Faults = f }
}

func defaultConfig() Config {
	return Config{
		CheckpointInterval: 1000,
		LeaseTTL:           30 * time.Second,
		LeaseGrace:         10 * time.Second,
		GCSafetyMargin:     100,
		Retry:              objectstore.DefaultRetryPolicy(),
		Now:                time.Now,
		Logf:               log.Printf,
	}
}

func newConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return cfg
}
