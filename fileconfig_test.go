package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfigAppliesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	body := "checkpointInterval: 500\nleaseTTL: 1m\ngcSafetyMargin: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load file config: %v", err)
	}

	cfg := defaultConfig()
	for _, opt := range fc.AsOptions() {
		opt(&cfg)
	}

	if cfg.CheckpointInterval != 500 {
		t.Fatalf("got CheckpointInterval=%d, want 500", cfg.CheckpointInterval)
	}
	if cfg.LeaseTTL != time.Minute {
		t.Fatalf("got LeaseTTL=%v, want 1m", cfg.LeaseTTL)
	}
	if cfg.GCSafetyMargin != 10 {
		t.Fatalf("got GCSafetyMargin=%d, want 10", cfg.GCSafetyMargin)
	}
	// LeaseGrace was not named in the file, so the default survives.
	if cfg.LeaseGrace != defaultConfig().LeaseGrace {
		t.Fatalf("got LeaseGrace=%v, want unchanged default", cfg.LeaseGrace)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
