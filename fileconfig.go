package manifest

import (
	"fmt"
	"os"
	"time"

	"github.com/viant/fusio-manifest/objectstore"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config's policy constants as a YAML-tagged struct, the
// way service.Config sources its own policy constants from a file
// (_examples/viant-embedius/service/config.go). Embedding applications that
// want to keep CheckpointInterval/LeaseTTL/GCSafetyMargin in a config file
// rather than hard-coded Option calls load one of these and turn it into
// Options with AsOptions.
type FileConfig struct {
	CheckpointInterval uint64        `yaml:"checkpointInterval"`
	LeaseTTL           time.Duration `yaml:"leaseTTL"`
	LeaseGrace         time.Duration `yaml:"leaseGrace"`
	GCSafetyMargin     uint64        `yaml:"gcSafetyMargin"`
	RetryMaxAttempts   int           `yaml:"retryMaxAttempts"`
	RetryBaseDelay     time.Duration `yaml:"retryBaseDelay"`
	RetryMaxDelay      time.Duration `yaml:"retryMaxDelay"`
}

// LoadFileConfig reads and parses a YAML file at path into a FileConfig.
// Zero-valued fields are left for AsOptions to skip, so a partial file only
// overrides what it names.
func LoadFileConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: load file config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("manifest: load file config: parse %s: %w", path, err)
	}
	return &fc, nil
}

// AsOptions turns the non-zero fields of fc into Config Options, so the
// result can be passed straight to New alongside any other Option overrides.
func (fc *FileConfig) AsOptions() []Option {
	var opts []Option
	if fc.CheckpointInterval != 0 {
		opts = append(opts, WithCheckpointInterval(fc.CheckpointInterval))
	}
	if fc.LeaseTTL != 0 {
		opts = append(opts, WithLeaseTTL(fc.LeaseTTL))
	}
	if fc.LeaseGrace != 0 {
		opts = append(opts, WithLeaseGrace(fc.LeaseGrace))
	}
	if fc.GCSafetyMargin != 0 {
		opts = append(opts, WithGCSafetyMargin(fc.GCSafetyMargin))
	}
	if fc.RetryMaxAttempts != 0 || fc.RetryBaseDelay != 0 || fc.RetryMaxDelay != 0 {
		policy := objectstore.DefaultRetryPolicy()
		if fc.RetryMaxAttempts != 0 {
			policy.MaxAttempts = fc.RetryMaxAttempts
		}
		if fc.RetryBaseDelay != 0 {
			policy.BaseDelay = fc.RetryBaseDelay
		}
		if fc.RetryMaxDelay != 0 {
			policy.MaxDelay = fc.RetryMaxDelay
		}
		opts = append(opts, WithRetryPolicy(policy))
	}
	return opts
}
