package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/modelpush/region"
	"github.com/pithecene-io/modelpush/types"
)

// Config represents a modelpush.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Regions  region.Layout  `yaml:"regions"`
	Executor ExecutorConfig `yaml:"executor"`
	Host     HostConfig     `yaml:"host"`
	Storage  StorageConfig  `yaml:"storage"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	Log      LogConfig      `yaml:"log"`
}

// DeviceConfig holds `modelpush device` defaults.
type DeviceConfig struct {
	ID             string   `yaml:"id"`
	Listen         string   `yaml:"listen"`
	ArtifactRegion string   `yaml:"artifact_region"`
	ScratchRegion  string   `yaml:"scratch_region"`
	RunTimeout     Duration `yaml:"run_timeout"`
	Heartbeat      *bool    `yaml:"heartbeat,omitempty"`
}

// Selection returns the initial region selection. An empty scratch region
// mirrors the artifact region, as a one-byte CONFIG payload does.
func (d DeviceConfig) Selection() (region.Selection, error) {
	var sel region.Selection
	if d.ArtifactRegion != "" {
		k, err := types.ParseRegionKind(d.ArtifactRegion)
		if err != nil {
			return sel, fmt.Errorf("device.artifact_region: %w", err)
		}
		sel.Artifact = k
	}
	sel.Scratch = sel.Artifact
	if d.ScratchRegion != "" {
		k, err := types.ParseRegionKind(d.ScratchRegion)
		if err != nil {
			return sel, fmt.Errorf("device.scratch_region: %w", err)
		}
		sel.Scratch = k
	}
	return sel, nil
}

// ExecutorConfig selects and configures the model executor.
type ExecutorConfig struct {
	Type          string   `yaml:"type"` // sim or process
	Path          string   `yaml:"path"`
	Args          []string `yaml:"args,omitempty"`
	Timeout       Duration `yaml:"timeout"`
	CyclesPerByte int      `yaml:"cycles_per_byte,omitempty"`
}

// HostConfig holds `modelpush push` defaults.
type HostConfig struct {
	Addr       string   `yaml:"addr"`
	ChunkSize  int      `yaml:"chunk_size"`
	AckTimeout Duration `yaml:"ack_timeout"`
	RunTimeout Duration `yaml:"run_timeout"`
	Retries    *int     `yaml:"retries,omitempty"`
}

// StorageConfig holds archive defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds run report adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
