// Package config loads the pipeline's working configuration: download
// concurrency, proxy list, vault federation order, working directory
// layout, and external tool paths. Credential/service-login configuration
// is deliberately absent — that is the ServiceAdapter's own business.
//
// Grounded on other_examples/Koodeyo-Media-shaka-streamer-go's
// PipelineConfig: a YAML document decoded with creasty/defaults filling
// zero-value fields via `default:"..."` struct tags ahead of
// gopkg.in/yaml.v3's Unmarshal, then validated with
// gopkg.in/dealancer/validate.v2's `validate:"..."` tags, exactly the
// UnmarshalYAML(defaults.Set -> unmarshal -> validate.Validate) sequence
// that file uses for PipelineConfig and EncryptionConfig.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/dealancer/validate.v2"
	"gopkg.in/yaml.v3"
)

// ProxyConfig is one entry in the proxy list a Downloader may route
// JA3-sensitive or geofenced track fetches through.
type ProxyConfig struct {
	Name        string `yaml:"name" validate:"empty=false"`
	URL         string `yaml:"url" validate:"empty=false"`
	Fingerprint bool   `yaml:"fingerprint" default:"false"`
}

// VaultConfig describes one vault in the federation's ordered lookup list.
type VaultConfig struct {
	// Kind is "local" (modernc.org/sqlite-backed) or "remote" (HTTP vault
	// service).
	Kind string `yaml:"kind" validate:"empty=false"`
	// Path is the sqlite file path for a local vault.
	Path string `yaml:"path"`
	// BaseURL is the service URL for a remote vault.
	BaseURL string `yaml:"base_url"`
	// Services lists the service buckets this vault partitions keys by.
	Services []string `yaml:"services"`
}

// WorkDirConfig lays out the on-disk directories per §6: temp/ for
// downloads and intermediates, downloads/ for finished artifacts.
type WorkDirConfig struct {
	Root      string `yaml:"root" default:"." validate:"empty=false"`
	TempDir   string `yaml:"temp_dir" default:"temp"`
	OutputDir string `yaml:"output_dir" default:"downloads"`
}

// ToolPaths overrides default PATH/binaries-dir discovery (§6's
// ToolRunner contract) for one or more external tools.
type ToolPaths struct {
	BinariesDir string `yaml:"binaries_dir" default:"binaries"`
}

// Config is the top-level pipeline configuration document.
type Config struct {
	// DownloadWorkers bounds per-track segment-fetch concurrency (§5:
	// "default small, e.g. 8-16").
	DownloadWorkers int `yaml:"download_workers" default:"8"`

	// MaxBandwidth caps download speed in bytes/sec; 0 is unlimited.
	MaxBandwidth int64 `yaml:"max_bandwidth" default:"0"`

	// MuxEnabled toggles the Muxer; when false, per-track files are
	// renamed into WorkDir.OutputDir instead (§4.9).
	MuxEnabled bool `yaml:"mux_enabled" default:"true"`

	Proxies []ProxyConfig `yaml:"proxies"`
	// Vaults may be empty: an operator downloading only unencrypted
	// titles never visits a DrmSession, so vault federation is optional.
	// Per-entry shape is still enforced by VaultConfig.Kind's own
	// validate tag whenever an entry is present.
	Vaults  []VaultConfig `yaml:"vaults"`
	WorkDir WorkDirConfig `yaml:"work_dir"`
	Tools   ToolPaths     `yaml:"tools"`
}

// UnmarshalYAML runs the defaults-then-decode-then-validate sequence
// shaka-streamer-go's PipelineConfig.UnmarshalYAML uses, so Load can
// simply call yaml.Unmarshal once.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config: set defaults: %w", err)
	}

	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	if err := validate.Validate(c); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}

	// DownloadWorkers clamp mirrors the teacher's original Threads clamp in
	// Config.Validate, now enforced at decode time instead of a separate
	// post-hoc call.
	if c.DownloadWorkers < 1 {
		c.DownloadWorkers = 1
	}
	if c.DownloadWorkers > 128 {
		c.DownloadWorkers = 128
	}

	for i := range c.Proxies {
		if _, err := url.Parse(c.Proxies[i].URL); err != nil {
			return fmt.Errorf("config: proxy %q: invalid url: %w", c.Proxies[i].Name, err)
		}
	}
	for i := range c.Vaults {
		kind := c.Vaults[i].Kind
		if kind != "local" && kind != "remote" {
			return fmt.Errorf("config: vault %d: kind must be \"local\" or \"remote\", got %q", i, kind)
		}
	}
	return nil
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
