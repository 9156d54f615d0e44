// Package config loads the single immutable configuration record shared by
// every component of scs: the store root, release and scratch directories,
// the external binaries it shells out to, and the audit transport template.
// YAML-decoded and validated once at load time, never re-read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	DefaultVCSBinary       = "git"
	DefaultPatchBinary     = "patch"
	DefaultAuditTransport  = "scp {host}:{remotePath} {localPath}"
	DefaultDownloadRetries = 1
	DefaultDownloadDelay   = 10 * time.Second
)

// Config is passed by value (it is small and immutable after Load) to every
// component that needs to know where things live on disk or how to shell
// out to the version-control, patch, and transport binaries.
type Config struct {
	StoreRoot       string        `yaml:"store_root"`
	ReleaseDir      string        `yaml:"release_dir"`
	ScratchDir      string        `yaml:"scratch_dir"`
	VCSBinary       string        `yaml:"vcs_binary"`
	PatchBinary     string        `yaml:"patch_binary"`
	EditorEnv       string        `yaml:"editor_env"`
	AuditTransport  string        `yaml:"audit_transport"`
	DownloadRetries int           `yaml:"download_retries"`
	DownloadDelay   time.Duration `yaml:"download_delay"`
}

// Default returns a Config rooted at root, with releases in a "release"
// directory beside root, scratch space under os.TempDir()/scs, and every
// other field at its documented default.
func Default(root string) Config {
	return Config{
		StoreRoot:       root,
		ReleaseDir:      filepath.Join(root, "..", "release"),
		ScratchDir:      filepath.Join(os.TempDir(), "scs"),
		VCSBinary:       DefaultVCSBinary,
		PatchBinary:     DefaultPatchBinary,
		EditorEnv:       "EDITOR",
		AuditTransport:  DefaultAuditTransport,
		DownloadRetries: DefaultDownloadRetries,
		DownloadDelay:   DefaultDownloadDelay,
	}
}

// Load reads and validates a YAML config file, filling in any field left
// zero-valued with its default.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load %v: %w", path, err)
	}
	return Parse(content)
}

// Parse decodes YAML content into a Config.
func Parse(content []byte) (Config, error) {
	cfg := Default("")
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.VCSBinary == "" {
		c.VCSBinary = DefaultVCSBinary
	}
	if c.PatchBinary == "" {
		c.PatchBinary = DefaultPatchBinary
	}
	if c.AuditTransport == "" {
		c.AuditTransport = DefaultAuditTransport
	}
	if c.EditorEnv == "" {
		c.EditorEnv = "EDITOR"
	}
	if c.DownloadRetries == 0 {
		c.DownloadRetries = DefaultDownloadRetries
	}
	if c.DownloadDelay == 0 {
		c.DownloadDelay = DefaultDownloadDelay
	}
	if c.ScratchDir == "" {
		c.ScratchDir = filepath.Join(os.TempDir(), "scs")
	}
}

func (c *Config) validate() error {
	if c.StoreRoot == "" {
		return fmt.Errorf("invalid configuration: store_root is required")
	}
	if c.ReleaseDir == "" {
		return fmt.Errorf("invalid configuration: release_dir is required")
	}
	return nil
}
