// Package config loads phonolited's YAML configuration, adapted from
// the teacher's env-var FromEnv (this same file, previously) into the
// YAML-file shape spec.md §6 requires, keeping the same
// default-with-sane-fallback posture.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExternalMetadataSource is one configured enrichment provider.
type ExternalMetadataSource struct {
	ID        string `yaml:"id"`
	Provider  string `yaml:"provider"`
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	UserAgent string `yaml:"user_agent"`
}

// ExternalMetadata groups the enrichment-collaborator settings. No
// concrete fetcher ships in this repo (see internal/capability); this
// only configures how one would be driven if wired in.
type ExternalMetadata struct {
	Enabled         bool                     `yaml:"enabled"`
	MinIntervalSecs uint64                   `yaml:"min_interval_secs"`
	TimeoutSecs     uint64                   `yaml:"timeout_secs"`
	EnrichOnScan    bool                     `yaml:"enrich_on_scan"`
	ScanLimit       int                      `yaml:"scan_limit"`
	OnTagError      string                   `yaml:"on_tag_error"`
	Sources         []ExternalMetadataSource `yaml:"sources"`
}

// Config is phonolited's full runtime configuration, loaded from one
// YAML file.
type Config struct {
	Version uint32 `yaml:"version"`

	MusicRoot    string `yaml:"music_root"`
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`

	Port           uint16 `yaml:"port"`
	QUICPort       uint16 `yaml:"quic_port"`
	QUICCertPath   string `yaml:"quic_cert_path"`
	QUICKeyPath    string `yaml:"quic_key_path"`
	QUICSelfSigned bool   `yaml:"quic_self_signed"`

	WatchMusic        bool   `yaml:"watch_music"`
	WatchDebounceSecs uint64 `yaml:"watch_debounce_secs"`

	SessionTTLSecs uint64 `yaml:"session_ttl_secs"`

	StatsCollectionEnabled bool `yaml:"stats_collection_enabled"`

	ExternalMetadata ExternalMetadata `yaml:"external_metadata"`
}

const currentSchemaVersion = 1

// Load reads and defaults Config from the YAML file at path, applying
// spec.md §6's load-time normalization rules.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Version == 0 {
		cfg.Version = currentSchemaVersion
	}
	if cfg.MusicRoot == "" {
		return cfg, fmt.Errorf("config: music_root is required")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = "library.bbolt"
	}
	if cfg.MetadataPath == "" {
		cfg.MetadataPath = "metadata"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.QUICPort == 0 || cfg.QUICPort == cfg.Port {
		cfg.QUICPort = bumpPort(cfg.Port)
	}
	if cfg.WatchDebounceSecs == 0 {
		cfg.WatchDebounceSecs = 5
	}
	if cfg.SessionTTLSecs == 0 {
		cfg.SessionTTLSecs = 3600
	}
	return cfg, nil
}

// bumpPort implements the ±1 collision-avoidance rule: +1 unless that
// would overflow u16, in which case -1.
func bumpPort(p uint16) uint16 {
	if p == 65535 {
		return p - 1
	}
	return p + 1
}
