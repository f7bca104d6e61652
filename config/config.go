// Package config loads the TOML configuration file that drives the
// binlogrelay CLI: where to read binlog data from, where to stage the
// relay log, and how segments are sized and compacted (SPEC_FULL.md 6).
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of a binlogrelay TOML config file.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Relay   RelayConfig   `toml:"relay"`
	Logging LoggingConfig `toml:"logging"`
}

// SourceConfig names where the binlog bytes come from: either a single
// saved file, or a directory of rotated files following binlog.index.
type SourceConfig struct {
	FromFile string `toml:"from_file"`
	FromDir  string `toml:"from_dir"`
}

// RelayConfig mirrors relaylog.Config's tunables, expressed as the
// durations/sizes a human writes into a TOML file.
type RelayConfig struct {
	Dir                 string `toml:"dir"`
	MaxSegmentSizeBytes uint64 `toml:"max_segment_size_bytes"`
	MaxSegmentEntries   uint32 `toml:"max_segment_entries"`
	EntryBufferNum      int    `toml:"entry_buffer_num"`
	FlushOnCommit       bool   `toml:"flush_on_commit"`
	CompactIntervalMs   int64  `toml:"compact_interval_ms"`
}

// CompactInterval returns the configured compaction period as a
// time.Duration, defaulting to 5 minutes when unset.
func (r RelayConfig) CompactInterval() time.Duration {
	if r.CompactIntervalMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.CompactIntervalMs) * time.Millisecond
}

// LoggingConfig configures the rotating file logger.
type LoggingConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the configuration used when no --config flag is given.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			Dir:                 "relay",
			MaxSegmentSizeBytes: 10 * 1024 * 1024,
			MaxSegmentEntries:   100,
			EntryBufferNum:      1024,
			FlushOnCommit:       false,
			CompactIntervalMs:   int64((5 * time.Minute) / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load reads and parses a TOML config file at path, starting from
// Default() so unset fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, wrapConfigError(path, err)
	}
	return cfg, nil
}
