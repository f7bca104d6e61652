package relaylog

import "time"

// Config holds the tunables for a relay-log service (spec.md 4.7/6).
type Config struct {
	RelayLogDir       string
	MaxSegmentSize    uint64
	MaxSegmentEntries uint32
	EntryBufferNum    int
	FlushOnCommit     bool
	CompactInterval   time.Duration
}

// DefaultConfig returns the tunables MySQL's own relay log defaults to
// when a caller's config file doesn't override them.
func DefaultConfig(dir string) Config {
	return Config{
		RelayLogDir:       dir,
		MaxSegmentSize:    10 * 1024 * 1024,
		MaxSegmentEntries: 100,
		EntryBufferNum:    1024,
		FlushOnCommit:     false,
		CompactInterval:   5 * time.Minute,
	}
}
