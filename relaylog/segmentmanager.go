package relaylog

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// SegmentManager owns one (database, table) pair's relay log: an ordered
// set of segment files on disk, with the greatest-first_index segment
// always the active (appendable) one (spec.md 4.7).
//
// Append and Compact take an exclusive lock; GetEntry takes a shared
// lock, so readers may run concurrently with each other and with reads
// of already-sealed segments, but never race the writer extending the
// active segment's tail.
type SegmentManager struct {
	mu sync.RWMutex

	dir      string
	dbName   string
	table    string
	maxSize  uint64
	maxEntries uint32
	flushOnCommit bool

	segments []*segment // sorted ascending by FirstIndex; last is active
}

// OpenSegmentManager opens (creating if necessary) the relay-log
// directory for one (db, table) pair, recovering any existing segments.
func OpenSegmentManager(cfg Config, db, table string) (*SegmentManager, error) {
	dir := filepath.Join(cfg.RelayLogDir, db+"#"+table)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapError(KindIO, "create relay-log table directory", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapError(KindIO, "list relay-log table directory", err)
	}

	m := &SegmentManager{
		dir:           dir,
		dbName:        db,
		table:         table,
		maxSize:       cfg.MaxSegmentSize,
		maxEntries:    cfg.MaxSegmentEntries,
		flushOnCommit: cfg.FlushOnCommit,
	}

	for _, e := range entries {
		if e.IsDir() || !isSegmentFile(e.Name()) {
			continue
		}
		s, err := openSegment(filepath.Join(dir, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		m.segments = append(m.segments, s)
	}
	sort.Slice(m.segments, func(i, j int) bool {
		return m.segments[i].header.FirstIndex < m.segments[j].header.FirstIndex
	})

	if len(m.segments) == 0 {
		s, err := createSegment(dir, 1, 1, m.maxSize, m.maxEntries)
		if err != nil {
			return nil, err
		}
		m.segments = append(m.segments, s)
	}
	return m, nil
}

func (m *SegmentManager) active() *segment {
	return m.segments[len(m.segments)-1]
}

// Append adds one entry to the active segment, rotating to a new segment
// first if the entry would overflow the current one's size or entry-count
// bound. It returns the entry's 0-based logical index within this
// manager's whole log.
func (m *SegmentManager) Append(payload []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.active()
	if active.wouldOverflow(len(payload)) {
		if err := active.seal(); err != nil {
			return 0, err
		}
		f, err := os.Open(active.path)
		if err != nil {
			return 0, wrapError(KindIO, "reopen sealed segment read-only", err)
		}
		active.file = f
		nextFirstIndex := active.header.FirstIndex + uint64(active.entryCount)
		next, err := createSegment(m.dir, active.header.ID+1, nextFirstIndex, m.maxSize, m.maxEntries)
		if err != nil {
			return 0, err
		}
		m.segments = append(m.segments, next)
		active = next
	}

	storageIndex, err := active.append(payload, m.flushOnCommit)
	if err != nil {
		return 0, err
	}
	return storageIndex - 1, nil
}

// GetEntry returns the payload at the given 0-based logical index,
// binary-searching the segment whose range contains it and then linearly
// scanning that segment's entries.
func (m *SegmentManager) GetEntry(index uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	storageIndex := index + 1
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].header.FirstIndex > storageIndex
	}) - 1
	if i < 0 || storageIndex > m.segments[i].lastIndex() {
		return nil, newError(KindSegmentIndexOutOfRange, "no entry at this index")
	}
	seg := m.segments[i]
	ordinal := int(storageIndex - seg.header.FirstIndex)
	return seg.readEntry(ordinal)
}

// Compact unlinks every sealed segment whose last index is below
// belowIndex (a 0-based logical index); the active segment is never
// removed even if it qualifies.
func (m *SegmentManager) Compact(belowIndex uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	belowStorageIndex := belowIndex + 1
	kept := m.segments[:0:0]
	for idx, seg := range m.segments {
		isActive := idx == len(m.segments)-1
		if !isActive && seg.lastIndex() < belowStorageIndex {
			path := seg.path
			if err := seg.close(); err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return wrapError(KindIO, "remove compacted segment", err)
			}
			continue
		}
		kept = append(kept, seg)
	}
	m.segments = kept
	return nil
}

// Close seals the active segment (fsync + close) and closes every other
// open segment file, without removing anything.
func (m *SegmentManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for i, s := range m.segments {
		closeSeg := s.close
		if i == len(m.segments)-1 {
			closeSeg = s.seal
		}
		if err := closeSeg(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SegmentNames returns the file names of every segment currently tracked,
// in ascending first-index order — used by tests to report what is on
// disk.
func (m *SegmentManager) SegmentNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.segments))
	for i, s := range m.segments {
		names[i] = s.name()
	}
	return names
}
