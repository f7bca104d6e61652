package relaylog

import (
	"encoding/binary"
	"io"
	"os"
)

// entryLengthSize is the width of a record's length prefix (spec.md 4.7:
// {length: u32 LE, payload: length bytes}).
const entryLengthSize = 4

// segment is one append-only file within a table's relay log: a fixed
// header followed by a sequence of length-prefixed entries. A segment is
// mutable only while it is the manager's active segment; once sealed it
// is opened read-only for random access and, eventually, deleted by
// compaction.
type segment struct {
	path   string
	file   *os.File
	header segmentHeader

	entryCount  uint32
	currentSize uint64 // bytes written after the header
}

// createSegment writes a brand-new header and returns the segment ready
// for appends.
func createSegment(dir string, id uint32, firstIndex uint64, maxSize uint64, maxEntries uint32) (*segment, error) {
	name := segmentFileName(segmentVersion, id, firstIndex)
	path := dir + string(os.PathSeparator) + name
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, wrapError(KindIO, "create segment file", err)
	}
	h := segmentHeader{ID: id, Version: segmentVersion, FirstIndex: firstIndex, MaxSegmentSize: maxSize, MaxEntries: maxEntries}
	if _, err := f.Write(h.encode()); err != nil {
		f.Close()
		return nil, wrapError(KindIO, "write segment header", err)
	}
	return &segment{path: path, file: f, header: h}, nil
}

// openSegment opens an existing segment file, validates its header
// against its file name, and scans forward to recover from a crash that
// left a partially-written final entry (spec.md 4.7 Durability).
func openSegment(path, name string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapError(KindIO, "open segment file", err)
	}
	headerBuf := make([]byte, segmentHeaderSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		f.Close()
		return nil, wrapError(KindSegmentHeaderCorrupt, "read segment header", err)
	}
	h, err := decodeSegmentHeader(headerBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	_, wantID, wantFirstIndex, nerr := parseSegmentFileName(name)
	if nerr != nil {
		f.Close()
		return nil, wrapError(KindSegmentHeaderCorrupt, "segment file name does not parse", nerr)
	}
	if wantID != h.ID || wantFirstIndex != h.FirstIndex {
		f.Close()
		return nil, newError(KindSegmentHeaderCorrupt, "segment header does not match its file name")
	}

	s := &segment{path: path, file: f, header: h}
	if err := s.recover(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// recover scans every whole entry from just after the header and
// truncates the file at the first incomplete (truncated) record, so a
// crash mid-append never leaves a phantom partial entry visible.
func (s *segment) recover() error {
	offset := int64(segmentHeaderSize)
	lenBuf := make([]byte, entryLengthSize)
	for {
		n, err := s.file.ReadAt(lenBuf, offset)
		if n < entryLengthSize || err != nil {
			break
		}
		entryLen := binary.LittleEndian.Uint32(lenBuf)
		payloadEnd := offset + entryLengthSize + int64(entryLen)
		if payloadEnd > s.fileSize() {
			break
		}
		offset = payloadEnd
		s.entryCount++
	}
	if offset < int64(segmentHeaderSize) {
		offset = int64(segmentHeaderSize)
	}
	if err := s.file.Truncate(offset); err != nil {
		return wrapError(KindIO, "truncate segment at recovery frontier", err)
	}
	s.currentSize = uint64(offset) - segmentHeaderSize
	return nil
}

func (s *segment) fileSize() int64 {
	fi, err := s.file.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// wouldOverflow reports whether appending an entry of payloadLen bytes
// would push this segment past its size or entry-count bound.
func (s *segment) wouldOverflow(payloadLen int) bool {
	newSize := s.currentSize + entryLengthSize + uint64(payloadLen)
	return newSize > s.header.MaxSegmentSize || uint64(s.entryCount)+1 > uint64(s.header.MaxEntries)
}

// append writes one length-prefixed entry and returns its 1-based
// logical index within the whole relay log.
func (s *segment) append(payload []byte, flush bool) (uint64, error) {
	buf := make([]byte, entryLengthSize+len(payload))
	binary.LittleEndian.PutUint32(buf[:entryLengthSize], uint32(len(payload)))
	copy(buf[entryLengthSize:], payload)

	if _, err := s.file.Write(buf); err != nil {
		return 0, wrapError(KindIO, "append relay-log entry", err)
	}
	if flush {
		if err := s.file.Sync(); err != nil {
			return 0, wrapError(KindIO, "fsync relay-log segment", err)
		}
	}
	index := s.header.FirstIndex + uint64(s.entryCount)
	s.entryCount++
	s.currentSize += uint64(len(buf))
	return index, nil
}

// readEntry returns the ordinal-th (0-based, within this segment) entry's
// payload by scanning forward from the header.
func (s *segment) readEntry(ordinal int) ([]byte, error) {
	if ordinal < 0 || ordinal >= int(s.entryCount) {
		return nil, newError(KindSegmentIndexOutOfRange, "entry ordinal out of range for segment")
	}
	offset := int64(segmentHeaderSize)
	lenBuf := make([]byte, entryLengthSize)
	for i := 0; i <= ordinal; i++ {
		if _, err := s.file.ReadAt(lenBuf, offset); err != nil {
			return nil, wrapError(KindIO, "read entry length", err)
		}
		entryLen := binary.LittleEndian.Uint32(lenBuf)
		payloadOff := offset + entryLengthSize
		if i == ordinal {
			payload := make([]byte, entryLen)
			if _, err := s.file.ReadAt(payload, payloadOff); err != nil {
				return nil, wrapError(KindIO, "read entry payload", err)
			}
			return payload, nil
		}
		offset = payloadOff + int64(entryLen)
	}
	return nil, newError(KindSegmentIndexOutOfRange, "entry ordinal out of range for segment")
}

// seal fsyncs and closes a segment that will no longer be appended to.
func (s *segment) seal() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return wrapError(KindIO, "fsync sealed segment", err)
	}
	return s.file.Close()
}

func (s *segment) close() error {
	return s.file.Close()
}

func (s *segment) name() string {
	return segmentFileName(s.header.Version, s.header.ID, s.header.FirstIndex)
}

func (s *segment) lastIndex() uint64 {
	if s.entryCount == 0 {
		return s.header.FirstIndex - 1
	}
	return s.header.FirstIndex + uint64(s.entryCount) - 1
}
