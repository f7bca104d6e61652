package relaylog

import (
	"encoding/binary"
	"fmt"
)

// segmentHeaderSize is the fixed, never-changing size of a segment file's
// header (spec.md 4.7): 4+4+8+8+4 bytes of real fields plus 36 bytes
// reserved for future expansion.
const segmentHeaderSize = 64

// segmentVersion is the on-disk format version written into every new
// segment header. Segments from a different version are still readable
// (the header carries its own version field) but this package only ever
// writes this one.
const segmentVersion uint32 = 1

// segmentHeader is a segment file's 64-byte header, written exactly once
// at creation and never modified afterward.
type segmentHeader struct {
	ID             uint32
	Version        uint32
	FirstIndex     uint64
	MaxSegmentSize uint64
	MaxEntries     uint32
}

func (h segmentHeader) encode() []byte {
	buf := make([]byte, segmentHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.ID)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.FirstIndex)
	binary.LittleEndian.PutUint64(buf[16:24], h.MaxSegmentSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.MaxEntries)
	return buf
}

func decodeSegmentHeader(buf []byte) (segmentHeader, error) {
	if len(buf) != segmentHeaderSize {
		return segmentHeader{}, newError(KindSegmentHeaderCorrupt, fmt.Sprintf("segment header must be %d bytes, got %d", segmentHeaderSize, len(buf)))
	}
	return segmentHeader{
		ID:             binary.LittleEndian.Uint32(buf[0:4]),
		Version:        binary.LittleEndian.Uint32(buf[4:8]),
		FirstIndex:     binary.LittleEndian.Uint64(buf[8:16]),
		MaxSegmentSize: binary.LittleEndian.Uint64(buf[16:24]),
		MaxEntries:     binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}
