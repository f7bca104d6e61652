package binlog

import "hash/crc32"

// ChecksumAlg identifies the per-event trailer algorithm a binlog stream
// was built with, as declared by FORMAT_DESCRIPTION_EVENT's final byte
// (spec.md 4.2). Every server since 5.6.6 sets this explicitly; a format
// description event that predates the field implies ChecksumOff.
type ChecksumAlg byte

const (
	ChecksumOff ChecksumAlg = 0
	ChecksumCRC32 ChecksumAlg = 1
	// 2-254 are reserved by MySQL for future algorithms never shipped.
	ChecksumUndefined ChecksumAlg = 255
)

func (a ChecksumAlg) String() string {
	switch a {
	case ChecksumOff:
		return "OFF"
	case ChecksumCRC32:
		return "CRC32"
	case ChecksumUndefined:
		return "UNDEF"
	default:
		return "UNKNOWN"
	}
}

const checksumSize = 4

// verifyChecksum recomputes the CRC32 (zlib polynomial, i.e. the standard
// IEEE 802.3 polynomial MySQL calls "crc32") over the header+body bytes
// and compares it against the 4-byte little-endian trailer. body must
// include the 19-byte common header as MySQL includes it in the checksum
// coverage.
func verifyChecksum(headerAndBody []byte, trailer []byte) error {
	if len(trailer) != checksumSize {
		return newError(KindInvalidData, "checksum trailer must be 4 bytes")
	}
	want := uint32(trailer[0]) | uint32(trailer[1])<<8 | uint32(trailer[2])<<16 | uint32(trailer[3])<<24
	got := crc32.ChecksumIEEE(headerAndBody)
	if got != want {
		return newError(KindChecksumMismatch, "crc32 mismatch")
	}
	return nil
}
