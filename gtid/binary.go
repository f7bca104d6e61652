package gtid

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// DecodeBinary parses MySQL's binary GTID-set encoding, as carried in the
// payload of a PREVIOUS_GTIDS_EVENT: an 8-byte LE count of UUID-sets,
// followed by, for each: 16 raw UUID bytes, an 8-byte LE interval count,
// then that many {start, end} pairs of 8-byte LE GNOs (end exclusive,
// matching the in-memory Interval representation directly).
func DecodeBinary(buf []byte) (*Set, error) {
	s := NewSet()
	if len(buf) < 8 {
		if len(buf) == 0 {
			return s, nil
		}
		return nil, fmt.Errorf("gtid: truncated set header")
	}
	nSets := binary.LittleEndian.Uint64(buf)
	buf = buf[8:]
	for i := uint64(0); i < nSets; i++ {
		if len(buf) < 16+8 {
			return nil, fmt.Errorf("gtid: truncated uuid-set %d", i)
		}
		id, err := uuid.FromBytes(buf[:16])
		if err != nil {
			return nil, fmt.Errorf("gtid: invalid uuid bytes: %w", err)
		}
		buf = buf[16:]
		nIntervals := binary.LittleEndian.Uint64(buf)
		buf = buf[8:]
		us := NewUuidSet(id)
		for j := uint64(0); j < nIntervals; j++ {
			if len(buf) < 16 {
				return nil, fmt.Errorf("gtid: truncated interval %d of uuid-set %d", j, i)
			}
			start := binary.LittleEndian.Uint64(buf)
			end := binary.LittleEndian.Uint64(buf[8:])
			buf = buf[16:]
			iv, err := NewInterval(start, end)
			if err != nil {
				return nil, err
			}
			us.AddInterval(iv)
		}
		s.byUUID[id] = us
	}
	return s, nil
}

// EncodeBinary serializes the set in MySQL's binary GTID-set encoding (the
// inverse of DecodeBinary), used for round-trip tests and for writing
// previous-GTIDs bookkeeping.
func (s *Set) EncodeBinary() []byte {
	sets := s.UuidSets()
	buf := make([]byte, 8, 8+len(sets)*(16+8))
	binary.LittleEndian.PutUint64(buf, uint64(len(sets)))
	for _, us := range sets {
		idBytes, _ := us.UUID.MarshalBinary()
		buf = append(buf, idBytes...)
		var nHdr [8]byte
		binary.LittleEndian.PutUint64(nHdr[:], uint64(len(us.Intervals)))
		buf = append(buf, nHdr[:]...)
		for _, iv := range us.Intervals {
			var pair [16]byte
			binary.LittleEndian.PutUint64(pair[:8], iv.Start)
			binary.LittleEndian.PutUint64(pair[8:], iv.End)
			buf = append(buf, pair[:]...)
		}
	}
	return buf
}
