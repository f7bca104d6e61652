package netsource

import (
	"errors"
	"fmt"
	"io"
)

// binlogStream turns the sequence of OK/EOF/ERR-prefixed packet groups
// a COM_BINLOG_DUMP reply produces into one continuous byte stream: the
// shape binlog.NewDecoder expects (spec.md 6). Each packet group is its
// own event (possibly spanning several >16MiB-boundary wire packets,
// which packetReader already reassembles transparently).
type binlogStream struct {
	conn *Conn
	cur  *packetReader
	err  error
}

func (s *binlogStream) Read(p []byte) (int, error) {
	for {
		if s.err != nil {
			return 0, s.err
		}
		if s.cur == nil {
			pr := &packetReader{rd: s.conn.conn, seq: &s.conn.seq}
			marker := make([]byte, 1)
			if _, err := io.ReadFull(pr, marker); err != nil {
				s.err = err
				return 0, s.err
			}
			switch marker[0] {
			case okMarker:
				s.cur = pr
			case eofMarker:
				// Marker byte already consumed above; decode the rest
				// of the EOF packet body directly rather than through
				// eofPacket.decode, which expects to see the marker.
				r := newReader(pr)
				r.int2() // warnings
				r.int2() // statusFlags
				if r.err != nil {
					s.err = r.err
				} else {
					s.err = io.EOF
				}
				return 0, s.err
			case errMarker:
				r := newReader(pr)
				r.int2() // errorCode
				if s.conn.hs.capabilityFlags&capProtocol41 != 0 {
					r.string(1) // sqlStateMarker
					r.string(5) // sqlState
				}
				msg := r.stringEOF()
				if r.err != nil {
					s.err = r.err
				} else {
					s.err = errors.New(msg)
				}
				return 0, s.err
			default:
				s.err = fmt.Errorf("netsource: binlog stream: got %#x, want OK/EOF/ERR marker", marker[0])
				return 0, s.err
			}
		}
		n, err := s.cur.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			s.cur = nil
			continue
		}
		s.err = err
		return 0, s.err
	}
}
