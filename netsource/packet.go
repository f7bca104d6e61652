package netsource

import "io"

// packetReader strips the MySQL client/server packet framing (a 3-byte
// LE length + 1-byte sequence number ahead of every <=16MiB chunk,
// spec.md 6's "leading 0x00 byte per MySQL replication packet" being
// the first payload byte of the first such chunk) from rd, presenting
// the concatenated payload of one logical reply as a plain io.Reader.
type packetReader struct {
	rd   io.Reader
	seq  *uint8
	last bool
	size int
}

func (r *packetReader) Read(p []byte) (int, error) {
	if r.size == 0 {
		if r.last {
			return 0, io.EOF
		}
		h := make([]byte, headerSize)
		if _, err := io.ReadFull(r.rd, h); err != nil {
			if err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		r.size = int(uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16)
		*r.seq = h[3] + 1
		if r.size < maxPacketSize {
			r.last = true
			if r.size == 0 {
				return 0, io.EOF
			}
		}
	}
	n, err := io.LimitReader(r.rd, int64(r.size)).Read(p)
	r.size -= n
	if n > 0 {
		return n, nil
	}
	if err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	return 0, err
}

// writer packetizes outgoing bytes into <=16MiB packets with the
// sequence numbering the server expects (one write call per logical
// request: Close flushes the trailing, possibly short, packet).
type writer struct {
	wd  io.Writer
	buf []byte
	seq *uint8
	err error
}

func newWriter(w io.Writer, seq *uint8) *writer {
	return &writer{wd: w, buf: make([]byte, headerSize, headerSize+maxPacketSize), seq: seq}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	for len(w.buf) >= headerSize+maxPacketSize {
		w.buf[0], w.buf[1], w.buf[2], w.buf[3] = 0xff, 0xff, 0xff, *w.seq
		*w.seq++
		if _, w.err = w.wd.Write(w.buf[:headerSize+maxPacketSize]); w.err != nil {
			return w.err
		}
		copy(w.buf[headerSize:], w.buf[headerSize+maxPacketSize:])
		w.buf = w.buf[:headerSize+len(w.buf)-(headerSize+maxPacketSize)]
	}
	return nil
}

func (w *writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	payload := len(w.buf) - headerSize
	w.buf[0], w.buf[1], w.buf[2], w.buf[3] = byte(payload), byte(payload>>8), byte(payload>>16), *w.seq
	*w.seq++
	_, err := w.wd.Write(w.buf)
	return err
}

func (w *writer) Write(b []byte) (int, error) {
	n := 0
	for {
		if err := w.flush(); err != nil {
			return n, err
		}
		available := headerSize + maxPacketSize - len(w.buf)
		if len(b) < available {
			available = len(b)
		}
		w.buf = append(w.buf, b[:available]...)
		n += available
		b = b[available:]
		if len(b) == 0 {
			return n, nil
		}
	}
}

func (w *writer) int1(v uint8) { w.Write([]byte{v}) }
func (w *writer) int2(v uint16) {
	w.Write([]byte{byte(v), byte(v >> 8)})
}
func (w *writer) int4(v uint32) {
	w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// intN writes v as a MySQL length-encoded integer.
func (w *writer) intN(v uint64) {
	switch {
	case v < 251:
		w.Write([]byte{byte(v)})
	case v < 1<<16:
		w.Write([]byte{0xfc, byte(v), byte(v >> 8)})
	case v < 1<<24:
		w.Write([]byte{0xfd, byte(v), byte(v >> 8), byte(v >> 16)})
	default:
		w.Write([]byte{0xfe, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
			byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56)})
	}
}

func (w *writer) string(v string)     { w.Write([]byte(v)) }
func (w *writer) stringNull(v string) { w.Write([]byte(v)); w.int1(0) }
func (w *writer) bytesNull(v []byte)  { w.Write(v); w.int1(0) }
func (w *writer) bytes1(v []byte)     { w.int1(uint8(len(v))); w.Write(v) }
func (w *writer) bytesN(v []byte)     { w.intN(uint64(len(v))); w.Write(v) }
func (w *writer) stringN(v string)    { w.intN(uint64(len(v))); w.Write([]byte(v)) }

const comQuery = 0x03

func (w *writer) query(q string) error {
	w.int1(comQuery)
	w.string(q)
	return w.Close()
}
