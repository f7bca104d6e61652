package binlog

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- fixture construction helpers ---

// numEventTypes is large enough to cover every EventType constant this
// package defines, for building a FORMAT_DESCRIPTION_EVENT post-header
// length table in tests.
const numEventTypes = int(PreviousGTIDsEventType)

func buildEvent(t *testing.T, eventType EventType, serverID, logPos uint32, body []byte, withChecksum bool) []byte {
	t.Helper()
	header := make([]byte, eventHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], 1234567890)
	header[4] = byte(eventType)
	binary.LittleEndian.PutUint32(header[5:9], serverID)
	trailer := 0
	if withChecksum {
		trailer = 4
	}
	binary.LittleEndian.PutUint32(header[9:13], uint32(eventHeaderSize+len(body)+trailer))
	binary.LittleEndian.PutUint32(header[13:17], logPos)
	binary.LittleEndian.PutUint16(header[17:19], 0)

	full := append(append([]byte(nil), header...), body...)
	if !withChecksum {
		return full
	}
	sum := crc32.ChecksumIEEE(full)
	trailerBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailerBytes, sum)
	return append(full, trailerBytes...)
}

func buildFormatDescriptionBody(serverVersion string, checksumAlg ChecksumAlg) []byte {
	return buildFormatDescriptionBodyWithHeaderLen(serverVersion, checksumAlg, eventHeaderSize)
}

func buildFormatDescriptionBodyWithHeaderLen(serverVersion string, checksumAlg ChecksumAlg, headerLen int) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(4)) // binlog_version
	sv := make([]byte, 50)
	copy(sv, serverVersion)
	buf.Write(sv)
	binary.Write(&buf, binary.LittleEndian, uint32(1700000000)) // create_timestamp
	buf.WriteByte(byte(headerLen))                              // event_header_length
	buf.Write(make([]byte, numEventTypes))                      // post-header lengths, all zero for this fixture
	buf.WriteByte(byte(checksumAlg))
	return buf.Bytes()
}

// buildEventWithHeaderLen is buildEvent generalized to a non-default
// common-header length, padding the header out with zero filler bytes
// after the six fixed fields the way a longer event_header_length would
// on the wire.
func buildEventWithHeaderLen(t *testing.T, headerLen int, eventType EventType, serverID, logPos uint32, body []byte, withChecksum bool) []byte {
	t.Helper()
	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], 1234567890)
	header[4] = byte(eventType)
	binary.LittleEndian.PutUint32(header[5:9], serverID)
	trailer := 0
	if withChecksum {
		trailer = 4
	}
	binary.LittleEndian.PutUint32(header[9:13], uint32(headerLen+len(body)+trailer))
	binary.LittleEndian.PutUint32(header[13:17], logPos)
	binary.LittleEndian.PutUint16(header[17:19], 0)

	full := append(append([]byte(nil), header...), body...)
	if !withChecksum {
		return full
	}
	sum := crc32.ChecksumIEEE(full)
	trailerBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailerBytes, sum)
	return append(full, trailerBytes...)
}

func buildRotateBody(nextBinlog string, position uint64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, position)
	buf.WriteString(nextBinlog)
	return buf.Bytes()
}

func buildTableMapBody(tableID uint64, schema, table string, colTypes []ColumnType, metas []byte) []byte {
	var buf bytes.Buffer
	tid := make([]byte, 8)
	binary.LittleEndian.PutUint64(tid, tableID)
	buf.Write(tid[:6])
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // flags
	buf.WriteByte(byte(len(schema)))
	buf.WriteString(schema)
	buf.WriteByte(0)
	buf.WriteByte(byte(len(table)))
	buf.WriteString(table)
	buf.WriteByte(0)
	buf.WriteByte(byte(len(colTypes))) // lenenc, fits in one byte here
	for _, ct := range colTypes {
		buf.WriteByte(byte(ct))
	}
	buf.WriteByte(byte(len(metas))) // meta block length (lenenc, single byte)
	buf.Write(metas)
	nullBitmapLen := (len(colTypes) + 7) / 8
	buf.Write(make([]byte, nullBitmapLen)) // all columns non-nullable
	return buf.Bytes()
}

func buildWriteRowsV2Body(tableID uint64, numCols int, values []byte) []byte {
	var buf bytes.Buffer
	tid := make([]byte, 8)
	binary.LittleEndian.PutUint64(tid, tableID)
	buf.Write(tid[:6])
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // flags
	binary.Write(&buf, binary.LittleEndian, uint16(2)) // extra-data length (just itself)
	buf.WriteByte(byte(numCols))                       // column count, lenenc single byte
	presentLen := (numCols + 7) / 8
	present := make([]byte, presentLen)
	for i := range present {
		present[i] = 0xff
	}
	buf.Write(present)
	buf.Write(make([]byte, presentLen)) // null bitmap for the single row, all non-null
	buf.Write(values)
	return buf.Bytes()
}

func decodeAll(t *testing.T, stream []byte) ([]Event, error) {
	t.Helper()
	d := NewDecoder(bytes.NewReader(stream))
	var events []Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// S1: format description + previous_gtids (empty) + stop.
func TestDecoderFormatDescriptionPreviousGtidsStop(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumCRC32)
	var stream []byte
	stream = append(stream, buildEvent(t, FormatDescriptionEventType, 1, 123, fdeBody, true)...)
	stream = append(stream, buildEvent(t, PreviousGTIDsEventType, 1, 200, nil, true)...)
	stopLogPos := uint32(250)
	stream = append(stream, buildEvent(t, StopEventType, 1, stopLogPos, nil, true)...)

	events, err := decodeAll(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 3)

	fde, ok := events[0].Data.(*FormatDescriptionEvent)
	require.True(t, ok)
	require.Equal(t, "5.7.30-log", fde.ServerVersion)
	require.Equal(t, ChecksumCRC32, fde.ChecksumAlg)

	_, ok = events[1].Data.(*PreviousGTIDsEvent)
	require.True(t, ok)

	_, ok = events[2].Data.(*StopEvent)
	require.True(t, ok)
	require.Equal(t, stopLogPos, events[2].Header.LogPos)
}

// S2: S1 plus a ROTATE clears the table map cache and updates position.
func TestDecoderRotateUpdatesContext(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumCRC32)
	var stream []byte
	stream = append(stream, buildEvent(t, FormatDescriptionEventType, 1, 123, fdeBody, true)...)
	stream = append(stream, buildEvent(t, PreviousGTIDsEventType, 1, 200, nil, true)...)
	stream = append(stream, buildEvent(t, StopEventType, 1, 250, nil, true)...)
	stream = append(stream, buildEvent(t, RotateEventType, 1, 4, buildRotateBody("mysql-bin.000002", 4), true)...)

	d := NewDecoder(bytes.NewReader(stream))
	var last Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		last = ev
	}
	re, ok := last.Data.(*RotateEvent)
	require.True(t, ok)
	require.Equal(t, "mysql-bin.000002", re.NextBinlog)
	require.Equal(t, "mysql-bin.000002", d.Context().File)
	require.Empty(t, d.Context().tableMaps)
}

// Event framing is driven by the current FormatDescriptionEvent's
// event_header_length, not a hardcoded 19 (spec.md 4.2): here the FDE
// declares a 23-byte header, and the following ROTATE event is framed
// with the 4 extra padding bytes that implies.
func TestDecoderUsesFDEHeaderLength(t *testing.T) {
	const headerLen = 23
	fdeBody := buildFormatDescriptionBodyWithHeaderLen("5.7.30-log", ChecksumCRC32, headerLen)
	var stream []byte
	stream = append(stream, buildEvent(t, FormatDescriptionEventType, 1, 123, fdeBody, true)...)
	stream = append(stream, buildEventWithHeaderLen(t, headerLen, RotateEventType, 1, 4, buildRotateBody("mysql-bin.000002", 4), true)...)

	d := NewDecoder(bytes.NewReader(stream))

	ev, err := d.Next()
	require.NoError(t, err)
	_, ok := ev.Data.(*FormatDescriptionEvent)
	require.True(t, ok)
	require.Equal(t, headerLen, d.Context().headerLength())

	ev, err = d.Next()
	require.NoError(t, err)
	re, ok := ev.Data.(*RotateEvent)
	require.True(t, ok)
	require.Equal(t, "mysql-bin.000002", re.NextBinlog)
}

// S3/S4: TABLE_MAP + WRITE_ROWS_V2 decodes a row, and a WRITE_ROWS_V2
// without a preceding TABLE_MAP reports MissingTableMap.
func TestDecoderTableMapThenWriteRows(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumOff)
	var stream []byte
	stream = append(stream, buildEvent(t, FormatDescriptionEventType, 1, 0, fdeBody, false)...)

	tmBody := buildTableMapBody(100, "d", "t", []ColumnType{TypeTiny, TypeVarString}, []byte{0xFF, 0x00})
	stream = append(stream, buildEvent(t, TableMapEventType, 1, 0, tmBody, false)...)

	var rowValues bytes.Buffer
	rowValues.WriteByte(42)            // TINY
	rowValues.WriteByte(2)             // VARCHAR length (meta 255 < 256 -> 1-byte length)
	rowValues.WriteString("hi")
	rowsBody := buildWriteRowsV2Body(100, 2, rowValues.Bytes())
	stream = append(stream, buildEvent(t, WriteRowsEventV2, 1, 0, rowsBody, false)...)

	events, err := decodeAll(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 3)

	tme, ok := events[1].Data.(*TableMapEvent)
	require.True(t, ok)
	require.Equal(t, uint64(100), tme.TableID)

	re, ok := events[2].Data.(*RowsEvent)
	require.True(t, ok)
	rows, err := re.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int8(42), rows[0].After[0])
	require.Equal(t, "hi", rows[0].After[1])
}

func TestDecoderMissingTableMap(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumOff)
	var stream []byte
	stream = append(stream, buildEvent(t, FormatDescriptionEventType, 1, 0, fdeBody, false)...)

	var rowValues bytes.Buffer
	rowValues.WriteByte(42)
	rowsBody := buildWriteRowsV2Body(100, 1, rowValues.Bytes())
	stream = append(stream, buildEvent(t, WriteRowsEventV2, 1, 0, rowsBody, false)...)

	d := NewDecoder(bytes.NewReader(stream))
	_, err := d.Next()
	require.NoError(t, err)

	_, err = d.Next()
	require.Error(t, err)
	var mte *MissingTableMapError
	require.ErrorAs(t, err, &mte)
	require.Equal(t, uint64(100), mte.TableID)
}

// S5: a BIT(8) column with metadata (1<<8)|0 decodes one byte low bit first.
func TestBitColumnDecode(t *testing.T) {
	col := Column{Type: TypeBit, Meta: (1 << 8) | 0}
	r := newReader(bytes.NewReader([]byte{0b10101010}))
	r.limit = 1
	v, err := col.decodeValue(r)
	require.NoError(t, err)
	require.Equal(t, Bit{false, true, false, true, false, true, false, true}, v)
}

// Testable property 4: 24-bit signed decode boundaries.
func TestInt24SignedBoundaries(t *testing.T) {
	r := newReader(bytes.NewReader([]byte{0x00, 0x00, 0x80}))
	r.limit = 3
	require.Equal(t, int32(-8388608), r.int3Signed())

	r = newReader(bytes.NewReader([]byte{0xFF, 0xFF, 0x7F}))
	r.limit = 3
	require.Equal(t, int32(8388607), r.int3Signed())
}

// Testable property 5: length-encoded integer boundary values.
func TestLenencIntBoundaries(t *testing.T) {
	r := newReader(bytes.NewReader([]byte{0xFB}))
	r.limit = 1
	_, null, err := r.lenencInt()
	require.NoError(t, err)
	require.True(t, null)

	r = newReader(bytes.NewReader([]byte{0xFC, 0x34, 0x12}))
	r.limit = 3
	v, null, err := r.lenencInt()
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, uint64(0x1234), v)

	eightBytes := []byte{0xFE, 1, 2, 3, 4, 5, 6, 7, 8}
	r = newReader(bytes.NewReader(eightBytes))
	r.limit = 9
	v, null, err = r.lenencInt()
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, binary.LittleEndian.Uint64(eightBytes[1:]), v)
}

// Testable property 6: checksum mismatch is detected.
func TestChecksumMismatchDetected(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumCRC32)
	stream := buildEvent(t, FormatDescriptionEventType, 1, 0, fdeBody, true)
	// Corrupt the trailer.
	stream[len(stream)-1] ^= 0xFF

	d := NewDecoder(bytes.NewReader(stream))
	_, err := d.Next()
	require.Error(t, err)
	var checksumErr *Error
	require.ErrorAs(t, err, &checksumErr)
	require.Equal(t, KindChecksumMismatch, checksumErr.Kind)
}

// Boundary behavior: an empty stream yields io.EOF immediately.
func TestEmptyStreamYieldsEOF(t *testing.T) {
	d := NewDecoder(bytes.NewReader(nil))
	_, err := d.Next()
	require.ErrorIs(t, err, io.EOF)
}

// Boundary behavior: a truncated event reports UnexpectedEof.
func TestTruncatedEventReportsUnexpectedEOF(t *testing.T) {
	fdeBody := buildFormatDescriptionBody("5.7.30-log", ChecksumOff)
	full := buildEvent(t, FormatDescriptionEventType, 1, 0, fdeBody, false)
	truncated := full[:len(full)-5]

	d := NewDecoder(bytes.NewReader(truncated))
	_, err := d.Next()
	require.Error(t, err)
	var decodeErr *Error
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, KindUnexpectedEOF, decodeErr.Kind)
}
