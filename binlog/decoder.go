package binlog

import (
	"bytes"
	"io"
)

// Next decodes and returns the next event in the stream. It returns
// io.EOF once the stream is exhausted cleanly (at a file boundary). A row
// event whose table map is missing yields *MissingTableMapError; any other
// error is wrapped as an *Error with a Kind per spec.md 7.
//
// Each event's header+body bytes are buffered whole before decoding, so
// that a CRC32 mismatch (spec.md 4.2) is detected before any partial
// state — e.g. a TABLE_MAP_EVENT cache entry — is committed to the
// LogContext.
func (d *Decoder) Next() (Event, error) {
	ctx := d.ctx
	top := ctx.r

	if top.atEOF() {
		return Event{}, io.EOF
	}

	headerLen := ctx.headerLength()
	headerBytes := top.bytes(headerLen)
	if top.err != nil {
		return Event{}, wrapError(KindUnexpectedEOF, "event header", top.err)
	}

	hr := newReader(bytes.NewReader(headerBytes))
	h, err := decodeEventHeader(hr, headerLen)
	if err != nil {
		return Event{}, err
	}

	checksumAlg, err := ctx.VerifiedChecksumAlg()
	if err != nil {
		return Event{}, err
	}
	trailerSize := 0
	if checksumAlg == ChecksumCRC32 {
		trailerSize = checksumSize
	}
	// A FORMAT_DESCRIPTION_EVENT declares its own checksum alg in the byte
	// just before its CRC32 trailer, so its trailer is split off after the
	// body is read rather than sized from the previous context.
	if h.EventType == FormatDescriptionEventType {
		trailerSize = 0
	}
	if int(h.EventSize) < headerLen+trailerSize {
		return Event{}, newError(KindInvalidData, "event_size too small for declared checksum trailer")
	}
	bodySize := int(h.EventSize) - headerLen - trailerSize

	body := top.bytes(bodySize)
	if top.err != nil {
		return Event{}, wrapError(KindUnexpectedEOF, "event body", top.err)
	}

	var trailer []byte
	if h.EventType == FormatDescriptionEventType {
		if n := len(body) - checksumSize; n > 0 && ChecksumAlg(body[n-1]) == ChecksumCRC32 {
			body, trailer = body[:n], body[n:]
		}
	} else if trailerSize > 0 {
		trailer = top.bytes(trailerSize)
		if top.err != nil {
			return Event{}, wrapError(KindUnexpectedEOF, "event checksum trailer", top.err)
		}
	}
	if trailer != nil {
		full := make([]byte, 0, len(headerBytes)+len(body))
		full = append(full, headerBytes...)
		full = append(full, body...)
		if err := verifyChecksum(full, trailer); err != nil {
			return Event{}, err
		}
	}

	if h.LogPos != 0 {
		ctx.Position = h.LogPos
	}

	br := newReader(bytes.NewReader(body))
	br.limit = len(body)

	data, err := decodeEventBody(ctx, br, h, uint32(len(body)))
	if err != nil {
		return Event{}, err
	}
	return Event{Header: h, Data: data}, nil
}

func decodeEventBody(ctx *LogContext, r *reader, h EventHeader, bodySize uint32) (interface{}, error) {
	switch h.EventType {
	case FormatDescriptionEventType:
		fde, err := decodeFormatDescriptionEvent(ctx, r, h.EventSize)
		if err != nil {
			return nil, err
		}
		ctx.fde = *fde
		ctx.haveFde = true
		return fde, nil
	case StopEventType:
		return &StopEvent{}, nil
	case RotateEventType:
		re, err := decodeRotateEvent(ctx, r)
		if err != nil {
			return nil, err
		}
		ctx.File = re.NextBinlog
		ctx.tableMaps = make(map[uint64]*TableMapEvent)
		return re, nil
	case TableMapEventType:
		return decodeTableMapEvent(ctx, r)
	case WriteRowsEventV0, WriteRowsEventV1, WriteRowsEventV2,
		UpdateRowsEventV0, UpdateRowsEventV1, UpdateRowsEventV2,
		DeleteRowsEventV0, DeleteRowsEventV1, DeleteRowsEventV2:
		return decodeRowsEvent(ctx, r, h.EventType)
	case QueryEventType:
		return decodeQueryEvent(r)
	case XidEventType:
		return decodeXidEvent(r)
	case IntVarEventType:
		return decodeIntVarEvent(r)
	case RandEventType:
		return decodeRandEvent(r)
	case UserVarEventType:
		return decodeUserVarEvent(r)
	case RowsQueryEventType:
		return decodeRowsQueryEvent(r)
	case IncidentEventType:
		return decodeIncidentEvent(r)
	case GTIDEventType:
		return decodeGTIDEvent(ctx, r)
	case AnonymousGTIDEventType:
		return decodeAnonymousGTIDEvent(r)
	case PreviousGTIDsEventType:
		return decodePreviousGTIDsEvent(ctx, r)
	case HeartbeatEventType: // code 27: SLAVE_EVENT pre-5.1, HEARTBEAT_EVENT since
		return decodeHeartbeatOrSlaveEvent(ctx), nil
	default:
		return &UnknownEventData{Body: r.bytesEOF()}, nil
	}
}
