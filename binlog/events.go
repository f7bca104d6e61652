package binlog

import "strings"

// Event pairs a decoded header with its body. Data is one of the *Event
// structs in this file, *TableMapEvent, *RowsEvent, or a GTID event from
// gtidevent.go, depending on Header.EventType.
type Event struct {
	Header EventHeader
	Data   interface{}
}

// FormatDescriptionEvent opens every binlog file (spec.md 4.2) and
// declares the binlog wire version, server version, per-event-type
// post-header lengths, and the checksum algorithm in force for the rest
// of the file.
type FormatDescriptionEvent struct {
	BinlogVersion     uint16
	ServerVersion     string
	CreateTimestamp   uint32
	EventHeaderLength uint8
	PostHeaderLengths []byte
	ChecksumAlg       ChecksumAlg
}

func decodeFormatDescriptionEvent(ctx *LogContext, r *reader, eventSize uint32) (*FormatDescriptionEvent, error) {
	e := &FormatDescriptionEvent{}
	e.BinlogVersion = r.int2()
	e.ServerVersion = r.string(50)
	if i := strings.IndexByte(e.ServerVersion, 0); i != -1 {
		e.ServerVersion = e.ServerVersion[:i]
	}
	e.CreateTimestamp = r.int4()
	e.EventHeaderLength = r.int1()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "format_description_event", r.err)
	}

	// The remaining body is one post-header-length byte per event type
	// followed by one checksum-alg byte (Next has already split off any
	// CRC32 trailer). Everything left in the event body is read, and its
	// last byte is taken as the checksum alg whenever any bytes remain.
	rest := r.bytesEOF()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "format_description_event post-header table", r.err)
	}
	// MySQL has shipped FORMAT_DESCRIPTION_EVENT with a checksum-alg byte
	// since 5.6.1; an older body without it has its last post-header
	// length read as the alg. An empty remainder means ChecksumOff.
	if len(rest) == 0 {
		e.ChecksumAlg = ChecksumOff
		e.PostHeaderLengths = nil
	} else {
		e.ChecksumAlg = ChecksumAlg(rest[len(rest)-1])
		e.PostHeaderLengths = rest[:len(rest)-1]
	}
	return e, nil
}

// RotateEvent marks the transition to a new binlog file (spec.md 4.3).
type RotateEvent struct {
	Position   uint64
	NextBinlog string
}

func decodeRotateEvent(ctx *LogContext, r *reader) (*RotateEvent, error) {
	e := &RotateEvent{}
	if ctx.fde.BinlogVersion > 1 || !ctx.haveFde {
		e.Position = r.int8()
	}
	e.NextBinlog = r.stringEOF()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rotate_event", r.err)
	}
	return e, nil
}

// QueryEvent carries a statement executed under statement-based or
// mixed-mode replication (spec.md supplement: kept for completeness even
// though row-based decoding is this package's primary path).
type QueryEvent struct {
	SlaveProxyID  uint32
	ExecutionTime uint32
	ErrorCode     uint16
	StatusVars    []byte
	Schema        string
	Query         string
}

func decodeQueryEvent(r *reader) (*QueryEvent, error) {
	e := &QueryEvent{}
	e.SlaveProxyID = r.int4()
	e.ExecutionTime = r.int4()
	schemaLen := r.int1()
	e.ErrorCode = r.int2()
	statusVarsLen := r.int2()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "query_event fixed fields", r.err)
	}
	e.StatusVars = r.bytes(int(statusVarsLen))
	e.Schema = r.string(int(schemaLen))
	r.skip(1) // 0x00 terminator after schema name
	e.Query = r.stringEOF()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "query_event variable fields", r.err)
	}
	return e, nil
}

// XidEvent marks a committed transaction (spec.md 4.3 supplement).
type XidEvent struct {
	XID uint64
}

func decodeXidEvent(r *reader) (*XidEvent, error) {
	e := &XidEvent{XID: r.int8()}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "xid_event", r.err)
	}
	return e, nil
}

// IntVarEvent precedes a QUERY_EVENT that uses AUTO_INCREMENT or
// LAST_INSERT_ID().
type IntVarEvent struct {
	Type  uint8
	Value uint64
}

const (
	IntVarLastInsertID uint8 = 1
	IntVarInsertID     uint8 = 2
)

func decodeIntVarEvent(r *reader) (*IntVarEvent, error) {
	e := &IntVarEvent{}
	e.Type = r.int1()
	e.Value = r.int8()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "intvar_event", r.err)
	}
	return e, nil
}

// RandEvent precedes a statement using RAND() and carries its seed pair.
type RandEvent struct {
	Seed1 uint64
	Seed2 uint64
}

func decodeRandEvent(r *reader) (*RandEvent, error) {
	e := &RandEvent{Seed1: r.int8(), Seed2: r.int8()}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rand_event", r.err)
	}
	return e, nil
}

// UserVarEvent precedes a statement using a user-defined variable
// (@foo := ...).
type UserVarEvent struct {
	Name     string
	Null     bool
	Type     uint8
	Charset  uint32
	Value    []byte
	Unsigned bool
}

func decodeUserVarEvent(r *reader) (*UserVarEvent, error) {
	e := &UserVarEvent{}
	nameLen := r.int4()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "user_var_event name length", r.err)
	}
	e.Name = r.string(int(nameLen))
	e.Null = r.int1() == 1
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "user_var_event null flag", r.err)
	}
	if !e.Null {
		e.Type = r.int1()
		e.Charset = r.int4()
		valueLen := r.int4()
		if r.err != nil {
			return nil, wrapError(KindUnexpectedEOF, "user_var_event value header", r.err)
		}
		e.Value = r.bytes(int(valueLen))
		if r.more() {
			e.Unsigned = r.int1()&0x01 != 0
		}
	}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "user_var_event value", r.err)
	}
	return e, nil
}

// RowsQueryEvent carries the original SQL text that produced a following
// run of ROWS_EVENTs, when binlog_rows_query_log_events is enabled.
type RowsQueryEvent struct {
	Query string
}

func decodeRowsQueryEvent(r *reader) (*RowsQueryEvent, error) {
	size := r.int1()
	e := &RowsQueryEvent{Query: r.string(int(size))}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rows_query_event", r.err)
	}
	return e, nil
}

// IncidentEvent flags that something out-of-band happened on the source
// and replicated data downstream of it may be inconsistent.
type IncidentEvent struct {
	Type    uint16
	Message string
}

func decodeIncidentEvent(r *reader) (*IncidentEvent, error) {
	e := &IncidentEvent{}
	e.Type = r.int2()
	size := r.int1()
	e.Message = r.string(int(size))
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "incident_event", r.err)
	}
	return e, nil
}

// StopEvent marks the server stopping, with no other payload.
type StopEvent struct{}

// SlaveEvent is the legacy, pre-5.1 meaning of event type code 27: a
// no-op marker carrying no payload of its own. Servers 5.1 and newer
// reuse the same code for HeartbeatEvent instead; see decodeHeartbeatOrSlaveEvent.
type SlaveEvent struct{}

// HeartbeatEvent signals that a live master connection is still alive.
// It is never written to a binlog file, but this package decodes it
// anyway for streams captured directly off the wire.
type HeartbeatEvent struct{}

// UnknownEventData is the payload surfaced for an event type this package
// does not decode: the raw body bytes, for callers that want to skip it
// without treating it as a hard error (spec.md 4.3/7).
type UnknownEventData struct {
	Body []byte
}
