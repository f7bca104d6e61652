package binlog

// EventType enumerates the MySQL binlog event type codes this package
// recognizes. Values follow the wire protocol numbering; gaps are
// reserved codes that MySQL itself never emits in a modern server.
type EventType byte

const (
	UnknownEvent            EventType = 0
	StartEventV3            EventType = 1
	QueryEventType          EventType = 2
	StopEventType            EventType = 3
	RotateEventType          EventType = 4
	IntVarEventType          EventType = 5
	LoadEventType            EventType = 6
	// code 7 (SLAVE_EVENT) is never emitted by any server new enough to
	// speak this header format under its original meaning; see the
	// HeartbeatEventType doc comment for the code-27 legacy collision
	// this package actually has to handle.
	CreateFileEventType      EventType = 8
	AppendBlockEventType     EventType = 9
	ExecLoadEventType        EventType = 10
	DeleteFileEventType      EventType = 11
	NewLoadEventType         EventType = 12
	RandEventType            EventType = 13
	UserVarEventType         EventType = 14
	FormatDescriptionEventType EventType = 15
	XidEventType             EventType = 16
	BeginLoadQueryEventType  EventType = 17
	ExecuteLoadQueryEventType EventType = 18
	TableMapEventType        EventType = 19
	WriteRowsEventV0         EventType = 20
	UpdateRowsEventV0        EventType = 21
	DeleteRowsEventV0        EventType = 22
	WriteRowsEventV1         EventType = 23
	UpdateRowsEventV1        EventType = 24
	DeleteRowsEventV1        EventType = 25
	IncidentEventType        EventType = 26
	// HeartbeatEventType (27) collides with the legacy SLAVE_EVENT code on
	// servers older than 5.1: decodeEventBody resolves which one a given
	// event actually is using FormatDescriptionEvent.ServerVersion, not
	// this constant alone.
	HeartbeatEventType       EventType = 27
	IgnorableEventType       EventType = 28
	RowsQueryEventType       EventType = 29
	WriteRowsEventV2         EventType = 30
	UpdateRowsEventV2        EventType = 31
	DeleteRowsEventV2        EventType = 32
	GTIDEventType            EventType = 33
	AnonymousGTIDEventType   EventType = 34
	PreviousGTIDsEventType   EventType = 35
)

func (t EventType) String() string {
	switch t {
	case UnknownEvent:
		return "UNKNOWN_EVENT"
	case StartEventV3:
		return "START_EVENT_V3"
	case QueryEventType:
		return "QUERY_EVENT"
	case StopEventType:
		return "STOP_EVENT"
	case RotateEventType:
		return "ROTATE_EVENT"
	case IntVarEventType:
		return "INTVAR_EVENT"
	case LoadEventType:
		return "LOAD_EVENT"
	case CreateFileEventType:
		return "CREATE_FILE_EVENT"
	case AppendBlockEventType:
		return "APPEND_BLOCK_EVENT"
	case ExecLoadEventType:
		return "EXEC_LOAD_EVENT"
	case DeleteFileEventType:
		return "DELETE_FILE_EVENT"
	case NewLoadEventType:
		return "NEW_LOAD_EVENT"
	case RandEventType:
		return "RAND_EVENT"
	case UserVarEventType:
		return "USER_VAR_EVENT"
	case FormatDescriptionEventType:
		return "FORMAT_DESCRIPTION_EVENT"
	case XidEventType:
		return "XID_EVENT"
	case BeginLoadQueryEventType:
		return "BEGIN_LOAD_QUERY_EVENT"
	case ExecuteLoadQueryEventType:
		return "EXECUTE_LOAD_QUERY_EVENT"
	case TableMapEventType:
		return "TABLE_MAP_EVENT"
	case WriteRowsEventV0:
		return "WRITE_ROWS_EVENTv0"
	case UpdateRowsEventV0:
		return "UPDATE_ROWS_EVENTv0"
	case DeleteRowsEventV0:
		return "DELETE_ROWS_EVENTv0"
	case WriteRowsEventV1:
		return "WRITE_ROWS_EVENTv1"
	case UpdateRowsEventV1:
		return "UPDATE_ROWS_EVENTv1"
	case DeleteRowsEventV1:
		return "DELETE_ROWS_EVENTv1"
	case IncidentEventType:
		return "INCIDENT_EVENT"
	case HeartbeatEventType:
		return "HEARTBEAT_EVENT"
	case IgnorableEventType:
		return "IGNORABLE_EVENT"
	case RowsQueryEventType:
		return "ROWS_QUERY_EVENT"
	case WriteRowsEventV2:
		return "WRITE_ROWS_EVENTv2"
	case UpdateRowsEventV2:
		return "UPDATE_ROWS_EVENTv2"
	case DeleteRowsEventV2:
		return "DELETE_ROWS_EVENTv2"
	case GTIDEventType:
		return "GTID_EVENT"
	case AnonymousGTIDEventType:
		return "ANONYMOUS_GTID_EVENT"
	case PreviousGTIDsEventType:
		return "PREVIOUS_GTIDS_EVENT"
	default:
		return "UNKNOWN_EVENT"
	}
}

// EventHeader is the 19-byte common header every binlog event starts with.
type EventHeader struct {
	Timestamp uint32
	EventType EventType
	ServerID  uint32
	EventSize uint32
	LogPos    uint32
	Flags     uint16
}

const eventHeaderSize = 19

// decodeEventHeader reads the common header, whose length is headerLen
// bytes (19 by default, or FormatDescriptionEvent.EventHeaderLength once
// one has been parsed — spec.md 4.2). The six fields themselves are
// always laid out the same way; headerLen only affects where the body is
// taken to start. r must not yet have its limit set to the event body
// size; that happens right after this call, once EventSize is known, so
// checksum trailer math can account for the checksum algorithm in use.
func decodeEventHeader(r *reader, headerLen int) (EventHeader, error) {
	var h EventHeader
	h.Timestamp = r.int4()
	h.EventType = EventType(r.int1())
	h.ServerID = r.int4()
	h.EventSize = r.int4()
	h.LogPos = r.int4()
	h.Flags = r.int2()
	if r.err != nil {
		return h, wrapError(KindUnexpectedEOF, "event header", r.err)
	}
	if int(h.EventSize) < headerLen {
		return h, newError(KindInvalidData, "event_size smaller than header size")
	}
	return h, nil
}

const (
	FlagInUse          uint16 = 0x0001
	FlagForcedRotate   uint16 = 0x0002
	FlagThreadSpecific uint16 = 0x0004
	FlagSuppressUse    uint16 = 0x0008
	FlagUpdateTableMapVersion uint16 = 0x0010
	FlagArtificial     uint16 = 0x0020
	FlagRelayLogEvent  uint16 = 0x0040
	FlagIgnorable      uint16 = 0x0080
	FlagNoFilter       uint16 = 0x0100
	FlagMTSIsolate     uint16 = 0x0200
)
