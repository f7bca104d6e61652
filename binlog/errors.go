package binlog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decode failure per spec.md 7, so callers can
// decide whether to log, skip, or abort without string-matching errors.
type ErrorKind int

const (
	KindUnexpectedEOF ErrorKind = iota
	KindInvalidData
	KindUnsupportedVersion
	KindUnsupportedChecksumAlg
	KindChecksumMismatch
	KindMissingTableMap
	KindUnknownEventType
	KindInvalidBitmap
	KindDecimalParse
	KindUTF8
	KindIO
	KindConfigParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnexpectedEOF:
		return "UnexpectedEof"
	case KindInvalidData:
		return "InvalidData"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindUnsupportedChecksumAlg:
		return "UnsupportedChecksumAlg"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindMissingTableMap:
		return "MissingTableMap"
	case KindUnknownEventType:
		return "UnknownEventType"
	case KindInvalidBitmap:
		return "InvalidBitmap"
	case KindDecimalParse:
		return "DecimalParse"
	case KindUTF8:
		return "Utf8"
	case KindIO:
		return "Io"
	case KindConfigParse:
		return "ConfigParse"
	default:
		return "Unknown"
	}
}

// Error is the core package's structured error type. Wrap with %w to
// preserve the underlying cause while still being able to switch on Kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binlog: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("binlog: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapError(kind ErrorKind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// MissingTableMapError reports a row event that arrived with no matching
// TABLE_MAP_EVENT in the LogContext's cache. Per spec.md 4.4 this is fatal
// to the row event's own decode, but not to the stream (decoding resumes
// at the next event boundary).
type MissingTableMapError struct {
	TableID uint64
}

func (e *MissingTableMapError) Error() string {
	return fmt.Sprintf("binlog: MissingTableMap(%d): no TABLE_MAP_EVENT seen for this table_id", e.TableID)
}

// Is allows errors.Is(err, &MissingTableMapError{}) to match any instance,
// regardless of TableID, for callers that only care about the kind.
func (e *MissingTableMapError) Is(target error) bool {
	_, ok := target.(*MissingTableMapError)
	return ok
}

// UnknownEventError reports a recognized-but-unhandled or wholly unknown
// event type code. Per spec.md 4.3 this is non-fatal: the event is
// surfaced to the caller as data, not raised as a hard error.
type UnknownEventError struct {
	Code byte
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("binlog: unknown event type 0x%02x", e.Code)
}

// ErrUnexpectedEOF is not what the decoders return: a reader that runs out
// of bytes before a decoder finishes a field records io.ErrUnexpectedEOF,
// which the decoders wrap in an *Error of KindUnexpectedEOF.
var ErrUnexpectedEOF = errors.New("binlog: unexpected EOF")
