package binlog

import "github.com/dbstream/binlogrelay/gtid"

// LogPosition is the resumable position in a replication stream: the
// current file name, byte offset within it, and (under GTID-mode
// replication) the set of transactions already applied (spec.md 4.1).
type LogPosition struct {
	FileName string
	Position uint64
	GTIDSet  *gtid.Set
}

// Snapshot returns the LogContext's current resumable position. The
// returned GTIDSet is a defensive copy; mutating it does not affect the
// decoder's running state.
func (ctx *LogContext) Snapshot() LogPosition {
	return LogPosition{
		FileName: ctx.File,
		Position: uint64(ctx.Position),
		GTIDSet:  ctx.GTIDSet.Clone(),
	}
}

// strategyKind enumerates the ways a consumer can tell the decoder where
// to resume (spec.md 4.8).
type strategyKind int

const (
	strategyFromStart strategyKind = iota
	strategyFromEnd
	strategyFromPosition
	strategyFromGTID
)

// StartStrategy selects where a new Decoder should consider itself
// starting from. It does not itself seek any byte source, and the file and
// directory sources (file.go) do not take one: OpenFile and OpenDirectory
// start at the first event of the named file.
type StartStrategy struct {
	kind     strategyKind
	file     string
	position uint64
	gtidSet  *gtid.Set
}

// FromStart begins at the first event after a binlog file's 4-byte magic
// number (position 4).
func FromStart() StartStrategy { return StartStrategy{kind: strategyFromStart} }

// FromEnd begins at whatever the source considers "now" — for a live
// connection, the master's current end-of-log; for a file source, end of
// file. Resolving it is the byte source's responsibility.
func FromEnd() StartStrategy { return StartStrategy{kind: strategyFromEnd} }

// FromPosition resumes at an exact (file, byte offset) pair, as recorded
// by a prior LogPosition snapshot.
func FromPosition(file string, pos uint64) StartStrategy {
	return StartStrategy{kind: strategyFromPosition, file: file, position: pos}
}

// FromGtid resumes at the oldest point not yet covered by set, letting
// the source decide which file that falls in (typically by scanning each
// file's PREVIOUS_GTIDS_EVENT from newest to oldest until one is found
// whose recorded set is a subset of set).
func FromGtid(set *gtid.Set) StartStrategy {
	return StartStrategy{kind: strategyFromGTID, gtidSet: set}
}

func (s StartStrategy) String() string {
	switch s.kind {
	case strategyFromStart:
		return "FromStart"
	case strategyFromEnd:
		return "FromEnd"
	case strategyFromPosition:
		return "FromPosition"
	case strategyFromGTID:
		return "FromGtid"
	default:
		return "Unknown"
	}
}
