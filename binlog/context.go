package binlog

import (
	"io"

	"github.com/dbstream/binlogrelay/gtid"
)

// LogContext is the shared mutable state threaded by pointer through a
// single binlog stream's decode session: the post-header layout and
// checksum algorithm declared by the stream's FORMAT_DESCRIPTION_EVENT,
// the TABLE_MAP_EVENT cache a ROWS_EVENT needs to resolve its columns,
// and the running position (file name + offset + GTID set) a caller uses
// to resume a stream later. One LogContext belongs to one Decoder; it is
// not safe for concurrent use.
type LogContext struct {
	r *reader

	fde        FormatDescriptionEvent
	haveFde    bool
	tableMaps  map[uint64]*TableMapEvent

	File     string
	Position uint32
	GTIDSet  *gtid.Set
}

// NewDecoder wraps rd, an io.Reader positioned at the start of a binlog
// stream (immediately after the 4-byte magic number), in a Decoder ready
// to yield successive events via Next.
func NewDecoder(rd io.Reader) *Decoder {
	return &Decoder{
		ctx: &LogContext{
			r:         newReader(rd),
			tableMaps: make(map[uint64]*TableMapEvent),
			GTIDSet:   gtid.NewSet(),
		},
	}
}

// Decoder reads successive binlog events from an underlying byte stream.
type Decoder struct {
	ctx *LogContext
}

// Context exposes the decoder's running position and table-map cache,
// e.g. so a caller can persist File/Position/GTIDSet for later resume.
func (d *Decoder) Context() *LogContext { return d.ctx }

// ChecksumAlg reports the algorithm declared by the stream's
// FORMAT_DESCRIPTION_EVENT, or ChecksumOff if none has been seen yet.
// ChecksumUndefined (255) is ambiguous in practice: this package treats
// it as ChecksumOff only on pre-version-4 binlog streams, where the
// trailer byte was never a real algorithm selector to begin with;
// encountering it on a version-4+ stream is reported by VerifiedChecksumAlg.
func (ctx *LogContext) ChecksumAlg() ChecksumAlg {
	if !ctx.haveFde {
		return ChecksumOff
	}
	if ctx.fde.ChecksumAlg == ChecksumUndefined && ctx.fde.BinlogVersion < 4 {
		return ChecksumOff
	}
	return ctx.fde.ChecksumAlg
}

// VerifiedChecksumAlg is like ChecksumAlg but returns an error when the
// declared algorithm is one this package cannot verify against: any
// value other than OFF/CRC32/UNDEF-on-legacy-stream.
func (ctx *LogContext) VerifiedChecksumAlg() (ChecksumAlg, error) {
	if !ctx.haveFde {
		return ChecksumOff, nil
	}
	if ctx.fde.ChecksumAlg == ChecksumUndefined && ctx.fde.BinlogVersion >= 4 {
		return 0, newError(KindUnsupportedChecksumAlg, "checksum_alg UNDEF on a version>=4 binlog stream")
	}
	switch ctx.fde.ChecksumAlg {
	case ChecksumOff, ChecksumCRC32:
		return ctx.ChecksumAlg(), nil
	case ChecksumUndefined:
		return ctx.ChecksumAlg(), nil
	default:
		return 0, newError(KindUnsupportedChecksumAlg, ctx.fde.ChecksumAlg.String())
	}
}

// headerLength returns the common-header length framing is driven by:
// the current FormatDescriptionEvent's EventHeaderLength once one has
// been parsed, or the eventHeaderSize default before that (spec.md 4.2).
func (ctx *LogContext) headerLength() int {
	if !ctx.haveFde || ctx.fde.EventHeaderLength == 0 {
		return eventHeaderSize
	}
	return int(ctx.fde.EventHeaderLength)
}

func (ctx *LogContext) postHeaderLength(t EventType) byte {
	if !ctx.haveFde {
		return 0
	}
	i := int(t) - 1
	if i < 0 || i >= len(ctx.fde.PostHeaderLengths) {
		return 0
	}
	return ctx.fde.PostHeaderLengths[i]
}

// lookupTableMap returns the most recently seen TABLE_MAP_EVENT for
// tableID, or a *MissingTableMapError if none has been cached.
func (ctx *LogContext) lookupTableMap(tableID uint64) (*TableMapEvent, error) {
	tm, ok := ctx.tableMaps[tableID]
	if !ok {
		return nil, &MissingTableMapError{TableID: tableID}
	}
	return tm, nil
}
