package binlog

import (
	"github.com/google/uuid"

	"github.com/dbstream/binlogrelay/gtid"
)

// GTIDEvent precedes a transaction replicated under GTID mode and names
// the (source UUID, transaction number) pair that identifies it. Wire
// layout (spec.md 4.6a): 1-byte commit flag, 16-byte raw server UUID,
// 8-byte little-endian GNO. Later fields (logical timestamps, commit
// sequence numbers) were added by newer servers; this package does not
// need them and stops reading once GNO is decoded.
type GTIDEvent struct {
	CommitFlag bool
	UUID       uuid.UUID
	GNO        uint64
}

func decodeGTIDEvent(ctx *LogContext, r *reader) (*GTIDEvent, error) {
	e := &GTIDEvent{}
	e.CommitFlag = r.int1() != 0
	raw := r.bytes(16)
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "gtid_event", r.err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, wrapError(KindInvalidData, "gtid_event uuid", err)
	}
	e.UUID = id
	e.GNO = r.int8()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "gtid_event gno", r.err)
	}
	if err := ctx.GTIDSet.Add(e.UUID, e.GNO); err != nil {
		return nil, wrapError(KindInvalidData, "gtid_event add to running set", err)
	}
	return e, nil
}

// AnonymousGTIDEvent has the identical wire layout to GTIDEvent but marks
// a transaction that was not assigned a GTID on its originating server
// (anonymous-transaction mode, or a server with gtid_mode=OFF upstream of
// one with it ON). The embedded UUID/GNO fields are present for wire
// compatibility but are not meaningful identifiers and are not added to
// the running GTID set.
type AnonymousGTIDEvent struct {
	CommitFlag bool
}

func decodeAnonymousGTIDEvent(r *reader) (*AnonymousGTIDEvent, error) {
	e := &AnonymousGTIDEvent{CommitFlag: r.int1() != 0}
	// Drain the rest of the body: field layout beyond the commit flag
	// varies across server versions and none of it identifies the
	// transaction, so this package does not attempt to decode it.
	r.drain()
	return e, nil
}

// PreviousGTIDsEvent opens a binlog file and records every GTID already
// applied in prior files, encoded as MySQL's binary GTID-set wire format
// (spec.md 4.6a). The decoded set is merged into the LogContext's running
// GTIDSet so a caller resuming mid-stream sees the full history.
type PreviousGTIDsEvent struct {
	GTIDSet *gtid.Set
}

func decodePreviousGTIDsEvent(ctx *LogContext, r *reader) (*PreviousGTIDsEvent, error) {
	body := r.bytesEOF()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "previous_gtids_event", r.err)
	}
	set, err := gtid.DecodeBinary(body)
	if err != nil {
		return nil, wrapError(KindInvalidData, "previous_gtids_event gtid set", err)
	}
	for _, us := range set.UuidSets() {
		for _, iv := range us.Intervals {
			ctx.GTIDSet.AddInterval(us.UUID, iv)
		}
	}
	return &PreviousGTIDsEvent{GTIDSet: set}, nil
}
