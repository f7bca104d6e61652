package relaylog

import (
	gojson "github.com/goccy/go-json"
)

// entryCodecVersion is bumped whenever RelayLogEntry's shape changes in a
// backward-incompatible way; old segments keep decoding under whatever
// version they were written with.
const entryCodecVersion = 1

// RelayLogEntry is the versioned envelope staged into a segment for one
// decoded binlog event against one (database, table) pair (spec.md 4.7
// "Codec", 4.4 row events).
type RelayLogEntry struct {
	Version int `json:"version"`

	Database string `json:"database"`
	Table    string `json:"table"`

	BinlogFile string `json:"binlog_file"`
	LogPos     uint32 `json:"log_pos"`
	GTID       string `json:"gtid,omitempty"`

	// EventKind names the originating binlog event: "insert", "update",
	// "delete", or "query" for DDL/DML captured in statement form.
	EventKind string `json:"event_kind"`

	// Before/After hold column-ordered values for row events (After only,
	// for insert/delete; both, for update). Query holds the raw SQL text
	// for statement-based events. Values are whatever decodeValue in the
	// binlog package produced, re-marshaled through encoding's generic
	// interface{} support.
	Before []interface{} `json:"before,omitempty"`
	After  []interface{} `json:"after,omitempty"`
	Query  string        `json:"query,omitempty"`
}

// Codec serializes and deserializes RelayLogEntry values into the raw
// payload bytes a segment stores. It is an interface, not a concrete
// type, so a future binary or protobuf codec can sit alongside the JSON
// one without changing SegmentManager.
type Codec interface {
	Name() string
	Encode(e RelayLogEntry) ([]byte, error)
	Decode(data []byte) (RelayLogEntry, error)
}

// JSONCodec encodes RelayLogEntry as JSON using goccy/go-json, a
// drop-in faster replacement for encoding/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "JsonCodec" }

func (JSONCodec) Encode(e RelayLogEntry) ([]byte, error) {
	e.Version = entryCodecVersion
	return gojson.Marshal(e)
}

func (JSONCodec) Decode(data []byte) (RelayLogEntry, error) {
	var e RelayLogEntry
	if err := gojson.Unmarshal(data, &e); err != nil {
		return RelayLogEntry{}, wrapError(KindInvalidData, "decode relay-log entry", err)
	}
	return e, nil
}
