package relaylog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}
	entry := RelayLogEntry{
		Database:   "shop",
		Table:      "orders",
		BinlogFile: "mysql-bin.000003",
		LogPos:     4821,
		EventKind:  "insert",
		After:      []interface{}{float64(1), "widget"},
	}

	data, err := codec.Encode(entry)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, entryCodecVersion, got.Version)
	require.Equal(t, entry.Database, got.Database)
	require.Equal(t, entry.Table, got.Table)
	require.Equal(t, entry.EventKind, got.EventKind)
	require.Equal(t, entry.After, got.After)
}

func TestJSONCodecDecodeInvalid(t *testing.T) {
	codec := JSONCodec{}
	_, err := codec.Decode([]byte("not json"))
	require.Error(t, err)
	var relErr *Error
	require.ErrorAs(t, err, &relErr)
	require.Equal(t, KindInvalidData, relErr.Kind)
}
