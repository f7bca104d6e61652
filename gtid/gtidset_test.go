package gtid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSetParseFormatRoundTrip(t *testing.T) {
	text := "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5:10,726ec689-dbc9-11e8-b03d-0a118cb37f62:99"
	s, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, text, s.String())
}

func TestSetAddTwiceUnchanged(t *testing.T) {
	s := NewSet()
	id := uuid.New()
	require.NoError(t, s.Add(id, 7))
	before := s.String()
	require.NoError(t, s.Add(id, 7))
	require.Equal(t, before, s.String())
}

func TestSetEqual(t *testing.T) {
	a, err := Parse("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5")
	require.NoError(t, err)
	b, err := Parse("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-3,3e11fa47-71ca-11e1-9e33-c80aa9429562:4-5")
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestSetEmpty(t *testing.T) {
	s, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, "", s.String())
}

func TestBinaryRoundTrip(t *testing.T) {
	s, err := Parse("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-5:10,726ec689-dbc9-11e8-b03d-0a118cb37f62:99")
	require.NoError(t, err)

	buf := s.EncodeBinary()
	back, err := DecodeBinary(buf)
	require.NoError(t, err)
	require.True(t, s.Equal(back))
}

func TestBinaryDecodeEmpty(t *testing.T) {
	s, err := DecodeBinary(nil)
	require.NoError(t, err)
	require.Equal(t, "", s.String())
}
