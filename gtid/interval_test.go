package gtid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntervalRoundTrip(t *testing.T) {
	cases := []struct {
		start, end uint64
		want       string
	}{
		{1, 2, "1"},
		{5, 6, "5"},
		{1, 4, "1-3"},
		{100, 201, "100-200"},
	}
	for _, c := range cases {
		iv, err := NewInterval(c.start, c.end)
		require.NoError(t, err)
		require.Equal(t, c.want, iv.String())

		reparsed, err := parseIntervalText(iv.String())
		require.NoError(t, err)
		require.Equal(t, iv.String(), reparsed.String())
	}
}

func TestIntervalRejectsInvalid(t *testing.T) {
	_, err := NewInterval(0, 5)
	require.Error(t, err)

	_, err = NewInterval(5, 5)
	require.Error(t, err)

	_, err = NewInterval(5, 3)
	require.Error(t, err)
}

func TestUuidSetMergeAdjacent(t *testing.T) {
	id := mustUUID(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562")
	s := NewUuidSet(id)

	a, _ := NewInterval(1, 6)
	b, _ := NewInterval(6, 11)
	s.AddInterval(a)
	s.AddInterval(b)

	require.Len(t, s.Intervals, 1)
	require.Equal(t, Interval{1, 11}, s.Intervals[0])
}

func TestUuidSetDuplicateAddIsIdempotent(t *testing.T) {
	id := mustUUID(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562")
	s := NewUuidSet(id)
	require.NoError(t, s.Add(42))
	require.NoError(t, s.Add(42))
	require.Len(t, s.Intervals, 1)
	require.Equal(t, "42", s.Intervals[0].String())
}

func TestUuidSetFillsGap(t *testing.T) {
	id := mustUUID(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562")
	s := NewUuidSet(id)
	a, _ := NewInterval(1, 3)  // 1-2
	c, _ := NewInterval(5, 7) // 5-6
	b, _ := NewInterval(3, 5) // 3-4 bridges a and c
	s.AddInterval(a)
	s.AddInterval(c)
	s.AddInterval(b)

	require.Len(t, s.Intervals, 1)
	require.Equal(t, Interval{1, 7}, s.Intervals[0])
}

func mustUUID(t *testing.T, s string) (id [16]byte) {
	t.Helper()
	u, err := parseUuidSet(s + ":1")
	require.NoError(t, err)
	return u.UUID
}
