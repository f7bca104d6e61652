package gtid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UuidSet is the set of transaction-number intervals contributed by a single
// server UUID. Intervals are kept sorted and non-overlapping; insertion
// merges adjacent/overlapping intervals so the set is always minimal.
type UuidSet struct {
	UUID      uuid.UUID
	Intervals []Interval
}

// NewUuidSet builds an empty UuidSet for the given server UUID.
func NewUuidSet(id uuid.UUID) *UuidSet {
	return &UuidSet{UUID: id}
}

// Add extends the set with a single transaction number, merging it into an
// adjacent interval when possible.
func (s *UuidSet) Add(gno uint64) error {
	iv, err := NewInterval(gno, gno+1)
	if err != nil {
		return err
	}
	s.AddInterval(iv)
	return nil
}

// AddInterval inserts iv into the set, merging with any overlapping or
// adjacent existing intervals and keeping the result sorted and disjoint.
func (s *UuidSet) AddInterval(iv Interval) {
	merged := iv
	out := make([]Interval, 0, len(s.Intervals)+1)
	inserted := false
	for _, cur := range s.Intervals {
		if inserted || !cur.adjacentOrOverlaps(merged) {
			if !inserted && cur.Start > merged.End {
				out = append(out, merged)
				inserted = true
			}
			out = append(out, cur)
			continue
		}
		merged = merged.merge(cur)
	}
	if !inserted {
		out = append(out, merged)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	s.Intervals = coalesce(out)
}

// coalesce runs one more left-to-right merge pass in case the insertion loop
// above left two adjacent intervals unmerged (e.g. inserting [b,c) between
// existing [a,b) and [c,d) should yield a single [a,d)).
func coalesce(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return ivs
	}
	out := []Interval{ivs[0]}
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if last.adjacentOrOverlaps(iv) {
			*last = last.merge(iv)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Contains reports whether gno is covered by some interval in the set.
func (s *UuidSet) Contains(gno uint64) bool {
	for _, iv := range s.Intervals {
		if gno >= iv.Start && gno < iv.End {
			return true
		}
	}
	return false
}

// String renders "uuid:a-b:c-d".
func (s *UuidSet) String() string {
	var b strings.Builder
	b.WriteString(s.UUID.String())
	for _, iv := range s.Intervals {
		b.WriteByte(':')
		b.WriteString(iv.String())
	}
	return b.String()
}

func parseUuidSet(text string) (*UuidSet, error) {
	parts := strings.Split(text, ":")
	if len(parts) < 2 {
		return nil, fmt.Errorf("gtid: invalid uuid-set %q", text)
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("gtid: invalid server uuid %q: %w", parts[0], err)
	}
	s := NewUuidSet(id)
	for _, rng := range parts[1:] {
		iv, err := parseIntervalText(rng)
		if err != nil {
			return nil, err
		}
		s.AddInterval(iv)
	}
	return s, nil
}

func parseIntervalText(rng string) (Interval, error) {
	if i := strings.IndexByte(rng, '-'); i != -1 {
		a, err := strconv.ParseUint(rng[:i], 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("gtid: invalid interval %q: %w", rng, err)
		}
		b, err := strconv.ParseUint(rng[i+1:], 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("gtid: invalid interval %q: %w", rng, err)
		}
		return NewInterval(a, b+1)
	}
	n, err := strconv.ParseUint(rng, 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("gtid: invalid interval %q: %w", rng, err)
	}
	return NewInterval(n, n+1)
}
