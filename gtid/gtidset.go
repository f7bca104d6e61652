package gtid

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Set is a GTID set: the union, across server UUIDs, of the transaction
// numbers a replica has applied. Parsed from and formatted to MySQL's
// canonical text form "uuid:a-b:c-d,uuid2:e".
type Set struct {
	byUUID map[uuid.UUID]*UuidSet
}

// NewSet returns an empty GTID set.
func NewSet() *Set {
	return &Set{byUUID: make(map[uuid.UUID]*UuidSet)}
}

// Parse parses the canonical text form of a GTID set. An empty string
// yields an empty set.
func Parse(text string) (*Set, error) {
	s := NewSet()
	text = strings.TrimSpace(text)
	if text == "" {
		return s, nil
	}
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		us, err := parseUuidSet(part)
		if err != nil {
			return nil, err
		}
		existing, ok := s.byUUID[us.UUID]
		if !ok {
			s.byUUID[us.UUID] = us
			continue
		}
		for _, iv := range us.Intervals {
			existing.AddInterval(iv)
		}
	}
	return s, nil
}

// Add extends the set with a single (server_uuid, gno) transaction,
// creating the UuidSet if this is the first transaction seen for that
// server. Adding the same pair twice is idempotent.
func (s *Set) Add(id uuid.UUID, gno uint64) error {
	us, ok := s.byUUID[id]
	if !ok {
		us = NewUuidSet(id)
		s.byUUID[id] = us
	}
	return us.Add(gno)
}

// AddInterval merges a whole interval into the set in one step, creating
// the UuidSet if this is the first transaction seen for that server.
func (s *Set) AddInterval(id uuid.UUID, iv Interval) {
	us, ok := s.byUUID[id]
	if !ok {
		us = NewUuidSet(id)
		s.byUUID[id] = us
	}
	us.AddInterval(iv)
}

// Contains reports whether (id, gno) has been recorded.
func (s *Set) Contains(id uuid.UUID, gno uint64) bool {
	us, ok := s.byUUID[id]
	if !ok {
		return false
	}
	return us.Contains(gno)
}

// UuidSets returns the per-server-UUID sets sorted by UUID text, for
// deterministic formatting and iteration.
func (s *Set) UuidSets() []*UuidSet {
	out := make([]*UuidSet, 0, len(s.byUUID))
	for _, us := range s.byUUID {
		out = append(out, us)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UUID.String() < out[j].UUID.String()
	})
	return out
}

// String renders the canonical text form.
func (s *Set) String() string {
	sets := s.UuidSets()
	parts := make([]string, len(sets))
	for i, us := range sets {
		parts[i] = us.String()
	}
	return strings.Join(parts, ",")
}

// Equal reports set-equality: same UUIDs, same intervals.
func (s *Set) Equal(other *Set) bool {
	if len(s.byUUID) != len(other.byUUID) {
		return false
	}
	for id, us := range s.byUUID {
		ous, ok := other.byUUID[id]
		if !ok || len(us.Intervals) != len(ous.Intervals) {
			return false
		}
		for i, iv := range us.Intervals {
			if ous.Intervals[i] != iv {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := NewSet()
	for id, us := range s.byUUID {
		clone := NewUuidSet(id)
		clone.Intervals = append([]Interval(nil), us.Intervals...)
		out.byUUID[id] = clone
	}
	return out
}
