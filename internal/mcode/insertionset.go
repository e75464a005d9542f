package mcode

import "sort"

type insertSide uint8

const (
	sideBefore insertSide = iota
	sideAfter
)

type pendingInsert struct {
	side   insertSide
	anchor int
	id     int64
	ins    Instruction
}

// InsertionSet is the deferred-edit structure described in §4.8: passes
// queue inserts against pre-edit instruction indices while iterating, and a
// single Commit splices everything into the list at once. This decouples
// pass logic — which reasons about stable indices — from list mutation.
type InsertionSet struct {
	pending []pendingInsert
	nextID  int64
}

// Before queues ins to be inserted immediately before the instruction
// currently at anchor.
func (s *InsertionSet) Before(anchor int, ins Instruction) {
	s.pending = append(s.pending, pendingInsert{side: sideBefore, anchor: anchor, id: s.nextID, ins: ins})
	s.nextID++
}

// After queues ins to be inserted immediately after the instruction
// currently at anchor.
func (s *InsertionSet) After(anchor int, ins Instruction) {
	s.pending = append(s.pending, pendingInsert{side: sideAfter, anchor: anchor, id: s.nextID, ins: ins})
	s.nextID++
}

// Commit splices every queued insert into m.Instructions and clears the
// set. Entries are sorted by (anchor descending; After before Before for
// equal anchors; insert-id descending for equal anchor+side) so that
// splicing from the back of the list forward never invalidates an
// as-yet-unprocessed anchor index, and entries queued against the same
// anchor+side come out in the order they were queued.
func (s *InsertionSet) Commit(m *MCode) {
	sort.SliceStable(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if a.anchor != b.anchor {
			return a.anchor > b.anchor
		}
		if a.side != b.side {
			return a.side == sideAfter // After before Before
		}
		return a.id > b.id
	})

	for _, p := range s.pending {
		at := p.anchor
		if p.side == sideAfter {
			at++
		}
		m.Instructions = append(m.Instructions, Instruction{})
		copy(m.Instructions[at+1:], m.Instructions[at:])
		m.Instructions[at] = p.ins
	}

	s.pending = nil
}
