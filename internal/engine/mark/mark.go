// Package mark implements the mark table: stable, opaque handles to a
// byte position that survive edits and revision traversal because they
// resolve through a piece's identity rather than a raw offset.
package mark

import (
	"github.com/google/uuid"

	"github.com/dshills/textcore/internal/engine/piece"
)

// Mark is an opaque handle returned by Set and consumed by Get. The
// zero value is EMark, never a valid mark.
type Mark uuid.UUID

// EMark is the sentinel mark value, never returned by Set.
var EMark Mark

// EPOS is returned by Get when the mark's piece is not reachable from
// the current piece list.
const EPOS = ^uint64(0)

type entry struct {
	pieceID uuid.UUID
	offset  int
}

// Table maps Marks to (piece identity, offset) pairs. It never removes
// an entry on its own; marks are only forgotten when the caller
// explicitly clears them.
type Table struct {
	entries map[Mark]entry
}

// NewTable returns an empty mark table.
func NewTable() *Table {
	return &Table{entries: make(map[Mark]entry)}
}

// Set locates the piece covering pos in list and records a new mark for
// it. pos == list.Size() is valid (marks the end-of-buffer boundary,
// resolving against the tail-adjacent piece's identity where possible).
func (t *Table) Set(list *piece.List, pos int) Mark {
	p, local := list.Locate(pos)
	if list.IsSentinel(p) {
		// End-of-buffer or empty-list mark: fall back to the last real
		// piece plus its length, so the mark still resolves after any
		// append that extends that piece via coalescing.
		if prev := p.Prev(); !list.IsSentinel(prev) {
			p, local = prev, prev.Len()
		}
	}
	m := Mark(uuid.New())
	id := uuid.Nil
	if !list.IsSentinel(p) {
		id = p.ID()
	}
	t.entries[m] = entry{pieceID: id, offset: local}
	return m
}

// Get resolves m against the current piece list, returning EPOS if the
// mark's piece is not live in it.
func (t *Table) Get(list *piece.List, m Mark) uint64 {
	if m == EMark {
		return EPOS
	}
	e, ok := t.entries[m]
	if !ok || e.pieceID == uuid.Nil {
		return EPOS
	}
	p, start, found := list.Find(e.pieceID)
	if !found {
		return EPOS
	}
	_ = p
	return uint64(start + e.offset)
}

// Clear forgets m, freeing its entry.
func (t *Table) Clear(m Mark) {
	delete(t.entries, m)
}
