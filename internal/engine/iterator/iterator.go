// Package iterator implements a cursor over a piece list exposing
// byte, UTF-8 codepoint, and grapheme-cluster granularity advance, plus
// a CRLF-aware single-byte read.
package iterator

import (
	"github.com/rivo/uniseg"

	"github.com/dshills/textcore/internal/engine/piece"
)

// Iterator walks a piece list. It is invalidated by any edit to the
// list it was created from; callers must obtain a fresh one after an
// insert, delete, undo, redo, earlier, later, or restore.
type Iterator struct {
	list *piece.List
	p    *piece.Piece // current piece, or a sentinel if !Valid()
	pos  uint64        // global byte position
}

// New returns an iterator positioned at pos (clamped to [0, size]).
func New(list *piece.List, pos uint64) *Iterator {
	size := uint64(list.Size())
	if pos > size {
		pos = size
	}
	p, _ := list.Locate(int(pos))
	return &Iterator{list: list, p: p, pos: pos}
}

// Valid reports whether the iterator sits on a real piece rather than
// a sentinel (true whenever 0 <= pos < size).
func (it *Iterator) Valid() bool {
	return !it.list.IsSentinel(it.p)
}

// Pos returns the iterator's current global byte position.
func (it *Iterator) Pos() uint64 { return it.pos }

func (it *Iterator) refresh() {
	it.p, _ = it.list.Locate(int(it.pos))
}

// ByteGet returns the byte at the cursor, or (0, false) at end of
// buffer.
func (it *Iterator) ByteGet() (byte, bool) {
	if it.pos >= uint64(it.list.Size()) {
		return 0, false
	}
	p, local := it.list.Locate(int(it.pos))
	return p.Bytes()[local], true
}

// CharGet reads the byte at the cursor, reporting LF instead of CR when
// the cursor sits on a CR immediately followed by LF.
func (it *Iterator) CharGet() (byte, bool) {
	b, ok := it.ByteGet()
	if !ok || b != '\r' {
		return b, ok
	}
	nb, ok := it.peekAt(it.pos + 1)
	if ok && nb == '\n' {
		return '\n', true
	}
	return b, true
}

func (it *Iterator) peekAt(pos uint64) (byte, bool) {
	if pos >= uint64(it.list.Size()) {
		return 0, false
	}
	p, local := it.list.Locate(int(pos))
	return p.Bytes()[local], true
}

// ByteNext advances one byte, returning the new current byte or 0 with
// ok==false when the move lands one past the last byte (a synthetic
// NUL is still a legal cursor position for one-past-end reads).
func (it *Iterator) ByteNext() (byte, bool) {
	if it.pos < uint64(it.list.Size()) {
		it.pos++
	}
	it.refresh()
	return it.ByteGet()
}

// BytePrev retreats one byte.
func (it *Iterator) BytePrev() (byte, bool) {
	if it.pos > 0 {
		it.pos--
	}
	it.refresh()
	return it.ByteGet()
}

// codepointLen reports the byte length of the UTF-8 codepoint starting
// with lead, defaulting to 1 for continuation/invalid leads so the
// cursor always makes forward progress.
func codepointLen(lead byte) int {
	switch {
	case lead&0x80 == 0x00:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// CodepointNext advances past one UTF-8 codepoint, reporting the first
// byte of the new codepoint.
func (it *Iterator) CodepointNext() (byte, bool) {
	b, ok := it.ByteGet()
	if !ok {
		return it.ByteNext()
	}
	n := codepointLen(b)
	for i := 0; i < n && it.pos < uint64(it.list.Size()); i++ {
		it.pos++
	}
	it.refresh()
	return it.ByteGet()
}

// CodepointPrev retreats to the start of the previous UTF-8 codepoint.
func (it *Iterator) CodepointPrev() (byte, bool) {
	if it.pos == 0 {
		return it.ByteGet()
	}
	it.pos--
	for it.pos > 0 {
		b, _ := it.peekAt(it.pos)
		if b&0xC0 != 0x80 {
			break
		}
		it.pos--
	}
	it.refresh()
	return it.ByteGet()
}

// CharNext advances one grapheme cluster using Unicode segmentation,
// reporting the first byte of the new cluster.
func (it *Iterator) CharNext() (byte, bool) {
	size := uint64(it.list.Size())
	if it.pos >= size {
		return it.ByteGet()
	}
	remaining := it.list.Range(int(it.pos), it.list.Size())
	cluster, _, _, _ := uniseg.FirstGraphemeCluster(remaining, -1)
	clusterLen := len(cluster)
	if clusterLen <= 0 {
		clusterLen = 1
	}
	it.pos += uint64(clusterLen)
	if it.pos > size {
		it.pos = size
	}
	it.refresh()
	return it.ByteGet()
}

// CharPrev retreats one grapheme cluster.
func (it *Iterator) CharPrev() (byte, bool) {
	if it.pos == 0 {
		return it.ByteGet()
	}
	// Re-derive cluster boundaries by scanning forward from the start of
	// the buffer up to the current position; the last boundary before
	// pos is the start of the previous cluster. This trades efficiency
	// for correctness against uniseg's forward-only API.
	prefix := string(it.list.Range(0, int(it.pos)))
	boundary := 0
	state := -1
	for len(prefix) > 0 {
		cluster, rest, _, newState := uniseg.FirstGraphemeClusterInString(prefix, state)
		nextBoundary := boundary + len(cluster)
		if uint64(nextBoundary) >= it.pos {
			break
		}
		boundary = nextBoundary
		prefix = rest
		state = newState
	}
	it.pos = uint64(boundary)
	it.refresh()
	return it.ByteGet()
}
