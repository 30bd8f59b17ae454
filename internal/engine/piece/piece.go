package piece

import (
	"github.com/google/uuid"

	"github.com/dshills/textcore/internal/engine/block"
)

// Piece is an immutable descriptor of a byte range within a block, plus
// the mutable prev/next links that place it in a List. Its identity
// (ID) never changes, which is what makes a Mark built from it durable
// across revision traversal.
type Piece struct {
	id   uuid.UUID
	blk  *block.Block
	off  int
	len  int
	prev *Piece
	next *Piece
}

// New creates a piece referencing blk[off:off+length). It is not linked
// into any list yet.
func New(blk *block.Block, off, length int) *Piece {
	return &Piece{id: uuid.New(), blk: blk, off: off, len: length}
}

// ID returns the piece's stable identity, usable as a Mark component.
func (p *Piece) ID() uuid.UUID { return p.id }

// Len returns the piece's byte length.
func (p *Piece) Len() int { return p.len }

// Bytes returns the piece's live byte range. Callers must not mutate it.
func (p *Piece) Bytes() []byte {
	if p.blk == nil {
		return nil
	}
	return p.blk.Slice(p.off, p.len)
}

// Block returns the block this piece references.
func (p *Piece) Block() *block.Block { return p.blk }

// Offset returns the piece's starting offset within its block.
func (p *Piece) Offset() int { return p.off }

// Next returns the next piece in whatever list currently links this one.
func (p *Piece) Next() *Piece { return p.next }

// Prev returns the previous piece in whatever list currently links this
// one.
func (p *Piece) Prev() *Piece { return p.prev }

func sumLen(ps []*Piece) int {
	n := 0
	for _, p := range ps {
		n += p.len
	}
	return n
}

// Change is a single reversible piece-list splice: the sequence of
// pieces occupying [Pos, Pos+len(Old)-bytes) is replaced by New. Left
// and Right are the (always-present, possibly sentinel) neighbors the
// splice threads between; they make both Do and Undo pure relinking
// operations.
type Change struct {
	Pos   int
	Left  *Piece
	Right *Piece
	Old   []*Piece
	New   []*Piece
}

// Invert returns the change that undoes c.
func (c *Change) Invert() *Change {
	return &Change{Pos: c.Pos, Left: c.Left, Right: c.Right, Old: c.New, New: c.Old}
}

// DeltaLen is the net change in total size this change makes when
// applied forward.
func (c *Change) DeltaLen() int {
	return sumLen(c.New) - sumLen(c.Old)
}

// List is a doubly-linked piece list bounded by two zero-length
// sentinels. Concatenating piece Bytes() from head.Next to tail yields
// the represented content.
type List struct {
	head *Piece
	tail *Piece
	size int
}

// NewList returns an empty list (just the two sentinels).
func NewList() *List {
	head := &Piece{}
	tail := &Piece{}
	head.next = tail
	tail.prev = head
	return &List{head: head, tail: tail}
}

// NewListFromBlock returns a list containing exactly one piece spanning
// the whole of blk, or an empty list if blk is nil or empty.
func NewListFromBlock(blk *block.Block) *List {
	l := NewList()
	if blk == nil || blk.Len() == 0 {
		return l
	}
	p := New(blk, 0, blk.Len())
	l.head.next = p
	p.prev = l.head
	p.next = l.tail
	l.tail.prev = p
	l.size = blk.Len()
	return l
}

// Size is the sum of all live piece lengths.
func (l *List) Size() int { return l.size }

// Head returns the head sentinel. Head.Next() is the first real piece,
// or the tail sentinel if the list is empty.
func (l *List) Head() *Piece { return l.head }

// Tail returns the tail sentinel.
func (l *List) Tail() *Piece { return l.tail }

// IsSentinel reports whether p is one of this list's two boundary
// markers.
func (l *List) IsSentinel(p *Piece) bool { return p == l.head || p == l.tail }

// locate finds the piece covering pos, preferring the piece that starts
// exactly at pos over the piece that ends there, so boundary positions
// never force a gratuitous split. It returns the tail sentinel with
// offset 0 when pos == Size().
func (l *List) locate(pos int) (p *Piece, localOff int) {
	cum := 0
	for cur := l.head.next; cur != l.tail; cur = cur.next {
		if pos < cum+cur.len {
			return cur, pos - cum
		}
		cum += cur.len
	}
	return l.tail, 0
}

// Locate exposes locate for callers (marks, iterator seeding) that need
// the piece covering a position without performing an edit.
func (l *List) Locate(pos int) (p *Piece, localOff int) { return l.locate(pos) }

func (l *List) link(c *Change, seq []*Piece) {
	left, right := c.Left, c.Right
	if len(seq) == 0 {
		left.next = right
		right.prev = left
		return
	}
	left.next = seq[0]
	seq[0].prev = left
	for i := 0; i < len(seq)-1; i++ {
		seq[i].next = seq[i+1]
		seq[i+1].prev = seq[i]
	}
	seq[len(seq)-1].next = right
	right.prev = seq[len(seq)-1]
}

// Do applies a change's New sequence, splicing it in between Left and
// Right and updating size.
func (l *List) Do(c *Change) {
	l.link(c, c.New)
	l.size += c.DeltaLen()
}

// Undo applies a change's Old sequence in place of New, reverting the
// splice and restoring size.
func (l *List) Undo(c *Change) {
	l.link(c, c.Old)
	l.size -= c.DeltaLen()
}

// Insert splices a single new piece referencing blk[off:off+length)
// into the list at pos, splitting the covering piece if pos falls
// inside one. It returns the Change describing the splice; the caller
// (the buffer facade) is responsible for recording it and for
// deciding whether it coalesces with a prior change.
func (l *List) Insert(pos int, blk *block.Block, off, length int) (*Change, *Piece) {
	newP := New(blk, off, length)
	p, local := l.locate(pos)

	var left, right *Piece
	var old, newSeq []*Piece

	switch {
	case p == l.tail:
		left, right = l.tail.prev, l.tail
		newSeq = []*Piece{newP}
	case local == 0:
		left, right = p.prev, p
		newSeq = []*Piece{newP}
	default:
		leftPiece := New(p.blk, p.off, local)
		rightPiece := New(p.blk, p.off+local, p.len-local)
		left, right = p.prev, p.next
		old = []*Piece{p}
		newSeq = []*Piece{leftPiece, newP, rightPiece}
	}

	c := &Change{Pos: pos, Left: left, Right: right, Old: old, New: newSeq}
	l.Do(c)
	return c, newP
}

// Delete splices out the bytes in [pos, pos+length), trimming the
// boundary pieces as needed. length == 0 returns a nil change (a
// no-op), matching the spec's delete(pos, 0) contract.
func (l *List) Delete(pos, length int) *Change {
	if length == 0 {
		return nil
	}
	p1, local1 := l.locate(pos)
	p2, local2 := l.locate(pos + length)

	var lastAffected *Piece
	if local2 == 0 {
		lastAffected = p2.prev
	} else {
		lastAffected = p2
	}

	var old []*Piece
	for cur := p1; ; cur = cur.next {
		old = append(old, cur)
		if cur == lastAffected {
			break
		}
	}

	left := p1.prev
	right := lastAffected.next

	var newSeq []*Piece
	if local1 > 0 {
		newSeq = append(newSeq, New(p1.blk, p1.off, local1))
	}
	if local2 > 0 {
		newSeq = append(newSeq, New(p2.blk, p2.off+local2, p2.len-local2))
	}

	c := &Change{Pos: pos, Left: left, Right: right, Old: old, New: newSeq}
	l.Do(c)
	return c
}

// CoalesceExtend extends prev's most recently inserted piece (last, a
// member of prev.New) by addedLen bytes from the same block, in place.
// Unlike a fresh splice, it preserves prev's Pos/Left/Right/Old
// unchanged and only swaps last for its grown replacement within a
// copy of prev.New. The grown piece keeps last's ID, so marks set
// inside last still resolve. The returned Change still transforms the same
// parent state prev did, it just inserts more bytes doing it, which is
// what lets the caller fold it into the revision's most recent Change
// (replacing prev there) instead of recording a second, independent
// splice. Folding a fresh {Old:[last]} splice in prev's place instead
// would corrupt Undo, since Old would then be the pre-extension piece
// rather than the real parent content.
//
// Callers must only invoke this when they have verified the extension
// is byte-contiguous (same block, addedLen bytes immediately follow
// last's current range) and that no snapshot or other edit has
// intervened since prev was recorded.
func (l *List) CoalesceExtend(prev *Change, last *Piece, addedLen int) (*Piece, *Change) {
	grown := New(last.blk, last.off, last.len+addedLen)
	grown.id = last.id

	newSeq := make([]*Piece, len(prev.New))
	copy(newSeq, prev.New)
	for i, p := range newSeq {
		if p == last {
			newSeq[i] = grown
			break
		}
	}

	c := &Change{Pos: prev.Pos, Left: prev.Left, Right: prev.Right, Old: prev.Old, New: newSeq}
	l.link(c, c.New)
	l.size += addedLen
	return grown, c
}

// Bytes concatenates the content of every live piece. It is intended
// for small buffers and tests; large buffers should read through an
// Iterator instead.
func (l *List) Bytes() []byte {
	out := make([]byte, 0, l.size)
	for cur := l.head.next; cur != l.tail; cur = cur.next {
		out = append(out, cur.Bytes()...)
	}
	return out
}

// Range returns the content of [start, end) by walking the piece list.
func (l *List) Range(start, end int) []byte {
	if end <= start {
		return nil
	}
	out := make([]byte, 0, end-start)
	cum := 0
	for cur := l.head.next; cur != l.tail && cum < end; cur = cur.next {
		pieceStart := cum
		pieceEnd := cum + cur.len
		cum = pieceEnd
		if pieceEnd <= start {
			continue
		}
		lo := 0
		if start > pieceStart {
			lo = start - pieceStart
		}
		hi := cur.len
		if end < pieceEnd {
			hi = end - pieceStart
		}
		out = append(out, cur.Bytes()[lo:hi]...)
	}
	return out
}

// Find scans from head to tail looking for a piece with the given
// identity, returning its piece and the cumulative offset of its first
// byte in the current list, or ok == false if no such piece is live.
func (l *List) Find(id uuid.UUID) (p *Piece, startOffset int, ok bool) {
	cum := 0
	for cur := l.head.next; cur != l.tail; cur = cur.next {
		if cur.id == id {
			return cur, cum, true
		}
		cum += cur.len
	}
	return nil, 0, false
}
