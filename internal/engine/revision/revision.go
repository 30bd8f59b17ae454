package revision

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/textcore/internal/engine/piece"
)

// EPOS is the sentinel position returned by navigation operations that
// fail or have nothing to do.
const EPOS = ^uint64(0)

// Revision is one node in the history tree.
type Revision struct {
	id        uuid.UUID
	parent    *Revision
	firstChild *Revision
	nextSibling *Revision
	lastActiveChild *Revision

	changes   []*piece.Change
	timestamp time.Time
	seq       uint64
	depth     int
	open      bool
}

// ID returns the revision's stable identity.
func (r *Revision) ID() uuid.UUID { return r.id }

// Timestamp returns the wall-clock time this revision was closed (or,
// while it is still open, the time it was created).
func (r *Revision) Timestamp() time.Time { return r.timestamp }

// Seq returns the revision's creation order.
func (r *Revision) Seq() uint64 { return r.seq }

// Open reports whether this revision still accepts new changes.
func (r *Revision) Open() bool { return r.open }

// Parent returns the revision's parent, or nil for the root.
func (r *Revision) Parent() *Revision { return r.parent }

// Changes returns the changes that transform Parent()'s content into
// this revision's content. Empty for an untouched open revision.
func (r *Revision) Changes() []*piece.Change { return r.changes }

// Graph owns the revision tree and the single piece.List whose content
// always matches the current revision.
type Graph struct {
	root    *Revision
	current *Revision
	list    *piece.List
	clock   func() time.Time

	nextSeq    uint64
	bySeq      []*Revision
	byCloseKey []*Revision // revisions with a defined timestamp, in the order they received one

	allChanges []*piece.Change

	maxRevisions int
}

// New creates a graph rooted at a fresh revision representing the
// buffer's state immediately after load, with content already present
// in list.
func New(list *piece.List, clock func() time.Time) *Graph {
	if clock == nil {
		clock = time.Now
	}
	root := &Revision{id: uuid.New(), open: true, timestamp: clock(), seq: 0, depth: 0}
	g := &Graph{root: root, current: root, list: list, clock: clock}
	g.bySeq = append(g.bySeq, root)
	g.byCloseKey = append(g.byCloseKey, root)
	g.nextSeq = 1
	return g
}

// SetMaxRevisions bounds the number of live revisions; see Prune.
func (g *Graph) SetMaxRevisions(n int) { g.maxRevisions = n }

// Current returns the revision the piece list currently reflects.
func (g *Graph) Current() *Revision { return g.current }

// Root returns the graph's root revision.
func (g *Graph) Root() *Revision { return g.root }

// Modified reports whether the current revision differs from the
// revision identified as "saved" by the caller (the buffer facade tracks
// that identity itself; this is just an equality helper).
func (g *Graph) Modified(saved *Revision) bool { return saved != g.current }

// beginEdit returns the revision new changes should append to,
// transparently opening a child of the current revision if it is
// closed — "further edits create a child revision and make it
// current."
func (g *Graph) beginEdit() *Revision {
	if g.current.open {
		return g.current
	}
	child := &Revision{
		id:        uuid.New(),
		parent:    g.current,
		open:      true,
		timestamp: g.clock(),
		seq:       g.nextSeq,
		depth:     g.current.depth + 1,
	}
	g.nextSeq++
	g.addChild(g.current, child)
	g.bySeq = append(g.bySeq, child)
	g.current.lastActiveChild = child
	g.current = child
	return child
}

func (g *Graph) addChild(parent, child *Revision) {
	if parent.firstChild == nil {
		parent.firstChild = child
		return
	}
	c := parent.firstChild
	for c.nextSibling != nil {
		c = c.nextSibling
	}
	c.nextSibling = child
}

// RecordChange appends c to the current open revision (opening a new
// child first if the current revision was closed) and records it in
// global creation order for HistoryGet.
func (g *Graph) RecordChange(c *piece.Change) {
	if c == nil {
		return
	}
	r := g.beginEdit()
	r.changes = append(r.changes, c)
	g.allChanges = append(g.allChanges, c)
}

// ReplaceLastChange swaps the most recently recorded change on the
// current open revision for c, used by coalescing: two appends become
// one change rather than two.
func (g *Graph) ReplaceLastChange(c *piece.Change) {
	r := g.current
	if len(r.changes) == 0 {
		g.RecordChange(c)
		return
	}
	r.changes[len(r.changes)-1] = c
	g.allChanges[len(g.allChanges)-1] = c
}

// LastChange returns the most recent change on the current open
// revision, or nil if it has none.
func (g *Graph) LastChange() *piece.Change {
	r := g.current
	if !r.open || len(r.changes) == 0 {
		return nil
	}
	return r.changes[len(r.changes)-1]
}

// Snapshot closes the current revision and makes a fresh empty child
// current, provided the current revision is open and has at least one
// change. Otherwise it is a no-op.
func (g *Graph) Snapshot() {
	cur := g.current
	if !cur.open || len(cur.changes) == 0 {
		return
	}
	cur.open = false
	cur.timestamp = g.clock()
	g.byCloseKey = append(g.byCloseKey, cur)

	child := &Revision{id: uuid.New(), parent: cur, open: true, timestamp: g.clock(), seq: g.nextSeq, depth: cur.depth + 1}
	g.nextSeq++
	g.addChild(cur, child)
	g.bySeq = append(g.bySeq, child)
	cur.lastActiveChild = child
	g.current = child
}

func minPos(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Undo reverts the current revision's pending changes if it has any;
// otherwise it moves current to its parent, inverting the changes that
// built it. Reverted pending changes move into a new closed child of
// the current revision, which is itself closed, so Redo can reapply
// them and later edits start a sibling branch. It returns the leftmost
// affected position, or EPOS if there was nothing to undo.
func (g *Graph) Undo() uint64 {
	cur := g.current
	if cur.open && len(cur.changes) > 0 {
		pos := EPOS
		for i := len(cur.changes) - 1; i >= 0; i-- {
			c := cur.changes[i]
			g.list.Undo(c)
			pos = minPos(pos, uint64(c.Pos))
		}
		now := g.clock()
		undone := &Revision{id: uuid.New(), parent: cur, changes: cur.changes, timestamp: now, seq: g.nextSeq, depth: cur.depth + 1}
		g.nextSeq++
		g.addChild(cur, undone)
		g.bySeq = append(g.bySeq, undone)
		g.byCloseKey = append(g.byCloseKey, undone)
		cur.lastActiveChild = undone
		cur.changes = nil
		cur.open = false
		cur.timestamp = now
		g.byCloseKey = append(g.byCloseKey, cur)
		return pos
	}
	if cur.parent == nil {
		return EPOS
	}
	pos := EPOS
	for _, c := range cur.changes {
		pos = minPos(pos, uint64(c.Pos))
	}
	for i := len(cur.changes) - 1; i >= 0; i-- {
		g.list.Undo(cur.changes[i])
	}
	g.current = cur.parent
	return pos
}

// Redo moves current to its most recently active child, applying that
// child's changes, or returns EPOS if current has no children.
func (g *Graph) Redo() uint64 {
	cur := g.current
	if cur.firstChild == nil {
		return EPOS
	}
	target := cur.lastActiveChild
	if target == nil {
		target = cur.firstChild
	}
	pos := EPOS
	for _, c := range target.changes {
		g.list.Do(c)
		pos = minPos(pos, uint64(c.Pos))
	}
	cur.lastActiveChild = target
	g.current = target
	return pos
}

// findLCA returns the lowest common ancestor of a and b.
func findLCA(a, b *Revision) *Revision {
	for a.depth > b.depth {
		a = a.parent
	}
	for b.depth > a.depth {
		b = b.parent
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}

// moveTo relinks the live piece list from g.current to target by
// walking current -> LCA -> target, inverting changes on the way up
// and applying them on the way down. It returns the leftmost affected
// position, or EPOS if target == current.
func (g *Graph) moveTo(target *Revision) uint64 {
	if target == g.current {
		return EPOS
	}
	lca := findLCA(g.current, target)

	var up []*Revision
	for r := g.current; r != lca; r = r.parent {
		up = append(up, r)
	}
	var down []*Revision
	for r := target; r != lca; r = r.parent {
		down = append(down, r)
	}

	pos := EPOS
	for _, r := range up {
		for i := len(r.changes) - 1; i >= 0; i-- {
			c := r.changes[i]
			g.list.Undo(c)
			pos = minPos(pos, uint64(c.Pos))
		}
	}
	for i := len(down) - 1; i >= 0; i-- {
		r := down[i]
		for _, c := range r.changes {
			g.list.Do(c)
			pos = minPos(pos, uint64(c.Pos))
		}
		if r.parent != nil {
			r.parent.lastActiveChild = r
		}
	}
	g.current = target
	return pos
}

// Earlier moves current n steps backward in creation order (by Seq),
// across branches, returning the leftmost affected position or EPOS if
// it would move before the root.
func (g *Graph) Earlier(n int) uint64 {
	if n <= 0 {
		return EPOS
	}
	idx := int(g.current.seq) - n
	if idx < 0 {
		return EPOS
	}
	return g.moveTo(g.bySeq[idx])
}

// Later moves current n steps forward in creation order (by Seq),
// returning the leftmost affected position or EPOS if it would move
// past the newest revision.
func (g *Graph) Later(n int) uint64 {
	if n <= 0 {
		return EPOS
	}
	idx := int(g.current.seq) + n
	if idx >= len(g.bySeq) {
		return EPOS
	}
	return g.moveTo(g.bySeq[idx])
}

// Restore moves current to the revision with the greatest timestamp <=
// t, or the one with the smallest timestamp if none qualifies.
func (g *Graph) Restore(t time.Time) uint64 {
	candidates := append([]*Revision(nil), g.byCloseKey...)
	sortByTimestamp(candidates)

	best := candidates[0]
	for _, r := range candidates {
		if !r.timestamp.After(t) {
			best = r
		}
	}
	return g.moveTo(best)
}

func sortByTimestamp(rs []*Revision) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].timestamp.Before(rs[j-1].timestamp); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// RevisionCount returns the number of live revisions in the graph.
func (g *Graph) RevisionCount() int { return len(g.bySeq) }

// State returns the current revision's timestamp (or, for an open
// current revision that has never been closed, the time it was
// created).
func (g *Graph) State() time.Time { return g.current.timestamp }

// HistoryGet returns the position recorded by the i-th most recent
// change in global creation order (0 = most recent), or EPOS if i is
// out of range.
func (g *Graph) HistoryGet(i int) uint64 {
	if i < 0 || i >= len(g.allChanges) {
		return EPOS
	}
	return uint64(g.allChanges[len(g.allChanges)-1-i].Pos)
}

// Prune removes detached subtrees (no path to the current revision)
// oldest-first until the live revision count is at most maxRevisions.
// It never removes an ancestor or descendant of the current revision.
func (g *Graph) Prune() {
	if g.maxRevisions <= 0 || len(g.bySeq) <= g.maxRevisions {
		return
	}
	onPath := make(map[*Revision]bool)
	for r := g.current; r != nil; r = r.parent {
		onPath[r] = true
	}
	for r := g.current.firstChild; r != nil; r = r.nextSibling {
		markSubtree(r, onPath)
	}

	kept := g.bySeq[:0:0]
	removed := 0
	for _, r := range g.bySeq {
		if onPath[r] || len(g.bySeq)-removed <= g.maxRevisions {
			kept = append(kept, r)
			continue
		}
		detachFromParent(r)
		removed++
	}
	g.bySeq = kept
}

func markSubtree(r *Revision, onPath map[*Revision]bool) {
	onPath[r] = true
	for c := r.firstChild; c != nil; c = c.nextSibling {
		markSubtree(c, onPath)
	}
}

func detachFromParent(r *Revision) {
	if r.parent == nil {
		return
	}
	p := r.parent
	if p.firstChild == r {
		p.firstChild = r.nextSibling
		return
	}
	for c := p.firstChild; c != nil; c = c.nextSibling {
		if c.nextSibling == r {
			c.nextSibling = r.nextSibling
			return
		}
	}
}
