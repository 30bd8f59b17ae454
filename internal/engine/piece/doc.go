// Package piece implements the piece list: the doubly-linked sequence
// of immutable (block, offset, length) triples whose concatenation is
// the buffer's current content.
//
// A List never mutates a Piece's block/offset/length once created; it
// only rewires prev/next links, and it records every such rewiring as a
// Change so the revision graph above it can apply or invert the edit
// later. Pieces removed from the live chain by a later edit are not
// discarded: they stay reachable from whichever Change recorded their
// removal, which is exactly what lets undo and mark resolution work
// against revisions other than the current one.
package piece
