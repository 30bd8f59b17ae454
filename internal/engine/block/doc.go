// Package block implements the block store: the owner of the raw byte
// buffers that back every piece in a buffer's piece list.
//
// A store holds at most one read-only mmap block, created once at load
// time from a backing file, plus any number of append-only heap blocks
// that absorb newly inserted bytes. Once Append returns a range, that
// range is stable for the lifetime of the store: blocks are never
// rewritten or moved, only grown by appending past their current
// length. This is what lets a Piece reference a byte range by value and
// remain valid forever, even after the piece list it belonged to has
// been replaced by later edits.
package block
