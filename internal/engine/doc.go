// Package engine provides the core of a piece-table-based text buffer
// with branching, time-navigable revision history.
//
// Buffer is the main facade, combining a block store, a piece list, a
// revision graph, a mark table, a line index, and a save engine into a
// unified, thread-safe API.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - block: append-only heap blocks and read-only mmap blocks backing piece content
//   - piece: the doubly-linked piece list and its reversible splice (Change) primitive
//   - revision: the branching revision tree and replay-based navigation (undo/redo/earlier/later/restore)
//   - mark: stable position handles that survive edits via piece identity
//   - lineindex: lazily built byte-offset/line-number mapping
//   - iterator: byte, codepoint, and grapheme-granularity cursors
//   - save: atomic-rename and in-place save policies, plus multi-range transactions
//
// # Thread Safety
//
// All Buffer operations are thread-safe. The buffer uses a read-write
// mutex to allow concurrent reads while serializing writes.
//
// # Basic Usage
//
//	b := engine.New()
//	b.Insert(0, []byte("Hello, World!"))
//	text := b.Content() // "Hello, World!"
//	b.Delete(7, 5)
//	b.Insert(7, []byte("Go"))
//	b.Undo()
//
// # Loading Files
//
//	b, err := engine.Load("file.txt")
//
// # Revision History
//
// Buffer maintains a branching tree of revisions rather than a linear
// undo stack:
//
//	b := engine.New()
//	b.Insert(0, []byte("Hello"))
//	b.Snapshot()
//	b.Insert(5, []byte(" World"))
//	pos, _ := b.Undo() // removes " World", returns 5
//	pos, _ = b.Redo()  // restores " World"
//
//	// Branching: undo then make a different edit creates a sibling
//	// revision; the original branch remains reachable via Earlier/Later
//	// or Restore(t).
//
// # Marks
//
// Marks track a position across edits by piece identity rather than
// raw offset:
//
//	m := b.MarkSet(5)
//	b.Insert(0, []byte("xx"))
//	pos := b.MarkGet(m) // 7, moved with the surrounding text
//
// # Saving
//
//	b.Save("file.txt", engine.SaveAuto) // atomic rename, falls back to in-place
//
// # Error Handling
//
// Buffer operations that can fail return *Error, whose Kind lets
// callers branch on failure category (KindBadPosition, KindIOError,
// KindAllocError, KindInvalidArgument, KindUnsupported) without parsing
// strings.
package engine
