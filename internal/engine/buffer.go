// Package engine implements the core of an in-memory text buffer: a
// piece-table representation of a file's contents with a branching,
// time-navigable revision history, stable marks, a line index, and
// multiple save strategies.
//
// Buffer is the facade type composing the block store (package block),
// the piece list (package piece), the revision graph (package
// revision), the mark table (package mark), the line index (package
// lineindex), the iterator (package iterator), and the save engine
// (package save) behind a single mutex-guarded API.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/dshills/textcore/internal/engine/block"
	"github.com/dshills/textcore/internal/engine/iterator"
	"github.com/dshills/textcore/internal/engine/lineindex"
	"github.com/dshills/textcore/internal/engine/mark"
	"github.com/dshills/textcore/internal/engine/piece"
	"github.com/dshills/textcore/internal/engine/revision"
	"github.com/dshills/textcore/internal/engine/save"
)

// Pos addresses a byte offset into a buffer's content.
type Pos = uint64

// EPos is the sentinel returned by position-valued operations on
// failure or no-op.
const EPos Pos = ^uint64(0)

// Mark re-exports the mark table's opaque handle type.
type Mark = mark.Mark

// EMark is the sentinel mark value, never returned by MarkSet.
var EMark = mark.EMark

// NewlineType re-exports the line index's terminator enum.
type NewlineType = lineindex.NewlineType

// Newline styles a buffer can detect or be forced to use.
const (
	LF   = lineindex.LF
	CRLF = lineindex.CRLF
)

// SaveMethod re-exports the save engine's policy enum.
type SaveMethod = save.Method

// Save policies available to Save, SaveRange, and SaveBegin.
const (
	SaveAuto    = save.Auto
	SaveAtomic  = save.Atomic
	SaveInplace = save.Inplace
)

// Range is a half-open byte interval [Start, End) in buffer coordinates.
type Range struct {
	Start Pos
	End   Pos
}

// Len returns the range's length.
func (r Range) Len() Pos { return r.End - r.Start }

// Iterator re-exports the cursor type returned by NewIterator.
type Iterator = iterator.Iterator

// BufferStat summarizes a buffer's current state.
type BufferStat struct {
	Size      Pos
	Modified  bool
	Newline   NewlineType
	Revisions int
}

// FaultClass classifies a SIGBUS address for ClassifyFault.
type FaultClass int

const (
	// FaultUnrelated means addr does not fall within any mmap region
	// this buffer owns.
	FaultUnrelated FaultClass = iota
	// FaultMmapRegion means addr falls within this buffer's mmap
	// region; the host should treat the backing file as gone and
	// reload rather than touch the mapping again.
	FaultMmapRegion
)

// Buffer is a persistent, piece-table-based text buffer with branching
// undo history. An internal RWMutex guards it: concurrent readers may
// run together, and writers are serialized one at a time.
type Buffer struct {
	mu sync.RWMutex

	store *block.Store
	list  *piece.List
	graph *revision.Graph
	marks *mark.Table
	lines *lineindex.Index

	log   *zap.Logger
	clock func() time.Time

	maxRevisions  int
	forcedNewline *NewlineType
	readOnly      bool

	savedRevision *revision.Revision

	lastAppendPiece    *piece.Piece
	lastAppendBlock    *block.Block
	lastAppendBlockOff int
	lastAppendEnd      Pos
}

// New returns an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		store: block.NewStore(),
		list:  piece.NewList(),
		log:   zap.NewNop(),
		clock: time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	b.graph = revision.New(b.list, b.clock)
	b.graph.SetMaxRevisions(b.maxRevisions)
	nt := lineindex.LF
	if b.forcedNewline != nil {
		nt = *b.forcedNewline
	}
	b.lines = lineindex.New(nt)
	b.marks = mark.NewTable()
	b.savedRevision = b.graph.Current()
	return b
}

// Load maps path read-only (if it exists and is non-empty) and returns
// a buffer whose initial piece list spans the whole file. A missing or
// empty file yields an empty buffer.
func Load(path string, opts ...Option) (*Buffer, error) {
	b := New(opts...)
	blk, err := b.store.LoadMmap(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return b, nil
		}
		return nil, newError("load", KindIOError, err)
	}

	size := 0
	if blk != nil {
		size = blk.Len()
		b.list = piece.NewListFromBlock(blk)
		b.graph = revision.New(b.list, b.clock)
		b.graph.SetMaxRevisions(b.maxRevisions)
		b.savedRevision = b.graph.Current()
		if b.forcedNewline == nil {
			b.lines.SetNewlineType(lineindex.Detect(blk.Bytes()))
		}
	}
	b.log.Info("buffer loaded", zap.String("path", path), zap.Int("size", size))
	return b, nil
}

// Size returns the current content length in bytes.
func (b *Buffer) Size() Pos {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Pos(b.list.Size())
}

// Modified reports whether the current revision differs from the one
// most recently saved.
func (b *Buffer) Modified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.Modified(b.savedRevision)
}

// Stat summarizes the buffer's current state.
func (b *Buffer) Stat() BufferStat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BufferStat{
		Size:      Pos(b.list.Size()),
		Modified:  b.graph.Modified(b.savedRevision),
		Newline:   b.lines.NewlineType(),
		Revisions: b.graph.RevisionCount(),
	}
}

func (b *Buffer) resetCoalesce() {
	b.lastAppendPiece = nil
	b.lastAppendBlock = nil
	b.lastAppendBlockOff = 0
}

// Insert splices data into the buffer at pos, coalescing with the
// immediately preceding insert when they are contiguous appends to the
// same heap block at the same cursor position.
func (b *Buffer) Insert(pos Pos, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return newError("insert", KindUnsupported, errReadOnly)
	}
	if pos > Pos(b.list.Size()) {
		return newError("insert", KindBadPosition, nil)
	}
	if len(data) == 0 {
		return nil
	}

	blk, off, n, err := b.store.Append(data)
	if err != nil {
		return newError("insert", KindAllocError, err)
	}

	if prev := b.graph.LastChange(); prev != nil && b.lastAppendPiece != nil &&
		pos == b.lastAppendEnd && blk == b.lastAppendBlock && off == b.lastAppendBlockOff {
		grown, c := b.list.CoalesceExtend(prev, b.lastAppendPiece, n)
		b.graph.ReplaceLastChange(c)
		b.lastAppendPiece = grown
		b.lastAppendBlockOff = off + n
		b.lastAppendEnd += Pos(n)
		b.lines.Invalidate(b.list, pos)
		return nil
	}

	c, newP := b.list.Insert(int(pos), blk, off, n)
	b.graph.RecordChange(c)
	b.lastAppendPiece = newP
	b.lastAppendBlock = blk
	b.lastAppendBlockOff = off + n
	b.lastAppendEnd = pos + Pos(n)
	b.lines.Invalidate(b.list, pos)
	return nil
}

// Delete removes length bytes starting at pos. length == 0 is a no-op.
func (b *Buffer) Delete(pos, length Pos) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return newError("delete", KindUnsupported, errReadOnly)
	}
	if pos > Pos(b.list.Size()) || pos+length > Pos(b.list.Size()) {
		return newError("delete", KindBadPosition, nil)
	}
	if length == 0 {
		return nil
	}
	b.resetCoalesce()
	c := b.list.Delete(int(pos), int(length))
	b.graph.RecordChange(c)
	b.lines.Invalidate(b.list, pos)
	return nil
}

// DeleteRange removes the bytes in r.
func (b *Buffer) DeleteRange(r Range) error {
	if r.End < r.Start {
		return newError("delete_range", KindInvalidArgument, nil)
	}
	return b.Delete(r.Start, r.Len())
}

// InsertNewline inserts this buffer's detected/forced newline sequence
// at pos.
func (b *Buffer) InsertNewline(pos Pos) error {
	b.mu.RLock()
	seq := b.lines.NewlineType().Sequence()
	b.mu.RUnlock()
	return b.Insert(pos, seq)
}

// Appendf formats args per format and inserts the result at pos; it
// reduces to a single Insert.
func (b *Buffer) Appendf(pos Pos, format string, args ...any) error {
	return b.Insert(pos, []byte(fmt.Sprintf(format, args...)))
}

// Snapshot closes the current revision (if it has pending changes) and
// makes a fresh child current.
func (b *Buffer) Snapshot() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCoalesce()
	b.graph.Snapshot()
	if b.maxRevisions > 0 {
		b.graph.Prune()
	}
}

// Undo reverts the current revision's pending edits, or moves to the
// parent revision, returning the leftmost affected position or EPos.
func (b *Buffer) Undo() (Pos, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return EPos, newError("undo", KindUnsupported, errReadOnly)
	}
	b.resetCoalesce()
	pos := b.graph.Undo()
	b.lines.Invalidate(b.list, 0)
	return Pos(pos), nil
}

// Redo moves to the most recently active child revision, returning the
// leftmost affected position or EPos.
func (b *Buffer) Redo() (Pos, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return EPos, newError("redo", KindUnsupported, errReadOnly)
	}
	b.resetCoalesce()
	pos := b.graph.Redo()
	b.lines.Invalidate(b.list, 0)
	return Pos(pos), nil
}

// Earlier moves n revisions backward in creation order.
func (b *Buffer) Earlier(n int) (Pos, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCoalesce()
	pos := b.graph.Earlier(n)
	b.lines.Invalidate(b.list, 0)
	return Pos(pos), nil
}

// Later moves n revisions forward in creation order.
func (b *Buffer) Later(n int) (Pos, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCoalesce()
	pos := b.graph.Later(n)
	b.lines.Invalidate(b.list, 0)
	return Pos(pos), nil
}

// Restore moves current to the revision closest to (at or before) t.
func (b *Buffer) Restore(t time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCoalesce()
	b.graph.Restore(t)
	b.lines.Invalidate(b.list, 0)
	return nil
}

// State returns the current revision's timestamp.
func (b *Buffer) State() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.State()
}

// PosByLineno returns the byte offset of the start of line n (1-based).
// It takes the write lock because the lookup fills the line cache.
func (b *Buffer) PosByLineno(n int) Pos {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines.PosByLineno(b.list, n)
}

// LinenoByPos returns the 1-based line number containing pos. It takes
// the write lock because the lookup fills the line cache.
func (b *Buffer) LinenoByPos(pos Pos) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines.LinenoByPos(b.list, pos)
}

// ByteGet returns the byte at pos.
func (b *Buffer) ByteGet(pos Pos) (byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	it := iterator.New(b.list, pos)
	return it.ByteGet()
}

// BytesGet returns the n bytes starting at pos.
func (b *Buffer) BytesGet(pos, n Pos) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.Range(int(pos), int(pos+n))
}

// NewIterator returns a cursor positioned at pos. The iterator is
// invalidated by any subsequent mutation of the buffer.
func (b *Buffer) NewIterator(pos Pos) *Iterator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return iterator.New(b.list, pos)
}

// MarkSet records a stable mark at pos.
func (b *Buffer) MarkSet(pos Pos) Mark {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marks.Set(b.list, int(pos))
}

// MarkGet resolves m against the current revision's piece list.
func (b *Buffer) MarkGet(m Mark) Pos {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.marks.Get(b.list, m)
}

// HistoryGet returns the position recorded by the i-th most recent
// change in global creation order (0 = most recent).
func (b *Buffer) HistoryGet(i int) Pos {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.HistoryGet(i)
}

// NewlineType returns the buffer's detected or forced newline style.
func (b *Buffer) NewlineType() NewlineType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lines.NewlineType()
}

// listSource adapts the piece list to save.Source.
type listSource struct{ list *piece.List }

func (s listSource) Size() uint64 { return uint64(s.list.Size()) }
func (s listSource) RangeBytes(r save.Range) []byte {
	return s.list.Range(int(r.Start), int(r.End))
}

// Save writes the whole buffer content to path using method. On
// success it takes an implicit snapshot and clears Modified.
func (b *Buffer) Save(path string, method SaveMethod) error {
	return b.SaveRange(path, []Range{{Start: 0, End: b.Size()}}, method)
}

// SaveRange writes the given ranges, in ascending non-overlapping
// order, to path.
func (b *Buffer) SaveRange(path string, ranges []Range, method SaveMethod) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var prevEnd Pos
	for i, r := range ranges {
		if r.End < r.Start || (i > 0 && r.Start < prevEnd) {
			return newError("save", KindInvalidArgument, nil)
		}
		prevEnd = r.End
	}
	if method == SaveAtomic {
		if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
			return newError("save", KindUnsupported, nil)
		}
	}

	saveRanges := make([]save.Range, len(ranges))
	for i, r := range ranges {
		saveRanges[i] = save.Range{Start: uint64(r.Start), End: uint64(r.End)}
	}
	used, err := save.SaveRanges(path, listSource{b.list}, saveRanges, method)
	if err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return newError("save", KindIOError, err)
	}
	b.log.Info("buffer saved", zap.String("path", path), zap.String("method", used.String()))
	b.resetCoalesce()
	b.graph.Snapshot()
	b.savedRevision = b.graph.Current()
	return nil
}

// SaveTransaction implements the multi-range save_begin/
// save_write_range/save_commit/save_cancel sequence.
type SaveTransaction struct {
	tx *save.Transaction
}

// SaveBegin opens path (or a sibling temp file for Atomic/Auto) and
// returns a handle for incremental range writes.
func (b *Buffer) SaveBegin(path string, method SaveMethod) (*SaveTransaction, error) {
	if method == SaveAtomic {
		if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
			return nil, newError("save_begin", KindUnsupported, nil)
		}
	}
	tx, err := save.Begin(path, method)
	if err != nil {
		return nil, newError("save_begin", KindIOError, err)
	}
	return &SaveTransaction{tx: tx}, nil
}

// SaveWriteRange writes r's bytes, read from the buffer, at the next
// position in the destination. It returns the number of bytes written,
// or -1 if r does not extend the previously written range in ascending,
// non-overlapping order.
func (b *Buffer) SaveWriteRange(t *SaveTransaction, r Range) int {
	b.mu.RLock()
	data := b.list.Range(int(r.Start), int(r.End))
	b.mu.RUnlock()
	return t.tx.SaveWriteRange(save.Range{Start: uint64(r.Start), End: uint64(r.End)}, data)
}

// SaveCommit finalizes t and, on success, takes an implicit snapshot
// and clears Modified.
func (b *Buffer) SaveCommit(t *SaveTransaction) error {
	if err := t.tx.Commit(); err != nil {
		return newError("save_commit", KindIOError, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCoalesce()
	b.graph.Snapshot()
	b.savedRevision = b.graph.Current()
	return nil
}

// SaveCancel aborts t without affecting Modified.
func (b *Buffer) SaveCancel(t *SaveTransaction) error {
	if err := t.tx.Cancel(); err != nil {
		return newError("save_cancel", KindIOError, err)
	}
	return nil
}

// WriteTo writes the entire buffer content to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := w.Write(b.list.Bytes())
	if err != nil {
		return int64(n), newError("write", KindIOError, err)
	}
	return int64(n), nil
}

// WriteRangeTo writes r's content to w.
func (b *Buffer) WriteRangeTo(w io.Writer, r Range) (int64, error) {
	b.mu.RLock()
	data := b.list.Range(int(r.Start), int(r.End))
	b.mu.RUnlock()
	n, err := w.Write(data)
	if err != nil {
		return int64(n), newError("write_range", KindIOError, err)
	}
	return int64(n), nil
}

// ClassifyFault classifies a SIGBUS fault address against this
// buffer's mmap region, if any. It is informational only; recovery
// (typically reloading from a fresh path) is the host editor's
// responsibility.
func (b *Buffer) ClassifyFault(addr uintptr) FaultClass {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blk := b.store.Mmap()
	if blk == nil {
		return FaultUnrelated
	}
	data := blk.Bytes()
	if len(data) == 0 {
		return FaultUnrelated
	}
	start := uintptr(unsafe.Pointer(&data[0]))
	end := start + uintptr(len(data))
	if addr >= start && addr < end {
		b.log.Warn("sigbus in mmap region", zap.Uint64("addr", uint64(addr)))
		return FaultMmapRegion
	}
	return FaultUnrelated
}

// Close releases the buffer's mmap region, if any.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Close()
}

// Content returns the buffer's entire current content. Intended for
// small buffers and tests.
func (b *Buffer) Content() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.Bytes()
}

// Equal reports whether the buffer's current content equals want, used
// by tests checking byte-identical round trips.
func (b *Buffer) Equal(want []byte) bool {
	return bytes.Equal(b.Content(), want)
}

var errReadOnly = errors.New("buffer is read-only")
