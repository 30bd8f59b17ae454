// Package lineindex maps between byte position and 1-based line number
// over a piece list, with a lazily built and cached line-start vector.
package lineindex

import (
	"github.com/dshills/textcore/internal/engine/piece"
)

// NewlineType is the line terminator detected (or forced) for a buffer.
type NewlineType int

const (
	// LF is a single '\n' terminator.
	LF NewlineType = iota + 1
	// CRLF is a "\r\n" terminator.
	CRLF
)

// Sequence returns the literal bytes this newline type inserts.
func (n NewlineType) Sequence() []byte {
	if n == CRLF {
		return []byte("\r\n")
	}
	return []byte("\n")
}

func (n NewlineType) String() string {
	if n == CRLF {
		return "crlf"
	}
	return "lf"
}

// Detect scans the first newline in data, defaulting to LF when none is
// found (including for empty data), per the load-time heuristic.
func Detect(data []byte) NewlineType {
	for i, b := range data {
		if b == '\n' {
			if i > 0 && data[i-1] == '\r' {
				return CRLF
			}
			return LF
		}
	}
	return LF
}

// EPOS is the sentinel returned by position-valued lookups on failure.
const EPOS = ^uint64(0)

// Index caches line-start byte offsets for a piece list. It must be
// invalidated (via Invalidate) whenever an edit touches the buffer at
// or before the lowest previously cached line start.
type Index struct {
	newline NewlineType
	// starts[i] is the byte offset of line i+2 (line 1 always starts at
	// 0 and is never stored). fullyBuilt reports whether starts covers
	// every line of the list.
	starts       []uint64
	fullyBuilt   bool
}

// New returns an index for the given newline type with an empty cache.
func New(nt NewlineType) *Index {
	return &Index{newline: nt}
}

// NewlineType reports the terminator this index assumes.
func (ix *Index) NewlineType() NewlineType { return ix.newline }

// SetNewlineType overrides the detected terminator.
func (ix *Index) SetNewlineType(nt NewlineType) { ix.newline = nt }

// Invalidate drops any cached line starts at or after the line
// containing fromPos, forcing a rescan on the next lookup. Edits at or
// before a cached line start invalidate everything from there on.
func (ix *Index) Invalidate(list *piece.List, fromPos uint64) {
	if len(ix.starts) == 0 {
		ix.fullyBuilt = false
		return
	}
	// Binary search for the first cached start >= fromPos; truncate from
	// the line before it, since that line's extent may have changed.
	lo, hi := 0, len(ix.starts)
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.starts[mid] >= fromPos {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo > 0 {
		lo--
	}
	ix.starts = ix.starts[:lo]
	ix.fullyBuilt = false
}

func (ix *Index) ensureThrough(list *piece.List, n int) {
	if ix.fullyBuilt {
		return
	}
	size := list.Size()
	pos := 0
	if len(ix.starts) > 0 {
		pos = int(ix.starts[len(ix.starts)-1])
	}
	seq := ix.newline.Sequence()
	content := list.Range(pos, size)
	i := 0
	for i < len(content) && (n < 0 || len(ix.starts) < n) {
		idx := indexOf(content[i:], seq)
		if idx < 0 {
			break
		}
		lineStart := pos + i + idx + len(seq)
		ix.starts = append(ix.starts, uint64(lineStart))
		i += idx + len(seq)
	}
	if i >= len(content) {
		ix.fullyBuilt = true
	}
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// PosByLineno returns the byte offset of the start of line n (1-based),
// or EPOS if the buffer has fewer than n lines.
func (ix *Index) PosByLineno(list *piece.List, n int) uint64 {
	if n < 1 {
		return EPOS
	}
	if n == 1 {
		return 0
	}
	ix.ensureThrough(list, n-1)
	if n-2 >= len(ix.starts) {
		return EPOS
	}
	return ix.starts[n-2]
}

// LinenoByPos returns the 1-based line number containing pos.
func (ix *Index) LinenoByPos(list *piece.List, pos uint64) int {
	ix.ensureThrough(list, -1)
	// starts is ascending; line number is 1 + count of starts <= pos.
	lo, hi := 0, len(ix.starts)
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.starts[mid] <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return 1 + lo
}
