package mark

import (
	"testing"

	"github.com/dshills/textcore/internal/engine/block"
	"github.com/dshills/textcore/internal/engine/piece"
)

func buildList(t *testing.T, s *block.Store, data string) *piece.List {
	t.Helper()
	l := piece.NewList()
	blk, off, n, err := s.Append([]byte(data))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Insert(0, blk, off, n)
	return l
}

func TestMarkSetGetSurvivesPriorEdit(t *testing.T) {
	s := block.NewStore()
	l := buildList(t, s, "abcdef")
	tbl := NewTable()

	m := tbl.Set(l, 3)
	if m == EMark {
		t.Fatalf("Set returned EMark")
	}

	blk, off, n, _ := s.Append([]byte("XX"))
	l.Insert(0, blk, off, n)

	if got := tbl.Get(l, m); got != 5 {
		t.Fatalf("Get after prior insert = %d, want 5", got)
	}
}

func TestMarkGetReturnsEPOSWhenPieceGone(t *testing.T) {
	s := block.NewStore()
	l := buildList(t, s, "abcdef")
	tbl := NewTable()

	m := tbl.Set(l, 3)
	l.Delete(0, 6)

	if got := tbl.Get(l, m); got != EPOS {
		t.Fatalf("Get after piece deleted = %d, want EPOS", got)
	}
}

func TestMarkBecomesValidAgainAfterUndo(t *testing.T) {
	s := block.NewStore()
	l := buildList(t, s, "abcdef")
	tbl := NewTable()

	m := tbl.Set(l, 3)
	c := l.Delete(0, 6)
	if got := tbl.Get(l, m); got != EPOS {
		t.Fatalf("expected EPOS immediately after delete")
	}

	l.Undo(c)
	if got := tbl.Get(l, m); got != 3 {
		t.Fatalf("Get after undo = %d, want 3", got)
	}
}

func TestEMarkNeverValid(t *testing.T) {
	s := block.NewStore()
	l := buildList(t, s, "abc")
	tbl := NewTable()
	if got := tbl.Get(l, EMark); got != EPOS {
		t.Fatalf("Get(EMark) = %d, want EPOS", got)
	}
}

func TestMarkAtEndOfBuffer(t *testing.T) {
	s := block.NewStore()
	l := buildList(t, s, "abc")
	tbl := NewTable()

	m := tbl.Set(l, 3)
	blk, off, n, _ := s.Append([]byte("d"))
	l.Insert(3, blk, off, n)

	if got := tbl.Get(l, m); got != 3 {
		t.Fatalf("end-of-buffer mark after append = %d, want 3", got)
	}
}
