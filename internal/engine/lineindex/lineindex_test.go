package lineindex

import (
	"testing"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/textcore/internal/engine/block"
	"github.com/dshills/textcore/internal/engine/piece"
)

func buildList(t *testing.T, data string) *piece.List {
	t.Helper()
	s := block.NewStore()
	l := piece.NewList()
	blk, off, n, err := s.Append([]byte(data))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Insert(0, blk, off, n)
	return l
}

func TestDetectLF(t *testing.T) {
	if got := Detect([]byte("line1\nline2\n")); got != LF {
		t.Fatalf("Detect = %v, want LF", got)
	}
}

func TestDetectCRLF(t *testing.T) {
	if got := Detect([]byte("line1\r\nline2\r\n")); got != CRLF {
		t.Fatalf("Detect = %v, want CRLF", got)
	}
}

func TestDetectDefaultsToLFWhenAbsent(t *testing.T) {
	if got := Detect(nil); got != LF {
		t.Fatalf("Detect(nil) = %v, want LF", got)
	}
	if got := Detect([]byte("no newline here")); got != LF {
		t.Fatalf("Detect = %v, want LF", got)
	}
}

func TestPosByLinenoAndLinenoByPosRoundTrip(t *testing.T) {
	content := "line1\nline2\nline3\n"
	// The line index works on raw bytes. The fixture is ASCII and so a
	// fixed point of NFC; this check confirms that normalizing it would
	// leave the bytes, and the offsets asserted below, unchanged.
	if normalized := norm.NFC.String(content); normalized != content {
		t.Fatalf("fixture is not NFC-normalized: %q != %q", content, normalized)
	}
	l := buildList(t, content)
	ix := New(LF)

	if got := ix.PosByLineno(l, 1); got != 0 {
		t.Fatalf("PosByLineno(1) = %d, want 0", got)
	}
	if got := ix.PosByLineno(l, 2); got != 6 {
		t.Fatalf("PosByLineno(2) = %d, want 6", got)
	}
	if got := ix.PosByLineno(l, 3); got != 12 {
		t.Fatalf("PosByLineno(3) = %d, want 12", got)
	}

	for n := 1; n <= 3; n++ {
		pos := ix.PosByLineno(l, n)
		if got := ix.LinenoByPos(l, pos); got != n {
			t.Fatalf("LinenoByPos(PosByLineno(%d)=%d) = %d, want %d", n, pos, got, n)
		}
	}
}

func TestPosByLinenoOutOfRange(t *testing.T) {
	l := buildList(t, "onlyline\n")
	ix := New(LF)
	if got := ix.PosByLineno(l, 5); got != EPOS {
		t.Fatalf("PosByLineno(5) = %d, want EPOS", got)
	}
}

func TestInvalidateForcesRescanAfterEdit(t *testing.T) {
	l := buildList(t, "aaaa\nbbbb\n")
	ix := New(LF)
	if got := ix.PosByLineno(l, 2); got != 5 {
		t.Fatalf("PosByLineno(2) = %d, want 5", got)
	}

	s := block.NewStore()
	blk, off, n, _ := s.Append([]byte("XY"))
	l.Insert(0, blk, off, n)
	ix.Invalidate(l, 0)

	if got := ix.PosByLineno(l, 2); got != 7 {
		t.Fatalf("PosByLineno(2) after insert = %d, want 7", got)
	}
}
