package save

import (
	"os"
	"path/filepath"
	"testing"
)

type bytesSource []byte

func (b bytesSource) Size() uint64 { return uint64(len(b)) }
func (b bytesSource) RangeBytes(r Range) []byte { return b[r.Start:r.End] }

func TestSaveAtomicWritesFullContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	src := bytesSource("hello world")

	used, err := Save(path, src, Atomic)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if used != Atomic {
		t.Fatalf("used = %v, want Atomic", used)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content = %q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "out.txt" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestSaveInplaceWritesFullContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	src := bytesSource("abc")

	used, err := Save(path, src, Inplace)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if used != Inplace {
		t.Fatalf("used = %v, want Inplace", used)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "abc" {
		t.Fatalf("content = %q", got)
	}
}

func TestSaveRangesDiscontiguous(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	src := bytesSource("ABCDEFG")

	ranges := []Range{{Start: 0, End: 2}, {Start: 4, End: 6}}
	if _, err := SaveRanges(path, src, ranges, Atomic); err != nil {
		t.Fatalf("SaveRanges: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "ABEF" {
		t.Fatalf("content = %q, want ABEF", got)
	}
}

func TestSaveRangesOverlapRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	src := bytesSource("ABCDEFG")

	ranges := []Range{{Start: 0, End: 4}, {Start: 2, End: 6}}
	if _, err := SaveRanges(path, src, ranges, Atomic); err == nil {
		t.Fatalf("expected an error for overlapping ranges")
	}
}

func TestSaveAtomicOnNonRegularFileFails(t *testing.T) {
	if _, err := os.Stat(os.DevNull); err != nil {
		t.Skip("no /dev/null on this platform")
	}
	src := bytesSource("x")
	if _, err := Save(os.DevNull, src, Atomic); err == nil {
		t.Fatalf("expected atomic save on a non-regular file to fail")
	}
}

func TestTransactionWriteRejectsOutOfOrderRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	tx, err := Begin(path, Atomic)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if n := tx.SaveWriteRange(Range{Start: 4, End: 6}, []byte("EF")); n != 2 {
		t.Fatalf("first write = %d, want 2", n)
	}
	if n := tx.SaveWriteRange(Range{Start: 0, End: 2}, []byte("AB")); n != -1 {
		t.Fatalf("out-of-order write = %d, want -1", n)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "EF" {
		t.Fatalf("content = %q, want EF (the rejected write must not land)", got)
	}
}

func TestTransactionCancelRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	tx, err := Begin(path, Atomic)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	tx.SaveWriteRange(Range{Start: 0, End: 3}, []byte("abc"))
	if err := tx.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("destination should not exist after cancel")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected cancel to remove the temp file, found %v", entries)
	}
}
