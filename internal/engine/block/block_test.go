package block

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreAppendGrowsAndReusesBlock(t *testing.T) {
	s := NewStore()

	blk1, off1, n1, err := s.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if off1 != 0 || n1 != 5 {
		t.Fatalf("got off=%d n=%d, want off=0 n=5", off1, n1)
	}

	blk2, off2, n2, err := s.Append([]byte(" world"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if blk2 != blk1 {
		t.Fatalf("second append should reuse the same heap block while capacity allows")
	}
	if off2 != 5 || n2 != 6 {
		t.Fatalf("got off=%d n=%d, want off=5 n=6", off2, n2)
	}
	if got := string(blk1.Bytes()); got != "hello world" {
		t.Fatalf("block bytes = %q", got)
	}
}

func TestStoreAppendEmptyIsNoop(t *testing.T) {
	s := NewStore()
	blk, off, n, err := s.Append(nil)
	if err != nil || blk != nil || off != 0 || n != 0 {
		t.Fatalf("append(nil) = (%v,%d,%d,%v), want (nil,0,0,nil)", blk, off, n, err)
	}
}

func TestStoreAppendAllocatesNewBlockWhenFull(t *testing.T) {
	s := &Store{nextHeapCap: 4}
	blk1, _, _, _ := s.Append([]byte("ab"))
	blk2, _, _, _ := s.Append([]byte("cd"))
	if blk1 != blk2 {
		t.Fatalf("expected reuse within capacity")
	}
	blk3, off3, n3, _ := s.Append([]byte("ef"))
	if blk3 == blk1 {
		t.Fatalf("expected a new block once the first is full")
	}
	if off3 != 0 || n3 != 2 {
		t.Fatalf("got off=%d n=%d, want off=0 n=2", off3, n3)
	}
}

func TestLoadMmapEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore()
	blk, err := s.LoadMmap(path)
	if err != nil {
		t.Fatalf("LoadMmap: %v", err)
	}
	if blk != nil {
		t.Fatalf("expected nil block for an empty file")
	}
}

func TestLoadMmapReadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content.txt")
	want := "hello, mmap\n"
	if err := os.WriteFile(path, []byte(want), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore()
	blk, err := s.LoadMmap(path)
	if err != nil {
		t.Fatalf("LoadMmap: %v", err)
	}
	if got := string(blk.Bytes()); got != want {
		t.Fatalf("block content = %q, want %q", got, want)
	}
	if blk.Kind() != KindMmap {
		t.Fatalf("kind = %v, want KindMmap", blk.Kind())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLoadMmapTwiceIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	os.WriteFile(path, []byte("x"), 0644)
	s := NewStore()
	if _, err := s.LoadMmap(path); err != nil {
		t.Fatalf("first LoadMmap: %v", err)
	}
	if _, err := s.LoadMmap(path); err == nil {
		t.Fatalf("expected error on second LoadMmap")
	}
}
