package block

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Kind distinguishes the two flavors of block a Store can own.
type Kind int

const (
	// KindHeap is a growable, append-only buffer backed by a Go slice.
	KindHeap Kind = iota
	// KindMmap is a read-only block mapping an entire backing file.
	KindMmap
)

func (k Kind) String() string {
	if k == KindMmap {
		return "mmap"
	}
	return "heap"
}

const (
	minHeapBlockSize = 4096
	maxHeapBlockSize = 4 << 20
)

// Block owns a contiguous span of bytes. Heap blocks grow by appending;
// once a byte has been handed out by Store.Append it is never moved or
// overwritten. Mmap blocks are fixed at construction and never grow.
type Block struct {
	kind Kind
	data []byte // heap: data[:length] is live, cap(data) is the reserved capacity.
	file *os.File
}

// Kind reports whether this is a heap or mmap block.
func (b *Block) Kind() Kind { return b.kind }

// Len reports the number of stable bytes currently in the block.
func (b *Block) Len() int { return len(b.data) }

// Bytes returns the live byte range of the block. The returned slice
// MUST NOT be mutated by callers; only Store.Append may grow a heap
// block, and it never does so through a previously returned slice.
func (b *Block) Bytes() []byte { return b.data }

// Slice returns data[off:off+n], the bytes a piece referencing this
// block would see.
func (b *Block) Slice(off, n int) []byte {
	return b.data[off : off+n]
}

func (b *Block) unmap() error {
	if b.kind != KindMmap || b.data == nil {
		return nil
	}
	err := unix.Munmap(b.data)
	b.data = nil
	if b.file != nil {
		if cerr := b.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Store owns every block a buffer has allocated: the single optional
// mmap block, plus the chain of heap blocks created by Append. It is
// not safe for concurrent use; the buffer above it serializes access.
type Store struct {
	mmap        *Block
	heapBlocks  []*Block
	nextHeapCap int
}

// NewStore returns an empty store with no mmap block.
func NewStore() *Store {
	return &Store{nextHeapCap: minHeapBlockSize}
}

// LoadMmap maps path read-only and installs it as the store's single
// mmap block. It is an error to call this once the store already holds
// an mmap block. An empty file maps nothing: the call returns a nil
// block and leaves the store without one.
func (s *Store) LoadMmap(path string) (*Block, error) {
	if s.mmap != nil {
		return nil, fmt.Errorf("block: store already has an mmap block")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("block: mmap %s: %w", path, err)
	}
	b := &Block{kind: KindMmap, data: data, file: f}
	s.mmap = b
	return b, nil
}

// Append copies data into a heap block, growing or allocating one as
// needed, and returns the block plus the stable offset/length of the
// newly written range. The returned range is valid for the lifetime of
// the store.
func (s *Store) Append(data []byte) (blk *Block, offset, length int, err error) {
	if len(data) == 0 {
		return nil, 0, 0, nil
	}
	last := s.currentHeapBlock()
	if last != nil && cap(last.data)-len(last.data) >= len(data) {
		offset = len(last.data)
		last.data = append(last.data, data...)
		return last, offset, len(data), nil
	}

	capNeeded := s.nextHeapCap
	if capNeeded < len(data) {
		capNeeded = len(data)
	}
	if capNeeded > maxHeapBlockSize && len(data) <= maxHeapBlockSize {
		capNeeded = maxHeapBlockSize
	}
	buf := make([]byte, 0, capNeeded)
	buf = append(buf, data...)
	nb := &Block{kind: KindHeap, data: buf}
	s.heapBlocks = append(s.heapBlocks, nb)

	s.nextHeapCap *= 2
	if s.nextHeapCap > maxHeapBlockSize {
		s.nextHeapCap = maxHeapBlockSize
	}
	return nb, 0, len(data), nil
}

func (s *Store) currentHeapBlock() *Block {
	if len(s.heapBlocks) == 0 {
		return nil
	}
	return s.heapBlocks[len(s.heapBlocks)-1]
}

// Mmap returns the store's mmap block, or nil if none was loaded.
func (s *Store) Mmap() *Block { return s.mmap }

// Close releases the mmap mapping, if any. Heap blocks are ordinary Go
// memory and need no explicit teardown.
func (s *Store) Close() error {
	if s.mmap == nil {
		return nil
	}
	err := s.mmap.unmap()
	s.mmap = nil
	return err
}
