package heap

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
	"github.com/joshuapare/kalloc/internal/mmap"
)

// ErrOutOfArena indicates a byte view that is not inside the arena.
var ErrOutOfArena = errors.New("heap: range outside arena")

// Arena is raw host memory handed to an allocator as its region. Addresses issued by
// the allocator are real addresses inside the mapping.
type Arena struct {
	mem     []byte
	release func() error
	base    alloc.Addr
}

// NewArena maps size bytes of anonymous memory.
func NewArena(size int) (*Arena, error) {
	mem, release, err := mmap.Anonymous(size)
	if err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	return &Arena{
		mem:     mem,
		release: release,
		base:    alloc.Addr(uintptr(unsafe.Pointer(unsafe.SliceData(mem)))),
	}, nil
}

// Base returns the first address of the arena.
func (a *Arena) Base() alloc.Addr { return a.base }

// Size returns the arena length in bytes.
func (a *Arena) Size() uintptr { return uintptr(len(a.mem)) }

// Bytes returns the n bytes at pos as a slice of the arena.
func (a *Arena) Bytes(pos alloc.Addr, n uintptr) ([]byte, error) {
	if pos < a.base {
		return nil, ErrOutOfArena
	}
	off := pos.Sub(a.base)
	if _, err := align.CheckSpan(off, 1, n, a.Size()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfArena, err)
	}
	return a.mem[off : off+n : off+n], nil
}

// Close unmaps the arena. Byte views must not be used afterwards.
func (a *Arena) Close() error {
	a.mem = nil
	return a.release()
}
