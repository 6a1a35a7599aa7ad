// Package early implements the boot-time allocator used before the final heap exists.
//
// One region is consumed from both ends:
//
//	[ bytes-used | available | pages-used ]
//	|            | -->   <-- |            |
//	start       bPos       pPos         end
//
// Byte allocations advance bPos and are only counted, not tracked: once every
// outstanding byte allocation has been freed the byte area is reclaimed in one step.
// Page allocations move pPos down and are never freed.
package early

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// DefaultPageSize is the page size used by NewDefault.
const DefaultPageSize = 0x1000

// ErrBadPageSize is returned by New for a zero or non-power-of-two page size.
var ErrBadPageSize = errors.New("early: page size must be a power of two")

// Allocator is a double-ended early allocator. It implements alloc.BaseAllocator,
// alloc.ByteAllocator and alloc.PageAllocator.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	pageSize uintptr

	start, end alloc.Addr

	// bPos is the byte cursor; it only moves forward until bCount drops to zero.
	bPos alloc.Addr
	// pPos is the page cursor; it only moves backward.
	pPos alloc.Addr
	// bCount is the number of outstanding byte allocations.
	bCount uint
}

var (
	_ alloc.Region        = (*Allocator)(nil)
	_ alloc.PageAllocator = (*Allocator)(nil)
)

// New returns an allocator with a fixed page size. Init must be called before use.
func New(pageSize uintptr) (*Allocator, error) {
	if !align.IsPow2(pageSize) {
		return nil, fmt.Errorf("%w: got %#x", ErrBadPageSize, pageSize)
	}
	return &Allocator{pageSize: pageSize}, nil
}

// NewDefault returns an allocator with 4 KiB pages.
func NewDefault() *Allocator {
	return &Allocator{pageSize: DefaultPageSize}
}

// Init sets up [start, start+size) as the allocator's region.
func (a *Allocator) Init(start alloc.Addr, size uintptr) {
	a.start = start
	a.end = start.Add(size)
	a.bPos = start
	a.pPos = a.end
	a.bCount = 0
}

// AddMemory is unsupported and always returns alloc.ErrNoMemory.
func (a *Allocator) AddMemory(alloc.Addr, uintptr) error {
	return alloc.ErrNoMemory
}

// Alloc reserves layout.Size bytes at the byte cursor, aligned up to layout.Align.
func (a *Allocator) Alloc(layout alloc.Layout) (alloc.Addr, error) {
	allocStart, ok := align.UpChecked(uintptr(a.bPos), layout.Alignment())
	if !ok {
		return 0, alloc.ErrNoMemory
	}
	allocEnd, ok := align.AddOverflowSafe(allocStart, layout.Size)
	if !ok {
		return 0, alloc.ErrNoMemory
	}
	if alloc.Addr(allocEnd) > a.pPos {
		return 0, alloc.ErrMemoryOverlap
	}

	a.bPos = alloc.Addr(allocEnd)
	a.bCount++
	return alloc.Addr(allocStart), nil
}

// Dealloc drops one outstanding byte allocation. pos and layout are ignored: the byte
// area is reset to start only when the last outstanding allocation is released.
func (a *Allocator) Dealloc(alloc.Addr, alloc.Layout) {
	if a.bCount == 0 {
		return
	}
	a.bCount--
	if a.bCount == 0 {
		a.bPos = a.start
	}
}

func (a *Allocator) TotalBytes() uintptr { return a.end.Sub(a.start) }

func (a *Allocator) UsedBytes() uintptr { return a.bPos.Sub(a.start) }

func (a *Allocator) AvailableBytes() uintptr { return a.pPos.Sub(a.bPos) }

// PageSize returns the page size fixed at construction.
func (a *Allocator) PageSize() uintptr { return a.pageSize }

// AllocPages reserves numPages pages below the page cursor. The start is rounded down
// to 1<<alignPow2, so the block may begin below the tight bound.
func (a *Allocator) AllocPages(numPages, alignPow2 uint) (alloc.Addr, error) {
	if alignPow2 >= bits.UintSize {
		return 0, alloc.ErrNoMemory
	}
	size, ok := align.MulOverflowSafe(uintptr(numPages), a.pageSize)
	if !ok {
		return 0, alloc.ErrNoMemory
	}
	allocStart, ok := align.SubUnderflowSafe(uintptr(a.pPos), size)
	if !ok {
		return 0, alloc.ErrNoMemory
	}
	allocStart = align.Down(allocStart, uintptr(1)<<alignPow2)

	if alloc.Addr(allocStart) < a.bPos {
		return 0, alloc.ErrMemoryOverlap
	}

	a.pPos = alloc.Addr(allocStart)
	return alloc.Addr(allocStart), nil
}

// DeallocPages is a no-op: early pages live as long as the kernel.
func (a *Allocator) DeallocPages(alloc.Addr, uint) {}

func (a *Allocator) TotalPages() uintptr { return a.end.Sub(a.start) / a.pageSize }

func (a *Allocator) UsedPages() uintptr { return a.end.Sub(a.pPos) / a.pageSize }

func (a *Allocator) AvailablePages() uintptr { return a.pPos.Sub(a.bPos) / a.pageSize }

// Outstanding returns the number of byte allocations not yet released.
func (a *Allocator) Outstanding() uint { return a.bCount }

// Cursors returns the byte and page cursors.
func (a *Allocator) Cursors() (bPos, pPos alloc.Addr) { return a.bPos, a.pPos }

// Region returns the bounds passed to Init.
func (a *Allocator) Region() (start, end alloc.Addr) { return a.start, a.end }
