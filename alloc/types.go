package alloc

import (
	"fmt"

	"github.com/joshuapare/kalloc/internal/align"
)

// Addr is an address inside a caller-supplied raw region. It is a plain integer, not
// a Go pointer: the allocators only do bookkeeping and never dereference it.
type Addr uintptr

// Add returns a+n.
func (a Addr) Add(n uintptr) Addr { return a + Addr(n) }

// Sub returns the distance from b up to a. a must not be below b.
func (a Addr) Sub(b Addr) uintptr { return uintptr(a - b) }

// AlignUp rounds a up to a multiple of align (a power of two).
func (a Addr) AlignUp(alignment uintptr) Addr { return Addr(align.Up(uintptr(a), alignment)) }

// AlignDown rounds a down to a multiple of align (a power of two).
func (a Addr) AlignDown(alignment uintptr) Addr { return Addr(align.Down(uintptr(a), alignment)) }

// IsAligned reports whether a is a multiple of align.
func (a Addr) IsAligned(alignment uintptr) bool { return align.IsAligned(uintptr(a), alignment) }

func (a Addr) String() string { return fmt.Sprintf("%#x", uintptr(a)) }

// Layout is the (size, alignment) shape of an allocation request.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// NewLayout validates align and returns the layout.
func NewLayout(size, alignment uintptr) (Layout, error) {
	if !align.IsPow2(alignment) {
		return Layout{}, fmt.Errorf("%w: got %d", ErrBadLayout, alignment)
	}
	return Layout{Size: size, Align: alignment}, nil
}

// MustLayout is NewLayout that panics on a bad alignment. Intended for constants.
func MustLayout(size, alignment uintptr) Layout {
	l, err := NewLayout(size, alignment)
	if err != nil {
		panic(err)
	}
	return l
}

// Alignment returns l.Align, treating the zero value as byte alignment.
func (l Layout) Alignment() uintptr {
	if l.Align == 0 {
		return 1
	}
	return l.Align
}

func (l Layout) String() string {
	return fmt.Sprintf("{size: %#x, align: %d}", l.Size, l.Align)
}
