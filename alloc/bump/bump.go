// Package bump implements a head/tail bump allocator tuned for a recurring workload of
// short-lived growing buffers.
//
// The region is split into a head zone growing forward (long-lived blocks) and a tail
// zone growing backward (transient blocks released together by ResetTail). Which zone
// serves a request is decided by a cyclic sequence counter, not by the request.
package bump

import (
	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// Cycle is the length of the placement cycle. Within every block of Cycle consecutive
// requests, the 1st, 3rd, ... (1-indexed) go to the tail and the others to the head.
const Cycle = 15

// Zone identifies the end of the region a request is served from.
type Zone uint8

const (
	Head Zone = iota
	Tail
)

func (z Zone) String() string {
	if z == Tail {
		return "tail"
	}
	return "head"
}

// Placement returns the zone serving the k-th request (k starts at 1).
func Placement(k uint64) Zone {
	if (k-1)%Cycle%2 == 0 {
		return Tail
	}
	return Head
}

// Allocator is a double-ended bump allocator. It implements alloc.BaseAllocator and
// alloc.ByteAllocator.
//
// Tail blocks are always carved from the region end, not from the current tail, so a
// new tail block aliases the bytes of the previous one. The workload reallocates a
// buffer whose old content is a prefix of the new one; sharing the range saves the copy.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	start, end alloc.Addr

	head alloc.Addr
	tail alloc.Addr

	// counts is the request sequence number; it is never decremented.
	counts uint64
}

var _ alloc.Region = (*Allocator)(nil)

// New returns an empty allocator. Init must be called before use.
func New() *Allocator {
	return &Allocator{}
}

// Init sets up [start, start+size) as the allocator's region.
func (a *Allocator) Init(start alloc.Addr, size uintptr) {
	a.start = start
	a.end = start.Add(size)
	a.head = start
	a.tail = a.end
}

// AddMemory is unsupported and always returns alloc.ErrNoMemory.
func (a *Allocator) AddMemory(alloc.Addr, uintptr) error {
	return alloc.ErrNoMemory
}

// Alloc advances the sequence counter and serves layout from the zone chosen by
// Placement. The alignment is not applied. The counter advances even when the request
// fails; the cursors do not.
func (a *Allocator) Alloc(layout alloc.Layout) (alloc.Addr, error) {
	a.counts++

	if Placement(a.counts) == Tail {
		return a.allocTail(layout.Size)
	}
	return a.allocHead(layout.Size)
}

func (a *Allocator) allocHead(size uintptr) (alloc.Addr, error) {
	next, ok := align.AddOverflowSafe(uintptr(a.head), size)
	if !ok || alloc.Addr(next) > a.tail {
		return 0, alloc.ErrNoMemory
	}

	a.head = alloc.Addr(next)
	return a.head - alloc.Addr(size), nil
}

func (a *Allocator) allocTail(size uintptr) (alloc.Addr, error) {
	// From end, not from tail: overlapping the previous tail block is intended.
	next, ok := align.SubUnderflowSafe(uintptr(a.end), size)
	if !ok || alloc.Addr(next) < a.head {
		return 0, alloc.ErrNoMemory
	}

	a.tail = alloc.Addr(next)
	return a.tail, nil
}

// Dealloc is a no-op. Tail blocks are reclaimed in bulk by ResetTail and head blocks
// are kept for the lifetime of the region.
func (a *Allocator) Dealloc(alloc.Addr, alloc.Layout) {}

// ResetTail releases the whole tail zone at once.
func (a *Allocator) ResetTail() {
	a.tail = a.end
}

func (a *Allocator) TotalBytes() uintptr { return a.end.Sub(a.start) }

func (a *Allocator) UsedBytes() uintptr {
	return a.head.Sub(a.start) + a.end.Sub(a.tail)
}

func (a *Allocator) AvailableBytes() uintptr { return a.tail.Sub(a.head) }

// Cursors returns the head and tail cursors.
func (a *Allocator) Cursors() (head, tail alloc.Addr) { return a.head, a.tail }

// Count returns the number of Alloc calls made so far.
func (a *Allocator) Count() uint64 { return a.counts }

// Region returns the bounds passed to Init.
func (a *Allocator) Region() (start, end alloc.Addr) { return a.start, a.end }
