// Package seglist implements a segregated-fit byte allocator.
//
// Free ranges are kept in one min-heap per size class keyed on (size, address), so the
// heap top is the best fit of its class. A bitmap of non-empty classes lets a request
// skip straight to the first class that can hold it, and an address-ordered tree finds
// the neighbours to coalesce with on free.
// All bookkeeping lives outside the managed memory, so the region may be any address
// range, mapped or not.
//
// The allocator is not thread-safe.
package seglist

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// Granule is the minimum block size and alignment of every block.
const Granule = 8

// Stats is a snapshot of allocator counters.
type Stats struct {
	Allocs      uint64
	Frees       uint64
	Failures    uint64
	Splits      uint64
	Coalesces   uint64
	FreeBlocks  int
	LargestFree uintptr
	LiveBlocks  int
}

type region struct {
	start, end alloc.Addr
}

// Allocator is a segregated-fit allocator. It implements alloc.BaseAllocator and
// alloc.ByteAllocator, and supports AddMemory for disjoint regions.
type Allocator struct {
	table *sizeClassTable

	// classes[i] holds free blocks of class i; classes[numClasses] is the large list.
	classes  []freeBlockHeap
	nonEmpty *bitset.BitSet

	// byAddr maps block start -> *freeBlock for free blocks only.
	byAddr *redblacktree.Tree

	// live maps block start -> granted block size.
	live map[alloc.Addr]uintptr

	regions   []region
	total     uintptr
	used      uintptr
	freeBytes uintptr

	stats Stats
}

var _ alloc.Region = (*Allocator)(nil)

// New returns an allocator using config (nil means DefaultConfig). Init must be called
// before use.
func New(config *SizeClassConfig) *Allocator {
	cfg := DefaultConfig
	if config != nil {
		cfg = *config
	}
	table := newSizeClassTable(cfg)
	a := &Allocator{table: table}
	a.reset()
	return a
}

func (a *Allocator) reset() {
	n := a.table.NumClasses() + 1
	a.classes = make([]freeBlockHeap, n)
	a.nonEmpty = bitset.New(uint(n))
	a.byAddr = redblacktree.NewWith(utils.UInt64Comparator)
	a.live = make(map[alloc.Addr]uintptr)
	a.regions = a.regions[:0]
	a.total, a.used, a.freeBytes = 0, 0, 0
	a.stats = Stats{}
}

// Init discards any previous state and manages [start, start+size).
func (a *Allocator) Init(start alloc.Addr, size uintptr) {
	a.reset()
	a.addRegion(start, size)
}

// AddMemory adds a region disjoint from every region already managed.
func (a *Allocator) AddMemory(start alloc.Addr, size uintptr) error {
	end, ok := align.AddOverflowSafe(uintptr(start), size)
	if !ok {
		return alloc.ErrNoMemory
	}
	for _, r := range a.regions {
		if start < r.end && alloc.Addr(end) > r.start {
			return alloc.ErrMemoryOverlap
		}
	}
	a.addRegion(start, size)
	return nil
}

func (a *Allocator) addRegion(start alloc.Addr, size uintptr) {
	lo, ok := align.UpChecked(uintptr(start), Granule)
	if !ok {
		return
	}
	end, ok := align.AddOverflowSafe(uintptr(start), size)
	if !ok {
		end = ^uintptr(0)
	}
	hi := align.Down(end, Granule)
	if hi <= lo {
		return
	}
	a.regions = append(a.regions, region{alloc.Addr(lo), alloc.Addr(hi)})
	a.total += hi - lo
	a.release(alloc.Addr(lo), hi-lo)
}

// Alloc returns the best-fitting free block for layout.
func (a *Allocator) Alloc(layout alloc.Layout) (alloc.Addr, error) {
	size, ok := align.UpChecked(max(layout.Size, Granule), Granule)
	if !ok {
		a.stats.Failures++
		return 0, alloc.ErrNoMemory
	}
	alignment := max(layout.Alignment(), Granule)

	b, pos := a.findFit(size, alignment)
	if b == nil {
		a.stats.Failures++
		return 0, alloc.ErrNoMemory
	}
	a.removeFree(b)

	// Leading padding goes back to the free lists.
	if pad := pos.Sub(b.start); pad > 0 {
		a.insertFree(&freeBlock{start: b.start, size: pad})
		a.stats.Splits++
	}

	// Sizes and starts are granule multiples, so any remainder can hold a block.
	if rem := b.end().Sub(pos.Add(size)); rem > 0 {
		a.insertFree(&freeBlock{start: pos.Add(size), size: rem})
		a.stats.Splits++
	}

	a.live[pos] = size
	a.used += size
	a.stats.Allocs++
	return pos, nil
}

// findFit returns the best-fitting free block for size at alignment, with the aligned
// start. Every block in a class above the request's own class is large enough, so
// without padding the heap minimum of the first such class is the answer; only the
// request's own class, or an over-aligned request, needs a scan.
func (a *Allocator) findFit(size, alignment uintptr) (*freeBlock, alloc.Addr) {
	want := uint(a.table.getSizeClass(size))
	cls, ok := a.nonEmpty.NextSet(want)
	for ok {
		h := a.classes[cls]
		if alignment <= Granule {
			if b := h[0]; cls > want || b.size >= size {
				return b, b.start
			}
		}
		if b, pos := scanClass(h, size, alignment); b != nil {
			return b, pos
		}
		cls, ok = a.nonEmpty.NextSet(cls + 1)
	}
	return nil, 0
}

// scanClass returns the smallest block in h that holds size at alignment.
func scanClass(h freeBlockHeap, size, alignment uintptr) (*freeBlock, alloc.Addr) {
	var best *freeBlock
	var bestPos alloc.Addr
	for _, b := range h {
		pos, fits := fitsIn(b, size, alignment)
		if !fits {
			continue
		}
		if best == nil || b.size < best.size || (b.size == best.size && b.start < best.start) {
			best, bestPos = b, pos
		}
	}
	return best, bestPos
}

func fitsIn(b *freeBlock, size, alignment uintptr) (alloc.Addr, bool) {
	pos, ok := align.UpChecked(uintptr(b.start), alignment)
	if !ok {
		return 0, false
	}
	end, ok := align.AddOverflowSafe(pos, size)
	if !ok || alloc.Addr(end) > b.end() {
		return 0, false
	}
	return alloc.Addr(pos), true
}

// Dealloc returns the block at pos to the free lists, merging it with free neighbours.
// Addresses not issued by Alloc are ignored.
func (a *Allocator) Dealloc(pos alloc.Addr, _ alloc.Layout) {
	size, ok := a.live[pos]
	if !ok {
		return
	}
	delete(a.live, pos)
	a.used -= size
	a.stats.Frees++
	a.release(pos, size)
}

// release inserts [start, start+size) as free, coalescing with adjacent free blocks.
func (a *Allocator) release(start alloc.Addr, size uintptr) {
	nb := &freeBlock{start: start, size: size}

	if node, found := a.byAddr.Floor(uint64(start)); found {
		prev := node.Value.(*freeBlock)
		if prev.end() == start {
			a.removeFree(prev)
			nb.start = prev.start
			nb.size += prev.size
			a.stats.Coalesces++
		}
	}
	if node, found := a.byAddr.Ceiling(uint64(nb.end())); found {
		next := node.Value.(*freeBlock)
		if next.start == nb.end() {
			a.removeFree(next)
			nb.size += next.size
			a.stats.Coalesces++
		}
	}

	a.insertFree(nb)
}

func (a *Allocator) TotalBytes() uintptr { return a.total }

func (a *Allocator) UsedBytes() uintptr { return a.used }

func (a *Allocator) AvailableBytes() uintptr { return a.total - a.used }

// BlockSize returns the granted size of the live block at pos.
func (a *Allocator) BlockSize(pos alloc.Addr) (uintptr, bool) {
	size, ok := a.live[pos]
	return size, ok
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() Stats {
	s := a.stats
	s.FreeBlocks = a.byAddr.Size()
	s.LiveBlocks = len(a.live)
	for _, h := range a.classes {
		for _, b := range h {
			s.LargestFree = max(s.LargestFree, b.size)
		}
	}
	return s
}

// Config returns the size class configuration in use.
func (a *Allocator) Config() SizeClassConfig { return a.table.config }
