// Package alloc defines the contracts shared by the kalloc allocators.
//
// # Overview
//
// kalloc carves byte- and page-granularity memory out of one raw address range handed
// over at boot, before any general-purpose heap exists. The allocators only keep
// bookkeeping: addresses are plain integers (Addr) and the managed memory is never read
// or written.
//
// # Capabilities
//
// Each capability is its own interface so a composite allocator can hold any
// implementation for a sub-pool:
//
//   - BaseAllocator: Init(start, size) once, AddMemory(start, size)
//   - ByteAllocator: Alloc(layout), Dealloc(pos, layout), byte accounting
//   - PageAllocator: AllocPages(n, alignPow2), DeallocPages, page accounting
//
// # Implementations
//
//   - alloc/early: double-ended boot allocator, bytes forward and pages backward
//   - alloc/bump: head/tail bump allocator with cyclic placement and bulk tail reset
//   - alloc/seglist: segregated-fit allocator used for the metadata pool
//   - alloc/composite: metadata/data split routed by alignment
//
// # Usage Example
//
//	a := early.NewDefault()
//	a.Init(0x8000_0000, 16<<20)
//
//	pos, err := a.Alloc(alloc.MustLayout(64, 8))
//	if err != nil {
//	    return err // alloc.ErrNoMemory or alloc.ErrMemoryOverlap
//	}
//	defer a.Dealloc(pos, alloc.MustLayout(64, 8))
//
//	pages, err := a.AllocPages(4, 12)
//
// # Errors
//
// Only two failure kinds exist: ErrNoMemory (the region cannot hold the request, or
// computing its bounds overflowed) and ErrMemoryOverlap (the request would cross the
// opposing cursor). Both are returned, never panicked.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must serialize access externally,
// for example through heap.Heap.
package alloc
