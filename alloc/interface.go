package alloc

// BaseAllocator is the lifecycle capability shared by every allocator.
type BaseAllocator interface {
	// Init hands the allocator the region [start, start+size). It is called exactly once.
	Init(start Addr, size uintptr)

	// AddMemory extends the allocator with a disjoint region.
	// Allocators without a growth mechanism return ErrNoMemory.
	AddMemory(start Addr, size uintptr) error
}

// ByteAllocator serves byte-granularity requests.
type ByteAllocator interface {
	// Alloc returns the start of a block satisfying layout, or ErrNoMemory /
	// ErrMemoryOverlap. Failure never mutates the allocator's cursors.
	Alloc(layout Layout) (Addr, error)

	// Dealloc releases a block previously returned by Alloc. Addresses that were never
	// issued are not validated.
	Dealloc(pos Addr, layout Layout)

	TotalBytes() uintptr
	UsedBytes() uintptr
	AvailableBytes() uintptr
}

// PageAllocator serves page-granularity requests. PageSize is fixed for the lifetime of
// the allocator.
type PageAllocator interface {
	PageSize() uintptr

	// AllocPages returns numPages contiguous pages whose start is aligned to 1<<alignPow2.
	AllocPages(numPages, alignPow2 uint) (Addr, error)

	DeallocPages(pos Addr, numPages uint)

	TotalPages() uintptr
	UsedPages() uintptr
	AvailablePages() uintptr
}

// Region is the lifecycle and byte capabilities together; this is what a heap or a
// composite allocator holds for a sub-pool.
type Region interface {
	BaseAllocator
	ByteAllocator
}
