package alloc

import "errors"

var (
	// ErrNoMemory indicates the request cannot be satisfied inside the owning region,
	// including overflow or underflow while computing its bounds. AddMemory also returns
	// it on allocators that have no growth mechanism.
	ErrNoMemory = errors.New("alloc: no memory")

	// ErrMemoryOverlap indicates the allocation would cross into the territory of the
	// opposing cursor of a double-ended region.
	ErrMemoryOverlap = errors.New("alloc: memory overlap")

	// ErrBadLayout indicates a zero or non-power-of-two alignment.
	ErrBadLayout = errors.New("alloc: alignment must be a power of two")
)
