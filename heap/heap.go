// Package heap serializes access to a byte allocator so it can back a process-wide
// heap, and provides host memory for the allocators to manage.
package heap

import (
	"os"
	"sync"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/logger"
)

// Runtime debug flag for allocation logging - controlled by KALLOC_LOG_ALLOC env var.
var logAlloc = os.Getenv("KALLOC_LOG_ALLOC") != ""

// Options configures a Heap.
type Options struct {
	// Name identifies the heap in log records.
	Name string

	// OnOOM is called after a failed Alloc, outside the heap lock.
	OnOOM func(layout alloc.Layout, err error)
}

// Stats is a snapshot of heap counters and allocator accounting.
type Stats struct {
	Total     uintptr
	Used      uintptr
	Available uintptr
	Allocs    uint64
	Deallocs  uint64
	Failures  uint64
}

// Heap guards a ByteAllocator with a mutex. The allocators themselves are not
// thread-safe; every call to them goes through here. Heap is itself an
// alloc.ByteAllocator.
type Heap struct {
	mu   sync.Mutex
	a    alloc.ByteAllocator
	opts Options

	allocs, deallocs, failures uint64
}

var _ alloc.ByteAllocator = (*Heap)(nil)

// New wraps a. The allocator must already be initialized.
func New(a alloc.ByteAllocator, opts Options) *Heap {
	if opts.Name == "" {
		opts.Name = "heap"
	}
	return &Heap{a: a, opts: opts}
}

// Alloc serves layout from the underlying allocator.
func (h *Heap) Alloc(layout alloc.Layout) (alloc.Addr, error) {
	h.mu.Lock()
	pos, err := h.a.Alloc(layout)
	if err != nil {
		h.failures++
		avail := h.a.AvailableBytes()
		h.mu.Unlock()

		logger.For("heap", h.opts.Name).Warn("allocation failed",
			logger.Layout(layout.Size, layout.Align),
			"available", avail,
			"err", err)
		if h.opts.OnOOM != nil {
			h.opts.OnOOM(layout, err)
		}
		return 0, err
	}
	h.allocs++
	h.mu.Unlock()

	if logAlloc {
		logger.For("heap", h.opts.Name).Debug("alloc", "pos", pos.String(), logger.Layout(layout.Size, layout.Align))
	}
	return pos, nil
}

// Dealloc releases a block previously returned by Alloc.
func (h *Heap) Dealloc(pos alloc.Addr, layout alloc.Layout) {
	h.mu.Lock()
	h.a.Dealloc(pos, layout)
	h.deallocs++
	h.mu.Unlock()

	if logAlloc {
		logger.For("heap", h.opts.Name).Debug("dealloc", "pos", pos.String(), logger.Layout(layout.Size, layout.Align))
	}
}

// Stats returns a consistent snapshot.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Total:     h.a.TotalBytes(),
		Used:      h.a.UsedBytes(),
		Available: h.a.AvailableBytes(),
		Allocs:    h.allocs,
		Deallocs:  h.deallocs,
		Failures:  h.failures,
	}
}

func (h *Heap) TotalBytes() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.a.TotalBytes()
}

func (h *Heap) UsedBytes() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.a.UsedBytes()
}

func (h *Heap) AvailableBytes() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.a.AvailableBytes()
}

// Do runs fn with exclusive access to the allocator.
func (h *Heap) Do(fn func(a alloc.ByteAllocator)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.a)
}
