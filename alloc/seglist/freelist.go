package seglist

import (
	"container/heap"

	"github.com/joshuapare/kalloc/alloc"
)

// freeBlock is a free range tracked out of band.
type freeBlock struct {
	start alloc.Addr
	size  uintptr
	class int
	index int // position in its class heap
}

func (b *freeBlock) end() alloc.Addr { return b.start.Add(b.size) }

// freeBlockHeap implements heap.Interface as a min-heap keyed on (size, start).
// Smallest blocks are at the top; lower addresses win ties so placement is deterministic.
type freeBlockHeap []*freeBlock

func (h *freeBlockHeap) Len() int { return len(*h) }

func (h *freeBlockHeap) Less(i, j int) bool {
	a, b := (*h)[i], (*h)[j]
	if a.size != b.size {
		return a.size < b.size
	}
	return a.start < b.start
}

func (h *freeBlockHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].index = i
	(*h)[j].index = j
}

func (h *freeBlockHeap) Push(x any) {
	b := x.(*freeBlock)
	b.index = len(*h)
	*h = append(*h, b)
}

func (h *freeBlockHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.index = -1
	*h = old[:n-1]
	return b
}

// insertFree adds b to its class heap and the address index.
func (a *Allocator) insertFree(b *freeBlock) {
	b.class = a.table.getSizeClass(b.size)
	heap.Push(&a.classes[b.class], b)
	a.nonEmpty.Set(uint(b.class))
	a.byAddr.Put(uint64(b.start), b)
	a.freeBytes += b.size
}

// removeFree takes b out of its class heap and the address index.
func (a *Allocator) removeFree(b *freeBlock) {
	h := &a.classes[b.class]
	heap.Remove(h, b.index)
	if h.Len() == 0 {
		a.nonEmpty.Clear(uint(b.class))
	}
	a.byAddr.Remove(uint64(b.start))
	a.freeBytes -= b.size
}
