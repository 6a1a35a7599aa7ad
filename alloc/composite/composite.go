// Package composite implements the general heap byte allocator: a fixed metadata pool
// on a segregated-fit allocator plus a data pool on the head/tail bump allocator.
//
//	[ metadata (MetaSize) | data: head -->        <-- tail ]
//	start          start+MetaSize                  start+MaxSize
//
// Requests are routed by alignment. Containers upstream allocate their fixed-shape
// records with alignment MetaAlign and their element buffers with a larger one, so the
// alignment alone identifies the pool. Freeing a metadata record of GenerationEndSize
// bytes marks the end of a generation of transient buffers and resets the bump tail.
package composite

import (
	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/bump"
	"github.com/joshuapare/kalloc/alloc/seglist"
)

const (
	// MaxSize is the size of the region the allocator manages, whatever Init is given.
	MaxSize = 0x7d91000

	// MetaSize is the size of the metadata pool at the start of the region.
	MetaSize = 0x40000

	// MetaAlign is the alignment that routes a request to the metadata pool.
	MetaAlign = 8

	// GenerationEndSize is the size of the metadata record whose release ends a
	// generation of tail allocations.
	GenerationEndSize = 0x180
)

// Allocator routes byte requests between a metadata pool and a bump data pool.
// It implements alloc.BaseAllocator and alloc.ByteAllocator.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	meta alloc.Region
	data *bump.Allocator

	tailResets uint64
}

var _ alloc.Region = (*Allocator)(nil)

// New returns an allocator whose metadata pool is served by meta.
func New(meta alloc.Region) *Allocator {
	return &Allocator{
		meta: meta,
		data: bump.New(),
	}
}

// NewDefault returns an allocator with a seglist metadata pool.
func NewDefault() *Allocator {
	return New(seglist.New(nil))
}

// Init partitions the region: metadata gets [start, start+MetaSize) and data gets
// [start+MetaSize, start+MaxSize). size does not change the partition.
func (c *Allocator) Init(start alloc.Addr, _ uintptr) {
	c.meta.Init(start, MetaSize)
	c.data.Init(start.Add(MetaSize), MaxSize-MetaSize)
}

// AddMemory is unsupported and always returns alloc.ErrNoMemory.
func (c *Allocator) AddMemory(alloc.Addr, uintptr) error {
	return alloc.ErrNoMemory
}

// Alloc sends MetaAlign requests to the metadata pool and everything else to the data
// pool.
func (c *Allocator) Alloc(layout alloc.Layout) (alloc.Addr, error) {
	if layout.Align == MetaAlign {
		return c.meta.Alloc(layout)
	}
	return c.data.Alloc(layout)
}

// Dealloc frees MetaAlign blocks in the metadata pool and, for a GenerationEndSize
// record, releases the whole data tail. Data blocks are not freed individually.
func (c *Allocator) Dealloc(pos alloc.Addr, layout alloc.Layout) {
	if layout.Align != MetaAlign {
		return
	}
	c.meta.Dealloc(pos, layout)
	if layout.Size == GenerationEndSize {
		c.data.ResetTail()
		c.tailResets++
	}
}

// TotalBytes always reports MaxSize.
func (c *Allocator) TotalBytes() uintptr { return MaxSize }

func (c *Allocator) UsedBytes() uintptr {
	return c.meta.UsedBytes() + c.data.UsedBytes()
}

func (c *Allocator) AvailableBytes() uintptr { return MaxSize - c.UsedBytes() }

// Meta returns the metadata pool.
func (c *Allocator) Meta() alloc.Region { return c.meta }

// Data returns the data pool.
func (c *Allocator) Data() *bump.Allocator { return c.data }

// Stats is a snapshot of both pools.
type Stats struct {
	MetaUsed   uintptr
	MetaTotal  uintptr
	DataUsed   uintptr
	DataTotal  uintptr
	DataHead   alloc.Addr
	DataTail   alloc.Addr
	DataAllocs uint64
	TailResets uint64
}

// Stats returns a snapshot of both pools.
func (c *Allocator) Stats() Stats {
	head, tail := c.data.Cursors()
	return Stats{
		MetaUsed:   c.meta.UsedBytes(),
		MetaTotal:  c.meta.TotalBytes(),
		DataUsed:   c.data.UsedBytes(),
		DataTotal:  c.data.TotalBytes(),
		DataHead:   head,
		DataTail:   tail,
		DataAllocs: c.data.Count(),
		TailResets: c.tailResets,
	}
}
