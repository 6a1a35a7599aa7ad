package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/early"
	"github.com/joshuapare/kalloc/alloc/seglist"
)

const testBase = alloc.Addr(0x8000_0000)

// recordingPool wraps a metadata pool and records every call routed to it.
type recordingPool struct {
	alloc.Region
	allocs   []alloc.Layout
	deallocs []alloc.Layout
	initArgs [2]uintptr
}

func (r *recordingPool) Init(start alloc.Addr, size uintptr) {
	r.initArgs = [2]uintptr{uintptr(start), size}
	r.Region.Init(start, size)
}

func (r *recordingPool) Alloc(l alloc.Layout) (alloc.Addr, error) {
	r.allocs = append(r.allocs, l)
	return r.Region.Alloc(l)
}

func (r *recordingPool) Dealloc(p alloc.Addr, l alloc.Layout) {
	r.deallocs = append(r.deallocs, l)
	r.Region.Dealloc(p, l)
}

func newRecording(t *testing.T) (*Allocator, *recordingPool) {
	t.Helper()
	pool := &recordingPool{Region: seglist.New(nil)}
	c := New(pool)
	c.Init(testBase, 0x1000_0000)
	return c, pool
}

func TestInit_Partition(t *testing.T) {
	c, pool := newRecording(t)

	assert.Equal(t, [2]uintptr{uintptr(testBase), MetaSize}, pool.initArgs)
	start, end := c.Data().Region()
	assert.Equal(t, testBase.Add(MetaSize), start)
	assert.Equal(t, testBase.Add(MaxSize), end)
	assert.Equal(t, uintptr(MaxSize-MetaSize), c.Data().TotalBytes())

	assert.Equal(t, uintptr(MaxSize), c.TotalBytes())
	assert.Zero(t, c.UsedBytes())
	assert.Equal(t, uintptr(MaxSize), c.AvailableBytes())
}

func TestInit_SizeDoesNotChangePartition(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, 0x1000)
	_, end := c.Data().Region()
	assert.Equal(t, testBase.Add(MaxSize), end)
	assert.Equal(t, uintptr(MaxSize), c.TotalBytes())
}

func TestAlloc_MetaAlignGoesToMeta(t *testing.T) {
	c, pool := newRecording(t)
	head, tail := c.Data().Cursors()

	p, err := c.Alloc(alloc.MustLayout(0x30, MetaAlign))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, testBase)
	assert.Less(t, p, testBase.Add(MetaSize))

	require.Len(t, pool.allocs, 1)
	newHead, newTail := c.Data().Cursors()
	assert.Equal(t, head, newHead, "metadata request must not touch data cursors")
	assert.Equal(t, tail, newTail)
	assert.Zero(t, c.Data().Count())
}

func TestAlloc_OtherAlignGoesToData(t *testing.T) {
	c, pool := newRecording(t)

	for _, a := range []uintptr{1, 2, 4, 16, 64, 4096} {
		p, err := c.Alloc(alloc.MustLayout(0x40, a))
		require.NoError(t, err, "align %d", a)
		assert.GreaterOrEqual(t, p, testBase.Add(MetaSize), "align %d", a)
		assert.LessOrEqual(t, p.Add(0x40), testBase.Add(MaxSize))
	}
	assert.Empty(t, pool.allocs, "data requests must not reach the metadata pool")
	assert.Zero(t, pool.UsedBytes())
	assert.Equal(t, uint64(6), c.Data().Count())
}

func TestDealloc_Routing(t *testing.T) {
	c, pool := newRecording(t)

	m, err := c.Alloc(alloc.MustLayout(0x20, MetaAlign))
	require.NoError(t, err)
	d, err := c.Alloc(alloc.MustLayout(0x100, 16))
	require.NoError(t, err)
	usedData := c.Data().UsedBytes()

	c.Dealloc(d, alloc.MustLayout(0x100, 16))
	assert.Empty(t, pool.deallocs)
	assert.Equal(t, usedData, c.Data().UsedBytes(), "data blocks are not freed individually")

	c.Dealloc(m, alloc.MustLayout(0x20, MetaAlign))
	require.Len(t, pool.deallocs, 1)
	assert.Zero(t, pool.UsedBytes())
	_, tail := c.Data().Cursors()
	_, end := c.Data().Region()
	assert.Less(t, tail, end, "an ordinary metadata free keeps the tail")
}

// TestDealloc_GenerationEndResetsTail checks that freeing a GenerationEndSize record
// returns the data tail to the region end wherever it was.
func TestDealloc_GenerationEndResetsTail(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)

	rec, err := c.Alloc(alloc.MustLayout(GenerationEndSize, MetaAlign))
	require.NoError(t, err)

	var last alloc.Addr
	for i := range 15 {
		last, err = c.Alloc(alloc.MustLayout(uintptr(0x100*(i+1)), 16))
		require.NoError(t, err)
	}
	_, tail := c.Data().Cursors()
	_, end := c.Data().Region()
	require.Equal(t, alloc.Addr(uintptr(end)-0xf00), tail)
	require.Equal(t, tail, last, "the 15th request is a tail request")
	headBefore, _ := c.Data().Cursors()

	c.Dealloc(rec, alloc.MustLayout(GenerationEndSize, MetaAlign))

	head, tail := c.Data().Cursors()
	assert.Equal(t, end, tail)
	assert.Equal(t, headBefore, head)
	assert.Equal(t, uint64(1), c.Stats().TailResets)
}

func TestDealloc_GenerationEndNeedsMetaAlign(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)
	_, err := c.Alloc(alloc.MustLayout(0x80, 16)) // tail
	require.NoError(t, err)

	c.Dealloc(testBase, alloc.MustLayout(GenerationEndSize, 16))
	_, tail := c.Data().Cursors()
	_, end := c.Data().Region()
	assert.Less(t, tail, end)
	assert.Zero(t, c.Stats().TailResets)
}

func TestAccounting(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)

	_, err := c.Alloc(alloc.MustLayout(0x40, MetaAlign))
	require.NoError(t, err)
	_, err = c.Alloc(alloc.MustLayout(0x200, 16)) // tail
	require.NoError(t, err)
	_, err = c.Alloc(alloc.MustLayout(0x100, 16)) // head
	require.NoError(t, err)

	assert.Equal(t, uintptr(0x40+0x200+0x100), c.UsedBytes())
	assert.Equal(t, uintptr(MaxSize)-c.UsedBytes(), c.AvailableBytes())

	s := c.Stats()
	assert.Equal(t, uintptr(0x40), s.MetaUsed)
	assert.Equal(t, uintptr(MetaSize), s.MetaTotal)
	assert.Equal(t, uintptr(0x300), s.DataUsed)
	assert.Equal(t, uint64(2), s.DataAllocs)
	assert.Equal(t, testBase.Add(MetaSize+0x100), s.DataHead)
}

func TestAlloc_MetaExhaustion(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)

	_, err := c.Alloc(alloc.MustLayout(MetaSize+8, MetaAlign))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
	assert.Zero(t, c.UsedBytes())
}

func TestAlloc_DataExhaustion(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)

	head, tail := c.Data().Cursors()
	_, err := c.Alloc(alloc.MustLayout(MaxSize, 16))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
	newHead, newTail := c.Data().Cursors()
	assert.Equal(t, head, newHead)
	assert.Equal(t, tail, newTail)
}

func TestAddMemoryUnsupported(t *testing.T) {
	c := NewDefault()
	c.Init(testBase, MaxSize)
	assert.ErrorIs(t, c.AddMemory(0x1000, 0x1000), alloc.ErrNoMemory)
}

// TestAnyMetadataPool checks that the metadata pool only needs the byte capability.
func TestAnyMetadataPool(t *testing.T) {
	c := New(early.NewDefault())
	c.Init(testBase, MaxSize)

	p, err := c.Alloc(alloc.MustLayout(0x10, MetaAlign))
	require.NoError(t, err)
	assert.Equal(t, testBase, p)
	assert.Equal(t, uintptr(0x10), c.Meta().UsedBytes())
}
