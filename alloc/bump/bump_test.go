package bump

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
)

func newTestAllocator(t testing.TB, start alloc.Addr, size uintptr) *Allocator {
	t.Helper()
	a := New()
	a.Init(start, size)
	return a
}

func TestPlacement_CycleLaw(t *testing.T) {
	tail := map[uint64]bool{1: true, 3: true, 5: true, 7: true, 9: true, 11: true, 13: true, 15: true}
	for k := uint64(1); k <= 3*Cycle; k++ {
		pos := (k-1)%Cycle + 1
		want := Head
		if tail[pos] {
			want = Tail
		}
		assert.Equal(t, want, Placement(k), "request %d (position %d in its block)", k, pos)
	}
	// Position 15 and the next block's position 1 are both tail.
	assert.Equal(t, Tail, Placement(15))
	assert.Equal(t, Tail, Placement(16))
	assert.Equal(t, "tail", Tail.String())
	assert.Equal(t, "head", Head.String())
}

// TestAlloc_FollowsPlacement checks that each request moves exactly the cursor its
// placement names.
func TestAlloc_FollowsPlacement(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x10000)

	for k := uint64(1); k <= 2*Cycle; k++ {
		head, tail := a.Cursors()
		p, err := a.Alloc(alloc.MustLayout(0x20, 16))
		require.NoError(t, err)
		newHead, newTail := a.Cursors()

		switch Placement(k) {
		case Tail:
			assert.Equal(t, head, newHead, "request %d must not touch head", k)
			assert.Equal(t, alloc.Addr(0x20000-0x20), p)
			assert.Equal(t, p, newTail)
		case Head:
			assert.Equal(t, tail, newTail, "request %d must not touch tail", k)
			assert.Equal(t, head, p)
			assert.Equal(t, head.Add(0x20), newHead)
		}
	}
	assert.Equal(t, uint64(2*Cycle), a.Count())
}

// TestAlloc_TailAliasing checks that consecutive tail blocks share the region end.
func TestAlloc_TailAliasing(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x1000)

	first, err := a.Alloc(alloc.MustLayout(0x100, 1)) // 1st: tail
	require.NoError(t, err)
	_, err = a.Alloc(alloc.MustLayout(0x10, 1)) // 2nd: head
	require.NoError(t, err)
	second, err := a.Alloc(alloc.MustLayout(0x100, 1)) // 3rd: tail
	require.NoError(t, err)
	assert.Equal(t, first, second, "equal-sized tail blocks alias the same range")

	_, err = a.Alloc(alloc.MustLayout(0x10, 1)) // 4th: head
	require.NoError(t, err)
	grown, err := a.Alloc(alloc.MustLayout(0x200, 1)) // 5th: tail, larger
	require.NoError(t, err)
	assert.Equal(t, alloc.Addr(0x11000-0x200), grown)
	assert.LessOrEqual(t, grown, first)
	assert.Equal(t, grown.Add(0x200), first.Add(0x100), "both blocks end at the region end")

	// The tail zone is as large as the largest live tail block, not the sum.
	assert.Equal(t, uintptr(0x20+0x200), a.UsedBytes())
}

func TestAlloc_SmallerTailShrinksZone(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x1000)
	_, err := a.Alloc(alloc.MustLayout(0x400, 1))
	require.NoError(t, err)
	_, err = a.Alloc(alloc.MustLayout(0x10, 1))
	require.NoError(t, err)
	_, err = a.Alloc(alloc.MustLayout(0x80, 1))
	require.NoError(t, err)

	_, tail := a.Cursors()
	assert.Equal(t, alloc.Addr(0x11000-0x80), tail)
}

func TestResetTail(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x1000)
	for range 5 {
		_, err := a.Alloc(alloc.MustLayout(0x40, 8))
		require.NoError(t, err)
	}
	head, tail := a.Cursors()
	require.Less(t, tail, alloc.Addr(0x11000))

	a.ResetTail()
	newHead, newTail := a.Cursors()
	assert.Equal(t, alloc.Addr(0x11000), newTail)
	assert.Equal(t, head, newHead, "reset must not touch the head zone")
	assert.Equal(t, head.Sub(0x10000), a.UsedBytes())
}

func TestAlloc_HeadExhaustion(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x100)

	_, err := a.Alloc(alloc.MustLayout(0x80, 1)) // tail -> [0x10080, 0x10100)
	require.NoError(t, err)

	head, tail := a.Cursors()
	_, err = a.Alloc(alloc.MustLayout(0x81, 1)) // head, one byte too many
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
	newHead, newTail := a.Cursors()
	assert.Equal(t, head, newHead)
	assert.Equal(t, tail, newTail)
	assert.Equal(t, uint64(2), a.Count(), "the counter advances on failure")

	// The next request is a tail request.
	_, err = a.Alloc(alloc.MustLayout(0x100, 1))
	require.NoError(t, err, "tail block may cover the whole region while head is empty")
}

func TestAlloc_TailExhaustion(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x100)

	_, err := a.Alloc(alloc.MustLayout(0x10, 1)) // tail
	require.NoError(t, err)
	_, err = a.Alloc(alloc.MustLayout(0xc0, 1)) // head -> 0x100c0
	require.NoError(t, err)

	head, tail := a.Cursors()
	_, err = a.Alloc(alloc.MustLayout(0x41, 1)) // tail would start at 0x100bf
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
	newHead, newTail := a.Cursors()
	assert.Equal(t, head, newHead)
	assert.Equal(t, tail, newTail)

	// Larger than the whole region must not wrap.
	a.counts = 0
	_, err = a.Alloc(alloc.MustLayout(0x1000000, 1))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
}

func TestAlloc_HeadOverflow(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x100)
	a.counts = 1 // next request is a head request
	_, err := a.Alloc(alloc.MustLayout(^uintptr(0), 1))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
}

func TestAccounting(t *testing.T) {
	a := newTestAllocator(t, 0x10000, 0x1000)
	assert.Equal(t, uintptr(0x1000), a.TotalBytes())
	assert.Zero(t, a.UsedBytes())
	assert.Equal(t, uintptr(0x1000), a.AvailableBytes())

	_, err := a.Alloc(alloc.MustLayout(0x100, 1)) // tail
	require.NoError(t, err)
	_, err = a.Alloc(alloc.MustLayout(0x30, 1)) // head
	require.NoError(t, err)

	assert.Equal(t, uintptr(0x130), a.UsedBytes())
	assert.Equal(t, uintptr(0x1000-0x130), a.AvailableBytes())

	a.Dealloc(0x10000, alloc.MustLayout(0x30, 1))
	assert.Equal(t, uintptr(0x130), a.UsedBytes(), "Dealloc does not reclaim")
	assert.ErrorIs(t, a.AddMemory(0x20000, 0x1000), alloc.ErrNoMemory)
}

// TestRandomOps_GuardInvariants checks bounds and head <= tail over random traffic.
func TestRandomOps_GuardInvariants(t *testing.T) {
	const start, size = alloc.Addr(0x200000), uintptr(0x8000)
	a := newTestAllocator(t, start, size)
	rng := rand.New(rand.NewSource(7))

	for i := range 5000 {
		if rng.Intn(20) == 0 {
			a.ResetTail()
		} else {
			n := uintptr(1 + rng.Intn(256))
			p, err := a.Alloc(alloc.MustLayout(n, 8))
			if err == nil {
				require.GreaterOrEqual(t, p, start, "step %d", i)
				require.LessOrEqual(t, p.Add(n), start.Add(size), "step %d", i)
			} else {
				require.ErrorIs(t, err, alloc.ErrNoMemory)
			}
		}
		head, tail := a.Cursors()
		require.LessOrEqual(t, start, head, "step %d", i)
		require.LessOrEqual(t, head, tail, "step %d", i)
		require.LessOrEqual(t, tail, start.Add(size), "step %d", i)
		require.Equal(t, head.Sub(start)+start.Add(size).Sub(tail), a.UsedBytes())
	}
}
