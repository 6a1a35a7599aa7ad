package bump

import (
	"testing"

	"github.com/joshuapare/kalloc/alloc"
)

// BenchmarkAlloc measures the cycle of head and tail requests with a tail reset at the
// end of each cycle.
func BenchmarkAlloc(b *testing.B) {
	a := newTestAllocator(b, 0x1000_0000, 0x100_0000)
	layout := alloc.MustLayout(64, 16)

	b.ReportAllocs()
	b.ResetTimer()

	for i := range b.N {
		if _, err := a.Alloc(layout); err != nil {
			a.Init(0x1000_0000, 0x100_0000)
		}
		if i%Cycle == Cycle-1 {
			a.ResetTail()
		}
	}
}
