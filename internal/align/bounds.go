package align

import "fmt"

const maxUintptr = ^uintptr(0)

// AddOverflowSafe adds a and b, returning ok = false when the result would wrap.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a > maxUintptr-b {
		return 0, false
	}
	return a + b, true
}

// SubUnderflowSafe subtracts b from a, returning ok = false when b > a.
func SubUnderflowSafe(a, b uintptr) (uintptr, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would wrap.
// This is what count * elementSize calculations (pages, records) go through.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > maxUintptr/b {
		return 0, false
	}
	return a * b, true
}

// CheckSpan validates that count elements of elemSize bytes starting at start fit
// below limit. It returns the exclusive end of the span.
//
//	end, err := align.CheckSpan(start, n, pageSize, regionEnd)
//	if err != nil {
//	    return fmt.Errorf("pages: %w", err)
//	}
func CheckSpan(start, count, elemSize, limit uintptr) (uintptr, error) {
	total, ok := MulOverflowSafe(count, elemSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elemSize)
	}
	end, ok := AddOverflowSafe(start, total)
	if !ok {
		return 0, fmt.Errorf("overflow: start=%#x + size=%#x", start, total)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=%#x > limit=%#x", end, limit)
	}
	return end, nil
}
