// Package align holds the address arithmetic shared by the allocators: power-of-two
// rounding and overflow-checked add/sub/mul on uintptr values.
package align

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// Mask returns the low-bit mask for a power-of-two alignment (align-1).
func Mask(align uintptr) uintptr {
	return align - 1
}

// Up returns n rounded up to the next multiple of align.
// align must be a power of two. The result wraps on overflow; use UpChecked
// when n comes from an untrusted cursor.
//
// Example:
//
//	Up(1, 8)  = 8
//	Up(8, 8)  = 8
//	Up(9, 16) = 16
func Up(n, align uintptr) uintptr {
	return (n + Mask(align)) &^ Mask(align)
}

// UpChecked is Up with overflow detection.
func UpChecked(n, align uintptr) (uintptr, bool) {
	sum, ok := AddOverflowSafe(n, Mask(align))
	if !ok {
		return 0, false
	}
	return sum &^ Mask(align), true
}

// Down returns n rounded down to a multiple of align.
// align must be a power of two.
//
// Example:
//
//	Down(0x1fff, 0x1000) = 0x1000
//	Down(0x2000, 0x1000) = 0x2000
func Down(n, align uintptr) uintptr {
	return n &^ Mask(align)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uintptr) bool {
	return n&Mask(align) == 0
}
