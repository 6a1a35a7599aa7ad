package seglist

import "math"

// SizeClassConfig defines the size class strategy.
// Small sizes get linear buckets; medium sizes grow geometrically up to MediumMax,
// everything above goes to a single large list.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking and the CLI)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       uintptr
	SmallMax       uintptr
	SmallIncrement uintptr

	// Medium allocation settings (geometric growth)
	MediumMax    uintptr
	GrowthFactor float64
}

// Predefined configurations.
var (
	// Metadata: tuned for fixed-shape container records (headers, control blocks)
	// 8-512 step 8 (63 classes) + 512-64K growth 1.5 (~12 classes).
	ConfigMetadata = SizeClassConfig{
		Name:           "Metadata",
		SmallMin:       8,
		SmallMax:       512,
		SmallIncrement: 8,
		MediumMax:      64 << 10,
		GrowthFactor:   1.5,
	}

	// Balanced: 8-512 step 16 (32 classes) + 512-16K growth 1.5 (~9 classes).
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       8,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      16 << 10,
		GrowthFactor:   1.5,
	}

	// Coarse: fewer buckets, faster scans but more internal fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       8,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16 << 10,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used by New(nil).
	DefaultConfig = ConfigMetadata
)

// Configs lists the predefined configurations by name.
var Configs = map[string]SizeClassConfig{
	ConfigMetadata.Name: ConfigMetadata,
	ConfigBalanced.Name: ConfigBalanced,
	ConfigCoarse.Name:   ConfigCoarse,
}

// sizeClassTable holds the computed size class boundaries.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []uintptr // Upper bound (inclusive) for each size class
	numClasses int
}

// newSizeClassTable computes size class boundaries from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config:     config,
		boundaries: make([]uintptr, 0, 80),
	}

	// Phase 1: linear increments
	if config.SmallIncrement > 0 {
		for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
			table.boundaries = append(table.boundaries, size+config.SmallIncrement-1)
		}
	}

	// Phase 2: geometric growth
	if config.SmallMax < config.MediumMax {
		size := config.SmallMax
		for size < config.MediumMax {
			nextSize := uintptr(math.Ceil(float64(size) * config.GrowthFactor))
			if nextSize <= size {
				nextSize = size + 1 // Ensure progress
			}
			table.boundaries = append(table.boundaries, nextSize-1)
			size = nextSize
		}
	}

	table.numClasses = len(table.boundaries)
	return table
}

// getSizeClass returns the size class index for a given size.
// Returns table.numClasses for sizes above every boundary (large list).
func (t *sizeClassTable) getSizeClass(size uintptr) int {
	lo, hi := 0, t.numClasses-1

	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	return t.numClasses
}

func (t *sizeClassTable) String() string {
	return t.config.Name
}

// NumClasses returns the number of size classes (excluding the large list).
func (t *sizeClassTable) NumClasses() int {
	return t.numClasses
}
