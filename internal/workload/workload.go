// Package workload drives a byte allocator with the vector-cycle pattern the bump data
// pool is tuned for.
//
// Each round is one generation:
//
//  1. a GenerationEndSize metadata record is allocated (alignment MetaAlign);
//  2. bump.Cycle data requests follow, alternating a transient buffer that grows on
//     every odd request with a retained item on every even request;
//  3. the metadata record is freed, which ends the generation.
package workload

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/bump"
	"github.com/joshuapare/kalloc/alloc/composite"
)

// Config describes the shape of the workload.
type Config struct {
	Name string

	// Rounds is the number of generations to run; 0 runs until the first failure.
	Rounds int

	// BufferSize is the size of the first transient buffer of a round; each following
	// transient buffer in the round is GrowthFactor times larger.
	BufferSize   uintptr
	GrowthFactor uintptr

	// ItemSize is the size of every retained item.
	ItemSize uintptr

	// DataAlign is the alignment of data requests. It must differ from
	// composite.MetaAlign so they reach the data pool.
	DataAlign uintptr
}

// Predefined configurations.
var (
	// ConfigDefault grows a 64-byte buffer by doubling and retains 32-byte items.
	ConfigDefault = Config{
		Name:         "default",
		Rounds:       1000,
		BufferSize:   64,
		GrowthFactor: 2,
		ItemSize:     32,
		DataAlign:    16,
	}

	// ConfigStress runs until the data pool is exhausted.
	ConfigStress = Config{
		Name:         "stress",
		Rounds:       0,
		BufferSize:   1 << 10,
		GrowthFactor: 2,
		ItemSize:     4 << 10,
		DataAlign:    16,
	}
)

// ErrBadConfig indicates an unusable workload configuration.
var ErrBadConfig = errors.New("workload: bad config")

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Rounds < 0:
		return fmt.Errorf("%w: negative rounds", ErrBadConfig)
	case c.BufferSize == 0 || c.ItemSize == 0:
		return fmt.Errorf("%w: sizes must be positive", ErrBadConfig)
	case c.GrowthFactor == 0:
		return fmt.Errorf("%w: growth factor must be positive", ErrBadConfig)
	case c.DataAlign == composite.MetaAlign:
		return fmt.Errorf("%w: data alignment %d would route to the metadata pool", ErrBadConfig, c.DataAlign)
	}
	if _, err := alloc.NewLayout(c.BufferSize, c.DataAlign); err != nil {
		return fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	return nil
}

// Sample is the allocator state at the end of a round.
type Sample struct {
	Round     int
	Used      uintptr
	Available uintptr
	Requests  int
}

// Result summarizes a run.
type Result struct {
	Config   Config
	Rounds   int // rounds completed
	Requests int // successful data requests
	PeakUsed uintptr
	Samples  []Sample

	// Err is the allocation error that stopped the run, with FailedRound and
	// FailedRequest locating it. Nil when every round completed.
	Err           error
	FailedRound   int
	FailedRequest int
}

// Run executes cfg against a. When sample > 0 every sample-th round is recorded.
func Run(a alloc.ByteAllocator, cfg Config, sample int) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Config: cfg}
	record := alloc.MustLayout(composite.GenerationEndSize, composite.MetaAlign)

	for round := 1; cfg.Rounds == 0 || round <= cfg.Rounds; round++ {
		rec, err := a.Alloc(record)
		if err != nil {
			res.fail(err, round, 0)
			return res, nil
		}

		peak, reqs, err := runRound(a, cfg)
		res.Requests += reqs
		res.PeakUsed = max(res.PeakUsed, peak)
		if err != nil {
			a.Dealloc(rec, record)
			res.fail(err, round, reqs+1)
			return res, nil
		}

		a.Dealloc(rec, record)
		res.Rounds = round

		if sample > 0 && round%sample == 0 {
			res.Samples = append(res.Samples, Sample{
				Round:     round,
				Used:      a.UsedBytes(),
				Available: a.AvailableBytes(),
				Requests:  res.Requests,
			})
		}
	}
	return res, nil
}

// runRound issues one cycle of data requests and returns the peak usage seen and the
// number of successful requests.
func runRound(a alloc.ByteAllocator, cfg Config) (uintptr, int, error) {
	var peak uintptr
	buf := cfg.BufferSize
	for k := 1; k <= bump.Cycle; k++ {
		size := cfg.ItemSize
		if k%2 == 1 {
			size = buf
			buf *= cfg.GrowthFactor
		}
		if _, err := a.Alloc(alloc.Layout{Size: size, Align: cfg.DataAlign}); err != nil {
			return peak, k - 1, err
		}
		peak = max(peak, a.UsedBytes())
	}
	return peak, bump.Cycle, nil
}

func (r *Result) fail(err error, round, request int) {
	r.Err = err
	r.FailedRound = round
	r.FailedRequest = request
}
