package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/composite"
	"github.com/joshuapare/kalloc/alloc/seglist"
	"github.com/joshuapare/kalloc/heap"
	"github.com/joshuapare/kalloc/internal/logger"
	"github.com/joshuapare/kalloc/internal/workload"
)

type simulateOptions struct {
	preset     string
	metaConfig string
	rounds     int
	buffer     uint64
	item       uint64
	growth     uint64
	align      uint64
	sample     int
	arena      bool
	base       uint64
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the vector-cycle workload against the composite allocator",
		Long: `The simulate command runs generations of the vector-cycle workload: one
0x180-byte metadata record, 15 data requests alternating growing transient
buffers and retained items, then the record is freed and the data tail reset.

Example:
  kallocctl simulate
  kallocctl simulate --preset stress --arena
  kallocctl simulate --rounds 50 --item 64 --sample 10 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.preset, "preset", workload.ConfigDefault.Name, "Workload preset (default, stress)")
	cmd.Flags().StringVar(&opts.metaConfig, "meta-config", seglist.DefaultConfig.Name,
		"Metadata pool size classes ("+strings.Join(metaConfigNames(), ", ")+")")
	cmd.Flags().IntVar(&opts.rounds, "rounds", -1, "Rounds to run (0 = until failure; default from preset)")
	cmd.Flags().Uint64Var(&opts.buffer, "buffer", 0, "First transient buffer size (default from preset)")
	cmd.Flags().Uint64Var(&opts.item, "item", 0, "Retained item size (default from preset)")
	cmd.Flags().Uint64Var(&opts.growth, "growth", 0, "Transient buffer growth factor (default from preset)")
	cmd.Flags().Uint64Var(&opts.align, "align", 0, "Data request alignment (default from preset)")
	cmd.Flags().IntVar(&opts.sample, "sample", 0, "Record usage every N rounds")
	cmd.Flags().BoolVar(&opts.arena, "arena", false, "Back the region with host memory instead of a simulated range")
	cmd.Flags().Uint64Var(&opts.base, "base", 0x4000_0000, "Simulated region base address")
	return cmd
}

func metaConfigNames() []string {
	names := make([]string, 0, len(seglist.Configs))
	for name := range seglist.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *simulateOptions) workloadConfig() (workload.Config, error) {
	var cfg workload.Config
	switch o.preset {
	case workload.ConfigDefault.Name:
		cfg = workload.ConfigDefault
	case workload.ConfigStress.Name:
		cfg = workload.ConfigStress
	default:
		return cfg, fmt.Errorf("unknown preset %q", o.preset)
	}
	if o.rounds >= 0 {
		cfg.Rounds = o.rounds
	}
	if o.buffer > 0 {
		cfg.BufferSize = uintptr(o.buffer)
	}
	if o.item > 0 {
		cfg.ItemSize = uintptr(o.item)
	}
	if o.growth > 0 {
		cfg.GrowthFactor = uintptr(o.growth)
	}
	if o.align > 0 {
		cfg.DataAlign = uintptr(o.align)
	}
	return cfg, cfg.Validate()
}

type simulateReport struct {
	Preset        string            `json:"preset"`
	MetaConfig    string            `json:"meta_config"`
	Base          string            `json:"base"`
	Rounds        int               `json:"rounds"`
	Requests      int               `json:"requests"`
	PeakUsed      uintptr           `json:"peak_used"`
	Used          uintptr           `json:"used"`
	Total         uintptr           `json:"total"`
	TailResets    uint64            `json:"tail_resets"`
	Error         string            `json:"error,omitempty"`
	FailedRound   int               `json:"failed_round,omitempty"`
	FailedRequest int               `json:"failed_request,omitempty"`
	Samples       []workload.Sample `json:"samples,omitempty"`
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	cfg, err := opts.workloadConfig()
	if err != nil {
		return err
	}
	metaCfg, ok := seglist.Configs[opts.metaConfig]
	if !ok {
		return fmt.Errorf("unknown meta config %q", opts.metaConfig)
	}

	base := alloc.Addr(opts.base)
	if opts.arena {
		arena, err := heap.NewArena(composite.MaxSize)
		if err != nil {
			return fmt.Errorf("failed to map arena: %w", err)
		}
		defer arena.Close()
		base = arena.Base()
	}

	c := composite.New(seglist.New(&metaCfg))
	c.Init(base, composite.MaxSize)
	h := heap.New(c, heap.Options{Name: "composite"})

	printVerbose("Region: %s - %s, metadata %#x bytes\n", base, base.Add(composite.MaxSize), composite.MetaSize)
	logger.Info("simulate start", "preset", cfg.Name, "rounds", cfg.Rounds, "base", base.String())

	res, err := workload.Run(h, cfg, opts.sample)
	if err != nil {
		return err
	}

	st := c.Stats()
	report := simulateReport{
		Preset:        cfg.Name,
		MetaConfig:    metaCfg.Name,
		Base:          base.String(),
		Rounds:        res.Rounds,
		Requests:      res.Requests,
		PeakUsed:      res.PeakUsed,
		Used:          h.UsedBytes(),
		Total:         h.TotalBytes(),
		TailResets:    st.TailResets,
		FailedRound:   res.FailedRound,
		FailedRequest: res.FailedRequest,
		Samples:       res.Samples,
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
		logger.Warn("simulate stopped", "round", res.FailedRound, "request", res.FailedRequest, "err", res.Err)
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nSimulation (%s):\n", report.Preset)
	printInfo("  Rounds completed: %d\n", report.Rounds)
	printInfo("  Data requests:    %d\n", report.Requests)
	printInfo("  Tail resets:      %d\n", report.TailResets)
	printInfo("  Peak used:        %d bytes\n", report.PeakUsed)
	printInfo("  Used at end:      %d of %d bytes\n", report.Used, report.Total)
	printInfo("  Data cursors:     head %s, tail %s\n", st.DataHead, st.DataTail)
	if res.Err != nil {
		printInfo("  Stopped:          round %d, request %d: %v\n", report.FailedRound, report.FailedRequest, res.Err)
	}
	for _, s := range res.Samples {
		printInfo("    round %6d  used %d  available %d\n", s.Round, s.Used, s.Available)
	}
	return nil
}
