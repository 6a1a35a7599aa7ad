package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/bump"
	"github.com/joshuapare/kalloc/alloc/composite"
)

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout [base]",
		Short: "Show how the composite allocator partitions a region",
		Long: `The layout command prints the metadata and data pools the composite allocator
creates from a base address, and the routing constants.

Example:
  kallocctl layout
  kallocctl layout 0xffff800000000000 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := uint64(0x4000_0000)
			if len(args) == 1 {
				v, err := strconv.ParseUint(args[0], 0, 64)
				if err != nil {
					return fmt.Errorf("invalid base %q: %w", args[0], err)
				}
				base = v
			}
			return runLayout(alloc.Addr(base))
		},
	}
}

type layoutReport struct {
	MetaStart         string `json:"meta_start"`
	MetaEnd           string `json:"meta_end"`
	DataStart         string `json:"data_start"`
	DataEnd           string `json:"data_end"`
	MaxSize           uint64 `json:"max_size"`
	MetaAlign         int    `json:"meta_align"`
	GenerationEndSize int    `json:"generation_end_size"`
	Cycle             int    `json:"cycle"`
}

func runLayout(base alloc.Addr) error {
	c := composite.NewDefault()
	c.Init(base, composite.MaxSize)
	dataStart, dataEnd := c.Data().Region()

	report := layoutReport{
		MetaStart:         base.String(),
		MetaEnd:           dataStart.String(),
		DataStart:         dataStart.String(),
		DataEnd:           dataEnd.String(),
		MaxSize:           composite.MaxSize,
		MetaAlign:         composite.MetaAlign,
		GenerationEndSize: composite.GenerationEndSize,
		Cycle:             bump.Cycle,
	}
	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nComposite layout:\n")
	printInfo("  Metadata: %s - %s (%d bytes, align %d requests)\n",
		report.MetaStart, report.MetaEnd, c.Meta().TotalBytes(), report.MetaAlign)
	printInfo("  Data:     %s - %s (%d bytes, cycle %d)\n",
		report.DataStart, report.DataEnd, c.Data().TotalBytes(), report.Cycle)
	printInfo("  Freeing a %#x-byte metadata record resets the data tail\n", report.GenerationEndSize)
	return nil
}
