package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/alloc/early"
	"github.com/joshuapare/kalloc/heap"
)

type earlyOptions struct {
	base      uint64
	size      uint64
	pageSize  uint64
	byteCount int
	byteSize  uint64
	byteAlign uint64
	pageCount int
	pageAlign uint
	release   bool
	arena     bool
}

func newEarlyCmd() *cobra.Command {
	opts := &earlyOptions{}
	cmd := &cobra.Command{
		Use:   "early",
		Short: "Exercise the double-ended early allocator",
		Long: `The early command carves byte blocks forward and page blocks backward from
one region and reports the cursors. With --release every byte block is freed at
the end, which resets the byte cursor.

Example:
  kallocctl early --size 0x100000 --bytes 10 --pages 4
  kallocctl early --bytes 3 --byte-size 16 --release --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEarly(opts)
		},
	}
	cmd.Flags().Uint64Var(&opts.base, "base", 0x1000_0000, "Simulated region base address")
	cmd.Flags().Uint64Var(&opts.size, "size", 1<<20, "Region size in bytes")
	cmd.Flags().Uint64Var(&opts.pageSize, "page-size", early.DefaultPageSize, "Page size (power of two)")
	cmd.Flags().IntVar(&opts.byteCount, "bytes", 8, "Number of byte allocations")
	cmd.Flags().Uint64Var(&opts.byteSize, "byte-size", 64, "Size of each byte allocation")
	cmd.Flags().Uint64Var(&opts.byteAlign, "byte-align", 8, "Alignment of each byte allocation")
	cmd.Flags().IntVar(&opts.pageCount, "pages", 4, "Number of single-page allocations")
	cmd.Flags().UintVar(&opts.pageAlign, "page-align", 12, "Page alignment as a power of two")
	cmd.Flags().BoolVar(&opts.release, "release", false, "Free every byte allocation at the end")
	cmd.Flags().BoolVar(&opts.arena, "arena", false, "Back the region with host memory")
	return cmd
}

type earlyReport struct {
	Start          string   `json:"start"`
	End            string   `json:"end"`
	BytePos        string   `json:"byte_pos"`
	PagePos        string   `json:"page_pos"`
	Outstanding    uint     `json:"outstanding"`
	UsedBytes      uintptr  `json:"used_bytes"`
	AvailableBytes uintptr  `json:"available_bytes"`
	UsedPages      uintptr  `json:"used_pages"`
	AvailablePages uintptr  `json:"available_pages"`
	Pages          []string `json:"pages,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

func runEarly(opts *earlyOptions) error {
	a, err := early.New(uintptr(opts.pageSize))
	if err != nil {
		return err
	}
	layout, err := alloc.NewLayout(uintptr(opts.byteSize), uintptr(opts.byteAlign))
	if err != nil {
		return err
	}

	base := alloc.Addr(opts.base)
	if opts.arena {
		arena, err := heap.NewArena(int(opts.size))
		if err != nil {
			return fmt.Errorf("failed to map arena: %w", err)
		}
		defer arena.Close()
		base = arena.Base()
	}
	a.Init(base, uintptr(opts.size))

	var report earlyReport
	var blocks []alloc.Addr
	for i := range opts.byteCount {
		p, err := a.Alloc(layout)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("bytes[%d]: %v", i, err))
			break
		}
		printVerbose("bytes[%d] at %s\n", i, p)
		blocks = append(blocks, p)
	}
	for i := range opts.pageCount {
		p, err := a.AllocPages(1, opts.pageAlign)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("pages[%d]: %v", i, err))
			break
		}
		printVerbose("pages[%d] at %s\n", i, p)
		report.Pages = append(report.Pages, p.String())
	}
	if opts.release {
		for _, p := range blocks {
			a.Dealloc(p, layout)
		}
	}

	start, end := a.Region()
	bPos, pPos := a.Cursors()
	report.Start, report.End = start.String(), end.String()
	report.BytePos, report.PagePos = bPos.String(), pPos.String()
	report.Outstanding = a.Outstanding()
	report.UsedBytes, report.AvailableBytes = a.UsedBytes(), a.AvailableBytes()
	report.UsedPages, report.AvailablePages = a.UsedPages(), a.AvailablePages()

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nEarly allocator:\n")
	printInfo("  Region:      %s - %s (%d pages of %#x)\n", report.Start, report.End, a.TotalPages(), a.PageSize())
	printInfo("  Byte cursor: %s (%d outstanding)\n", report.BytePos, report.Outstanding)
	printInfo("  Page cursor: %s\n", report.PagePos)
	printInfo("  Bytes:       %d used, %d available\n", report.UsedBytes, report.AvailableBytes)
	printInfo("  Pages:       %d used, %d available\n", report.UsedPages, report.AvailablePages)
	for _, e := range report.Errors {
		printInfo("  Failed:      %s\n", e)
	}
	if len(report.Errors) > 0 {
		return errors.New("early: allocation sequence did not complete")
	}
	return nil
}
