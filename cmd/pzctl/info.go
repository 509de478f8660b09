package main

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/pagezone/mem/zone"
)

func init() {
	cmd := newInfoCmd()
	addLayoutFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the layout derived from a memory range",
		Long: `The info command initializes the allocator over a range and prints
the resulting page layout and the chunk size classes served by zones.

Example:
  pzctl info
  pzctl info --start 0x1000 --end 0x9000 --page-size 4096
  pzctl info --reserve-descriptors --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

// LayoutInfo is the info command's report.
type LayoutInfo struct {
	Start         uint64      `json:"start"`
	End           uint64      `json:"end"`
	PageSize      uint64      `json:"page_size"`
	TotalPages    int         `json:"total_pages"`
	ReservedPages int         `json:"reserved_pages"`
	FreePages     int         `json:"free_pages"`
	TotalMemory   uint64      `json:"total_memory"`
	UserMemory    uint64      `json:"user_memory"`
	MaxChunkSize  uint64      `json:"max_chunk_size"`
	ChunkClasses  []ClassInfo `json:"chunk_classes"`
}

// ClassInfo describes one zone size class.
type ClassInfo struct {
	ChunkSize     uint64 `json:"chunk_size"`
	ChunksPerZone int    `json:"chunks_per_zone"`
}

func runInfo() error {
	printVerbose("Initializing range 0x%x-0x%x, page size %d\n", regionStart, regionEnd, pageSize)

	a, err := newAllocator(regionStart, regionEnd, pageSize)
	if err != nil {
		return err
	}

	s := a.Stats().Page
	info := LayoutInfo{
		Start:         regionStart,
		End:           regionEnd,
		PageSize:      pageSize,
		TotalPages:    s.TotalPages,
		ReservedPages: s.ReservedPages,
		FreePages:     s.FreePages,
		TotalMemory:   s.TotalMemory,
		UserMemory:    s.UserMemory,
		MaxChunkSize:  uint64(a.Zones().MaxChunkSize()),
	}
	zoneBytes := pageSize * uint64(max(pagesPerZone, 1))
	for cs := uint64(zone.MinChunkSize); cs <= info.MaxChunkSize; cs <<= 1 {
		info.ChunkClasses = append(info.ChunkClasses, ClassInfo{
			ChunkSize:     cs,
			ChunksPerZone: int(zoneBytes / cs),
		})
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nMemory Layout\n")
	printInfo("%s\n\n", strings.Repeat("=", 40))
	printInfo("Range: 0x%x - 0x%x (%s)\n", info.Start, info.End, humanize.IBytes(info.TotalMemory))
	printInfo("Page size: %s\n", humanize.IBytes(info.PageSize))
	printInfo("Pages: %d total, %d reserved, %d free\n", info.TotalPages, info.ReservedPages, info.FreePages)
	printInfo("User memory: %s\n\n", humanize.IBytes(info.UserMemory))

	printInfo("Chunk Classes:\n")
	for _, c := range info.ChunkClasses {
		printInfo("  %8s: %d per zone\n", humanize.IBytes(c.ChunkSize), c.ChunksPerZone)
	}
	printInfo("  Requests above %s take whole pages\n", humanize.IBytes(info.MaxChunkSize))
	return nil
}
