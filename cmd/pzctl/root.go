package main

import (
	"fmt"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/pkg/allocator"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Memory layout flags, shared by every command that builds an allocator
	regionStart        uint64
	regionEnd          uint64
	pageSize           uint64
	pagesPerZone       int
	reserveDescriptors bool
)

const (
	defaultStart    = 0x100000
	defaultEnd      = defaultStart + 16<<20
	defaultPageSize = 4096
)

var printer = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "pzctl",
	Short: "Exercise and inspect the page and zone allocator",
	Long: `pzctl drives the two-tier physical memory allocator over a simulated
address range. It prints the layout the allocator derives from a range, runs
seeded random workloads, and records and replays allocation traces.`,
	Version: allocator.Version(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// addLayoutFlags registers the flags that describe the managed range.
func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&regionStart, "start", defaultStart, "First address of the managed range")
	cmd.Flags().Uint64Var(&regionEnd, "end", defaultEnd, "End address (exclusive) of the managed range")
	cmd.Flags().Uint64Var(&pageSize, "page-size", defaultPageSize, "Page size in bytes, a power of two")
	cmd.Flags().IntVar(&pagesPerZone, "pages-per-zone", 1, "Pages backing each zone")
	cmd.Flags().BoolVar(&reserveDescriptors, "reserve-descriptors", false, "Reserve pages for the page descriptors")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging() {
	logger.Init(logger.Options{
		Enabled: verbose && !quiet,
		Level:   slog.LevelDebug,
		JSON:    jsonOut,
	})
}

// newAllocator builds an allocator from the layout flags over [start, end).
func newAllocator(start, end, size uint64) (*allocator.Allocator, error) {
	a := allocator.New(&allocator.Options{
		Logger:             logger.L,
		ReserveDescriptors: reserveDescriptors,
		PagesPerZone:       pagesPerZone,
	})
	if err := a.InitRange(uintptr(start), uintptr(end), uintptr(size)); err != nil {
		return nil, fmt.Errorf("failed to initialize allocator: %w", err)
	}
	return a, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
