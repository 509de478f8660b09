package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagezone/pkg/allocator"
)

var (
	commit = "none"
	date   = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pzctl %s\n", allocator.Version())
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
