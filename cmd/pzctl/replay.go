package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagezone/internal/trace"
	"github.com/joshuapare/pagezone/pkg/allocator"
)

var replayMaxReport int

func init() {
	cmd := newReplayCmd()
	addLayoutFlags(cmd)
	cmd.Flags().IntVar(&replayMaxReport, "max-report", 20, "Mismatches to print before summarizing")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay a recorded trace",
		Long: `The replay command feeds a trace written by simulate to a fresh
allocator and compares every result with the recorded one. An init record at
the start of the trace overrides the layout flags.

Example:
  pzctl replay run.jsonl.zst
  pzctl replay run.jsonl --start 0x100000 --end 0x200000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

// Mismatch is one record whose replayed outcome differs from the trace.
type Mismatch struct {
	Seq  int    `json:"seq"`
	Op   string `json:"op"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

// ReplayResult is the replay command's report.
type ReplayResult struct {
	Trace      string     `json:"trace"`
	Records    int        `json:"records"`
	Mismatches []Mismatch `json:"mismatches"`
}

// errMismatch is returned when the replay diverged from the trace.
var errMismatch = errors.New("replay diverged from trace")

func runReplay(args []string) error {
	path := args[0]
	printVerbose("Opening trace: %s\n", path)

	r, err := trace.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer r.Close()

	result := ReplayResult{Trace: path, Mismatches: []Mismatch{}}
	var a *allocator.Allocator
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		result.Records++

		if rec.Op == trace.OpInit {
			if a, err = newAllocator(rec.Start, rec.End, rec.PageSize); err != nil {
				return fmt.Errorf("record %d: %w", rec.Seq, err)
			}
			continue
		}
		if a == nil {
			if a, err = newAllocator(regionStart, regionEnd, pageSize); err != nil {
				return err
			}
		}
		if m, ok := replayRecord(a, rec); !ok {
			result.Mismatches = append(result.Mismatches, m)
		}
	}

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printInfo("\nReplay: %s\n", path)
		printInfo("%s\n\n", strings.Repeat("=", 40))
		printInfo("Records: %d\n", result.Records)
		printInfo("Mismatches: %d\n", len(result.Mismatches))
		for i, m := range result.Mismatches {
			if i == replayMaxReport {
				printInfo("  ... (%d more)\n", len(result.Mismatches)-i)
				break
			}
			printInfo("  #%d %s: want %s, got %s\n", m.Seq, m.Op, m.Want, m.Got)
		}
		if a != nil {
			printVerbose("\n%s\n", a.Stats())
		}
	}

	if n := len(result.Mismatches); n > 0 {
		return fmt.Errorf("%w: %d of %d records", errMismatch, n, result.Records)
	}
	return nil
}

// replayRecord applies rec to a and reports whether the outcome matches.
func replayRecord(a *allocator.Allocator, rec trace.Record) (Mismatch, bool) {
	m := Mismatch{Seq: rec.Seq, Op: string(rec.Op)}
	switch rec.Op {
	case trace.OpAlloc:
		addr, err := a.Allocate(uintptr(rec.Size))
		m.Want, m.Got = outcome(rec.Addr, rec.Err), outcome(uint64(addr), errText(err))
	case trace.OpRelease:
		err := a.Release(uintptr(rec.Addr))
		m.Want, m.Got = outcome(0, rec.Err), outcome(0, errText(err))
	default:
		m.Want, m.Got = "known op", "unknown op"
	}
	return m, m.Want == m.Got
}

func outcome(addr uint64, errText string) string {
	if errText != "" {
		return "error: " + errText
	}
	if addr == 0 {
		return "ok"
	}
	return fmt.Sprintf("0x%x", addr)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
