package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/pagezone/internal/backing"
	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/internal/trace"
	"github.com/joshuapare/pagezone/pkg/allocator"
	"github.com/joshuapare/pagezone/pkg/types"
)

var (
	simOps        int
	simSeed       uint64
	simMaxSize    uint64
	simTrace      string
	simMmap       bool
	simWorkers    int
	simQuarantine int
)

func init() {
	cmd := newSimulateCmd()
	addLayoutFlags(cmd)
	cmd.Flags().IntVar(&simOps, "ops", 10000, "Number of operations per worker")
	cmd.Flags().Uint64Var(&simSeed, "seed", 1, "Random seed")
	cmd.Flags().Uint64Var(&simMaxSize, "max-size", 16384, "Largest request in bytes")
	cmd.Flags().StringVar(&simTrace, "trace", "", "Write the operations to a trace file (.jsonl, .zst or .s2)")
	cmd.Flags().BoolVar(&simMmap, "mmap", false, "Back the range with mapped memory and check every allocation's contents")
	cmd.Flags().IntVar(&simWorkers, "workers", 1, "Goroutines sharing one synchronized allocator")
	cmd.Flags().IntVar(&simQuarantine, "quarantine", 0, "Delay reuse of the last N released addresses")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a seeded random workload",
		Long: `The simulate command allocates and releases random sizes against a
fresh allocator and reports what happened. The same seed always produces the
same workload and, with one worker, the same addresses.

Example:
  pzctl simulate --ops 100000 --seed 7
  pzctl simulate --trace run.jsonl.zst
  pzctl simulate --mmap --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	}
	return cmd
}

// SimResult is the simulate command's report.
type SimResult struct {
	Ops          int    `json:"ops"`
	Allocs       int    `json:"allocs"`
	Releases     int    `json:"releases"`
	Failed       int    `json:"failed"`
	PeakLive     int    `json:"peak_live"`
	PeakBytes    uint64 `json:"peak_bytes"`
	Checked      int    `json:"checked,omitempty"`
	TraceRecords int    `json:"trace_records,omitempty"`

	Stats allocator.Stats `json:"-"`
}

// allocReleaser is the part of the allocator a workload drives.
type allocReleaser interface {
	Allocate(size uintptr) (uintptr, error)
	Release(addr uintptr) error
}

type liveBlock struct {
	addr, size uintptr
	fill       byte
}

// workload runs one worker's operation stream.
type workload struct {
	a       allocReleaser
	rng     *rand.Rand
	mem     *backing.Memory
	tw      *trace.Writer
	maxSize uint64

	live   []liveBlock
	bytes  uint64
	result SimResult
}

func runSimulate() error {
	if simWorkers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	if simMaxSize == 0 {
		return fmt.Errorf("--max-size must be positive")
	}
	if simWorkers > 1 && (simTrace != "" || simQuarantine > 0) {
		return fmt.Errorf("--trace and --quarantine need a single worker")
	}
	if simTrace != "" && simQuarantine > 0 {
		return fmt.Errorf("--trace cannot be combined with --quarantine")
	}

	start, end := regionStart, regionEnd
	var mem *backing.Memory
	if simMmap {
		if end <= start {
			return fmt.Errorf("invalid range 0x%x-0x%x", start, end)
		}
		if err := backing.CheckHostMemory(end - start); err != nil {
			return err
		}
		var err error
		if mem, err = backing.Map(int(end - start)); err != nil {
			return fmt.Errorf("failed to map memory: %w", err)
		}
		defer mem.Close()
		r := mem.Region()
		rEnd, ok := r.End()
		if !ok {
			return fmt.Errorf("mapped region 0x%x+0x%x wraps the address space", r.Address, r.Size)
		}
		start, end = uint64(r.Address), uint64(rEnd)
		printVerbose("Mapped %s at 0x%x\n", humanize.IBytes(uint64(r.Size)), r.Address)
	}

	a, err := newAllocator(start, end, pageSize)
	if err != nil {
		return err
	}

	var result SimResult
	if simWorkers == 1 {
		result, err = simulateSingle(a, mem, start, end)
	} else {
		result, err = simulateParallel(a, mem)
	}
	if err != nil {
		return err
	}
	result.Stats = a.Stats()

	if jsonOut {
		return printJSON(struct {
			SimResult
			Stats allocator.Stats `json:"stats"`
		}{result, result.Stats})
	}

	printInfo("\nSimulation (seed %d, %d workers)\n", simSeed, simWorkers)
	printInfo("%s\n\n", strings.Repeat("=", 40))
	printInfo("Operations: %d\n", result.Ops)
	printInfo("  Allocations: %d (%d failed)\n", result.Allocs, result.Failed)
	printInfo("  Releases: %d\n", result.Releases)
	printInfo("  Peak: %d live blocks, %s requested\n", result.PeakLive, humanize.IBytes(result.PeakBytes))
	if result.Checked > 0 {
		printInfo("  Contents verified: %d blocks\n", result.Checked)
	}
	if result.TraceRecords > 0 {
		printInfo("  Trace: %d records in %s\n", result.TraceRecords, simTrace)
	}
	printInfo("\n%s\n", result.Stats)
	return nil
}

func simulateSingle(a *allocator.Allocator, mem *backing.Memory, start, end uint64) (result SimResult, err error) {
	w := &workload{
		a:       a,
		rng:     rand.New(rand.NewPCG(simSeed, simSeed)),
		mem:     mem,
		maxSize: simMaxSize,
	}

	var q *allocator.Quarantine
	if simQuarantine > 0 {
		if q, err = allocator.NewQuarantine(a, simQuarantine); err != nil {
			return result, err
		}
		w.a = q
	}

	if simTrace != "" {
		if w.tw, err = trace.Create(simTrace); err != nil {
			return result, fmt.Errorf("failed to create trace: %w", err)
		}
		defer func() {
			err = errors.Join(err, w.tw.Close())
		}()
		err = w.tw.Write(trace.Record{Op: trace.OpInit, Start: start, End: end, PageSize: pageSize})
		if err != nil {
			return result, err
		}
	}

	if err := w.run(simOps); err != nil {
		return w.result, err
	}
	if q != nil {
		if err := q.Flush(); err != nil {
			return w.result, err
		}
	}
	if w.tw != nil {
		w.result.TraceRecords = w.tw.Count()
	}
	return w.result, nil
}

func simulateParallel(a *allocator.Allocator, mem *backing.Memory) (SimResult, error) {
	s := allocator.NewSynchronized(a)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total SimResult
		errs  []error
	)
	for i := 0; i < simWorkers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := &workload{
				a:       s,
				rng:     rand.New(rand.NewPCG(simSeed, uint64(i))),
				mem:     mem,
				maxSize: simMaxSize,
			}
			err := w.run(simOps)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("worker %d: %w", i, err))
			}
			total.Ops += w.result.Ops
			total.Allocs += w.result.Allocs
			total.Releases += w.result.Releases
			total.Failed += w.result.Failed
			total.Checked += w.result.Checked
			total.PeakLive += w.result.PeakLive
			total.PeakBytes += w.result.PeakBytes
		}(i)
	}
	wg.Wait()
	logger.Debug("simulate: workers done", "workers", simWorkers, "ops", total.Ops)
	return total, errors.Join(errs...)
}

// run performs n random operations and then releases everything still live.
func (w *workload) run(n int) error {
	for i := 0; i < n; i++ {
		w.result.Ops++
		var err error
		if len(w.live) == 0 || w.rng.IntN(100) < 55 {
			err = w.allocate(uintptr(1 + w.rng.Uint64N(w.maxSize)))
		} else {
			err = w.release(w.rng.IntN(len(w.live)))
		}
		if err != nil {
			return err
		}
	}
	for len(w.live) > 0 {
		if err := w.release(len(w.live) - 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *workload) allocate(size uintptr) error {
	w.result.Allocs++
	fill := byte(w.result.Allocs)

	var addr uintptr
	var err error
	switch a := w.a.(type) {
	case *allocator.Synchronized:
		// Fill outside the allocator lock.
		addr, err = a.AllocateFunc(size, func(addr uintptr) error {
			return w.fill(addr, size, fill)
		})
	default:
		if addr, err = a.Allocate(size); err == nil {
			err = w.fill(addr, size, fill)
		}
	}
	if w.tw != nil {
		rec := trace.Record{Op: trace.OpAlloc, Size: uint64(size), Addr: uint64(addr)}
		if err != nil {
			rec.Err = err.Error()
		}
		if terr := w.tw.Write(rec); terr != nil {
			return terr
		}
	}
	if err != nil {
		if errors.Is(err, types.ErrKindOutOfMemory) {
			w.result.Failed++
			return nil
		}
		return fmt.Errorf("allocate %d: %w", size, err)
	}

	w.live = append(w.live, liveBlock{addr: addr, size: size, fill: fill})
	w.bytes += uint64(size)
	w.result.PeakLive = max(w.result.PeakLive, len(w.live))
	w.result.PeakBytes = max(w.result.PeakBytes, w.bytes)
	return nil
}

func (w *workload) fill(addr, size uintptr, b byte) error {
	if w.mem == nil {
		return nil
	}
	return w.mem.Fill(addr, int(size), b)
}

func (w *workload) release(i int) error {
	b := w.live[i]
	w.live[i] = w.live[len(w.live)-1]
	w.live = w.live[:len(w.live)-1]
	w.bytes -= uint64(b.size)
	w.result.Releases++

	if w.mem != nil {
		ok, err := w.mem.Verify(b.addr, int(b.size), b.fill)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("block 0x%x (%d bytes) was overwritten", b.addr, b.size)
		}
		w.result.Checked++
	}

	err := w.a.Release(b.addr)
	if w.tw != nil {
		rec := trace.Record{Op: trace.OpRelease, Addr: uint64(b.addr)}
		if err != nil {
			rec.Err = err.Error()
		}
		if terr := w.tw.Write(rec); terr != nil {
			return terr
		}
	}
	if err != nil {
		return fmt.Errorf("release 0x%x: %w", b.addr, err)
	}
	return nil
}
