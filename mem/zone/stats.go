package zone

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/pagezone/mem/list"
)

type counters struct {
	AllocCalls    int
	FreeCalls     int
	FailedAllocs  int
	ZonesCreated  int
	ZonesReleased int
}

// ClassStats summarizes the zones of one chunk size.
type ClassStats struct {
	ChunkSize  uintptr
	Zones      int
	Chunks     int
	FreeChunks int
}

// Stats is a point-in-time summary of a zone Allocator.
type Stats struct {
	counters

	Zones           int
	UsedMemory      uint64 // bytes of pages backing zones
	FreeMemory      uint64 // bytes in free chunks
	AllocatedMemory uint64 // bytes in allocated chunks

	Classes []ClassStats // non-empty classes, smallest chunk size first
}

// Stats returns current usage figures.
func (a *Allocator) Stats() Stats {
	s := Stats{counters: a.stats}
	for ci := range a.classes {
		c := &a.classes[ci]
		if c.zones.Empty() {
			continue
		}
		cs := ClassStats{ChunkSize: MinChunkSize << ci, FreeChunks: c.free}
		c.zones.Do(a.nodes, func(i list.Index) bool {
			z := a.slots[i]
			cs.Zones++
			cs.Chunks += z.ChunkCount()
			s.UsedMemory += uint64(z.End() - z.Base())
			return true
		})
		s.Zones += cs.Zones
		s.FreeMemory += uint64(cs.FreeChunks) * uint64(cs.ChunkSize)
		s.Classes = append(s.Classes, cs)
	}
	s.AllocatedMemory = s.UsedMemory - s.FreeMemory
	return s
}

// String renders the summary on one line.
func (s Stats) String() string {
	return fmt.Sprintf("%d zones, %s allocated, %s free in %s of pages",
		s.Zones, humanize.IBytes(s.AllocatedMemory), humanize.IBytes(s.FreeMemory),
		humanize.IBytes(s.UsedMemory))
}
