// Package trace records allocator operations as JSON lines so a workload
// can be stored and replayed. Files ending in .zst are zstd compressed and
// files ending in .s2 are S2 compressed.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

var config = jsoniter.Config{
	OnlyTaggedField: true,
	CaseSensitive:   true,
}.Froze()

// Op names a recorded operation.
type Op string

const (
	OpInit    Op = "init"
	OpAlloc   Op = "alloc"
	OpRelease Op = "release"
)

// Record is one line of a trace.
type Record struct {
	Seq  int    `json:"seq"`
	Op   Op     `json:"op"`
	Size uint64 `json:"size,omitempty"` // alloc: requested bytes
	Addr uint64 `json:"addr,omitempty"` // alloc: result, release: argument
	Err  string `json:"err,omitempty"`  // error text of a failed call

	// init only
	Start    uint64 `json:"start,omitempty"`
	End      uint64 `json:"end,omitempty"`
	PageSize uint64 `json:"page_size,omitempty"`
}

// Compression selects the stream format.
type Compression int

const (
	None Compression = iota
	Zstd
	S2
)

// CompressionFor picks the format from the file extension.
func CompressionFor(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return Zstd
	case strings.HasSuffix(path, ".s2"):
		return S2
	}
	return None
}

// Writer appends records to a stream.
type Writer struct {
	enc     *jsoniter.Encoder
	closers []io.Closer
	seq     int
}

// Create creates the trace file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closers = append(w.closers, f)
	return w, nil
}

// NewWriter writes records to w. Closing the Writer flushes compression
// but does not close w.
func NewWriter(w io.Writer, c Compression) (*Writer, error) {
	tw := &Writer{}
	switch c {
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("trace: zstd writer: %w", err)
		}
		tw.closers = append(tw.closers, zw)
		w = zw
	case S2:
		sw := s2.NewWriter(w)
		tw.closers = append(tw.closers, sw)
		w = sw
	}
	tw.enc = config.NewEncoder(w)
	return tw, nil
}

// Write appends r, numbering it with the next sequence number.
func (w *Writer) Write(r Record) error {
	w.seq++
	r.Seq = w.seq
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("trace: record %d: %w", r.Seq, err)
	}
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.seq }

// Close flushes and closes the stream.
func (w *Writer) Close() error {
	var errs []error
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	w.closers = nil
	return errors.Join(errs...)
}

// Reader reads records from a stream.
type Reader struct {
	dec     *jsoniter.Decoder
	closers []func() error
	last    int // Seq of the last record read
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f.Close)
	return r, nil
}

// NewReader reads records from r.
func NewReader(r io.Reader, c Compression) (*Reader, error) {
	tr := &Reader{}
	switch c {
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("trace: zstd reader: %w", err)
		}
		tr.closers = append(tr.closers, func() error { zr.Close(); return nil })
		r = zr
	case S2:
		r = s2.NewReader(r)
	}
	tr.dec = config.NewDecoder(r)
	return tr, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	if !r.dec.More() {
		return Record{}, io.EOF
	}
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("trace: after record %d: %w", r.last, err)
	}
	if rec.Op == "" {
		return Record{}, fmt.Errorf("trace: after record %d: record without op", r.last)
	}
	r.last = rec.Seq
	return rec, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close releases the stream.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}
