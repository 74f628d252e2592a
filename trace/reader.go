package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Option configures a Reader at construction time, in the same
// functional-options style the allocator and the rest of this repo use.
type Option func(*Reader)

// WithVariant selects the trace record layout. Defaults to VariantDefault.
func WithVariant(v Variant) Option {
	return func(r *Reader) {
		r.variant = v
	}
}

// Reader decodes a sequential stream of fixed-width trace records. It
// has no index or header: it reads records back-to-back until EOF,
// matching the tracer collaborator's on-disk format.
type Reader struct {
	r       io.Reader
	variant Variant
	buf     []byte
	index   uint64
}

// NewReader wraps r as a trace record stream.
func NewReader(r io.Reader, opts ...Option) *Reader {
	tr := &Reader{r: r, variant: VariantDefault}
	for _, opt := range opts {
		opt(tr)
	}
	tr.buf = make([]byte, recordSize(tr.variant))
	return tr
}

// Variant returns the layout this reader decodes.
func (tr *Reader) Variant() Variant { return tr.variant }

// Index returns the zero-based index of the next record to be read.
func (tr *Reader) Index() uint64 { return tr.index }

// ReadRecord decodes and returns the next record, or io.EOF once the
// underlying stream is exhausted. A short read partway through a record
// is reported as io.ErrUnexpectedEOF, since it indicates a truncated
// trace file rather than a clean end of stream.
func (tr *Reader) ReadRecord() (Record, error) {
	if _, err := io.ReadFull(tr.r, tr.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, fmt.Errorf("trace: truncated record at index %d: %w", tr.index, err)
		}
		return Record{}, err
	}

	rec := decode(tr.buf, tr.variant)
	tr.index++
	return rec, nil
}

// decode unpacks a raw little-endian record buffer: ip (8B) |
// is_branch (1B) | branch_taken (1B) | destination_registers[D] |
// source_registers[4] | destination_memory[D]*8B | source_memory[4]*8B |
// asid[2] (SPARC only).
func decode(buf []byte, v Variant) Record {
	d := v.destinationSlots()
	off := 0

	rec := Record{}
	rec.IP = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8

	rec.IsBranch = buf[off] != 0
	off++
	rec.BranchTaken = buf[off] != 0
	off++

	rec.DestinationRegisters = make([]uint8, d)
	copy(rec.DestinationRegisters, buf[off:off+d])
	off += d

	copy(rec.SourceRegisters[:], buf[off:off+sourceSlots])
	off += sourceSlots

	rec.DestinationMemory = make([]uint64, d)
	for i := 0; i < d; i++ {
		rec.DestinationMemory[i] = binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
	}

	for i := 0; i < sourceSlots; i++ {
		rec.SourceMemory[i] = binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
	}

	if v == VariantSPARC {
		copy(rec.ASID[:], buf[off:off+2])
		off += 2
	}

	return rec
}
