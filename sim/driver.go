// Package sim provides a minimal cycle-stepped collaborator that drives
// the register allocator the way a real pipeline front end, execute
// stage, and retirement stage would: it presents rename_src/rename_dest
// calls in decode order, completes destinations after a configurable
// latency, retires them in program order, and can squash an in-flight
// suffix by undoing renames in reverse program order. It exists only to
// exercise the allocator's contract end to end; it does not model a
// scheduler, ROB, branch predictor, or memory hierarchy (the same
// non-goals the allocator itself carries).
package sim

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/regsim/regalloc"
	"github.com/sarchlab/regsim/trace"
)

// RecordReader is the subset of *trace.Reader the driver needs, to keep
// the driver testable against a fake source.
type RecordReader interface {
	ReadRecord() (trace.Record, error)
}

// Stats holds driver-level counters, mirroring the shape of the
// surrounding simulator's own per-run statistics.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// InstructionsRetired is the number of instructions retired.
	InstructionsRetired uint64
	// Squashes is the number of instructions undone via Squash.
	Squashes uint64
	// StallsOnFreeList is the number of cycles admission stalled because
	// the allocator's free list was exhausted.
	StallsOnFreeList uint64
}

// IPC returns instructions retired per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.InstructionsRetired) / float64(s.Cycles)
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithConfig overrides the default window size and completion latency.
func WithConfig(config *Config) Option {
	return func(d *Driver) {
		d.config = config
	}
}

// WithVerbose enables a one-line-per-cycle trace to w.
func WithVerbose(w io.Writer) Option {
	return func(d *Driver) {
		d.verbose = w
	}
}

type inFlightInstr struct {
	id        regalloc.InstructionID
	destPhys  []regalloc.PhysReg
	dueCycle  uint64
	completed bool
}

// Driver steps the allocator through one simulated cycle at a time.
type Driver struct {
	alloc  *regalloc.Allocator
	reader RecordReader
	config *Config

	cycle     uint64
	nextInstr regalloc.InstructionID
	pending   *trace.Record
	readerEOF bool

	inFlight []*inFlightInstr
	stats    Stats

	verbose io.Writer
}

// NewDriver creates a Driver over alloc and reader. Instruction IDs
// start at 1: 0 is the allocator's own "no producer" sentinel for
// registers that have never been written by an in-flight rename.
func NewDriver(alloc *regalloc.Allocator, reader RecordReader, opts ...Option) *Driver {
	d := &Driver{
		alloc:     alloc,
		reader:    reader,
		config:    DefaultConfig(),
		nextInstr: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns the driver's current statistics.
func (d *Driver) Stats() Stats { return d.stats }

// Cycle returns the current cycle count.
func (d *Driver) Cycle() uint64 { return d.cycle }

func (d *Driver) trace(format string, args ...any) {
	if d.verbose != nil {
		fmt.Fprintf(d.verbose, format, args...)
	}
}

// Tick advances the simulation by one cycle: it admits a new instruction
// if the window has room, completes any instructions whose latency has
// elapsed, and retires completed instructions in program order. It
// returns false once the trace is exhausted and nothing remains in
// flight.
func (d *Driver) Tick() (bool, error) {
	if err := d.admit(); err != nil {
		return false, err
	}

	d.complete()
	d.retire()

	d.cycle++
	d.stats.Cycles = d.cycle

	more := !(d.readerEOF && d.pending == nil && len(d.inFlight) == 0)
	return more, nil
}

// admit fetches the next record (if none is already pending from a
// prior stall) and attempts to rename it into the allocator, provided
// the in-flight window has room.
func (d *Driver) admit() error {
	if d.pending == nil && !d.readerEOF {
		rec, err := d.reader.ReadRecord()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("sim: reading trace record: %w", err)
			}
			d.readerEOF = true
		} else {
			d.pending = &rec
		}
	}

	if d.pending == nil || len(d.inFlight) >= d.config.WindowSize {
		return nil
	}

	instr, err := d.renamePending()
	if err != nil {
		return err
	}
	if instr == nil {
		// Free list exhausted: leave d.pending in place and retry next
		// cycle, same as a real decode stage stalling.
		d.stats.StallsOnFreeList++
		return nil
	}

	d.inFlight = append(d.inFlight, instr)
	d.pending = nil
	return nil
}

// renamePending attempts to rename every source and destination of
// d.pending under a single instruction ID. If the free list is
// exhausted partway through, it undoes the destination renames it
// already made for this instruction and returns (nil, nil) so the caller
// retries next cycle. Fresh source allocations made before the failure
// are not in rename history and stay in place.
func (d *Driver) renamePending() (*inFlightInstr, error) {
	rec := d.pending
	id := d.nextInstr

	for i := 0; i < len(rec.SourceRegisters); i++ {
		if !rec.HasSource(i) {
			continue
		}
		if _, err := d.alloc.RenameSrc(regalloc.ArchReg(rec.SourceRegisters[i])); err != nil {
			return nil, nil
		}
	}

	var destPhys []regalloc.PhysReg
	for i := 0; i < len(rec.DestinationRegisters); i++ {
		if !rec.HasDestination(i) {
			continue
		}
		phys, err := d.alloc.RenameDest(regalloc.ArchReg(rec.DestinationRegisters[i]), id)
		if err != nil {
			d.alloc.UndoRename(id)
			return nil, nil
		}
		destPhys = append(destPhys, phys)
	}

	d.nextInstr++
	d.trace("[sim] cycle=%d admit instr=%d ip=0x%x dests=%v\n", d.cycle, id, rec.IP, destPhys)

	completed := len(destPhys) == 0
	return &inFlightInstr{
		id:        id,
		destPhys:  destPhys,
		dueCycle:  d.cycle + d.config.CompletionLatency,
		completed: completed,
	}, nil
}

// complete marks every in-flight instruction whose completion latency
// has elapsed as complete.
func (d *Driver) complete() {
	for _, inst := range d.inFlight {
		if inst.completed || d.cycle < inst.dueCycle {
			continue
		}
		for _, phys := range inst.destPhys {
			_ = d.alloc.Complete(phys)
		}
		inst.completed = true
		d.trace("[sim] cycle=%d complete instr=%d\n", d.cycle, inst.id)
	}
}

// retire retires completed instructions from the head of the in-flight
// queue, in program order, stopping at the first instruction that isn't
// complete yet.
func (d *Driver) retire() {
	for len(d.inFlight) > 0 {
		head := d.inFlight[0]
		if !head.completed {
			break
		}

		for _, phys := range head.destPhys {
			_ = d.alloc.Retire(phys)
		}
		d.alloc.RetireRename(head.id)

		d.inFlight = d.inFlight[1:]
		d.stats.InstructionsRetired++
		d.trace("[sim] cycle=%d retire instr=%d\n", d.cycle, head.id)
	}
}

// Squash undoes every in-flight instruction younger than keepInstr (that
// is, every instruction with an ID greater than keepInstr), in reverse
// program order, and drops them from the window. It does not touch
// already-retired state: UndoRename itself never touches the backend
// RAT.
func (d *Driver) Squash(keepInstr regalloc.InstructionID) {
	kept := d.inFlight[:0:0]
	var toSquash []*inFlightInstr

	for _, inst := range d.inFlight {
		if inst.id > keepInstr {
			toSquash = append(toSquash, inst)
		} else {
			kept = append(kept, inst)
		}
	}

	for i := len(toSquash) - 1; i >= 0; i-- {
		d.alloc.UndoRename(toSquash[i].id)
		d.stats.Squashes++
		d.trace("[sim] squash instr=%d\n", toSquash[i].id)
	}

	d.inFlight = kept
	d.nextInstr = keepInstr + 1
	d.pending = nil
}

// Run steps the driver to completion and returns its final statistics.
func (d *Driver) Run() (Stats, error) {
	for {
		more, err := d.Tick()
		if err != nil {
			return d.stats, err
		}
		if !more {
			return d.stats, nil
		}
	}
}
