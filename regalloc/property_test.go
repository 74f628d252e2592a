package regalloc_test

import (
	"math/rand"
	"testing"

	"github.com/sarchlab/regsim/regalloc"
)

// op is one step of a random legal operation sequence used to exercise
// the allocator's invariants under churn. Sequences are built so every
// op is legal given the model's own bookkeeping (no completing a
// register that was never renamed, no retiring the same instruction
// twice, etc.) — the allocator's contract leaves illegal sequences as
// undefined behavior, so a fuzzer only needs to cover the legal subset.
type op int

const (
	opRenameDest op = iota
	opRenameSrc
	opComplete
	opRetireAndClear
	opUndo
)

func TestInvariantsUnderRandomSequences(t *testing.T) {
	const numPhysical = 16
	const archSpace = 8

	for seed := int64(0); seed < 25; seed++ {
		rng := rand.New(rand.NewSource(seed))

		alloc, err := regalloc.NewAllocator(numPhysical)
		if err != nil {
			t.Fatalf("NewAllocator: %v", err)
		}

		type live struct {
			instr regalloc.InstructionID
			phys  regalloc.PhysReg
		}
		var inFlight []live
		nextInstr := regalloc.InstructionID(1)

		for step := 0; step < 300; step++ {
			freeBefore := alloc.CountFree()

			switch op(rng.Intn(5)) {
			case opRenameDest:
				if alloc.CountFree() == 0 {
					continue
				}
				arch := regalloc.ArchReg(rng.Intn(archSpace))
				instr := nextInstr
				nextInstr++
				p, err := alloc.RenameDest(arch, instr)
				if err != nil {
					t.Fatalf("RenameDest: %v", err)
				}
				if alloc.CountFree() != freeBefore-1 {
					t.Fatalf("RenameDest should decrease CountFree by exactly 1, got %d -> %d", freeBefore, alloc.CountFree())
				}
				inFlight = append(inFlight, live{instr, p})

			case opRenameSrc:
				arch := regalloc.ArchReg(rng.Intn(archSpace))
				wasAllocated, _ := alloc.IsAllocated(arch)
				_, err := alloc.RenameSrc(arch)
				if err != nil {
					continue // free list was empty: stalled, nothing changed
				}
				if !wasAllocated && alloc.CountFree() != freeBefore-1 {
					t.Fatalf("fresh RenameSrc should decrease CountFree by exactly 1")
				}

			case opComplete:
				if len(inFlight) == 0 {
					continue
				}
				l := inFlight[rng.Intn(len(inFlight))]
				if err := alloc.Complete(l.phys); err != nil {
					t.Fatalf("Complete: %v", err)
				}

			case opRetireAndClear:
				if len(inFlight) == 0 {
					continue
				}
				idx := rng.Intn(len(inFlight))
				l := inFlight[idx]

				if err := alloc.Complete(l.phys); err != nil {
					t.Fatalf("Complete before retire: %v", err)
				}
				if err := alloc.Retire(l.phys); err != nil {
					t.Fatalf("Retire: %v", err)
				}
				alloc.RetireRename(l.instr)
				inFlight = append(inFlight[:idx], inFlight[idx+1:]...)

			case opUndo:
				if len(inFlight) == 0 {
					continue
				}
				idx := rng.Intn(len(inFlight))
				l := inFlight[idx]
				freeBeforeUndo := alloc.CountFree()
				alloc.UndoRename(l.instr)
				if alloc.CountFree() != freeBeforeUndo+1 {
					t.Fatalf("UndoRename of a single-checkpoint instruction should increase CountFree by exactly 1")
				}
				inFlight = append(inFlight[:idx], inFlight[idx+1:]...)
			}

			if violations := alloc.Validate(); len(violations) > 0 {
				t.Fatalf("seed=%d step=%d: invariant violations: %v", seed, step, violations)
			}
		}

		busy := 0
		for p := 0; p < alloc.NumPhysical(); p++ {
			if free, _ := alloc.IsFree(regalloc.PhysReg(p)); !free {
				busy++
			}
		}
		if alloc.CountFree()+busy != numPhysical {
			t.Fatalf("free+busy should equal the physical register count %d, got free=%d busy=%d", numPhysical, alloc.CountFree(), busy)
		}
	}
}

func TestUndoRenameRoundTrip(t *testing.T) {
	// RenameDest followed by UndoRename returns the allocator to its
	// prior state.
	alloc, err := regalloc.NewAllocator(8)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}

	before := alloc.CountFree()
	mappingBefore, _ := alloc.CurrentMapping(3)

	p, err := alloc.RenameDest(3, 500)
	if err != nil {
		t.Fatalf("RenameDest: %v", err)
	}
	if p == mappingBefore {
		t.Fatalf("expected a fresh phys reg, got the same as before")
	}

	alloc.UndoRename(500)

	mappingAfter, _ := alloc.CurrentMapping(3)
	if mappingAfter != mappingBefore {
		t.Fatalf("frontend RAT not restored: got %v, want %v", mappingAfter, mappingBefore)
	}
	if alloc.CountFree() != before {
		t.Fatalf("CountFree not restored: got %d, want %d", alloc.CountFree(), before)
	}
	if violations := alloc.Validate(); len(violations) > 0 {
		t.Fatalf("violations after round trip: %v", violations)
	}
}

func TestRetirementMonotonicity(t *testing.T) {
	// After Retire(p) with slot[p].arch_reg_index == a, backend[a] == p,
	// and the previous backend[a] (if any) is back on the free list.
	alloc, err := regalloc.NewAllocator(8)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}

	p0, _ := alloc.RenameDest(2, 1)
	_ = alloc.Complete(p0)
	if err := alloc.Retire(p0); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	alloc.RetireRename(1)

	p1, _ := alloc.RenameDest(2, 2)
	_ = alloc.Complete(p1)
	if err := alloc.Retire(p1); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	alloc.RetireRename(2)

	backend, _ := alloc.BackendMapping(2)
	if backend != p1 {
		t.Fatalf("backend RAT should point at the most recently retired mapping: got %v, want %v", backend, p1)
	}

	free, err := alloc.IsFree(p0)
	if err != nil {
		t.Fatalf("IsFree: %v", err)
	}
	if !free {
		t.Fatalf("previous backend mapping %v should have been freed on retire of %v", p0, p1)
	}
}

func TestFreeListHasNoDuplicatesUnderChurn(t *testing.T) {
	// The free list must never contain a duplicate entry. Once arch 0..3
	// have all retired, four of the six physical registers hold those
	// retired mappings and the other two churn through rename/retire.
	alloc, err := regalloc.NewAllocator(6)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}

	type live struct {
		instr regalloc.InstructionID
		phys  regalloc.PhysReg
	}
	var inFlight []live
	retireAll := func() {
		for _, l := range inFlight {
			_ = alloc.Complete(l.phys)
			_ = alloc.Retire(l.phys)
			alloc.RetireRename(l.instr)
		}
		inFlight = inFlight[:0]
	}

	for i := 0; i < 100; i++ {
		arch := regalloc.ArchReg(i % 4)
		p, err := alloc.RenameDest(arch, regalloc.InstructionID(i))
		if err != nil {
			// free list momentarily exhausted: drain it by retiring
			// everything currently in flight, oldest first.
			retireAll()
			continue
		}
		inFlight = append(inFlight, live{regalloc.InstructionID(i), p})
		if i%3 == 0 {
			retireAll()
		}
		if violations := alloc.Validate(); len(violations) > 0 {
			t.Fatalf("step %d: %v", i, violations)
		}
	}
}
