package regalloc

import (
	"fmt"
	"io"
)

// Violation describes one failed invariant found by Validate.
type Violation struct {
	// Invariant names which correctness property was violated (e.g. "I1"
	// for the free-list-iff-not-busy invariant).
	Invariant string
	// Detail is a human-readable description of the specific failure.
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
}

// Validate re-derives invariants 1 (free list iff !busy), 2 (no
// duplicates in the free list), and 5 (no live rename-history entry
// points at a register that's in the free list), and returns every
// violation found. Intended for assertion in debug builds and for
// property tests; never mutates state.
func (a *Allocator) Validate() []Violation {
	var violations []Violation

	freeSet := make(map[PhysReg]bool)
	for _, p := range a.free.All() {
		if freeSet[p] {
			violations = append(violations, Violation{"I2", fmt.Sprintf("phys reg %d appears more than once in the free list", p)})
		}
		freeSet[p] = true

		slot, err := a.prf.get(p)
		if err == nil && slot.Busy {
			violations = append(violations, Violation{"I1", fmt.Sprintf("phys reg %d is in the free list but marked busy", p)})
		}
	}

	for p := 0; p < a.prf.size(); p++ {
		slot, _ := a.prf.get(PhysReg(p))
		inFree := freeSet[PhysReg(p)]
		if !slot.Busy && !inFree {
			violations = append(violations, Violation{"I1", fmt.Sprintf("phys reg %d is not busy but missing from the free list", p)})
		}
	}

	for instr, cps := range a.history.all() {
		for _, cp := range cps {
			if freeSet[cp.NewPhysReg] {
				violations = append(violations, Violation{"I5", fmt.Sprintf("instr %d's rename history claims phys reg %d, but it is in the free list", instr, cp.NewPhysReg)})
			}
		}
	}

	return violations
}

// CheckInvariants runs Validate and, if it finds any violations, returns
// them joined into a single error wrapping ErrInvariantViolation. Intended
// for callers that want a one-line fatal check rather than walking the
// []Violation slice themselves.
func (a *Allocator) CheckInvariants() error {
	violations := a.Validate()
	if len(violations) == 0 {
		return nil
	}

	detail := violations[0].String()
	if len(violations) > 1 {
		detail = fmt.Sprintf("%s (and %d more)", detail, len(violations)-1)
	}
	return fmt.Errorf("regalloc: %s: %w", detail, ErrInvariantViolation)
}

// Dump writes a human-readable snapshot of both RATs, the physical
// register file, and the rename history to w, suitable for deadlock
// diagnosis when CountFree() == 0.
func (a *Allocator) Dump(w io.Writer) {
	fmt.Fprintf(w, "Frontend Register Allocation Table        Backend Register Allocation Table\n")
	for i := 0; i < ArchRegCount; i++ {
		fmt.Fprintf(w, "Arch reg: %3d    Phys reg: %3d            Arch reg: %3d    Phys reg: %3d\n",
			i, a.frontend.entries[i], i, a.backend.entries[i])
	}

	if a.CountFree() == 0 {
		fmt.Fprintf(w, "\n**WARNING** the physical register file is completely occupied.\n")
		fmt.Fprintf(w, "It is extremely likely num_physical_registers is too small.\n")
	}

	fmt.Fprintf(w, "\nPhysical Register File\n")
	for i := 0; i < a.prf.size(); i++ {
		slot := a.prf.slots[i]
		fmt.Fprintf(w, "Phys reg: %3d\t Arch reg: %3d\t Producer: %d\t Valid: %v\t Busy: %v\n",
			i, slot.ArchRegIndex, slot.ProducingInstructionID, slot.Valid, slot.Busy)
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Rename History (%d instructions)\n", len(a.history.all()))
	for instr, cps := range a.history.all() {
		fmt.Fprintf(w, "  instr %d: %d renames\n", instr, len(cps))
		for _, cp := range cps {
			fmt.Fprintf(w, "    arch_reg %3d : %3d -> %3d\n", cp.ArchReg, cp.OldPhysReg, cp.NewPhysReg)
		}
	}
}
