package regalloc

import (
	"fmt"
	"io"
	"math"
)

// MaxPhysID is the largest number of physical registers this PhysReg
// encoding can address.
const MaxPhysID = math.MaxInt32

// Allocator is the register-rename unit: the public contract composing
// the free list, physical register file, frontend/backend RATs, and
// rename history. It is single-threaded and cooperative: callers
// serialize all calls, there is no internal locking.
type Allocator struct {
	free     *freeList
	prf      *physicalRegisterFile
	frontend *registerAliasTable
	backend  *registerAliasTable
	history  *renameHistory

	debugDump io.Writer
}

// NewAllocator constructs an Allocator with numPhysicalRegisters physical
// registers, all initially free, and both RATs fully Unmapped.
func NewAllocator(numPhysicalRegisters int, opts ...Option) (*Allocator, error) {
	if numPhysicalRegisters <= 0 || numPhysicalRegisters > MaxPhysID {
		return nil, fmt.Errorf("regalloc: num_physical_registers %d out of range (0, %d]", numPhysicalRegisters, MaxPhysID)
	}

	a := &Allocator{
		free:     newFreeList(numPhysicalRegisters),
		prf:      newPhysicalRegisterFile(numPhysicalRegisters),
		frontend: newRegisterAliasTable(),
		backend:  newRegisterAliasTable(),
		history:  newRenameHistory(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NumPhysical returns NUM_PHYSICAL, the fixed size of the physical
// register file.
func (a *Allocator) NumPhysical() int { return a.prf.size() }

func (a *Allocator) trace(format string, args ...any) {
	if a.debugDump != nil {
		fmt.Fprintf(a.debugDump, format, args...)
	}
}

// RenameDest allocates a new PhysReg for archReg's destination write by
// instruction producerID. It records the previous frontend mapping as a
// checkpoint before overwriting it, so UndoRename can restore it later.
// Fails with ErrNoFreeRegister if the free list is empty.
func (a *Allocator) RenameDest(archReg ArchReg, producerID InstructionID) (PhysReg, error) {
	if !a.frontend.inRange(archReg) {
		return Unmapped, fmt.Errorf("RenameDest arch reg %d: %w", archReg, ErrOutOfRange)
	}
	if a.free.Len() == 0 {
		return Unmapped, fmt.Errorf("RenameDest arch reg %d producer %d: %w", archReg, producerID, ErrNoFreeRegister)
	}

	oldPhys, _ := a.frontend.get(archReg)
	newPhys := a.free.PopFront()

	_ = a.prf.set(newPhys, Slot{
		ArchRegIndex:           archReg,
		ProducingInstructionID: producerID,
		Valid:                  false,
		Busy:                   true,
	})
	_ = a.frontend.set(archReg, newPhys)
	a.history.record(producerID, RenameCheckpoint{ArchReg: archReg, OldPhysReg: oldPhys, NewPhysReg: newPhys})

	a.trace("[regalloc] rename_dest instr=%d arch=%d %d->%d\n", producerID, archReg, oldPhys, newPhys)
	return newPhys, nil
}

// RenameSrc returns archReg's current frontend mapping. If archReg has
// never been written in the observed trace window, it allocates a fresh
// PhysReg, marks it already-valid, and writes it into both RATs — the
// unseen prior write is treated as already architecturally committed.
// This fresh allocation is deliberately not recorded in rename history
// (source reads are architectural, not speculative) and so cannot be
// undone by UndoRename; see the design notes on trace-slice semantics.
func (a *Allocator) RenameSrc(archReg ArchReg) (PhysReg, error) {
	phys, err := a.frontend.get(archReg)
	if err != nil {
		return Unmapped, fmt.Errorf("RenameSrc arch reg %d: %w", archReg, err)
	}
	if phys != Unmapped {
		return phys, nil
	}

	if a.free.Len() == 0 {
		return Unmapped, fmt.Errorf("RenameSrc arch reg %d: %w", archReg, ErrNoFreeRegister)
	}

	phys = a.free.PopFront()
	_ = a.prf.set(phys, Slot{
		ArchRegIndex:           archReg,
		ProducingInstructionID: 0,
		Valid:                  true,
		Busy:                   true,
	})
	_ = a.frontend.set(archReg, phys)
	_ = a.backend.set(archReg, phys)

	a.trace("[regalloc] rename_src fresh-alloc arch=%d -> %d\n", archReg, phys)
	return phys, nil
}

// Complete marks phys's value as present. Idempotent; does not change Busy.
func (a *Allocator) Complete(phys PhysReg) error {
	slot, err := a.prf.get(phys)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	slot.Valid = true
	_ = a.prf.set(phys, slot)
	a.trace("[regalloc] complete phys=%d\n", phys)
	return nil
}

// Retire promotes phys's architectural register mapping into the backend
// RAT and frees the backend RAT's previous mapping for that register, if
// any. The caller must separately call RetireRename once the retirement
// is committed, to drop that instruction's rename history.
func (a *Allocator) Retire(phys PhysReg) error {
	slot, err := a.prf.get(phys)
	if err != nil {
		return fmt.Errorf("Retire: %w", err)
	}

	archReg := slot.ArchRegIndex
	oldPhys, err := a.backend.get(archReg)
	if err != nil {
		return fmt.Errorf("Retire phys=%d arch=%d: %w", phys, archReg, err)
	}

	if err := a.backend.set(archReg, phys); err != nil {
		return fmt.Errorf("Retire phys=%d arch=%d: %w", phys, archReg, err)
	}

	if oldPhys != Unmapped {
		if err := a.FreeRegister(oldPhys); err != nil {
			return fmt.Errorf("Retire phys=%d arch=%d: freeing old mapping %d: %w", phys, archReg, oldPhys, err)
		}
	}

	a.trace("[regalloc] retire phys=%d arch=%d freed=%d\n", phys, archReg, oldPhys)
	return nil
}

// FreeRegister resets phys's slot to the FREE lifecycle state and pushes
// it onto the free list. Precondition: phys is not already in the free
// list (invariant 2); violating this is a caller bug, not a typed error.
func (a *Allocator) FreeRegister(phys PhysReg) error {
	if !a.prf.inRange(phys) {
		return fmt.Errorf("FreeRegister phys=%d: %w", phys, ErrOutOfRange)
	}
	a.prf.free(phys)
	a.free.PushBack(phys)
	return nil
}

// RetireRename drops instr's rename history now that its retirement has
// committed and the history is no longer needed for rollback. No-op if
// instr has no recorded history (e.g. it had no destinations).
func (a *Allocator) RetireRename(instr InstructionID) {
	a.history.forget(instr)
	a.trace("[regalloc] retire_rename instr=%d\n", instr)
}

// UndoRename rolls back every rename attributed to instr, in LIFO order
// (last checkpoint first), so that if the same ArchReg was renamed twice
// within instr the earliest OldPhysReg ends up in the frontend RAT. For
// each checkpoint it restores the frontend RAT entry, frees the new
// PhysReg, and returns it to the free list. It never touches the backend
// RAT: a squashed instruction by definition has not retired. No-op if
// instr has no history. If a checkpoint's NewPhysReg is out of range, its
// slot reset is skipped but the history entry is still removed
// (defensive: this signals a caller bug, not something to recover from
// here).
//
// To undo an entire squashed region the caller must invoke this once per
// squashed instruction in reverse program order (youngest first); the
// allocator does not track program order itself.
func (a *Allocator) UndoRename(instr InstructionID) {
	cps, ok := a.history.take(instr)
	if !ok {
		return
	}

	for i := len(cps) - 1; i >= 0; i-- {
		cp := cps[i]
		_ = a.frontend.set(cp.ArchReg, cp.OldPhysReg)

		if a.prf.inRange(cp.NewPhysReg) {
			a.prf.free(cp.NewPhysReg)
			a.free.PushBack(cp.NewPhysReg)
		}

		a.trace("[regalloc] undo_rename instr=%d arch=%d restore=%d freed=%d\n", instr, cp.ArchReg, cp.OldPhysReg, cp.NewPhysReg)
	}
}

// ResetFrontendRAT copies the backend RAT onto the frontend RAT, for use
// on a full pipeline flush. It does not itself free physical registers
// held by squashed speculative instructions: callers must invoke
// UndoRename for every squashed instruction first, or this leaks
// physical registers and eventually triggers ErrNoFreeRegister.
func (a *Allocator) ResetFrontendRAT() {
	a.frontend.copyFrom(a.backend)
}

// IsValid reports whether phys's value is present.
func (a *Allocator) IsValid(phys PhysReg) (bool, error) {
	slot, err := a.prf.get(phys)
	if err != nil {
		return false, fmt.Errorf("IsValid: %w", err)
	}
	return slot.Valid, nil
}

// IsAllocated reports whether archReg currently has a frontend mapping.
func (a *Allocator) IsAllocated(archReg ArchReg) (bool, error) {
	phys, err := a.frontend.get(archReg)
	if err != nil {
		return false, fmt.Errorf("IsAllocated: %w", err)
	}
	return phys != Unmapped, nil
}

// CountFree returns the number of free physical registers.
func (a *Allocator) CountFree() int { return a.free.Len() }

// IsFree reports whether phys is currently on the free list (a PhysReg
// is in the free list iff its slot is not busy). Not part of the
// minimal rename contract, but a natural total query alongside
// IsValid/IsAllocated, useful for diagnostics and tests.
func (a *Allocator) IsFree(phys PhysReg) (bool, error) {
	if !a.prf.inRange(phys) {
		return false, fmt.Errorf("IsFree: %w", ErrOutOfRange)
	}
	return a.free.Contains(phys), nil
}

// CountUnreadySources returns, given an instruction's pre-renamed source
// PhysReg set, how many of them are not yet Valid. Used by the scheduler
// to decide wake-up; registers outside [0, NUM_PHYSICAL) count as not
// ready rather than erroring, since a scheduler should never hold such an
// ID in the first place.
func (a *Allocator) CountUnreadySources(sources []PhysReg) int {
	count := 0
	for _, p := range sources {
		slot, err := a.prf.get(p)
		if err != nil || !slot.Valid {
			count++
		}
	}
	return count
}

// CurrentMapping returns archReg's frontend RAT entry.
func (a *Allocator) CurrentMapping(archReg ArchReg) (PhysReg, error) {
	phys, err := a.frontend.get(archReg)
	if err != nil {
		return Unmapped, fmt.Errorf("CurrentMapping: %w", err)
	}
	return phys, nil
}

// BackendMapping returns archReg's backend (architecturally retired) RAT
// entry. Not part of the minimal public rename contract, but exposed
// alongside CurrentMapping since Dump and ResetFrontendRAT both need to
// reason about the backend RAT and tests need a way to assert on it too.
func (a *Allocator) BackendMapping(archReg ArchReg) (PhysReg, error) {
	phys, err := a.backend.get(archReg)
	if err != nil {
		return Unmapped, fmt.Errorf("BackendMapping: %w", err)
	}
	return phys, nil
}

// ProducerOf returns the instruction that will write phys, or 0 if phys
// is out of range.
func (a *Allocator) ProducerOf(phys PhysReg) InstructionID {
	slot, err := a.prf.get(phys)
	if err != nil {
		return 0
	}
	return slot.ProducingInstructionID
}
