// Package regalloc implements the physical register allocator and
// register-rename unit of an out-of-order CPU simulator core: the mapping
// between architectural registers and physical registers, dataflow
// readiness tracking, and speculative rollback of squashed renames.
package regalloc

// ArchReg is an architectural register index, as it appears in the
// instruction stream. The address space is fixed at ArchRegCount entries
// to match the trace encoding the allocator is coupled to.
type ArchReg uint16

// ArchRegCount is the fixed size of both RATs, matching the one-byte
// architectural register field in the trace record format.
const ArchRegCount = 256

// PhysReg is a physical register slot index in [0, NUM_PHYSICAL).
type PhysReg int32

// Unmapped is the sentinel PhysReg value meaning "no current mapping".
// Mirrors the reference encoding's signed int16 RAT entries with -1 as
// the unmapped sentinel (see the int16 ArchReg parameter of the original
// rename_dest_register/rename_src_register); PhysReg is widened to int32
// here purely so NUM_PHYSICAL can exceed int16 range without touching the
// sentinel value itself.
const Unmapped PhysReg = -1

// freeArchRegIndex marks a slot's arch_reg_index when the slot is free.
// 0xFF rather than 0 so a leaked free slot is never confused with a
// mapping to architectural register 0 in a Dump.
const freeArchRegIndex = 0xFF

// InstructionID is the opaque 64-bit identifier of an in-flight
// instruction, used as the rename-history key and as a physical
// register's producer.
type InstructionID uint64

// Slot describes one physical register's current owner and state.
type Slot struct {
	// ArchRegIndex is the architectural register that currently owns this
	// slot. Unspecified (freeArchRegIndex) when the slot is free.
	ArchRegIndex ArchReg
	// ProducingInstructionID is the instruction whose execution will
	// write this slot.
	ProducingInstructionID InstructionID
	// Valid reports whether the producing instruction has completed.
	Valid bool
	// Busy reports whether the slot is allocated anywhere in the pipeline.
	Busy bool
}

// RenameCheckpoint records one (arch, old-phys, new-phys) mapping change,
// sufficient to undo it.
type RenameCheckpoint struct {
	ArchReg    ArchReg
	OldPhysReg PhysReg
	NewPhysReg PhysReg
}
