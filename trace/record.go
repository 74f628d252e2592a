// Package trace decodes the fixed-width binary trace records the
// allocator's surrounding simulator is architecturally coupled to: one
// packed, little-endian, unpadded record per retired instruction in the
// reference CPU whose execution was traced.
package trace

// Variant selects the trace record layout. The default layout has two
// destination register slots; the SPARC variant widens that to four and
// appends a 2-byte ASID field.
type Variant int

const (
	// VariantDefault is the two-destination-register layout.
	VariantDefault Variant = iota
	// VariantSPARC is the four-destination-register layout with a
	// trailing 2-byte ASID field.
	VariantSPARC
)

// destinationSlots returns D, the number of destination register/memory
// slots for the variant.
func (v Variant) destinationSlots() int {
	if v == VariantSPARC {
		return 4
	}
	return 2
}

// sourceSlots is fixed at 4 for both variants.
const sourceSlots = 4

// noRegister is the trace encoding's "absent register" sentinel. It is
// distinct from the allocator's own Unmapped sentinel for physical
// registers: a trace register field of 0 means "this instruction has no
// such operand", not "unmapped physical register".
const noRegister = 0

// recordSize returns the packed, unpadded size in bytes of a record
// under the given variant.
func recordSize(v Variant) int {
	d := v.destinationSlots()
	size := 8 + 1 + 1 + d + sourceSlots + d*8 + sourceSlots*8
	if v == VariantSPARC {
		size += 2
	}
	return size
}

// Record is one decoded trace entry: the instruction's PC, branch
// metadata, and its register and memory operand lists. Register value 0
// in DestinationRegisters/SourceRegisters means "no register" per the
// trace encoding.
type Record struct {
	// IP is the program counter of the traced instruction.
	IP uint64
	// IsBranch reports whether this instruction is a branch.
	IsBranch bool
	// BranchTaken reports whether a branch instruction was taken.
	BranchTaken bool
	// DestinationRegisters holds up to 2 (default) or 4 (SPARC)
	// architectural destination register IDs; 0 means absent.
	DestinationRegisters []uint8
	// SourceRegisters holds up to 4 architectural source register IDs;
	// 0 means absent.
	SourceRegisters [sourceSlots]uint8
	// DestinationMemory holds the effective addresses written, aligned
	// with DestinationRegisters; 0 means none.
	DestinationMemory []uint64
	// SourceMemory holds the effective addresses read; 0 means none.
	SourceMemory [sourceSlots]uint64
	// ASID is the address space ID. Only populated for VariantSPARC.
	ASID [2]byte
}

// HasDestination reports whether slot i of DestinationRegisters names a
// real architectural register (a nonzero trace register ID).
func (r *Record) HasDestination(i int) bool {
	return i < len(r.DestinationRegisters) && r.DestinationRegisters[i] != noRegister
}

// HasSource reports whether slot i of SourceRegisters names a real
// architectural register.
func (r *Record) HasSource(i int) bool {
	return i < len(r.SourceRegisters) && r.SourceRegisters[i] != noRegister
}
