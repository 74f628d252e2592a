package regalloc

import "errors"

// Sentinel error kinds surfaced to callers. Call sites wrap these with
// fmt.Errorf's %w so callers can still errors.Is against the kind.
var (
	// ErrNoFreeRegister is returned by RenameDest, and by RenameSrc's
	// fresh-allocation branch, when the free list is exhausted. Not
	// fatal: the caller is expected to stall the decode stage this cycle.
	ErrNoFreeRegister = errors.New("regalloc: no free physical register")

	// ErrOutOfRange is returned by any operation given a PhysReg outside
	// [0, NUM_PHYSICAL) or an ArchReg outside [0, ArchRegCount). Signals a
	// programming error in the caller.
	ErrOutOfRange = errors.New("regalloc: index out of range")

	// ErrInvariantViolation is returned by CheckInvariants when Validate
	// finds a violation. Fatal to the simulation; indicates a correctness
	// bug in the allocator itself.
	ErrInvariantViolation = errors.New("regalloc: invariant violation")
)
