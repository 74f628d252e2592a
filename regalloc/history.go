package regalloc

// renameHistory maps an in-flight instruction to the ordered sequence of
// rename checkpoints needed to undo it. No back-pointers: instructions
// don't own history entries, the allocator looks them up by ID on
// retire/undo.
type renameHistory struct {
	byInstruction map[InstructionID][]RenameCheckpoint
}

func newRenameHistory() *renameHistory {
	return &renameHistory{byInstruction: make(map[InstructionID][]RenameCheckpoint)}
}

// record appends a checkpoint for instr, preserving the order in which
// that instruction's destinations were renamed.
func (h *renameHistory) record(instr InstructionID, cp RenameCheckpoint) {
	h.byInstruction[instr] = append(h.byInstruction[instr], cp)
}

// take returns and removes the checkpoint sequence for instr, if any.
func (h *renameHistory) take(instr InstructionID) ([]RenameCheckpoint, bool) {
	cps, ok := h.byInstruction[instr]
	if ok {
		delete(h.byInstruction, instr)
	}
	return cps, ok
}

// forget removes instr's history without returning it. No-op if absent.
func (h *renameHistory) forget(instr InstructionID) {
	delete(h.byInstruction, instr)
}

// all returns every live (instruction, checkpoints) pair, for Validate
// and Dump. Order is unspecified, matching the underlying map's.
func (h *renameHistory) all() map[InstructionID][]RenameCheckpoint {
	return h.byInstruction
}
