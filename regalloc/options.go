package regalloc

import "io"

// Option configures an Allocator at construction time, in the same
// functional-options style the pipeline stages of the surrounding
// simulator use for their own constructors.
type Option func(*Allocator)

// WithDebugDump enables per-call diagnostic tracing of rename/undo
// activity to w. This is a runtime switch standing in for the reference
// allocator's compile-time debug_print flag: Go has no if constexpr, so
// the gate is a nil-checked writer instead of a build tag, checked on
// every call but costing nothing when w is nil.
func WithDebugDump(w io.Writer) Option {
	return func(a *Allocator) {
		a.debugDump = w
	}
}
