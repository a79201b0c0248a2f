package master

import "sync/atomic"

// VersionLatch models a decision that may only ever move from "not yet
// decided" to exactly one outcome — useNew — and then never changes
// again for the lifetime of the process. It backs the
// streams-description table layout negotiation (spec §4.3): until the
// "rewritten" marker is observed, every metadata fetch re-probes for
// it; once observed, every subsequent fetch uses the new layout,
// regardless of how many goroutines raced to make that observation.
// There is deliberately only the one flag: "not yet decided" and
// "decided on the legacy layout" are the same state, since the legacy
// outcome is never permanent.
//
// The zero value is not ready for use; call NewVersionLatch.
type VersionLatch struct {
	useNew atomic.Bool
}

// NewVersionLatch returns an undecided latch.
func NewVersionLatch() *VersionLatch {
	return &VersionLatch{}
}

// Decided reports whether the latch has permanently settled on the new
// layout. False means the rewritten marker has not been observed yet
// and callers must keep re-probing for it on every call.
func (v *VersionLatch) Decided() bool {
	return v.useNew.Load()
}

// Latch records the decision. Calling Latch(false) is a no-op: the
// legacy layout is never a permanent decision, only a "keep probing"
// default. Calling Latch(true) is safe and idempotent: the first call
// to observe the new layout wins, since the rewrite marker, once
// written, is never un-written.
func (v *VersionLatch) Latch(useNew bool) {
	if useNew {
		v.useNew.Store(true)
	}
}
