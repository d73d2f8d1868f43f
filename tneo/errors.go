package tneo

// RCode is the single result-code enumeration returned by every kernel
// operation (spec §7). It is kept as a dedicated comparable type, rather
// than translated to ad hoc wrapped errors, because callers on the hot
// scheduling path need to branch on exactly which of these ten outcomes
// occurred without an allocation — a blocked task resuming from
// [Kernel.SemaphoreAcquire] needs to distinguish OK from TIMEOUT from DELETED
// every single time, and fmt.Errorf-wrapping that would be pure overhead.
//
// RCode implements error so it still composes with errors.Is/errors.As at
// call sites that want that (the demo CLI and tests do), but kernel
// internals never wrap it.
type RCode int

const (
	// RCOk indicates success.
	RCOk RCode = iota
	// RCTimeout indicates a wait exceeded its deadline, or a polling call
	// (timeout == 0) found its condition unsatisfied.
	RCTimeout
	// RCOverflow indicates a count would exceed its configured maximum.
	RCOverflow
	// RCWContext indicates the operation was invoked from the wrong
	// context (task code calling an ISR-only entry point, or vice versa).
	RCWContext
	// RCWState indicates the target object was in the wrong state for the
	// requested operation.
	RCWState
	// RCWParam indicates an argument failed validation.
	RCWParam
	// RCInvalidObj indicates the object's identity tag did not match —
	// it is uninitialized, already destroyed, or simply not the type of
	// object the caller thinks it is.
	RCInvalidObj
	// RCIllegalUse indicates the operation is not permitted under the
	// kernel's current compile-time configuration.
	RCIllegalUse
	// RCDeleted indicates the primitive a task was waiting on was deleted
	// out from under it.
	RCDeleted
	// RCForce indicates the wait was released by an explicit unblock call
	// rather than by the primitive being satisfied.
	RCForce
)

var rcodeNames = [...]string{
	RCOk:         "ok",
	RCTimeout:    "timeout",
	RCOverflow:   "overflow",
	RCWContext:   "wrong context",
	RCWState:     "wrong state",
	RCWParam:     "bad parameter",
	RCInvalidObj: "invalid object",
	RCIllegalUse: "illegal use",
	RCDeleted:    "deleted while waiting",
	RCForce:      "force released",
}

// String implements fmt.Stringer.
func (c RCode) String() string {
	if c < 0 || int(c) >= len(rcodeNames) {
		return "unknown rcode"
	}
	return rcodeNames[c]
}

// Error implements the error interface, so an RCode can be returned (or
// compared with errors.Is) anywhere ordinary Go code expects one, without
// the kernel itself depending on the error interface internally.
func (c RCode) Error() string {
	return "tneo: " + c.String()
}
