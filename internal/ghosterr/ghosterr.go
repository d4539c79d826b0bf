// Package ghosterr carries the supervisor's tagged error taxonomy
// (spec §7) and the exit-code mapping cmd/ghostbrew uses to give each
// failure class a distinct process exit status, generalized from the
// teacher's *LoadError value-error idiom in internal/ebpf/loader.go.
package ghosterr

import "fmt"

// Kind tags which of the seven documented failure classes an Error
// belongs to. Only Unsupported, AttachFailed, and WatchdogTrip are
// fatal (the supervisor exits); the rest are logged and the
// supervisor continues, per spec §7.
type Kind string

const (
	Unsupported           Kind = "unsupported_platform"
	AttachFailed          Kind = "attach_failed"
	TablePopulationFailed Kind = "table_population_failed"
	ScanTimeout           Kind = "scan_timeout"
	WatchdogTrip          Kind = "watchdog_trip"
	InvalidDirective      Kind = "invalid_directive"
	RingOverflow          Kind = "ring_overflow"
)

// exitCodes maps each fatal Kind to a distinct nonzero process exit
// status (spec §6: "nonzero with a distinct code per failure class").
// Non-fatal kinds have no entry; Fatal reports false for them.
var exitCodes = map[Kind]int{
	Unsupported:  10,
	AttachFailed: 11,
	WatchdogTrip: 12,
}

// Error is the tagged error type every supervisor package returns for
// the conditions in spec §7.
type Error struct {
	Kind    Kind
	Context string // the component/resource the failure occurred in
	Err     error
}

// New builds an Error. err may be nil for conditions with no
// underlying cause (e.g. a missing kernel feature detected by
// inspection rather than a failed syscall).
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether Kind should terminate the supervisor (spec
// §7: unsupported platform, attach failure, and watchdog trip all
// exit; everything else is logged and the supervisor continues).
func (k Kind) Fatal() bool {
	_, ok := exitCodes[k]
	return ok
}

// ExitCode returns the process exit status for a fatal Kind, or 1 as
// a fallback for a non-fatal Kind mistakenly passed here (callers
// should check Fatal first).
func (k Kind) ExitCode() int {
	if code, ok := exitCodes[k]; ok {
		return code
	}
	return 1
}

// As extracts an *Error from err via errors.As-style unwrapping,
// returning nil if err (or nothing in its chain) is a *Error.
func As(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = unwrapper.Unwrap()
	}
	return nil
}
