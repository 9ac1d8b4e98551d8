package build

import "fmt"

// ErrorKind classifies a phase failure for the taxonomy the orchestrator and
// queue match on.
type ErrorKind string

const (
	KindPrecondition ErrorKind = "precondition" // fatal before any destructive step
	KindBackup       ErrorKind = "backup"       // backup creation failed
	KindContent      ErrorKind = "content"      // document body conversion failed
	KindRendering    ErrorKind = "rendering"    // aggregate template rendering failure
	KindAssets       ErrorKind = "assets"       // aggregate asset copy failure
	KindVerification ErrorKind = "verification" // post-build integrity check failed
	KindRollback     ErrorKind = "rollback"     // backup restore failed
	KindCanceled     ErrorKind = "canceled"     // context cancellation or timeout
)

// PhaseError is a structured error carrying the failing phase and its
// taxonomy kind. The original cause is always preserved via Unwrap.
type PhaseError struct {
	Kind  ErrorKind
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying: asset copies can
// fail on transient filesystem conditions, everything else is deterministic
// for a given input set.
func (e *PhaseError) Transient() bool { return e.Kind == KindAssets }

func preconditionError(err error) *PhaseError {
	return &PhaseError{Kind: KindPrecondition, Phase: PhaseInitializing, Err: err}
}

func phaseError(kind ErrorKind, phase Phase, err error) *PhaseError {
	return &PhaseError{Kind: kind, Phase: phase, Err: err}
}
