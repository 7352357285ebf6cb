package runstate

import "fmt"

// CorruptStateError means the state file exists but cannot be parsed. The
// caller decides whether to abort or start fresh.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// StateLockedError means another live run already owns the state file.
type StateLockedError struct {
	Path string
	PID  int
}

func (e *StateLockedError) Error() string {
	return fmt.Sprintf("state file %s is locked by running process %d", e.Path, e.PID)
}
