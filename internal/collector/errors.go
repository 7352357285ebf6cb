package collector

import "fmt"

// ResourceQueryError is a per-kind listing failure. It never escalates past
// its own (account, kind) scope.
type ResourceQueryError struct {
	AccountID string
	Kind      string
	Err       error
}

func (e *ResourceQueryError) Error() string {
	return fmt.Sprintf("querying %s in account %s: %v", e.Kind, e.AccountID, e.Err)
}

func (e *ResourceQueryError) Unwrap() error { return e.Err }
