package broker

import (
	"fmt"

	"github.com/trample/trample/internal/aws"
)

// Cause classifies why an assume-role exchange failed.
type Cause string

const (
	CauseAccessDenied Cause = "access_denied"
	CauseRoleNotFound Cause = "role_not_found"
	CauseThrottled    Cause = "throttled"
	CauseUnknown      Cause = "unknown"
)

// AssumeRoleError is a per-account credential acquisition failure. The
// walker skips the account and continues.
type AssumeRoleError struct {
	AccountID string
	Cause     Cause
	Err       error
}

func (e *AssumeRoleError) Error() string {
	return fmt.Sprintf("assuming role in account %s (%s): %v", e.AccountID, e.Cause, e.Err)
}

func (e *AssumeRoleError) Unwrap() error { return e.Err }

func classify(err error) Cause {
	switch {
	case aws.IsAccessDenied(err):
		return CauseAccessDenied
	case aws.IsRoleNotFound(err):
		return CauseRoleNotFound
	case aws.IsThrottle(err):
		return CauseThrottled
	default:
		return CauseUnknown
	}
}
