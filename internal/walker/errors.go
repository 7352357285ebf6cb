package walker

import "fmt"

// OrgAccessError means organization access could not be established at all.
// It is the only fatal error class during a walk.
type OrgAccessError struct {
	Err error
}

func (e *OrgAccessError) Error() string {
	return fmt.Sprintf("no organization access: %v", e.Err)
}

func (e *OrgAccessError) Unwrap() error { return e.Err }

// ListingError is a per-OU child listing failure. The walk skips that
// listing and continues with siblings.
type ListingError struct {
	ParentID string
	Err      error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing children of %s: %v", e.ParentID, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }
