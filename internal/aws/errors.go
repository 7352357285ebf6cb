package aws

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// accessDeniedCodes are API error codes that mean the caller lacks
// permission for the operation.
var accessDeniedCodes = map[string]bool{
	"AccessDenied":                 true,
	"AccessDeniedException":        true,
	"AuthFailure":                  true,
	"UnauthorizedOperation":        true,
	"UnauthorizedAccess":           true,
	"Client.UnauthorizedOperation": true,
}

// throttleCodes are API error codes that mean the request was rate limited.
var throttleCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"TooManyRequestsException": true,
	"RequestLimitExceeded":     true,
	"SlowDown":                 true,
	"ProvisionedThroughputExceededException": true,
}

// IsAccessDenied reports whether err is an authorization failure.
func IsAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return accessDeniedCodes[apiErr.ErrorCode()]
	}
	// Some SDK paths surface the code only in the message.
	msg := err.Error()
	return strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "UnauthorizedOperation")
}

// IsThrottle reports whether err is a throttling failure.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return throttleCodes[apiErr.ErrorCode()]
	}
	msg := err.Error()
	return strings.Contains(msg, "Throttling") || strings.Contains(msg, "TooManyRequests")
}

// IsRoleNotFound reports whether err indicates the assume-role target does
// not exist in the account.
func IsRoleNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchEntity"
	}
	return strings.Contains(err.Error(), "NoSuchEntity")
}

// IsTransient reports whether err is worth retrying: throttling or a call
// that timed out at the per-call deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return IsThrottle(err) || errors.Is(err, context.DeadlineExceeded)
}
