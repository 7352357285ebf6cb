package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"

	"github.com/trample/trample/internal/aws"
	"github.com/trample/trample/internal/retry"
)

// fakeAssumer fails with the queued errors, then succeeds.
type fakeAssumer struct {
	failures []error
	calls    int
	lastRole string
}

func (f *fakeAssumer) AssumeRole(_ context.Context, accountID, roleName string) (*aws.ScopedCredentials, error) {
	f.calls++
	f.lastRole = roleName
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	return &aws.ScopedCredentials{
		AccountID:       accountID,
		AccessKeyID:     "AKIAFAKE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Expiration:      time.Now().Add(time.Hour),
	}, nil
}

func fastConfig(attempts int) Config {
	return Config{
		RoleName:      "OrganizationAccountAccessRole",
		RatePerSecond: 1000,
		Policy: retry.Policy{
			Attempts:   attempts,
			BaseDelay:  time.Millisecond,
			Multiplier: 2.0,
		},
		CallTimeout: time.Second,
	}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestAcquireSuccess(t *testing.T) {
	api := &fakeAssumer{}
	b := New(api, fastConfig(3))

	creds, err := b.Acquire(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AccountID != "111111111111" {
		t.Fatalf("expected account id on credentials, got %q", creds.AccountID)
	}
	if api.lastRole != "OrganizationAccountAccessRole" {
		t.Fatalf("expected configured role, got %q", api.lastRole)
	}
	if api.calls != 1 {
		t.Fatalf("expected 1 call, got %d", api.calls)
	}
}

func TestAcquireRetriesThrottleThenSucceeds(t *testing.T) {
	api := &fakeAssumer{failures: []error{apiError("Throttling"), apiError("Throttling")}}
	b := New(api, fastConfig(3))

	creds, err := b.Acquire(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("expected success within retry budget, got %v", err)
	}
	if creds == nil {
		t.Fatal("expected credentials")
	}
	if api.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", api.calls)
	}
}

func TestAcquireAccessDeniedDoesNotRetry(t *testing.T) {
	api := &fakeAssumer{failures: []error{apiError("AccessDenied"), apiError("AccessDenied"), apiError("AccessDenied")}}
	b := New(api, fastConfig(3))

	_, err := b.Acquire(context.Background(), "222222222222")
	var arErr *AssumeRoleError
	if !errors.As(err, &arErr) {
		t.Fatalf("expected AssumeRoleError, got %v", err)
	}
	if arErr.AccountID != "222222222222" {
		t.Fatalf("expected account id in error, got %q", arErr.AccountID)
	}
	if arErr.Cause != CauseAccessDenied {
		t.Fatalf("expected cause access_denied, got %q", arErr.Cause)
	}
	if api.calls != 1 {
		t.Fatalf("access denied must not be retried, got %d calls", api.calls)
	}
}

func TestAcquireThrottleExhaustion(t *testing.T) {
	api := &fakeAssumer{failures: []error{apiError("Throttling"), apiError("Throttling"), apiError("Throttling")}}
	b := New(api, fastConfig(2))

	_, err := b.Acquire(context.Background(), "333333333333")
	var arErr *AssumeRoleError
	if !errors.As(err, &arErr) {
		t.Fatalf("expected AssumeRoleError, got %v", err)
	}
	if arErr.Cause != CauseThrottled {
		t.Fatalf("expected cause throttled, got %q", arErr.Cause)
	}
	if api.calls != 2 {
		t.Fatalf("expected 2 calls for a 2-attempt budget, got %d", api.calls)
	}
}

func TestAcquireRoleNotFound(t *testing.T) {
	api := &fakeAssumer{failures: []error{apiError("NoSuchEntity")}}
	b := New(api, fastConfig(3))

	_, err := b.Acquire(context.Background(), "444444444444")
	var arErr *AssumeRoleError
	if !errors.As(err, &arErr) {
		t.Fatalf("expected AssumeRoleError, got %v", err)
	}
	if arErr.Cause != CauseRoleNotFound {
		t.Fatalf("expected cause role_not_found, got %q", arErr.Cause)
	}
}
