// Package broker exchanges account identifiers for temporary scoped
// credentials, throttling assume-role traffic globally.
package broker

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/trample/trample/internal/aws"
	"github.com/trample/trample/internal/retry"
)

// RoleAssumer is the identity API surface the broker needs.
type RoleAssumer interface {
	AssumeRole(ctx context.Context, accountID, roleName string) (*aws.ScopedCredentials, error)
}

// Config holds broker settings.
type Config struct {
	// RoleName is the role assumed in every member account.
	RoleName string
	// RatePerSecond bounds assume-role calls across all workers.
	RatePerSecond float64
	// Policy is the retry policy applied to throttled attempts.
	Policy retry.Policy
	// CallTimeout bounds each remote assume-role call.
	CallTimeout time.Duration
}

// Broker acquires per-account scoped credentials. Credentials are never
// cached across accounts; every acquisition is a fresh remote exchange.
type Broker struct {
	api         RoleAssumer
	roleName    string
	limiter     *rate.Limiter
	policy      retry.Policy
	callTimeout time.Duration
}

// New creates a Broker.
func New(api RoleAssumer, config Config) *Broker {
	rps := config.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Broker{
		api:         api,
		roleName:    config.RoleName,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		policy:      config.Policy,
		callTimeout: timeout,
	}
}

// Acquire exchanges the account id for scoped credentials, retrying
// throttled attempts per the policy. Failures are reported as
// AssumeRoleError carrying the account id and classified cause.
func (b *Broker) Acquire(ctx context.Context, accountID string) (*aws.ScopedCredentials, error) {
	var creds *aws.ScopedCredentials

	err := retry.Do(ctx, b.policy, aws.IsTransient, func(ctx context.Context) error {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()

		got, err := b.api.AssumeRole(callCtx, accountID, b.roleName)
		if err != nil {
			return err
		}
		creds = got
		return nil
	})
	if err != nil {
		return nil, &AssumeRoleError{AccountID: accountID, Cause: classify(err), Err: err}
	}

	return creds, nil
}
