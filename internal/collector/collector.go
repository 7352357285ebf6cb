// Package collector inventories the resources of a single member account,
// one resource kind at a time.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trample/trample/internal/aws"
	"github.com/trample/trample/internal/log"
	"github.com/trample/trample/internal/output"
	"github.com/trample/trample/internal/retry"
	"github.com/trample/trample/internal/runstate"
)

// Config holds collector settings.
type Config struct {
	// Policy is the retry policy for transient per-kind failures.
	Policy retry.Policy
	// CallTimeout bounds each remote listing call, so one hung kind does
	// not stall the account's other kinds.
	CallTimeout time.Duration
}

// Collector runs the per-kind listing calls for one account at a time and
// records every outcome in run state.
type Collector struct {
	api         ResourceLister
	state       *runstate.Store
	out         *output.Writer
	kinds       []Kind
	policy      retry.Policy
	callTimeout time.Duration
	now         func() time.Time
}

// New creates a Collector.
func New(api ResourceLister, state *runstate.Store, out *output.Writer, config Config) *Collector {
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Collector{
		api:         api,
		state:       state,
		out:         out,
		kinds:       Kinds(),
		policy:      config.Policy,
		callTimeout: timeout,
		now:         time.Now,
	}
}

// CollectAccount attempts every configured kind for the account. Kinds are
// isolated: one kind's failure never prevents the remaining kinds. Kinds
// already complete in run state are skipped. Returns ctx.Err() when
// cancelled between kinds; the in-flight call always finishes first.
func (c *Collector) CollectAccount(ctx context.Context, creds *aws.ScopedCredentials, acct aws.Account, ouName, orgID string) error {
	for _, kind := range c.kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.state.IsComplete(acct.ID, kind.Name) {
			log.Debugf("skip %s/%s: already complete", acct.ID, kind.Name)
			continue
		}
		if err := c.collectKind(ctx, creds, acct, ouName, orgID, kind); err != nil {
			return err
		}
	}
	return nil
}

// collectKind runs one kind to a terminal outcome and records it durably.
func (c *Collector) collectKind(ctx context.Context, creds *aws.ScopedCredentials, acct aws.Account, ouName, orgID string, kind Kind) error {
	var payload any
	var count int

	err := retry.Do(ctx, c.policy, aws.IsTransient, func(ctx context.Context) error {
		// The listing call itself is never cancelled mid-flight; only the
		// per-call deadline bounds it.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		got, n, err := kind.Fetch(callCtx, c.api, creds)
		if err != nil {
			return err
		}
		payload = got
		count = n
		return nil
	})

	if err != nil {
		if aws.IsAccessDenied(err) {
			log.Warnf("account %s kind %s: access denied", acct.ID, kind.Name)
			return c.state.Record(acct.ID, kind.Name, runstate.OutcomeDenied)
		}
		qerr := &ResourceQueryError{AccountID: acct.ID, Kind: kind.Name, Err: err}
		log.Warnf("account %s kind %s: %v", acct.ID, kind.Name, qerr)
		return c.state.Record(acct.ID, kind.Name, runstate.OutcomeFailed)
	}

	if count > 0 {
		data, merr := json.Marshal(payload)
		if merr != nil {
			return fmt.Errorf("encoding %s payload for account %s: %w", kind.Name, acct.ID, merr)
		}
		rec := output.Record{
			AccountID: acct.ID,
			OUName:    ouName,
			OrgID:     orgID,
			Kind:      kind.Name,
			Payload:   data,
			FetchedAt: c.now(),
		}
		path, werr := c.out.Write(rec)
		if werr != nil {
			return fmt.Errorf("writing %s artifact for account %s: %w", kind.Name, acct.ID, werr)
		}
		log.Debugf("account %s kind %s: %d resources -> %s", acct.ID, kind.Name, count, path)
	} else {
		log.Debugf("account %s kind %s: empty", acct.ID, kind.Name)
	}

	// Record completion only after the artifact is durable, so a crash in
	// between re-runs the write rather than losing the result.
	return c.state.Record(acct.ID, kind.Name, runstate.OutcomeDone)
}
