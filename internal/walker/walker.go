// Package walker discovers the organization tree and drives per-account
// collection through a bounded worker pool.
package walker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/trample/trample/internal/aws"
	"github.com/trample/trample/internal/log"
	"github.com/trample/trample/internal/runstate"
)

// OrgLister is the organization API surface the walker needs.
type OrgLister interface {
	DescribeOrganization(ctx context.Context) (*aws.Org, error)
	ListRoots(ctx context.Context) ([]aws.OrgUnit, error)
	ListOrgUnits(ctx context.Context, parentID string) ([]aws.OrgUnit, error)
	ListAccounts(ctx context.Context, parentID string) ([]aws.Account, error)
}

// CredentialBroker acquires scoped credentials for one account.
type CredentialBroker interface {
	Acquire(ctx context.Context, accountID string) (*aws.ScopedCredentials, error)
}

// AccountCollector inventories one account under its scoped credentials.
type AccountCollector interface {
	CollectAccount(ctx context.Context, creds *aws.ScopedCredentials, acct aws.Account, ouName, orgID string) error
}

// Config holds walker settings.
type Config struct {
	// Workers bounds concurrent account tasks.
	Workers int
	// CallTimeout bounds each organization listing call.
	CallTimeout time.Duration
}

// Summary reports what a run did. Done/Denied/Failed count (account, kind)
// pairs in run state after the walk.
type Summary struct {
	AccountsVisited    int
	AccountsSkipped    int
	AssumeRoleFailures int
	ListingFailures    int
	Done               int
	Denied             int
	Failed             int
}

// Walker traverses the organization tree depth-first, dispatching each
// discovered account to the worker pool.
type Walker struct {
	org         OrgLister
	broker      CredentialBroker
	collector   AccountCollector
	state       *runstate.Store
	kindNames   []string
	workers     int
	callTimeout time.Duration
}

// New creates a Walker. kindNames is the configured kind list used to
// decide whether an account is already fully complete.
func New(org OrgLister, broker CredentialBroker, collector AccountCollector, state *runstate.Store, kindNames []string, config Config) *Walker {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Walker{
		org:         org,
		broker:      broker,
		collector:   collector,
		state:       state,
		kindNames:   kindNames,
		workers:     workers,
		callTimeout: timeout,
	}
}

// node is one OU (or root) pending traversal.
type node struct {
	id   string
	name string
}

// Run walks the tree from every root. Only organization-level access
// failure is fatal; OU listing failures are logged and traversal continues
// with siblings. Cancellation stops dispatch between accounts and lets
// in-flight tasks finish their current call.
func (w *Walker) Run(ctx context.Context) (*Summary, error) {
	org, err := w.describeOrganization(ctx)
	if err != nil {
		return nil, &OrgAccessError{Err: err}
	}
	log.Infof("enumerating organization %s (management account %s)", org.ID, org.ManagementAccountID)

	roots, err := w.listRoots(ctx)
	if err != nil {
		return nil, &OrgAccessError{Err: err}
	}
	sortUnits(roots)

	summary := &Summary{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, w.workers)

	// Iterative depth-first traversal with an explicit stack and visited
	// set; wide or deep trees never grow the call stack.
	var stack []node
	seen := make(map[string]struct{})
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, node{id: roots[i].ID, name: roots[i].Name})
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			log.Infof("cancelled, waiting for in-flight accounts")
			break
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[n.id]; ok {
			continue
		}
		seen[n.id] = struct{}{}

		log.Debugf("walking %s (%s)", n.id, n.name)

		accounts, err := w.listAccounts(ctx, n.id)
		if err != nil {
			lerr := &ListingError{ParentID: n.id, Err: err}
			log.Warnf("%v; continuing with siblings", lerr)
			mu.Lock()
			summary.ListingFailures++
			mu.Unlock()
		}
		sortAccounts(accounts)

		for _, acct := range accounts {
			if ctx.Err() != nil {
				break
			}
			if acct.Status != "" && acct.Status != "ACTIVE" {
				log.Debugf("skip account %s: status %s", acct.ID, acct.Status)
				continue
			}
			if w.state.AccountComplete(acct.ID, w.kindNames) {
				log.Debugf("skip account %s: all kinds complete", acct.ID)
				mu.Lock()
				summary.AccountsSkipped++
				mu.Unlock()
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}

			wg.Add(1)
			go func(acct aws.Account, ouName string) {
				defer wg.Done()
				defer func() { <-sem }()
				w.processAccount(ctx, acct, ouName, org.ID, summary, &mu)
			}(acct, n.name)
		}

		children, err := w.listOrgUnits(ctx, n.id)
		if err != nil {
			lerr := &ListingError{ParentID: n.id, Err: err}
			log.Warnf("%v; continuing with siblings", lerr)
			mu.Lock()
			summary.ListingFailures++
			mu.Unlock()
		}
		sortUnits(children)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, node{id: children[i].ID, name: children[i].Name})
		}

		if err := w.state.MarkOUVisited(n.id); err != nil {
			log.Warnf("marking OU %s visited: %v", n.id, err)
		}
	}

	wg.Wait()

	counts := w.state.Counts()
	summary.Done = counts[runstate.OutcomeDone]
	summary.Denied = counts[runstate.OutcomeDenied]
	summary.Failed = counts[runstate.OutcomeFailed]
	return summary, nil
}

// processAccount acquires credentials, inventories the account, and clears
// the credentials when done. Credentials belong to this task alone.
func (w *Walker) processAccount(ctx context.Context, acct aws.Account, ouName, orgID string, summary *Summary, mu *sync.Mutex) {
	creds, err := w.broker.Acquire(ctx, acct.ID)
	if err != nil {
		log.Warnf("skipping account %s: %v", acct.ID, err)
		mu.Lock()
		summary.AssumeRoleFailures++
		mu.Unlock()
		return
	}
	defer creds.Clear()

	err = w.collector.CollectAccount(ctx, creds, acct, ouName, orgID)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("account %s: %v", acct.ID, err)
	}

	mu.Lock()
	summary.AccountsVisited++
	mu.Unlock()
}

func (w *Walker) describeOrganization(ctx context.Context) (*aws.Org, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	return w.org.DescribeOrganization(callCtx)
}

func (w *Walker) listRoots(ctx context.Context) ([]aws.OrgUnit, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	return w.org.ListRoots(callCtx)
}

func (w *Walker) listOrgUnits(ctx context.Context, parentID string) ([]aws.OrgUnit, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	return w.org.ListOrgUnits(callCtx, parentID)
}

func (w *Walker) listAccounts(ctx context.Context, parentID string) ([]aws.Account, error) {
	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	return w.org.ListAccounts(callCtx, parentID)
}

// sortUnits orders OUs by id for deterministic traversal.
func sortUnits(units []aws.OrgUnit) {
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
}

// sortAccounts orders accounts by id for deterministic dispatch.
func sortAccounts(accounts []aws.Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}
