package collector

import (
	"context"

	"github.com/trample/trample/internal/aws"
)

// ResourceLister is the listing API surface the collector needs. Every call
// runs under the scoped credentials of the account being inventoried.
type ResourceLister interface {
	ListBuckets(ctx context.Context, creds *aws.ScopedCredentials) ([]aws.Bucket, error)
	ListInstances(ctx context.Context, creds *aws.ScopedCredentials) ([]aws.Instance, error)
	ListIdentities(ctx context.Context, creds *aws.ScopedCredentials) (*aws.IdentityInventory, error)
	ListFunctions(ctx context.Context, creds *aws.ScopedCredentials) ([]aws.Function, error)
	ListDatabases(ctx context.Context, creds *aws.ScopedCredentials) (*aws.DatabaseInventory, error)
	ListTrails(ctx context.Context, creds *aws.ScopedCredentials) ([]aws.Trail, error)
}

// Kind is one inventoried resource category. Fetch returns the structured
// payload and the number of resources it contains; zero means no artifact
// is written.
type Kind struct {
	Name  string
	Fetch func(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error)
}

// Kinds returns the configured resource kinds in their stable attempt order.
func Kinds() []Kind {
	return []Kind{
		{Name: "s3", Fetch: fetchBuckets},
		{Name: "ec2", Fetch: fetchInstances},
		{Name: "iam", Fetch: fetchIdentities},
		{Name: "lambda", Fetch: fetchFunctions},
		{Name: "rds", Fetch: fetchDatabases},
		{Name: "cloudtrail", Fetch: fetchTrails},
	}
}

// KindNames returns the kind names in attempt order.
func KindNames() []string {
	kinds := Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.Name)
	}
	return names
}

func fetchBuckets(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	buckets, err := api.ListBuckets(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return buckets, len(buckets), nil
}

func fetchInstances(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	instances, err := api.ListInstances(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return instances, len(instances), nil
}

func fetchIdentities(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	inventory, err := api.ListIdentities(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return inventory, inventory.Count(), nil
}

func fetchFunctions(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	functions, err := api.ListFunctions(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return functions, len(functions), nil
}

func fetchDatabases(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	inventory, err := api.ListDatabases(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return inventory, inventory.Count(), nil
}

func fetchTrails(ctx context.Context, api ResourceLister, creds *aws.ScopedCredentials) (any, int, error) {
	trails, err := api.ListTrails(ctx, creds)
	if err != nil {
		return nil, 0, err
	}
	return trails, len(trails), nil
}
