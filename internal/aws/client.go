package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRegion is used when the ambient configuration carries no region.
const DefaultRegion = "us-east-1"

// Client provides access to AWS APIs. Organization and identity calls run
// under the management credentials the process was started with; resource
// listing calls run under explicit per-account scoped credentials.
type Client interface {
	// Organization / identity
	DescribeOrganization(ctx context.Context) (*Org, error)
	ListRoots(ctx context.Context) ([]OrgUnit, error)
	ListOrgUnits(ctx context.Context, parentID string) ([]OrgUnit, error)
	ListAccounts(ctx context.Context, parentID string) ([]Account, error)
	AssumeRole(ctx context.Context, accountID, roleName string) (*ScopedCredentials, error)

	// Resource listing, scoped to one member account
	ListBuckets(ctx context.Context, creds *ScopedCredentials) ([]Bucket, error)
	ListInstances(ctx context.Context, creds *ScopedCredentials) ([]Instance, error)
	ListIdentities(ctx context.Context, creds *ScopedCredentials) (*IdentityInventory, error)
	ListFunctions(ctx context.Context, creds *ScopedCredentials) ([]Function, error)
	ListDatabases(ctx context.Context, creds *ScopedCredentials) (*DatabaseInventory, error)
	ListTrails(ctx context.Context, creds *ScopedCredentials) ([]Trail, error)
}

// AWSClient implements the Client interface using AWS SDK v2.
type AWSClient struct {
	cfg aws.Config
}

// NewClient creates a new AWS client using the default credential chain.
func NewClient(ctx context.Context) (*AWSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return &AWSClient{cfg: cfg}, nil
}

// configFor returns a config carrying the scoped credentials of one account.
func (c *AWSClient) configFor(creds *ScopedCredentials) aws.Config {
	cfg := c.cfg.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	return cfg
}

// DescribeOrganization returns the organization of the current credentials.
func (c *AWSClient) DescribeOrganization(ctx context.Context) (*Org, error) {
	orgClient := organizations.NewFromConfig(c.cfg)
	output, err := orgClient.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		return nil, fmt.Errorf("describing organization: %w", err)
	}
	return &Org{
		ID:                  aws.ToString(output.Organization.Id),
		ManagementAccountID: aws.ToString(output.Organization.MasterAccountId),
	}, nil
}

// ListRoots returns the roots of the organization.
func (c *AWSClient) ListRoots(ctx context.Context) ([]OrgUnit, error) {
	orgClient := organizations.NewFromConfig(c.cfg)

	var roots []OrgUnit
	paginator := organizations.NewListRootsPaginator(orgClient, &organizations.ListRootsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing roots: %w", err)
		}
		for _, r := range output.Roots {
			roots = append(roots, OrgUnit{
				ID:   aws.ToString(r.Id),
				Name: aws.ToString(r.Name),
			})
		}
	}

	return roots, nil
}

// ListOrgUnits returns the child OUs of the given parent.
func (c *AWSClient) ListOrgUnits(ctx context.Context, parentID string) ([]OrgUnit, error) {
	orgClient := organizations.NewFromConfig(c.cfg)

	var units []OrgUnit
	paginator := organizations.NewListOrganizationalUnitsForParentPaginator(orgClient,
		&organizations.ListOrganizationalUnitsForParentInput{
			ParentId: aws.String(parentID),
		})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing OUs under %s: %w", parentID, err)
		}
		for _, ou := range output.OrganizationalUnits {
			units = append(units, OrgUnit{
				ID:   aws.ToString(ou.Id),
				Name: aws.ToString(ou.Name),
			})
		}
	}

	return units, nil
}

// ListAccounts returns the member accounts directly under the given parent.
func (c *AWSClient) ListAccounts(ctx context.Context, parentID string) ([]Account, error) {
	orgClient := organizations.NewFromConfig(c.cfg)

	var accounts []Account
	paginator := organizations.NewListAccountsForParentPaginator(orgClient,
		&organizations.ListAccountsForParentInput{
			ParentId: aws.String(parentID),
		})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing accounts under %s: %w", parentID, err)
		}
		for _, a := range output.Accounts {
			accounts = append(accounts, Account{
				ID:     aws.ToString(a.Id),
				Name:   aws.ToString(a.Name),
				Status: string(a.Status),
			})
		}
	}

	return accounts, nil
}

// AssumeRole exchanges the management credentials for temporary credentials
// scoped to the given account.
func (c *AWSClient) AssumeRole(ctx context.Context, accountID, roleName string) (*ScopedCredentials, error) {
	stsClient := sts.NewFromConfig(c.cfg)

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
	sessionName := fmt.Sprintf("trample-%d", time.Now().Unix())

	output, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(3600),
	})
	if err != nil {
		return nil, fmt.Errorf("assuming %s: %w", roleARN, err)
	}

	creds := output.Credentials
	return &ScopedCredentials{
		AccountID:       accountID,
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      aws.ToTime(creds.Expiration),
	}, nil
}

// ListBuckets lists the S3 buckets of the scoped account.
func (c *AWSClient) ListBuckets(ctx context.Context, creds *ScopedCredentials) ([]Bucket, error) {
	s3Client := s3.NewFromConfig(c.configFor(creds))
	output, err := s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	buckets := make([]Bucket, 0, len(output.Buckets))
	for _, b := range output.Buckets {
		bucket := Bucket{
			Name:      aws.ToString(b.Name),
			Region:    aws.ToString(b.BucketRegion),
			CreatedAt: b.CreationDate,
		}
		buckets = append(buckets, bucket)
	}

	return buckets, nil
}

// ListInstances lists the EC2 instances of the scoped account.
func (c *AWSClient) ListInstances(ctx context.Context, creds *ScopedCredentials) ([]Instance, error) {
	ec2Client := ec2.NewFromConfig(c.configFor(creds))

	var instances []Instance
	paginator := ec2.NewDescribeInstancesPaginator(ec2Client, &ec2.DescribeInstancesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instances: %w", err)
		}
		for _, res := range output.Reservations {
			for _, inst := range res.Instances {
				instance := Instance{
					InstanceID:   aws.ToString(inst.InstanceId),
					InstanceType: string(inst.InstanceType),
					PrivateIP:    aws.ToString(inst.PrivateIpAddress),
					PublicIP:     aws.ToString(inst.PublicIpAddress),
					LaunchedAt:   inst.LaunchTime,
				}
				if inst.State != nil {
					instance.State = string(inst.State.Name)
				}
				instances = append(instances, instance)
			}
		}
	}

	return instances, nil
}

// ListIdentities lists the IAM users and roles of the scoped account.
func (c *AWSClient) ListIdentities(ctx context.Context, creds *ScopedCredentials) (*IdentityInventory, error) {
	iamClient := iam.NewFromConfig(c.configFor(creds))
	inventory := &IdentityInventory{}

	userPaginator := iam.NewListUsersPaginator(iamClient, &iam.ListUsersInput{})
	for userPaginator.HasMorePages() {
		output, err := userPaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}
		for _, u := range output.Users {
			inventory.Users = append(inventory.Users, User{
				UserName:  aws.ToString(u.UserName),
				ARN:       aws.ToString(u.Arn),
				CreatedAt: u.CreateDate,
			})
		}
	}

	rolePaginator := iam.NewListRolesPaginator(iamClient, &iam.ListRolesInput{})
	for rolePaginator.HasMorePages() {
		output, err := rolePaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing roles: %w", err)
		}
		for _, r := range output.Roles {
			inventory.Roles = append(inventory.Roles, RoleSummary{
				RoleName:  aws.ToString(r.RoleName),
				ARN:       aws.ToString(r.Arn),
				CreatedAt: r.CreateDate,
			})
		}
	}

	return inventory, nil
}

// ListFunctions lists the Lambda functions of the scoped account.
func (c *AWSClient) ListFunctions(ctx context.Context, creds *ScopedCredentials) ([]Function, error) {
	lambdaClient := lambda.NewFromConfig(c.configFor(creds))

	var functions []Function
	paginator := lambda.NewListFunctionsPaginator(lambdaClient, &lambda.ListFunctionsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing functions: %w", err)
		}
		for _, fn := range output.Functions {
			functions = append(functions, Function{
				FunctionName: aws.ToString(fn.FunctionName),
				ARN:          aws.ToString(fn.FunctionArn),
				Runtime:      string(fn.Runtime),
				LastModified: aws.ToString(fn.LastModified),
			})
		}
	}

	return functions, nil
}

// ListDatabases lists the RDS instances and clusters of the scoped account.
func (c *AWSClient) ListDatabases(ctx context.Context, creds *ScopedCredentials) (*DatabaseInventory, error) {
	rdsClient := rds.NewFromConfig(c.configFor(creds))
	inventory := &DatabaseInventory{}

	instPaginator := rds.NewDescribeDBInstancesPaginator(rdsClient, &rds.DescribeDBInstancesInput{})
	for instPaginator.HasMorePages() {
		output, err := instPaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing DB instances: %w", err)
		}
		for _, db := range output.DBInstances {
			inventory.Instances = append(inventory.Instances, DBInstance{
				Identifier:    aws.ToString(db.DBInstanceIdentifier),
				Engine:        aws.ToString(db.Engine),
				EngineVersion: aws.ToString(db.EngineVersion),
				Status:        aws.ToString(db.DBInstanceStatus),
				MultiAZ:       aws.ToBool(db.MultiAZ),
			})
		}
	}

	clusterPaginator := rds.NewDescribeDBClustersPaginator(rdsClient, &rds.DescribeDBClustersInput{})
	for clusterPaginator.HasMorePages() {
		output, err := clusterPaginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing DB clusters: %w", err)
		}
		for _, db := range output.DBClusters {
			inventory.Clusters = append(inventory.Clusters, DBCluster{
				Identifier:    aws.ToString(db.DBClusterIdentifier),
				Engine:        aws.ToString(db.Engine),
				EngineVersion: aws.ToString(db.EngineVersion),
				Status:        aws.ToString(db.Status),
			})
		}
	}

	return inventory, nil
}

// ListTrails lists the CloudTrail trails of the scoped account.
func (c *AWSClient) ListTrails(ctx context.Context, creds *ScopedCredentials) ([]Trail, error) {
	ctClient := cloudtrail.NewFromConfig(c.configFor(creds))
	output, err := ctClient.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, fmt.Errorf("describing trails: %w", err)
	}

	trails := make([]Trail, 0, len(output.TrailList))
	for _, t := range output.TrailList {
		trails = append(trails, Trail{
			Name:               aws.ToString(t.Name),
			S3BucketName:       aws.ToString(t.S3BucketName),
			HomeRegion:         aws.ToString(t.HomeRegion),
			IsMultiRegionTrail: aws.ToBool(t.IsMultiRegionTrail),
		})
	}

	return trails, nil
}
