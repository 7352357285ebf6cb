// Package aws provides AWS API client functionality.
package aws

import "time"

// Org identifies the organization being enumerated.
type Org struct {
	ID                  string `json:"id"`
	ManagementAccountID string `json:"management_account_id"`
}

// OrgUnit is a grouping node in the organization hierarchy. Roots are
// represented as OrgUnits with an "r-" prefixed ID.
type OrgUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is a member account discovered under an OU or root.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ScopedCredentials are temporary credentials scoped to a single member
// account. They are owned by exactly one in-flight account task, never
// persisted, and must be cleared when the task finishes.
type ScopedCredentials struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Expired reports whether the credentials are past their expiration.
func (c *ScopedCredentials) Expired(now time.Time) bool {
	return !c.Expiration.IsZero() && now.After(c.Expiration)
}

// Clear zeroes the credential material.
func (c *ScopedCredentials) Clear() {
	c.AccessKeyID = ""
	c.SecretAccessKey = ""
	c.SessionToken = ""
	c.Expiration = time.Time{}
}

// Bucket represents an S3 bucket.
type Bucket struct {
	Name      string     `json:"name"`
	Region    string     `json:"region,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Instance represents an EC2 instance.
type Instance struct {
	InstanceID   string     `json:"instance_id"`
	InstanceType string     `json:"instance_type"`
	State        string     `json:"state"`
	PrivateIP    string     `json:"private_ip,omitempty"`
	PublicIP     string     `json:"public_ip,omitempty"`
	LaunchedAt   *time.Time `json:"launched_at,omitempty"`
}

// User represents an IAM user.
type User struct {
	UserName  string     `json:"user_name"`
	ARN       string     `json:"arn"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// RoleSummary represents an IAM role.
type RoleSummary struct {
	RoleName  string     `json:"role_name"`
	ARN       string     `json:"arn"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// IdentityInventory holds the IAM principals of an account.
type IdentityInventory struct {
	Users []User        `json:"users"`
	Roles []RoleSummary `json:"roles"`
}

// Count returns the number of principals in the inventory.
func (i *IdentityInventory) Count() int {
	return len(i.Users) + len(i.Roles)
}

// Function represents a Lambda function.
type Function struct {
	FunctionName string `json:"function_name"`
	ARN          string `json:"arn"`
	Runtime      string `json:"runtime,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// DBInstance represents an RDS instance.
type DBInstance struct {
	Identifier    string `json:"identifier"`
	Engine        string `json:"engine"`
	EngineVersion string `json:"engine_version"`
	Status        string `json:"status"`
	MultiAZ       bool   `json:"multi_az"`
}

// DBCluster represents an RDS cluster.
type DBCluster struct {
	Identifier    string `json:"identifier"`
	Engine        string `json:"engine"`
	EngineVersion string `json:"engine_version"`
	Status        string `json:"status"`
}

// DatabaseInventory holds the managed databases of an account.
type DatabaseInventory struct {
	Instances []DBInstance `json:"instances"`
	Clusters  []DBCluster  `json:"clusters"`
}

// Count returns the number of databases in the inventory.
func (d *DatabaseInventory) Count() int {
	return len(d.Instances) + len(d.Clusters)
}

// Trail represents a CloudTrail trail.
type Trail struct {
	Name               string `json:"name"`
	S3BucketName       string `json:"s3_bucket_name,omitempty"`
	HomeRegion         string `json:"home_region,omitempty"`
	IsMultiRegionTrail bool   `json:"is_multi_region_trail"`
}
