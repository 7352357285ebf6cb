package aws

import (
	"testing"
	"time"
)

func TestScopedCredentialsClear(t *testing.T) {
	creds := &ScopedCredentials{
		AccountID:       "111111111111",
		AccessKeyID:     "AKIAFAKE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Expiration:      time.Now().Add(time.Hour),
	}
	creds.Clear()

	if creds.AccessKeyID != "" || creds.SecretAccessKey != "" || creds.SessionToken != "" {
		t.Fatalf("credential material not zeroed: %+v", creds)
	}
	if !creds.Expiration.IsZero() {
		t.Fatal("expiration not zeroed")
	}
	if creds.AccountID != "111111111111" {
		t.Fatal("account id must survive Clear")
	}
}

func TestScopedCredentialsExpired(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	fresh := &ScopedCredentials{Expiration: now.Add(time.Hour)}
	if fresh.Expired(now) {
		t.Fatal("credentials with a future expiration are not expired")
	}

	stale := &ScopedCredentials{Expiration: now.Add(-time.Minute)}
	if !stale.Expired(now) {
		t.Fatal("credentials past their expiration are expired")
	}

	unset := &ScopedCredentials{}
	if unset.Expired(now) {
		t.Fatal("credentials without an expiration never expire")
	}
}

func TestInventoryCounts(t *testing.T) {
	identities := &IdentityInventory{
		Users: []User{{UserName: "alice"}, {UserName: "bob"}},
		Roles: []RoleSummary{{RoleName: "deploy"}},
	}
	if got := identities.Count(); got != 3 {
		t.Fatalf("identity Count() = %d, want 3", got)
	}

	databases := &DatabaseInventory{
		Instances: []DBInstance{{Identifier: "orders-db"}},
		Clusters:  []DBCluster{{Identifier: "analytics"}, {Identifier: "reports"}},
	}
	if got := databases.Count(); got != 3 {
		t.Fatalf("database Count() = %d, want 3", got)
	}

	empty := &IdentityInventory{}
	if got := empty.Count(); got != 0 {
		t.Fatalf("empty Count() = %d, want 0", got)
	}
}
