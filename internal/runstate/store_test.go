package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempStatePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func TestLoadMissingFileReturnsEmptyStore(t *testing.T) {
	s, err := Load(tempStatePath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Outcome("111111111111", "s3"); ok {
		t.Fatal("expected no outcomes in a fresh store")
	}
	if s.OUVisited("ou-abcd-11111111") {
		t.Fatal("expected no visited OUs in a fresh store")
	}
}

func TestRecordPersistsAcrossReload(t *testing.T) {
	path := tempStatePath(t)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Record("111111111111", "s3", OutcomeDone); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("222222222222", "ec2", OutcomeDenied); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.MarkOUVisited("ou-abcd-11111111"); err != nil {
		t.Fatalf("mark visited: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if outcome, ok := reloaded.Outcome("111111111111", "s3"); !ok || outcome != OutcomeDone {
		t.Fatalf("expected (111111111111, s3)=DONE after reload, got %q ok=%v", outcome, ok)
	}
	if outcome, ok := reloaded.Outcome("222222222222", "ec2"); !ok || outcome != OutcomeDenied {
		t.Fatalf("expected (222222222222, ec2)=DENIED after reload, got %q ok=%v", outcome, ok)
	}
	if !reloaded.OUVisited("ou-abcd-11111111") {
		t.Fatal("expected OU visited after reload")
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := tempStatePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	_, err := Load(path)
	var corrupt *CorruptStateError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStateError, got %v", err)
	}
	if corrupt.Path != path {
		t.Fatalf("expected path %q in error, got %q", path, corrupt.Path)
	}
}

func TestIsCompleteSemantics(t *testing.T) {
	s, err := Load(tempStatePath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Record("111111111111", "s3", OutcomeDone); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("111111111111", "ec2", OutcomeDenied); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record("111111111111", "rds", OutcomeFailed); err != nil {
		t.Fatalf("record: %v", err)
	}

	tests := []struct {
		kind string
		want bool
	}{
		{kind: "s3", want: true},
		{kind: "ec2", want: true},  // denied kinds are not re-probed
		{kind: "rds", want: false}, // failed kinds are retried on resume
		{kind: "iam", want: false}, // never attempted
	}

	for _, tt := range tests {
		if got := s.IsComplete("111111111111", tt.kind); got != tt.want {
			t.Fatalf("IsComplete(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestDeniedDistinctFromUnattempted(t *testing.T) {
	s, err := Load(tempStatePath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Record("111111111111", "ec2", OutcomeDenied); err != nil {
		t.Fatalf("record: %v", err)
	}

	outcome, ok := s.Outcome("111111111111", "ec2")
	if !ok || outcome != OutcomeDenied {
		t.Fatalf("expected DENIED, got %q ok=%v", outcome, ok)
	}
	if outcome == OutcomeDone {
		t.Fatal("denied must not read as DONE")
	}
	if _, ok := s.Outcome("111111111111", "s3"); ok {
		t.Fatal("unattempted kind must have no outcome")
	}
}

func TestAccountComplete(t *testing.T) {
	s, err := Load(tempStatePath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kinds := []string{"s3", "ec2"}

	if s.AccountComplete("111111111111", kinds) {
		t.Fatal("fresh account must not be complete")
	}
	if err := s.Record("111111111111", "s3", OutcomeDone); err != nil {
		t.Fatalf("record: %v", err)
	}
	if s.AccountComplete("111111111111", kinds) {
		t.Fatal("account with one undone kind must not be complete")
	}
	if err := s.Record("111111111111", "ec2", OutcomeDenied); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !s.AccountComplete("111111111111", kinds) {
		t.Fatal("account with all kinds terminal must be complete")
	}
}

func TestCounts(t *testing.T) {
	s, err := Load(tempStatePath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records := []struct {
		account string
		kind    string
		outcome Outcome
	}{
		{"111111111111", "s3", OutcomeDone},
		{"111111111111", "ec2", OutcomeDone},
		{"222222222222", "s3", OutcomeDenied},
		{"333333333333", "rds", OutcomeFailed},
	}
	for _, r := range records {
		if err := s.Record(r.account, r.kind, r.outcome); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	counts := s.Counts()
	if counts[OutcomeDone] != 2 || counts[OutcomeDenied] != 1 || counts[OutcomeFailed] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestLockConflict(t *testing.T) {
	path := tempStatePath(t)

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	_, err = AcquireLock(path)
	var locked *StateLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected StateLockedError, got %v", err)
	}
	if locked.PID != os.Getpid() {
		t.Fatalf("expected holder pid %d, got %d", os.Getpid(), locked.PID)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	second.Release()
}

func TestStaleLockIsReplaced(t *testing.T) {
	path := tempStatePath(t)

	// A pid beyond the kernel's pid space is never alive.
	if err := os.WriteFile(path+".lock", []byte("999999999\n"), 0o644); err != nil {
		t.Fatalf("writing stale lock: %v", err)
	}

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("expected stale lock takeover, got %v", err)
	}
	lock.Release()
}
