// Package output persists per-(account, resource kind) inventory artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record is one immutable inventory result for a single account and
// resource kind. Payload is the raw structured listing result.
type Record struct {
	AccountID string
	OUName    string
	OrgID     string
	Kind      string
	Payload   json.RawMessage
	FetchedAt time.Time
}

// Filename returns the artifact name: {orgId}_{ouName}_{accountId}_{kind}.json.
func (r Record) Filename() string {
	return fmt.Sprintf("%s_%s_%s_%s.json", r.OrgID, sanitize(r.OUName), r.AccountID, r.Kind)
}

// Writer writes records into a single output directory. Absent files mean
// "no resources or denied"; the distinction lives in run state, not here.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write persists the record's payload atomically and returns the file path.
func (w *Writer) Write(rec Record) (string, error) {
	path := filepath.Join(w.dir, rec.Filename())

	tmp, err := os.CreateTemp(w.dir, ".trample-out-*")
	if err != nil {
		return "", fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(rec.Payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replacing artifact: %w", err)
	}

	return path, nil
}

// sanitize makes an OU name safe for use in a filename.
func sanitize(name string) string {
	if name == "" {
		return "root"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
