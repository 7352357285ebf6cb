// Package runstate persists enumeration progress so an interrupted run can
// resume without redoing finished work.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Outcome is the terminal result of one (account, resource kind) attempt.
type Outcome string

const (
	// OutcomeDone means the kind was collected (possibly empty).
	OutcomeDone Outcome = "DONE"
	// OutcomeDenied means the listing call was not authorized.
	OutcomeDenied Outcome = "DENIED"
	// OutcomeFailed means the retry budget was spent on transient errors.
	OutcomeFailed Outcome = "FAILED"
)

// fileState is the on-disk representation of a run's progress.
type fileState struct {
	Accounts   map[string]map[string]Outcome `json:"accounts"`
	VisitedOUs []string                      `json:"visited_ous"`
}

// Store records progress durably. All mutations are serialized and flushed
// to disk before returning; exactly one run may own a state file at a time
// (see AcquireLock).
type Store struct {
	path string

	mu       sync.Mutex
	accounts map[string]map[string]Outcome
	visited  map[string]struct{}
}

// Load reads a state file, returning an empty store when the file does not
// exist and CorruptStateError when it exists but cannot be parsed.
func Load(path string) (*Store, error) {
	s := &Store{
		path:     path,
		accounts: make(map[string]map[string]Outcome),
		visited:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, &CorruptStateError{Path: path, Err: err}
	}

	if fs.Accounts != nil {
		s.accounts = fs.Accounts
	}
	for _, id := range fs.VisitedOUs {
		s.visited[id] = struct{}{}
	}
	return s, nil
}

// Record stores the outcome of one (account, kind) pair and durably flushes
// before returning.
func (s *Store) Record(accountID, kind string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds, ok := s.accounts[accountID]
	if !ok {
		kinds = make(map[string]Outcome)
		s.accounts[accountID] = kinds
	}
	kinds[kind] = outcome

	return s.flushLocked()
}

// Outcome returns the recorded outcome for (account, kind) and whether one
// exists. An absent entry means the kind was never attempted.
func (s *Store) Outcome(accountID, kind string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := s.accounts[accountID][kind]
	return outcome, ok
}

// IsComplete reports whether (account, kind) needs no further attempt.
// DONE and DENIED are terminal; FAILED is retried on resume.
func (s *Store) IsComplete(accountID, kind string) bool {
	outcome, ok := s.Outcome(accountID, kind)
	return ok && outcome != OutcomeFailed
}

// AccountComplete reports whether every given kind is complete for the
// account, in which case the walker skips it entirely.
func (s *Store) AccountComplete(accountID string, kinds []string) bool {
	for _, kind := range kinds {
		if !s.IsComplete(accountID, kind) {
			return false
		}
	}
	return true
}

// MarkOUVisited records that an OU's own listing completed, flushing durably.
func (s *Store) MarkOUVisited(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visited[id]; ok {
		return nil
	}
	s.visited[id] = struct{}{}
	return s.flushLocked()
}

// OUVisited reports whether the OU was marked visited in this or a prior run.
func (s *Store) OUVisited(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.visited[id]
	return ok
}

// Counts returns the number of recorded (account, kind) pairs per outcome.
func (s *Store) Counts() map[Outcome]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Outcome]int)
	for _, kinds := range s.accounts {
		for _, outcome := range kinds {
			counts[outcome]++
		}
	}
	return counts
}

// flushLocked writes the state with the write-then-fsync-then-rename
// discipline so a crash never leaves a torn file. Caller holds s.mu.
func (s *Store) flushLocked() error {
	visited := make([]string, 0, len(s.visited))
	for id := range s.visited {
		visited = append(visited, id)
	}
	sort.Strings(visited)

	data, err := json.MarshalIndent(fileState{
		Accounts:   s.accounts,
		VisitedOUs: visited,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".trample-state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
