// Package statefile persists sync state as a single JSON document on disk.
package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"mastodon_syncer/internal/domain"
)

// Store keeps the posted-item history and counters in one JSON file. The
// whole document is read at startup and rewritten after every mutation, so
// a crash can only lose the single write in flight. The orchestrator is
// the sole writer; no locking is needed.
type Store struct {
	path        string
	historySize int
	state       domain.SyncState
	logger      *slog.Logger
	now         func() time.Time
}

// New loads the state document at path, creating it with empty defaults
// when absent.
func New(path string, historySize int, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:        path,
		historySize: historySize,
		state: domain.SyncState{
			PostedItems: []string{},
		},
		logger: logger.With("component", "statefile"),
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.flush(); err != nil {
			return nil, fmt.Errorf("create state file: %w", err)
		}
		s.logger.Info("state file created", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if s.state.PostedItems == nil {
		s.state.PostedItems = []string{}
	}

	s.logger.Info("state loaded", "path", path, "posted_items", len(s.state.PostedItems))
	return s, nil
}

// IsPosted reports whether id is in the posted history.
func (s *Store) IsPosted(_ context.Context, id string) (bool, error) {
	return slices.Contains(s.state.PostedItems, id), nil
}

// MarkPosted prepends id, evicts history past the cap, bumps the total
// counter, stamps the sync time, and flushes.
func (s *Store) MarkPosted(_ context.Context, id string) error {
	s.state.PostedItems = append([]string{id}, s.state.PostedItems...)
	if len(s.state.PostedItems) > s.historySize {
		s.state.PostedItems = s.state.PostedItems[:s.historySize]
	}
	s.state.Stats.Total++
	now := s.now()
	s.state.LastSync = &now
	return s.flush()
}

func (s *Store) IncrementFailed(_ context.Context) error {
	s.state.Stats.Failed++
	return s.flush()
}

func (s *Store) IncrementMediaUploaded(_ context.Context, count int) error {
	s.state.Stats.MediaUploaded += count
	return s.flush()
}

// Stats returns a snapshot of the cumulative counters.
func (s *Store) Stats(_ context.Context) (domain.Stats, error) {
	return s.state.Stats, nil
}

// flush rewrites the full document, via a temp file rename so a crash
// mid-write cannot truncate the state.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
