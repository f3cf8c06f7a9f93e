// Package postgres provides a database-backed sync state store for
// deployments where a local state file is not durable (ephemeral runners,
// multiple hosts sharing one history).
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"mastodon_syncer/internal/domain"
)

type StateStore struct {
	db          *sqlx.DB
	historySize int
}

func NewStateStore(db *sqlx.DB, historySize int) *StateStore {
	return &StateStore{db: db, historySize: historySize}
}

func (s *StateStore) IsPosted(ctx context.Context, id string) (bool, error) {
	var posted bool
	err := s.db.GetContext(ctx, &posted,
		"SELECT EXISTS (SELECT 1 FROM posted_items WHERE item_id = $1)", id)
	return posted, err
}

// MarkPosted records the id, evicts history beyond the cap, and bumps the
// counters, all in one transaction so the state never observes a partial
// mutation.
func (s *StateStore) MarkPosted(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO posted_items (item_id, posted_at) VALUES ($1, $2)
		 ON CONFLICT (item_id) DO NOTHING`, id, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM posted_items
		 WHERE item_id NOT IN (
		     SELECT item_id FROM posted_items
		     ORDER BY posted_at DESC, item_id
		     LIMIT $1
		 )`, s.historySize); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sync_stats SET total = total + 1, last_sync = $1 WHERE id = 1", now); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *StateStore) IncrementFailed(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_stats SET failed = failed + 1 WHERE id = 1")
	return err
}

func (s *StateStore) IncrementMediaUploaded(ctx context.Context, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_stats SET media_uploaded = media_uploaded + $1 WHERE id = 1", count)
	return err
}

func (s *StateStore) Stats(ctx context.Context) (domain.Stats, error) {
	var row struct {
		Total         int `db:"total"`
		Failed        int `db:"failed"`
		MediaUploaded int `db:"media_uploaded"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT total, failed, media_uploaded FROM sync_stats WHERE id = 1")
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Total:         row.Total,
		Failed:        row.Failed,
		MediaUploaded: row.MediaUploaded,
	}, nil
}
