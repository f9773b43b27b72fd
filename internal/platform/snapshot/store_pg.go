package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStore keeps snapshots in the snapshot_entry table so that several
// emr-web instances share one fallback cache.
type PGStore struct {
	db         queryable
	maxEntries int
}

// NewPGStore creates a PGStore over a pgxpool.Pool (or any compatible
// connection) holding at most maxEntries rows.
func NewPGStore(db queryable, maxEntries int) *PGStore {
	return &PGStore{db: db, maxEntries: maxEntries}
}

func (s *PGStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var e Entry
	var expires *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT data, stored_at, expires_at FROM snapshot_entry
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key).
		Scan(&e.Data, &e.StoredAt, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	if expires != nil {
		e.ExpiresAt = *expires
	}
	return &e, true, nil
}

func (s *PGStore) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO snapshot_entry (key, data, stored_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, stored_at = EXCLUDED.stored_at, expires_at = EXCLUDED.expires_at`,
		key, data, expires)
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return s.prune(ctx)
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM snapshot_entry WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

// prune drops expired rows and the oldest rows beyond maxEntries.
func (s *PGStore) prune(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM snapshot_entry WHERE expires_at IS NOT NULL AND expires_at <= now()`); err != nil {
		return fmt.Errorf("prune expired snapshots: %w", err)
	}
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM snapshot_entry WHERE key IN (
			SELECT key FROM snapshot_entry ORDER BY stored_at DESC OFFSET $1
		)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("prune snapshots over capacity: %w", err)
	}
	return nil
}
