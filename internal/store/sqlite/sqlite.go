// Package sqlite keeps documents in a local SQLite table. It serves a
// standalone appliance with no remote store; watchers only see puts made
// through the same process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"cheesecave/internal/store"
)

type Store struct {
	store.Broadcaster
	db  *sql.DB
	now func() time.Time

	// putMu keeps watchers seeing puts in the order they were stored.
	putMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const (
	upsertDocumentSQL = `
		INSERT INTO documents (key, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body=excluded.body,
			updated_at=excluded.updated_at
	`

	selectDocumentSQL = `SELECT body FROM documents WHERE key=?`
)

// Get fetches the document stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, selectDocumentSQL, key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: select %q: %v", store.ErrStoreUnavailable, key, err)
	}
	return []byte(body), true, nil
}

// Put upserts the document and notifies local watchers.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.putMu.Lock()
	defer s.putMu.Unlock()
	if _, err := s.db.ExecContext(ctx, upsertDocumentSQL, key, string(value), s.now().UTC()); err != nil {
		return fmt.Errorf("%w: upsert %q: %v", store.ErrStoreWriteFailed, key, err)
	}
	s.Publish(store.PutEvent{Key: key, Value: append([]byte(nil), value...)})
	return nil
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.PutEvent, error) {
	return s.Subscribe(ctx, key), nil
}
