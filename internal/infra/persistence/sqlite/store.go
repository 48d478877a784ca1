// Package sqlite provides an embedded SQLite-backed persistent store. The
// in-memory store keeps full transactional semantics; after every committed
// transaction the whole state is snapshotted into a single table as JSON
// blobs, and the store hydrates from that table on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"herdcore/internal/contract"
	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table.
type Store struct {
	*core.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates the
// in-memory store from any existing snapshot.
func NewStore(path string, registry *contract.Registry) (*Store, error) {
	if path == "" {
		path = "herdcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: core.NewStore(registry), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var buckets = []string{"animals", "events", "costs", "dimensions"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot domain.StateSnapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		found = true
		switch bucket {
		case "animals":
			if err := json.Unmarshal(payload, &snapshot.Animals); err != nil {
				return fmt.Errorf("decode animals: %w", err)
			}
		case "events":
			if err := json.Unmarshal(payload, &snapshot.Events); err != nil {
				return fmt.Errorf("decode events: %w", err)
			}
		case "costs":
			if err := json.Unmarshal(payload, &snapshot.Costs); err != nil {
				return fmt.Errorf("decode costs: %w", err)
			}
		case "dimensions":
			if err := json.Unmarshal(payload, &snapshot.Dimensions); err != nil {
				return fmt.Errorf("decode dimensions: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func bucketData(snapshot domain.StateSnapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "animals":
		return json.Marshal(snapshot.Animals)
	case "events":
		return json.Marshal(snapshot.Events)
	case "costs":
		return json.Marshal(snapshot.Costs)
	case "dimensions":
		return json.Marshal(snapshot.Dimensions)
	default:
		return nil, fmt.Errorf("unknown bucket %s", bucket)
	}
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		data, err := bucketData(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// RunInTransaction applies fn in a memory transaction, then snapshots state
// to SQLite when the commit succeeded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return nil, err
	}
	if pErr := s.persist(); pErr != nil {
		return changes, pErr
	}
	return changes, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
