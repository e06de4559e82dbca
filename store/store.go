// Package store persists wire templates in SQLite, encoded as canonical
// CBOR and addressed by name or content hash.
package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/tessera/wire"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("tessera.store")

// ErrNotFound indicates the requested template doesn't exist.
var ErrNotFound = errors.New("template not found")

const schema = `CREATE TABLE IF NOT EXISTS templates (
	name    TEXT PRIMARY KEY,
	hash    BLOB NOT NULL,
	data    BLOB NOT NULL,
	updated INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS templates_hash ON templates (hash);`

// Entry describes one stored template.
type Entry struct {
	Name    string
	Hash    [32]byte
	Size    int
	Updated time.Time
}

// Store is a SQLite-backed template store. A Store is safe for concurrent
// use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores t under name, replacing any previous template, and returns
// its content hash.
func (s *Store) Put(name string, t *wire.Template) ([32]byte, error) {
	h, err := wire.Hash(t)
	if err != nil {
		return h, err
	}
	data, err := wire.MarshalCBOR(t)
	if err != nil {
		return h, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO templates (name, hash, data, updated) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET hash = excluded.hash, data = excluded.data, updated = excluded.updated`,
		name, h[:], data, time.Now().UnixNano(),
	)
	if err != nil {
		return h, fmt.Errorf("saving %s: %w", name, err)
	}
	log.Debugf("put %s (%s, %d bytes)", name, hex.EncodeToString(h[:8]), len(data))
	return h, nil
}

// Get loads the template stored under name.
func (s *Store) Get(name string) (*wire.Template, error) {
	return s.load("SELECT data FROM templates WHERE name = ?", name, name)
}

// GetByHash loads a template by content hash.
func (s *Store) GetByHash(h [32]byte) (*wire.Template, error) {
	return s.load("SELECT data FROM templates WHERE hash = ? LIMIT 1", h[:], hex.EncodeToString(h[:8]))
}

func (s *Store) load(query string, arg any, label string) (*wire.Template, error) {
	var data []byte
	err := s.db.QueryRow(query, arg).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", label, ErrNotFound)
		}
		return nil, fmt.Errorf("querying %s: %w", label, err)
	}
	t, err := wire.UnmarshalCBOR(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", label, err)
	}
	return t, nil
}

// List returns every stored template, ordered by name.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT name, hash, length(data), updated FROM templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			hash    []byte
			updated int64
		)
		if err := rows.Scan(&e.Name, &hash, &e.Size, &updated); err != nil {
			return nil, fmt.Errorf("listing templates: %w", err)
		}
		copy(e.Hash[:], hash)
		e.Updated = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the template stored under name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM templates WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return nil
}
