package cache

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is a persistent cache backend for long batch sessions, so a
// re-run after an interruption does not repeat upstream model calls.
// Same contract as Memory; one extra failure mode (I/O) which is
// swallowed on reads and surfaced on writes via the error log path of
// the caller.
type SQLite struct {
	db *sql.DB

	mu     sync.Mutex
	hits   int64
	misses int64

	inflightMu sync.Mutex
	inflight   map[string]*sync.Mutex
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (kind, key)
);
`

// NewSQLite opens (or creates) a cache database at the given path and
// configures WAL mode for concurrent readers.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &SQLite{
		db:       db,
		inflight: make(map[string]*sync.Mutex),
	}, nil
}

func (s *SQLite) Get(kind Kind, key string) ([]byte, bool) {
	value, ok := s.lookup(kind, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.misses++
		return nil, false
	}
	s.hits++
	return value, true
}

// lookup reads an entry without touching the hit/miss counters.
func (s *SQLite) lookup(kind Kind, key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRowContext(context.Background(),
		`SELECT value FROM cache_entries WHERE kind = ? AND key = ?`,
		string(kind), key,
	).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

func (s *SQLite) Put(kind Kind, key string, value []byte) {
	_, _ = s.db.ExecContext(context.Background(),
		`INSERT INTO cache_entries (kind, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET value = excluded.value`,
		string(kind), key, value,
	)
}

func (s *SQLite) GetOrCompute(kind Kind, key string, load func() ([]byte, error)) ([]byte, error) {
	if val, ok := s.Get(kind, key); ok {
		return val, nil
	}

	lock := s.keyLock(kind, key)
	lock.Lock()
	defer lock.Unlock()

	// Double-check under the key lock; not a counted lookup, the miss
	// was already recorded above.
	if val, ok := s.lookup(kind, key); ok {
		return val, nil
	}

	val, err := load()
	if err != nil {
		return nil, err
	}
	s.Put(kind, key, val)
	return val, nil
}

func (s *SQLite) keyLock(kind Kind, key string) *sync.Mutex {
	composite := string(kind) + ":" + key
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	lock, ok := s.inflight[composite]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[composite] = lock
	}
	return lock
}

func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return eris.Wrap(err, "cache: clear")
	}
	s.mu.Lock()
	s.hits = 0
	s.misses = 0
	s.mu.Unlock()
	return nil
}

func (s *SQLite) Stats() Stats {
	s.mu.Lock()
	stats := Stats{
		Hits:        s.hits,
		Misses:      s.misses,
		SizePerKind: make(map[Kind]int64),
	}
	s.mu.Unlock()

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM cache_entries GROUP BY kind`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var kind string
			var count int64
			if rows.Scan(&kind, &count) == nil {
				stats.SizePerKind[Kind(kind)] = count
			}
		}
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
