package modreg

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/weave-lang/weave/internal/bytecode"
)

// Cache is the compiled-unit cache: a modernc.org/sqlite-backed table
// keyed by a source content hash, so a host (an external `check`/`run`
// CLI collaborator) can skip recompiling a source tree whose hash it
// has already seen. The pure-Go modernc.org/sqlite driver keeps the
// module cgo-free.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if necessary) the sqlite database at path
// and ensures its units table exists.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("modreg: opening cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("modreg: setting busy timeout: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS units (
		source_hash TEXT PRIMARY KEY,
		options_hash TEXT NOT NULL,
		encoded BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("modreg: creating units table: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached Unit for sourceHash, but only if it was
// stored under the same optionsHash — compiler options
// (test/bench/emit_instructions/optimize/script) change what the
// source compiles to, so a hit on source alone without options would
// silently hand back bytecode built with the wrong flags.
func (c *Cache) Lookup(sourceHash, optionsHash string) (*bytecode.Unit, bool, error) {
	var storedOptions string
	var encoded []byte
	err := c.db.QueryRow(
		"SELECT options_hash, encoded FROM units WHERE source_hash = ?", sourceHash,
	).Scan(&storedOptions, &encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("modreg: querying cache: %w", err)
	}
	if storedOptions != optionsHash {
		return nil, false, nil
	}
	u, err := bytecode.Decode(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("modreg: decoding cached unit: %w", err)
	}
	return u, true, nil
}

// Store encodes u via the persisted bytecode format and upserts it
// under sourceHash/optionsHash. createdAt is a Unix timestamp the
// caller stamps (this package never calls time.Now() itself, so a host
// driving many Stores in a batch can give them all one consistent
// timestamp if it wants).
func (c *Cache) Store(sourceHash, optionsHash string, u *bytecode.Unit, createdAt int64) error {
	encoded := bytecode.Encode(u)
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO units (source_hash, options_hash, encoded, created_at) VALUES (?, ?, ?, ?)",
		sourceHash, optionsHash, encoded, createdAt,
	)
	if err != nil {
		return fmt.Errorf("modreg: storing unit: %w", err)
	}
	return nil
}
