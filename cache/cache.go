// Package cache stores compiled chunks in SQLite, keyed by the source text
// they were compiled from.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/pkg/bytecode"
)

var log = commonlog.GetLogger("lox.cache")

// ErrNotFound indicates no chunk is cached for the requested source.
var ErrNotFound = errors.New("chunk not cached")

// Cache is a SQLite-backed store of chunk images. It is safe for concurrent
// use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		image BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file the cache was opened on.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key returns the cache key for source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached chunk for source, or ErrNotFound. Entries written
// by a different bytecode version are treated as missing.
func (c *Cache) Get(source string) (*bytecode.Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow(
		"SELECT image FROM chunks WHERE key = ? AND version = ?",
		Key(source), int(bytecode.BytecodeVersion),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying chunk in %s: %w", c.path, err)
	}

	chunk, err := bytecode.UnmarshalImage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cached chunk in %s: %w", c.path, err)
	}
	return chunk, nil
}

// Put stores chunk as the compiled form of source, replacing any previous
// entry.
func (c *Cache) Put(source string, chunk *bytecode.Chunk) error {
	data, err := bytecode.MarshalImage(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (key, version, image) VALUES (?, ?, ?)",
		Key(source), int(bytecode.BytecodeVersion), data,
	)
	if err != nil {
		return fmt.Errorf("saving chunk to %s: %w", c.path, err)
	}
	return nil
}

// Len returns the number of cached chunks.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks in %s: %w", c.path, err)
	}
	return n, nil
}

// CompileCached returns the chunk for source, compiling and storing it on a
// miss. A nil cache just compiles. Compile errors are returned unchanged and
// never cached; a cache that cannot be read or written is logged and
// bypassed.
func CompileCached(c *Cache, source string) (*bytecode.Chunk, error) {
	if c != nil {
		chunk, err := c.Get(source)
		switch {
		case err == nil:
			log.Debugf("cache hit %s", Key(source)[:12])
			return chunk, nil
		case errors.Is(err, ErrNotFound):
			log.Debugf("cache miss %s", Key(source)[:12])
		default:
			log.Warningf("cache read failed: %s", err)
		}
	}

	chunk := bytecode.NewChunk()
	if err := compiler.Compile(source, chunk); err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.Put(source, chunk); err != nil {
			log.Warningf("cache write failed: %s", err)
		}
	}
	return chunk, nil
}
