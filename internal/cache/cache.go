// Package cache persists recognition outcomes in a local SQLite database,
// keyed by chunk content, so re-scanning the same audio skips the network
// round trip.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"shazamtool/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS recognitions (
	key        TEXT PRIMARY KEY,
	matched    INTEGER NOT NULL,
	artist     TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);`

// Store is a recognition cache backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and if necessary creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot initialize cache schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the cached outcome for the chunk at chunkPath. The
// second return value reports whether an outcome was cached at all; a
// cached no-match comes back as (nil, true, nil).
func (s *Store) Lookup(chunkPath string) (*core.Track, bool, error) {
	key, err := FileKey(chunkPath)
	if err != nil {
		return nil, false, err
	}

	row := s.db.QueryRow(
		`SELECT matched, artist, title FROM recognitions WHERE key = ?`, key)

	var matched int
	var artist, title string
	if err := row.Scan(&matched, &artist, &title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	if matched == 0 {
		return nil, true, nil
	}
	return &core.Track{Artist: artist, Title: title}, true, nil
}

// Store records the recognition outcome for the chunk at chunkPath.
// A nil track records a no-match.
func (s *Store) Store(chunkPath string, track *core.Track) error {
	key, err := FileKey(chunkPath)
	if err != nil {
		return err
	}

	matched := 0
	var artist, title string
	if track != nil {
		matched = 1
		artist = track.Artist
		title = track.Title
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO recognitions (key, matched, artist, title, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key, matched, artist, title, s.now().Unix())
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// FileKey derives the cache key from the chunk's content checksum, so
// the key is stable across runs even though chunk file paths are not.
func FileKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read chunk for cache key: %w", err)
	}
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)), nil
}
