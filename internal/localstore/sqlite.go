// Package localstore persists client-side state (auth token, UI defaults,
// download history) in a small SQLite database.
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vipguy/Bing4/internal/model"
)

// Keys and their defaults
const (
	KeyAuthCookie     = "authCookie"
	KeyStoragePath    = "storagePath"
	KeyImagesPerStyle = "imagesPerStyle"

	DefaultAuthCookie  = "_U="
	DefaultStoragePath = "/tmp/pixel_images"
)

// DB wraps the SQLite connection
type DB struct {
	*sql.DB
}

// Open creates or opens the database at dbPath and ensures the schema
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			image_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			location TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_session_id ON downloads(session_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under key, or fallback when unset
func (db *DB) Get(key, fallback string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key
func (db *DB) Set(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Settings is the client-local preference set
type Settings struct {
	AuthCookie     string
	StoragePath    string
	ImagesPerStyle int
}

// LoadSettings reads every preference, applying defaults for unset keys.
// An out-of-range images-per-style value falls back to the default.
func (db *DB) LoadSettings() (Settings, error) {
	var s Settings
	var err error
	if s.AuthCookie, err = db.Get(KeyAuthCookie, DefaultAuthCookie); err != nil {
		return s, err
	}
	if s.StoragePath, err = db.Get(KeyStoragePath, DefaultStoragePath); err != nil {
		return s, err
	}
	raw, err := db.Get(KeyImagesPerStyle, "")
	if err != nil {
		return s, err
	}
	s.ImagesPerStyle = model.DefaultImagesPerStyle
	if n, err := strconv.Atoi(raw); err == nil && model.ValidImagesPerStyle(n) {
		s.ImagesPerStyle = n
	}
	return s, nil
}

func (db *DB) SetAuthCookie(v string) error {
	return db.Set(KeyAuthCookie, v)
}

func (db *DB) SetStoragePath(v string) error {
	return db.Set(KeyStoragePath, v)
}

// SetImagesPerStyle rejects values outside the accepted range
func (db *DB) SetImagesPerStyle(n int) error {
	if !model.ValidImagesPerStyle(n) {
		return fmt.Errorf("images per style must be between %d and %d, got %d",
			model.MinImagesPerStyle, model.MaxImagesPerStyle, n)
	}
	return db.Set(KeyImagesPerStyle, strconv.Itoa(n))
}
