package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

type DB struct {
	conn *sql.DB
	path string
}

// Open opens the analyses database at path, creating the file and its
// directory when missing. A leading ~/ is expanded.
func Open(path string) (*DB, error) {
	path, err := resolve(path)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &DB{conn: conn, path: path}, nil
}

func resolve(path string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("database path is empty")
	case path == MemoryPath:
		return path, nil
	case strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Migrate applies the schema. It is safe to run on every start.
func (d *DB) Migrate() error {
	if _, err := d.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrating %s: %w", d.path, err)
	}
	return nil
}

func (d *DB) Conn() *sql.DB { return d.conn }

// Path is the resolved location, or MemoryPath.
func (d *DB) Path() string { return d.path }

func (d *DB) Close() error {
	return d.conn.Close()
}
