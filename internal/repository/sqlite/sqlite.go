package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (or creates) the database file and applies the schema.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the measurements table if it doesn't exist.
// AUTOINCREMENT keeps ids monotonic: a deleted id is never handed out again.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sensor_measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		sensor_type TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		acceleration_x REAL,
		acceleration_y REAL,
		acceleration_z REAL,
		photo_path TEXT,
		notes TEXT,
		CHECK ((latitude IS NULL) = (longitude IS NULL)),
		CHECK ((acceleration_x IS NULL) = (acceleration_y IS NULL)
			AND (acceleration_y IS NULL) = (acceleration_z IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON sensor_measurements(timestamp);
	CREATE INDEX IF NOT EXISTS idx_measurements_sensor_type ON sensor_measurements(sensor_type);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
