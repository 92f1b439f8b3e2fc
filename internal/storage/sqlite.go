package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS readings (
	unit_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	time TEXT NOT NULL,
	kwh REAL NOT NULL,
	power_1h REAL NOT NULL DEFAULT 0,
	power_24h REAL NOT NULL DEFAULT 0,
	estimated_hours REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (unit_id, seq)
);
`

// SQLite stores history in an SQLite database. Writes replace the whole
// document inside one transaction.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Read loads every unit's records ordered oldest first.
func (s *SQLite) Read() (map[string][]models.Record, error) {
	rows, err := s.db.Query(`SELECT unit_id, time, kwh, power_1h, power_24h, estimated_hours
		FROM readings ORDER BY unit_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Record)
	for rows.Next() {
		var (
			id, ts string
			r      models.Record
		)
		if err := rows.Scan(&id, &ts, &r.KWh, &r.Power1h, &r.Power24h, &r.EstimatedHours); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: unit %s: parse time %q: %v", ErrCorrupt, id, ts, err)
		}
		out[id] = append(out[id], r)
	}
	return out, rows.Err()
}

// Write replaces all stored readings with h.
func (s *SQLite) Write(h map[string][]models.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM readings`); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO readings (unit_id, seq, time, kwh, power_1h, power_24h, estimated_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, records := range h {
		for i, r := range records {
			if _, err := stmt.Exec(id, i, r.Time.Format(time.RFC3339Nano), r.KWh, r.Power1h, r.Power24h, r.EstimatedHours); err != nil {
				return fmt.Errorf("insert reading for %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit readings: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
