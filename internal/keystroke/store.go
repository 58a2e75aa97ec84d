package keystroke

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// baselineNamespace keys the baseline fields in the kv table. The format is
// opaque name/value pairs, not a versioned schema.
const baselineNamespace = "keystroke.baseline"

const storeSchema = `
CREATE TABLE IF NOT EXISTS kv (
    ns         TEXT NOT NULL,
    name       TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (ns, name)
);
`

// BaselineStore is a small durable key-value store for the typing baseline:
// four floating-point fields and one counter under a fixed namespace.
type BaselineStore struct {
	db *sql.DB
}

// OpenBaselineStore opens (creating if needed) the SQLite store at path.
func OpenBaselineStore(path string) (*BaselineStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening baseline store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing baseline store: %w", err)
	}
	return &BaselineStore{db: db}, nil
}

// Save upserts all baseline fields in one transaction.
func (s *BaselineStore) Save(b Baseline) error {
	fields := map[string]string{
		"mean_dwell_ms":  strconv.FormatFloat(b.MeanDwellMs, 'g', -1, 64),
		"dwell_var":      strconv.FormatFloat(b.DwellVar, 'g', -1, 64),
		"mean_flight_ms": strconv.FormatFloat(b.MeanFlightMs, 'g', -1, 64),
		"flight_var":     strconv.FormatFloat(b.FlightVar, 'g', -1, 64),
		"count":          strconv.Itoa(b.Count),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for name, value := range fields {
		if _, err := tx.Exec(
			`INSERT INTO kv (ns, name, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(ns, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			baselineNamespace, name, value, now,
		); err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Load reads the persisted baseline. A store with no saved baseline yields
// the zero Baseline, not an error.
func (s *BaselineStore) Load() (Baseline, error) {
	rows, err := s.db.Query(`SELECT name, value FROM kv WHERE ns = ?`, baselineNamespace)
	if err != nil {
		return Baseline{}, fmt.Errorf("loading baseline: %w", err)
	}
	defer rows.Close()

	var b Baseline
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Baseline{}, fmt.Errorf("scanning baseline row: %w", err)
		}
		switch name {
		case "mean_dwell_ms":
			b.MeanDwellMs, _ = strconv.ParseFloat(value, 64)
		case "dwell_var":
			b.DwellVar, _ = strconv.ParseFloat(value, 64)
		case "mean_flight_ms":
			b.MeanFlightMs, _ = strconv.ParseFloat(value, 64)
		case "flight_var":
			b.FlightVar, _ = strconv.ParseFloat(value, 64)
		case "count":
			b.Count, _ = strconv.Atoi(value)
		}
	}
	return b, rows.Err()
}

// Clear removes the persisted baseline.
func (s *BaselineStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE ns = ?`, baselineNamespace); err != nil {
		return fmt.Errorf("clearing baseline: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *BaselineStore) Close() error {
	return s.db.Close()
}
