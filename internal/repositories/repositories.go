// package repositories persists session history and transfer snapshots in SQLite.
package repositories

import (
	"database/sql"
	"fmt"
)

// sequenced lists the tables that have a companion {table}_sequence counter row.
var sequenced = map[string]bool{
	"session_events": true,
}

// NextSequence increments and returns the counter for table.
//
// Sequences order history rows independently of wall-clock time, which can jump.
func NextSequence(db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := tx.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
