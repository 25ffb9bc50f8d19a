package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
)

// TransferSnapshotRepository keeps the last known state of each transfer.
//
// Rows are keyed by the service's transfer ID and replaced wholesale on every save.
type TransferSnapshotRepository struct {
	db *sql.DB
}

// NewTransferSnapshotRepository creates a new TransferSnapshotRepository with the given database connection
func NewTransferSnapshotRepository(db *sql.DB) *TransferSnapshotRepository {
	return &TransferSnapshotRepository{db: db}
}

// Save upserts transfers in a single transaction.
func (r *TransferSnapshotRepository) Save(transfers []models.Transfer) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO transfer_snapshots (transfer_id, source, destination, status, progress, bytes_transferred, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transfer_id) DO UPDATE SET
			source = excluded.source,
			destination = excluded.destination,
			status = excluded.status,
			progress = excluded.progress,
			bytes_transferred = excluded.bytes_transferred,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, t := range transfers {
		if t.ID == "" {
			return fmt.Errorf("transfer id is required")
		}

		var startedAt any
		if !t.StartedAt.IsZero() {
			startedAt = t.StartedAt
		}
		updatedAt := t.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		if _, err := stmt.Exec(t.ID, t.Source, t.Destination, string(t.Status), t.Progress, t.BytesTransferred, startedAt, updatedAt); err != nil {
			return fmt.Errorf("failed to save transfer %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}

	return nil
}

// List returns every stored transfer, most recently updated first.
func (r *TransferSnapshotRepository) List() ([]models.Transfer, error) {
	rows, err := r.db.Query(`
		SELECT transfer_id, source, destination, status, progress, bytes_transferred, started_at, updated_at
		FROM transfer_snapshots
		ORDER BY updated_at DESC, transfer_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var (
			t         models.Transfer
			status    string
			startedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Source, &t.Destination, &status, &t.Progress, &t.BytesTransferred, &startedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		t.Status = models.TransferStatus(status)
		if startedAt.Valid {
			t.StartedAt = startedAt.Time
		}
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return transfers, nil
}

// Delete removes the snapshot of one transfer.
func (r *TransferSnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM transfer_snapshots WHERE transfer_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTransferNotFound, id)
	}

	return nil
}
