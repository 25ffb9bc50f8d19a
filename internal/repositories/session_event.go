package repositories

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
)

// SessionEventRepository stores session history. Deletes are soft.
type SessionEventRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SessionEvent] = (*SessionEventRepository)(nil)

// NewSessionEventRepository creates a new SessionEventRepository with the given database connection
func NewSessionEventRepository(db *sql.DB) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

// Create inserts a new session event with generated ID and sequence
func (r *SessionEventRepository) Create(event *models.SessionEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "session_events")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	event.SetID(id)
	event.SetSequence(sequence)

	var detail any = event.Detail()
	if detail == "" {
		detail = nil
	}

	query := `
		INSERT INTO session_events (id, sequence, session_id, state, reason, detail, minutes_remaining, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		event.SessionID(),
		event.State(),
		event.Reason(),
		detail,
		event.MinutesRemaining(),
		event.CreatedAt(),
		event.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}

	return nil
}

// Get retrieves a session event by ID, excluding soft-deleted rows
func (r *SessionEventRepository) Get(id string) (*models.SessionEvent, error) {
	query := `
		SELECT id, sequence, session_id, state, reason, detail, minutes_remaining, created_at, updated_at, deleted_at
		FROM session_events
		WHERE id = ? AND deleted_at IS NULL
	`

	event, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session event not found")
	}
	return event, err
}

// Delete soft-deletes a session event by ID
func (r *SessionEventRepository) Delete(id string) error {
	query := `
		UPDATE session_events
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session event not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves session events in sequence order.
//
// Supported criteria: "session_id" and "state" (string) filter rows; "limit" (int) keeps only the newest rows.
func (r *SessionEventRepository) List(criteria map[string]any) ([]*models.SessionEvent, error) {
	query := `
		SELECT id, sequence, session_id, state, reason, detail, minutes_remaining, created_at, updated_at, deleted_at
		FROM session_events
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if sessionID, ok := criteria["session_id"].(string); ok && sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	if state, ok := criteria["state"].(string); ok && state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}

	limit, limited := criteria["limit"].(int)
	limited = limited && limit > 0
	if limited {
		query += " ORDER BY sequence DESC LIMIT ?"
		args = append(args, limit)
	} else {
		query += " ORDER BY sequence ASC"
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		event, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if limited {
		slices.Reverse(events)
	}

	return events, nil
}

// Count returns the number of live session events.
func (r *SessionEventRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM session_events WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count session events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SessionEventRepository) scan(row scanner) (*models.SessionEvent, error) {
	var (
		id               string
		sequence         int
		sessionID        string
		state            string
		reason           string
		detail           sql.NullString
		minutesRemaining int
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(&id, &sequence, &sessionID, &state, &reason, &detail, &minutesRemaining, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session event: %w", err)
	}

	event := models.NewSessionEvent(sequence, sessionID, state, reason)
	event.SetID(id)
	event.SetDetail(detail.String)
	event.SetMinutesRemaining(minutesRemaining)
	event.SetCreatedAt(createdAt)
	event.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		event.SetDeletedAt(&deletedAt.Time)
	}

	return event, nil
}
