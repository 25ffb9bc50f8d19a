package models

import (
	"fmt"
	"time"
)

// SessionEvent is a persisted connection transition.
type SessionEvent struct {
	id               string
	sequence         int
	sessionID        string
	state            string
	reason           string
	detail           string
	minutesRemaining int
	createdAt        time.Time
	updatedAt        time.Time
	deletedAt        *time.Time
}

// NewSessionEvent creates an unsaved [SessionEvent]. The ID is assigned by the repository.
func NewSessionEvent(sequence int, sessionID, state, reason string) *SessionEvent {
	now := time.Now()
	return &SessionEvent{
		sequence:  sequence,
		sessionID: sessionID,
		state:     state,
		reason:    reason,
		createdAt: now,
		updatedAt: now,
	}
}

func (e *SessionEvent) ID() string            { return e.id }
func (e *SessionEvent) Sequence() int         { return e.sequence }
func (e *SessionEvent) SessionID() string     { return e.sessionID }
func (e *SessionEvent) State() string         { return e.state }
func (e *SessionEvent) Reason() string        { return e.reason }
func (e *SessionEvent) Detail() string        { return e.detail }
func (e *SessionEvent) MinutesRemaining() int { return e.minutesRemaining }
func (e *SessionEvent) CreatedAt() time.Time  { return e.createdAt }
func (e *SessionEvent) UpdatedAt() time.Time  { return e.updatedAt }
func (e *SessionEvent) DeletedAt() *time.Time { return e.deletedAt }

func (e *SessionEvent) SetID(id string)           { e.id = id }
func (e *SessionEvent) SetSequence(seq int)       { e.sequence = seq }
func (e *SessionEvent) SetDetail(detail string)   { e.detail = detail }
func (e *SessionEvent) SetMinutesRemaining(m int) { e.minutesRemaining = m }
func (e *SessionEvent) SetCreatedAt(t time.Time)  { e.createdAt = t }
func (e *SessionEvent) SetUpdatedAt(t time.Time)  { e.updatedAt = t }
func (e *SessionEvent) SetDeletedAt(t *time.Time) { e.deletedAt = t }

// Validate checks required fields.
func (e *SessionEvent) Validate() error {
	if e.sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if e.state == "" {
		return fmt.Errorf("state is required")
	}
	if e.minutesRemaining < 0 {
		return fmt.Errorf("minutes_remaining must not be negative")
	}
	return nil
}
