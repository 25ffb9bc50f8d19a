package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
)

// noSession marks rows recorded before any connection succeeded.
const noSession = "none"

// EventStore persists session history. [repositories.SessionEventRepository] implements it.
type EventStore interface {
	Create(event *models.SessionEvent) error
}

// HistoryRecorder writes session events to an [EventStore].
//
// Activity events are not recorded; everything else becomes one row.
type HistoryRecorder struct {
	store  EventStore
	logger *log.Logger
}

// NewHistoryRecorder creates a recorder backed by store.
func NewHistoryRecorder(store EventStore, logger *log.Logger) *HistoryRecorder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HistoryRecorder{store: store, logger: shared.WithLogger(logger, "component", "history")}
}

// Record persists a single event. It returns nil without writing for events that are not history.
func (h *HistoryRecorder) Record(e session.Event) (*models.SessionEvent, error) {
	row := toSessionEvent(e)
	if row == nil {
		return nil, nil
	}
	if h.store == nil {
		return nil, fmt.Errorf("%w: history store not initialized", shared.ErrServiceUnavailable)
	}
	if err := h.store.Create(row); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", e.Name(), err)
	}
	return row, nil
}

// Run records events until the channel closes or ctx is done. Store failures are logged and skipped.
func (h *HistoryRecorder) Run(ctx context.Context, events <-chan session.Event, progress chan<- ProgressUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			row, err := h.Record(e)
			if err != nil {
				h.logger.Warn("failed to record session event", "event", e.Name(), "err", err)
				continue
			}
			if row != nil {
				h.logger.Debug("session event recorded", "state", row.State(), "session", row.SessionID())
				sendProgress(progress, recordedUpdate(row))
			}
		}
	}
}

func toSessionEvent(e session.Event) *models.SessionEvent {
	var (
		sessionID, reason, detail string
		minutes                   int
	)

	switch e := e.(type) {
	case session.ConnectedEvent:
		sessionID = e.SessionID
	case session.DisconnectedEvent:
		sessionID = e.SessionID
		reason = e.Reason.String()
		if e.Err != nil {
			detail = e.Err.Error()
		}
	case session.AutoDisconnectedEvent:
		sessionID = e.SessionID
		reason = session.ReasonPolicy.String()
		detail = fmt.Sprintf("idle for %s", e.IdleFor.Round(time.Second))
	case session.ConfigChangedEvent:
		sessionID = e.SessionID
		reason = session.ReasonConfigChanged.String()
	case session.WarningEvent:
		sessionID = e.SessionID
		minutes = e.MinutesRemaining
	case session.ProtectionEvent:
		sessionID = e.SessionID
		minutes = e.TimeoutMinutes
		detail = "active transfer kept the session open"
	default:
		return nil
	}

	if sessionID == "" {
		sessionID = noSession
	}

	row := models.NewSessionEvent(0, sessionID, e.Name(), reason)
	row.SetDetail(detail)
	row.SetMinutesRemaining(minutes)
	row.SetCreatedAt(e.Time())
	row.SetUpdatedAt(e.Time())
	return row
}
