package tasks

import (
	"fmt"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/shared"
)

// ProgressUpdate represents a change on the transfer board or in session history.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PullTransfers Phase = iota
	PushProgress
	TransferComplete
	SaveSnapshots
	RecordHistory
)

func (p Phase) String() string {
	switch p {
	case PullTransfers:
		return "pull_transfers"
	case PushProgress:
		return "push_progress"
	case TransferComplete:
		return "transfer_complete"
	case SaveSnapshots:
		return "save_snapshots"
	case RecordHistory:
		return "record_history"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func pulledUpdate(transfers []models.Transfer, active int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PullTransfers,
		Step:    active,
		Total:   len(transfers),
		Message: fmt.Sprintf("%d transfers, %d active", len(transfers), active),
		Data:    transfers,
	}
}

func pullFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PullTransfers,
		Message: fmt.Sprintf("Transfer listing failed: %v", err),
	}
}

func pushUpdate(msg push.Message, t models.Transfer) ProgressUpdate {
	if msg.Type == push.TypeTransferComplete {
		return ProgressUpdate{
			Phase:   TransferComplete,
			Step:    1,
			Total:   1,
			Message: fmt.Sprintf("✓ %s complete", label(t)),
			Data:    t,
		}
	}
	return ProgressUpdate{
		Phase:   PushProgress,
		Step:    int(t.Progress),
		Total:   100,
		Message: fmt.Sprintf("%s %.1f%% (%s)", label(t), t.Progress, shared.FormatBytes(t.BytesTransferred)),
		Data:    t,
	}
}

func snapshotFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveSnapshots,
		Message: fmt.Sprintf("✗ Saving snapshots failed: %v", err),
	}
}

func recordedUpdate(event *models.SessionEvent) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordHistory,
		Step:    event.Sequence(),
		Message: fmt.Sprintf("Recorded %s", event.State()),
		Data:    event,
	}
}

func label(t models.Transfer) string {
	if t.Source != "" {
		return t.Source
	}
	return t.ID
}
