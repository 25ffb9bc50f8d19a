package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/services"
	"github.com/desertthunder/mediasync/internal/shared"
	"golang.org/x/time/rate"
)

// SnapshotStore persists the board after each pull. [repositories.TransferSnapshotRepository] implements it.
type SnapshotStore interface {
	Save(transfers []models.Transfer) error
}

// BoardOpts contains configuration for a [TransferBoard].
type BoardOpts struct {
	Interval    time.Duration // Pull period (default: 30s)
	RefreshRate float64       // Completion-triggered pulls per second (default: 0.2)
	Store       SnapshotStore // Optional
	Logger      *log.Logger
}

// TransferBoard merges the two sources of transfer state: periodic pulls of the listing and push notifications.
//
// The pull decides which transfers exist. A push notification received after the pulled record was produced wins
// for that transfer's progress and status. A completion notice triggers an extra, rate-limited pull.
type TransferBoard struct {
	lister   services.TransferLister
	store    SnapshotStore
	limiter  *rate.Limiter
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu        sync.RWMutex
	transfers map[string]models.Transfer
	pushed    map[string]time.Time
	lastPull  time.Time

	refresh chan struct{}
}

// NewTransferBoard creates a board that pulls from lister.
func NewTransferBoard(lister services.TransferLister, opts BoardOpts) *TransferBoard {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 0.2
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TransferBoard{
		lister:    lister,
		store:     opts.Store,
		limiter:   rate.NewLimiter(rate.Limit(opts.RefreshRate), 1),
		interval:  opts.Interval,
		logger:    shared.WithLogger(opts.Logger, "component", "board"),
		now:       time.Now,
		transfers: make(map[string]models.Transfer),
		pushed:    make(map[string]time.Time),
		refresh:   make(chan struct{}, 1),
	}
}

// Refresh pulls the transfer listing and reconciles it with pushed state.
func (b *TransferBoard) Refresh(ctx context.Context, progress chan<- ProgressUpdate) error {
	if b.lister == nil {
		return fmt.Errorf("%w: transfer lister not initialized", shared.ErrServiceUnavailable)
	}

	started := b.now()
	listed, err := b.lister.ListTransfers(ctx)
	if err != nil {
		sendProgress(progress, pullFailedUpdate(err))
		return fmt.Errorf("failed to refresh transfers: %w", err)
	}

	b.mu.Lock()
	next := make(map[string]models.Transfer, len(listed))
	for _, t := range listed {
		if t.ID == "" {
			continue
		}
		cutoff := t.UpdatedAt
		if cutoff.IsZero() {
			cutoff = started
		}
		if pushedAt, ok := b.pushed[t.ID]; ok && pushedAt.After(cutoff) {
			prev := b.transfers[t.ID]
			t.Status = prev.Status
			t.Progress = prev.Progress
			if prev.Message != "" {
				t.Message = prev.Message
			}
			t.UpdatedAt = pushedAt
		} else if ok {
			delete(b.pushed, t.ID)
		}
		next[t.ID] = t
	}

	for id, pushedAt := range b.pushed {
		if _, listed := next[id]; listed {
			continue
		}
		if pushedAt.After(started) {
			next[id] = b.transfers[id]
			continue
		}
		delete(b.pushed, id)
	}

	b.transfers = next
	b.lastPull = started
	snapshot := b.sortedLocked()
	active := b.activeLocked()
	b.mu.Unlock()

	b.logger.Debug("transfers refreshed", "count", len(snapshot), "active", active)
	sendProgress(progress, pulledUpdate(snapshot, active))

	if b.store != nil {
		if err := b.store.Save(snapshot); err != nil {
			b.logger.Warn("failed to save transfer snapshots", "err", err)
			sendProgress(progress, snapshotFailedUpdate(err))
		}
	}

	return nil
}

// Apply folds a push notification into the board. It is safe to use as a session forward function.
func (b *TransferBoard) Apply(msg push.Message, progress chan<- ProgressUpdate) {
	if msg.TransferID == "" {
		return
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = b.now()
	}

	b.mu.Lock()
	t, ok := b.transfers[msg.TransferID]
	if !ok {
		t = models.Transfer{ID: msg.TransferID, Status: models.TransferQueued}
	}

	switch msg.Type {
	case push.TypeTransferProgress:
		t.Progress = msg.Progress
		if !t.Status.Terminal() {
			t.Status = models.TransferRunning
		}
	case push.TypeTransferComplete:
		t.Status = models.TransferCompleted
		t.Progress = 100
	default:
		b.mu.Unlock()
		return
	}
	if msg.Message != "" {
		t.Message = msg.Message
	}
	t.UpdatedAt = at

	b.transfers[t.ID] = t
	b.pushed[t.ID] = at
	b.mu.Unlock()

	sendProgress(progress, pushUpdate(msg, t))

	if msg.Type == push.TypeTransferComplete {
		b.RequestRefresh()
	}
}

// RequestRefresh asks [TransferBoard.Run] for an extra pull without blocking.
func (b *TransferBoard) RequestRefresh() {
	select {
	case b.refresh <- struct{}{}:
	default:
	}
}

// Run pulls immediately, then on every interval and on rate-limited refresh requests, until ctx is done.
func (b *TransferBoard) Run(ctx context.Context, progress chan<- ProgressUpdate) error {
	if err := b.Refresh(ctx, progress); err != nil {
		b.logger.Warn("initial transfer pull failed", "err", err)
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := b.Refresh(ctx, progress); err != nil {
				b.logger.Warn("transfer pull failed", "err", err)
			}

		case <-b.refresh:
			if !b.limiter.Allow() {
				b.logger.Debug("refresh request rate limited")
				continue
			}
			if err := b.Refresh(ctx, progress); err != nil {
				b.logger.Warn("transfer pull failed", "err", err)
			}
		}
	}
}

// Transfers returns the board ordered with active transfers first, then by start time, newest first.
func (b *TransferBoard) Transfers() []models.Transfer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedLocked()
}

// ActiveCount returns the number of queued or running transfers on the board.
func (b *TransferBoard) ActiveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeLocked()
}

// LastPull returns when the last successful pull started.
func (b *TransferBoard) LastPull() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPull
}

func (b *TransferBoard) sortedLocked() []models.Transfer {
	out := make([]models.Transfer, 0, len(b.transfers))
	for _, t := range b.transfers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Status.Active(), out[j].Status.Active()
		if ai != aj {
			return ai
		}
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *TransferBoard) activeLocked() int {
	n := 0
	for _, t := range b.transfers {
		if t.Status.Active() {
			n++
		}
	}
	return n
}
