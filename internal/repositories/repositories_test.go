package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
	tu "github.com/desertthunder/mediasync/internal/testing"
)

func TestSessionEventRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewSessionEventRepository(db)
		event := models.NewSessionEvent(0, "sess-1", "connected", "")

		if err := repo.Create(event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		if event.ID() == "" {
			t.Error("event ID should be set after creation")
		}
		if event.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", event.Sequence())
		}
	})

	t.Run("Create Invalid", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewSessionEventRepository(db)
		if err := repo.Create(models.NewSessionEvent(0, "", "connected", "")); err == nil {
			t.Error("expected validation error for missing session id")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewSessionEventRepository(db)
		at := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)

		event := models.NewSessionEvent(0, "sess-1", "disconnected", "unexpected")
		event.SetDetail("connection reset by peer")
		event.SetCreatedAt(at)
		if err := repo.Create(event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		retrieved, err := repo.Get(event.ID())
		if err != nil {
			t.Fatalf("failed to get event: %v", err)
		}

		if retrieved.State() != "disconnected" || retrieved.Reason() != "unexpected" {
			t.Errorf("unexpected state/reason %s/%s", retrieved.State(), retrieved.Reason())
		}
		if retrieved.Detail() != "connection reset by peer" {
			t.Errorf("expected detail to round-trip, got %q", retrieved.Detail())
		}
		if !retrieved.CreatedAt().Equal(at) {
			t.Errorf("expected created_at %v, got %v", at, retrieved.CreatedAt())
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		db := tu.MemoryDB(t)

		if _, err := NewSessionEventRepository(db).Get("nope"); err == nil {
			t.Error("expected error for missing event")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewSessionEventRepository(db)
		event := models.NewSessionEvent(0, "sess-1", "connected", "")
		if err := repo.Create(event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		if err := repo.Delete(event.ID()); err != nil {
			t.Fatalf("failed to delete event: %v", err)
		}

		if _, err := repo.Get(event.ID()); err == nil {
			t.Error("expected error when getting deleted event")
		}

		if err := repo.Delete(event.ID()); err == nil {
			t.Error("expected error when deleting twice")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewSessionEventRepository(db)
		rows := []struct {
			session, state, reason string
		}{
			{"sess-1", "connected", ""},
			{"sess-1", "auto_disconnected", "policy"},
			{"sess-2", "connected", ""},
			{"sess-2", "disconnected", "unexpected"},
			{"sess-3", "connected", ""},
		}
		for _, r := range rows {
			if err := repo.Create(models.NewSessionEvent(0, r.session, r.state, r.reason)); err != nil {
				t.Fatalf("failed to create event: %v", err)
			}
		}

		tests := []struct {
			name      string
			criteria  map[string]any
			wantCount int
			wantFirst int
		}{
			{name: "all", criteria: map[string]any{}, wantCount: 5, wantFirst: 1},
			{name: "by session", criteria: map[string]any{"session_id": "sess-2"}, wantCount: 2, wantFirst: 3},
			{name: "by state", criteria: map[string]any{"state": "connected"}, wantCount: 3, wantFirst: 1},
			{name: "newest two", criteria: map[string]any{"limit": 2}, wantCount: 2, wantFirst: 4},
			{name: "limit with filter", criteria: map[string]any{"state": "connected", "limit": 1}, wantCount: 1, wantFirst: 5},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				events, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list events: %v", err)
				}
				if len(events) != tt.wantCount {
					t.Fatalf("expected %d events, got %d", tt.wantCount, len(events))
				}
				if events[0].Sequence() != tt.wantFirst {
					t.Errorf("expected first sequence %d, got %d", tt.wantFirst, events[0].Sequence())
				}
				for i := 1; i < len(events); i++ {
					if events[i].Sequence() <= events[i-1].Sequence() {
						t.Errorf("events not in sequence order")
					}
				}
			})
		}

		n, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 5 {
			t.Errorf("expected count 5, got %d", n)
		}
	})
}

func TestTransferSnapshotRepository(t *testing.T) {
	t.Run("Save And List", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewTransferSnapshotRepository(db)
		older := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		newer := older.Add(time.Minute)

		err := repo.Save([]models.Transfer{
			{ID: "a", Source: "/tv/A", Destination: "/media/tv", Status: models.TransferRunning, Progress: 10, UpdatedAt: older, StartedAt: older},
			{ID: "b", Source: "/tv/B", Destination: "/media/tv", Status: models.TransferQueued, UpdatedAt: newer},
		})
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		transfers, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(transfers) != 2 {
			t.Fatalf("expected 2 transfers, got %d", len(transfers))
		}
		if transfers[0].ID != "b" {
			t.Errorf("expected most recent first, got %s", transfers[0].ID)
		}
		if !transfers[0].StartedAt.IsZero() {
			t.Errorf("expected zero started_at, got %v", transfers[0].StartedAt)
		}
		if !transfers[1].StartedAt.Equal(older) {
			t.Errorf("expected started_at %v, got %v", older, transfers[1].StartedAt)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewTransferSnapshotRepository(db)
		if err := repo.Save([]models.Transfer{{ID: "a", Status: models.TransferRunning, Progress: 10}}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Save([]models.Transfer{{ID: "a", Status: models.TransferCompleted, Progress: 100}}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		transfers, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(transfers) != 1 {
			t.Fatalf("expected 1 transfer, got %d", len(transfers))
		}
		if transfers[0].Status != models.TransferCompleted || transfers[0].Progress != 100 {
			t.Errorf("expected upserted row, got %+v", transfers[0])
		}
	})

	t.Run("Missing ID Rolls Back", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewTransferSnapshotRepository(db)
		err := repo.Save([]models.Transfer{{ID: "a"}, {ID: ""}})
		if err == nil {
			t.Fatal("expected error for missing id")
		}

		transfers, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(transfers) != 0 {
			t.Errorf("expected rollback, got %d rows", len(transfers))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := tu.MemoryDB(t)

		repo := NewTransferSnapshotRepository(db)
		if err := repo.Save([]models.Transfer{{ID: "a"}}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Delete("a"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete("a"); !errors.Is(err, shared.ErrTransferNotFound) {
			t.Errorf("expected ErrTransferNotFound deleting missing snapshot, got %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := tu.MemoryDB(t)

	seq1, err := NextSequence(db, "session_events")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "session_events")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}
