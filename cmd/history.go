package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mediasync/internal/formatter"
	"github.com/desertthunder/mediasync/internal/repositories"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded session events.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{
		"session_id": cmd.String("session"),
		"state":      cmd.String("state"),
		"limit":      int(cmd.Int("limit")),
	}

	events, err := repositories.NewSessionEventRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	data, err := formatter.RenderHistory(events, f)
	if err != nil {
		return err
	}
	return r.render(cmd, data, "history", f)
}
