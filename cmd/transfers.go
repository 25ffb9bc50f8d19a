package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mediasync/internal/formatter"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/repositories"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/urfave/cli/v3"
)

// render writes data to --output when given, otherwise to the runner's output.
func (r *Runner) render(cmd *cli.Command, data []byte, base string, f formatter.Format) error {
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(data, path, base, f)
		if err != nil {
			return err
		}
		r.logger.Info("export written", "path", written)
		return r.writePlain("✓ Wrote %s\n", written)
	}
	return r.writeRaw(data)
}

// TransfersList lists transfers from the service or from the last saved snapshot.
func (r *Runner) TransfersList(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var transfers []models.Transfer
	if cmd.Bool("cached") {
		db, err := r.openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		transfers, err = repositories.NewTransferSnapshotRepository(db).List()
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
	} else {
		if r.transfers == nil {
			return fmt.Errorf("%w: no transfer service client", shared.ErrServiceUnavailable)
		}
		transfers, err = r.transfers.ListTransfers(ctx)
		if err != nil {
			return err
		}
	}

	r.logger.Debug("listed transfers", "count", len(transfers), "cached", cmd.Bool("cached"))

	data, err := formatter.RenderTransfers(transfers, f)
	if err != nil {
		return err
	}
	return r.render(cmd, data, "transfers", f)
}

// TransfersActive asks the service whether a transfer is queued or running.
func (r *Runner) TransfersActive(ctx context.Context, cmd *cli.Command) error {
	if r.transfers == nil {
		return fmt.Errorf("%w: no transfer service client", shared.ErrServiceUnavailable)
	}

	summary, err := r.transfers.ActiveTransfers(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, false)
	}
	if !summary.Active {
		return r.writePlain("No active transfers\n")
	}
	return r.writePlain("%d active transfer(s)\n", summary.Count)
}
