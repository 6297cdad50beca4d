package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"birthdaymemo/internal/amqp"
	"birthdaymemo/internal/records"
	"birthdaymemo/internal/sheets"
)

// ExportWorker mirrors saved records into the history sheet.
type ExportWorker struct {
	loader      records.Loader
	exporter    sheets.HistoryExporter
	concurrency int
}

func NewExportWorker(loader records.Loader, exporter sheets.HistoryExporter, concurrency int) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ExportWorker{loader: loader, exporter: exporter, concurrency: concurrency}
}

// HandleMemoSaved reloads the user's record and exports it. A returned error
// makes the consumer requeue the message.
func (w *ExportWorker) HandleMemoSaved(ctx context.Context, msg *amqp.MemoSavedMessage) error {
	slog.InfoContext(ctx, "Processing memo saved message",
		"username", msg.Username,
		"year", msg.Year,
		"roles", msg.Roles)

	return w.exportUser(ctx, msg.Username)
}

// ExportAll exports every user the lister knows about. It is run once at
// worker start so the sheet catches up with saves made while it was down.
func (w *ExportWorker) ExportAll(ctx context.Context, lister records.UserLister) error {
	users, err := lister.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, u := range users {
		g.Go(func() error {
			return w.exportUser(gctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Initial export completed", "users", len(users))
	return nil
}

func (w *ExportWorker) exportUser(ctx context.Context, username string) error {
	rec, err := w.loader.Load(ctx, username)
	if err != nil {
		return fmt.Errorf("load record for %s: %w", username, err)
	}
	if err := w.exporter.ExportHistory(ctx, username, rec); err != nil {
		return fmt.Errorf("export history for %s: %w", username, err)
	}
	return nil
}
