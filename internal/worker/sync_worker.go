// Package worker mirrors gift records from SQLite to the backup
// ledger spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bujo/internal/amqp"
	"bujo/internal/sheets"
	"bujo/internal/storage"
)

// SyncWorker consumes record sync messages and keeps the spreadsheet
// ledger aligned with the local database. The periodic pending scan is
// the safety net for lost messages.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.LedgerAppender
	remover   sheets.LedgerRemover
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, appender sheets.LedgerAppender, remover sheets.LedgerRemover, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		appender:  appender,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single record sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"record_id", msg.RecordID,
		"version", msg.Version)

	return w.syncRecordToLedger(ctx, msg.RecordID)
}

// HandleDeleteMessage processes a single record delete message from AMQP.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.RecordDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "record_id", msg.RecordID)

	if w.remover == nil {
		slog.WarnContext(ctx, "No ledger remover configured, skipping delete",
			"record_id", msg.RecordID)
		return nil
	}

	if err := w.remover.Remove(ctx, msg.RecordID); err != nil {
		return fmt.Errorf("remove record from ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, msg.RecordID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark delete as synced",
			"record_id", msg.RecordID, "error", err)
	}

	slog.InfoContext(ctx, "Removed record from ledger", "record_id", msg.RecordID)
	return nil
}

// ProcessPendingRecords mirrors any records that never made it to the
// ledger. This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingRecords(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncRecords(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	for _, p := range pending {
		if err := w.syncRecordToLedger(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending record",
				"record_id", p.ID, "error", err)
		}
	}

	return nil
}

// StartupSyncCheck drains the pending backlog at worker startup with a
// larger batch, recovering from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncRecords(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending records on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		if err := w.syncRecordToLedger(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record during startup",
				"record_id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)

	return nil
}

func (w *SyncWorker) syncRecordToLedger(ctx context.Context, recordID string) error {
	row, err := w.buildLedgerRow(ctx, recordID)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, recordID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"record_id", recordID, "error", markErr)
		}
		return fmt.Errorf("build ledger row: %w", err)
	}

	ref, err := w.appender.Append(ctx, row)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, recordID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"record_id", recordID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, recordID); err != nil {
		// The ledger write went through; log and move on.
		slog.ErrorContext(ctx, "Failed to mark as synced",
			"record_id", recordID, "error", err)
	}

	slog.InfoContext(ctx, "Synced record to ledger",
		"record_id", recordID,
		"sheets_ref", ref,
		"amount_won", row.AmountWon)

	return nil
}

func (w *SyncWorker) buildLedgerRow(ctx context.Context, recordID string) (sheets.LedgerRow, error) {
	rec, err := w.storage.GetRecord(ctx, recordID)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("get record: %w", err)
	}

	event, err := w.storage.GetEvent(ctx, rec.EventID)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("get event: %w", err)
	}

	return sheets.LedgerRow{
		RecordID:   rec.ID,
		Date:       event.Date.Format("2006-01-02"),
		EventTitle: event.Title,
		EventType:  string(event.Type),
		FriendName: rec.FriendName,
		Relation:   rec.FriendRelation,
		Direction:  string(rec.Direction),
		AmountWon:  rec.Amount.Won,
		Memo:       rec.Memo,
	}, nil
}
