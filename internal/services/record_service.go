// Package services orchestrates record persistence with the async
// backup queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"bujo/internal/amqp"
	"bujo/internal/log"
	"bujo/internal/storage"
	"bujo/internal/submit"
)

// RecordService is the persistence collaborator behind the submission
// pipeline: it writes locally first (fast, reliable), then publishes a
// sync message per created row so the worker can mirror the ledger.
// Publish failures never fail the request; the worker's periodic
// pending scan picks those rows up later.
type RecordService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	logs       *log.StructuredLogger
}

func NewRecordService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *RecordService {
	return &RecordService{
		storage:    storage,
		amqpClient: amqpClient,
		logs:       log.NewStructuredLogger(log.Default()),
	}
}

// CreateRecord implements submit.RecordCreator.
func (s *RecordService) CreateRecord(ctx context.Context, rec submit.NewRecord) error {
	ids, err := s.storage.CreateRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	for i, id := range ids {
		s.logs.LogRecordCreated(ctx, id, rec.EventID, rec.FriendIDs[i], rec.Amount)

		if err := s.publishSyncMessage(ctx, id, 1); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"record_id", id, "error", err)
		}
	}

	return nil
}

// DeleteRecord soft deletes locally and tells the worker to mirror the
// removal.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.storage.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if err := s.publishDeleteMessage(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"record_id", id, "error", err)
	}

	return nil
}

func (s *RecordService) publishSyncMessage(ctx context.Context, id string, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishRecordSync(ctx, id, version)
}

func (s *RecordService) publishDeleteMessage(ctx context.Context, id string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}
	return s.amqpClient.PublishRecordDelete(ctx, id)
}

// Close closes storage and the AMQP connection.
func (s *RecordService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close record service: %v", errs)
	}

	return nil
}
