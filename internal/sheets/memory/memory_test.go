package memory

import (
	"context"
	"testing"

	ports "bujo/internal/sheets"
)

func TestAppendAndRows(t *testing.T) {
	s := New()

	ref, err := s.Append(context.Background(), ports.LedgerRow{
		RecordID:   "rec-1",
		Date:       "2026-05-30",
		EventTitle: "결혼식",
		FriendName: "김철수",
		Direction:  "received",
		AmountWon:  100000,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "memory!A1" {
		t.Errorf("ref = %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].RecordID != "rec-1" {
		t.Errorf("Rows = %+v", rows)
	}
}

func TestAppendRejectsMissingID(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), ports.LedgerRow{}); err == nil {
		t.Error("expected error for missing record id")
	}
}

func TestRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Append(ctx, ports.LedgerRow{RecordID: "rec-1"})
	s.Append(ctx, ports.LedgerRow{RecordID: "rec-2"})

	if err := s.Remove(ctx, "rec-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0].RecordID != "rec-2" {
		t.Errorf("Rows after remove = %+v", rows)
	}

	// Removing an unmirrored record is not an error.
	if err := s.Remove(ctx, "rec-9"); err != nil {
		t.Errorf("Remove(missing): %v", err)
	}
}
