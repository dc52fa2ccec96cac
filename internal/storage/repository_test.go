package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bujo/internal/core"
	"bujo/internal/submit"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bujo-test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedEvent(t *testing.T, repo *SQLiteRepository) core.Event {
	t.Helper()

	event, err := repo.CreateEvent(context.Background(), core.Event{
		Title: "철수 결혼식",
		Type:  core.Wedding,
		Date:  time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return event
}

func seedFriend(t *testing.T, repo *SQLiteRepository, name, relation string) string {
	t.Helper()

	id, err := repo.CreateFriend(context.Background(), core.NewFriend{Name: name, Relation: relation})
	if err != nil {
		t.Fatalf("CreateFriend: %v", err)
	}
	return id
}

func TestFriendLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := seedFriend(t, repo, "김철수", "친구")

	friend, err := repo.GetFriend(ctx, id)
	if err != nil {
		t.Fatalf("GetFriend: %v", err)
	}
	if friend.Name != "김철수" || friend.Relation != "친구" {
		t.Errorf("friend = %+v", friend)
	}

	friends, err := repo.ListFriends(ctx)
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 1 {
		t.Errorf("ListFriends returned %d friends", len(friends))
	}

	if err := repo.DeleteFriend(ctx, id); err != nil {
		t.Fatalf("DeleteFriend: %v", err)
	}
	if _, err := repo.GetFriend(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetFriend after delete: %v", err)
	}
}

func TestCreateFriendRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.CreateFriend(context.Background(), core.NewFriend{Name: "  "}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestEventLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	if event.ID == "" {
		t.Fatal("CreateEvent did not assign an id")
	}

	got, err := repo.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Title != "철수 결혼식" || got.Type != core.Wedding {
		t.Errorf("event = %+v", got)
	}

	events, err := repo.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("ListEvents returned %d events", len(events))
	}
}

func TestCreateRecordFansOutPerFriend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	kim := seedFriend(t, repo, "김철수", "친구")
	lee := seedFriend(t, repo, "이영희", "회사")

	ids, err := repo.CreateRecord(ctx, submit.NewRecord{
		EventID:   event.ID,
		FriendIDs: []string{kim, lee},
		Amount:    100000,
		Memo:      "축의금",
		Direction: core.Sent,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("CreateRecord returned %d ids, want 2", len(ids))
	}

	records, err := repo.ListRecordsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListRecordsByEvent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("event has %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Amount.Won != 100000 || rec.Memo != "축의금" {
			t.Errorf("record = %+v", rec)
		}
	}

	balance, err := repo.GetEventBalance(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEventBalance: %v", err)
	}
	if balance.People != 2 || balance.Total.Won != 200000 {
		t.Errorf("balance = %+v", balance)
	}
}

func TestCreateRecordRejectsInvalidRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	kim := seedFriend(t, repo, "김철수", "친구")

	_, err := repo.CreateRecord(ctx, submit.NewRecord{
		EventID:   event.ID,
		FriendIDs: []string{kim},
		Amount:    0,
		Direction: core.Sent,
	})
	if err == nil {
		t.Fatal("expected error for zero amount")
	}

	// The failed transaction must leave nothing behind.
	records, err := repo.ListRecordsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListRecordsByEvent: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("event has %d records after failed insert", len(records))
	}
}

func TestRecordsByFriend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	kim := seedFriend(t, repo, "김철수", "친구")

	if _, err := repo.CreateRecord(ctx, submit.NewRecord{
		EventID:   event.ID,
		FriendIDs: []string{kim},
		Amount:    50000,
		Direction: core.Received,
	}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	records, err := repo.ListRecordsByFriend(ctx, kim)
	if err != nil {
		t.Fatalf("ListRecordsByFriend: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("friend has %d records, want 1", len(records))
	}
	if records[0].EventTitle != "철수 결혼식" || records[0].EventType != core.Wedding {
		t.Errorf("record = %+v", records[0])
	}
}

func TestDeleteRecordSoftDeletesAndQueuesSync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	kim := seedFriend(t, repo, "김철수", "친구")

	ids, err := repo.CreateRecord(ctx, submit.NewRecord{
		EventID:   event.ID,
		FriendIDs: []string{kim},
		Amount:    30000,
		Direction: core.Sent,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	if err := repo.MarkSynced(ctx, ids[0]); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	if err := repo.DeleteRecord(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	records, err := repo.ListRecordsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListRecordsByEvent: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("deleted record still listed")
	}

	if err := repo.DeleteRecord(ctx, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestPendingSyncFlow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := seedEvent(t, repo)
	kim := seedFriend(t, repo, "김철수", "친구")

	ids, err := repo.CreateRecord(ctx, submit.NewRecord{
		EventID:   event.ID,
		FriendIDs: []string{kim},
		Amount:    70000,
		Direction: core.Sent,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	pending, err := repo.GetPendingSyncRecords(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncRecords: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[0] {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSynced(ctx, ids[0]); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	pending, err = repo.GetPendingSyncRecords(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncRecords: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after MarkSynced = %+v", pending)
	}
}
