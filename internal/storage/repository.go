// Package storage persists friends, events and gift records in SQLite.
// It is the concrete friend directory and record store behind the
// submission pipeline's ports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bujo/internal/core"
	"bujo/internal/submit"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateFriend implements submit.FriendDirectory.
func (r *SQLiteRepository) CreateFriend(ctx context.Context, f core.NewFriend) (string, error) {
	f = f.Trimmed()
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("validate friend: %w", err)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO friends (id, name, relation) VALUES (?, ?, ?)`,
		id, f.Name, f.Relation)
	if err != nil {
		return "", fmt.Errorf("insert friend: %w", err)
	}

	slog.InfoContext(ctx, "Friend saved", "id", id, "name", f.Name, "relation", f.Relation)
	return id, nil
}

func (r *SQLiteRepository) GetFriend(ctx context.Context, id string) (core.Friend, error) {
	var f core.Friend
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, relation FROM friends WHERE id = ? AND deleted_at IS NULL`,
		id).Scan(&f.ID, &f.Name, &f.Relation)
	if err == sql.ErrNoRows {
		return core.Friend{}, fmt.Errorf("friend %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Friend{}, fmt.Errorf("get friend: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) ListFriends(ctx context.Context) ([]core.Friend, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, relation FROM friends
		 WHERE deleted_at IS NULL ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var friends []core.Friend
	for rows.Next() {
		var f core.Friend
		if err := rows.Scan(&f.ID, &f.Name, &f.Relation); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// DeleteFriend soft deletes; records pointing at the friend stay
// intact for history.
func (r *SQLiteRepository) DeleteFriend(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friends SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete friend: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("friend %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateEvent(ctx context.Context, e core.Event) (core.Event, error) {
	if err := e.Validate(); err != nil {
		return core.Event{}, fmt.Errorf("validate event: %w", err)
	}

	e.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, type, date) VALUES (?, ?, ?, ?)`,
		e.ID, e.Title, string(e.Type), e.Date)
	if err != nil {
		return core.Event{}, fmt.Errorf("insert event: %w", err)
	}

	slog.InfoContext(ctx, "Event saved", "id", e.ID, "title", e.Title, "type", string(e.Type))
	return e, nil
}

func (r *SQLiteRepository) GetEvent(ctx context.Context, id string) (core.Event, error) {
	var e core.Event
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, type, date FROM events WHERE id = ? AND deleted_at IS NULL`,
		id).Scan(&e.ID, &e.Title, &typ, &e.Date)
	if err == sql.ErrNoRows {
		return core.Event{}, fmt.Errorf("event %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("get event: %w", err)
	}
	e.Type = core.EventType(typ)
	return e, nil
}

func (r *SQLiteRepository) ListEvents(ctx context.Context) ([]core.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, type, date FROM events
		 WHERE deleted_at IS NULL ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var e core.Event
		var typ string
		if err := rows.Scan(&e.ID, &e.Title, &typ, &e.Date); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = core.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateRecord fans one logical submission out across every
// participant id inside a single transaction: either all rows land or
// none do, which is what makes the coordinator's one-call contract
// atomic on this side.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec submit.NewRecord) ([]string, error) {
	if len(rec.FriendIDs) == 0 {
		return nil, fmt.Errorf("create record: no participants")
	}
	direction := rec.Direction
	if direction == "" {
		direction = core.Received
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var memo sql.NullString
	if rec.Memo != "" {
		memo = sql.NullString{String: rec.Memo, Valid: true}
	}

	ids := make([]string, 0, len(rec.FriendIDs))
	for _, friendID := range rec.FriendIDs {
		row := core.GiftRecord{
			EventID:   rec.EventID,
			FriendID:  friendID,
			Amount:    core.Money{Won: rec.Amount},
			Memo:      rec.Memo,
			Direction: direction,
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("validate record: %w", err)
		}

		id := uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO records (id, event_id, friend_id, amount_won, memo, direction)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, rec.EventID, friendID, rec.Amount, memo, string(direction))
		if err != nil {
			return nil, fmt.Errorf("insert record: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit records: %w", err)
	}

	slog.InfoContext(ctx, "Gift record saved",
		"event_id", rec.EventID,
		"amount_won", rec.Amount,
		"rows", len(ids))
	return ids, nil
}

// EventRecord is a record row joined with its friend, the shape the
// event-detail view renders.
type EventRecord struct {
	core.GiftRecord
	FriendName     string
	FriendRelation string
}

func (r *SQLiteRepository) ListRecordsByEvent(ctx context.Context, eventID string) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.event_id, r.friend_id, r.amount_won, COALESCE(r.memo, ''),
		        r.direction, r.created_at, f.name, f.relation
		 FROM records r JOIN friends f ON f.id = r.friend_id
		 WHERE r.event_id = ? AND r.deleted_at IS NULL
		 ORDER BY r.created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list records by event: %w", err)
	}
	defer rows.Close()
	return scanEventRecords(rows)
}

// FriendRecord is a record row joined with its event, the shape the
// friend-detail view renders.
type FriendRecord struct {
	core.GiftRecord
	EventTitle string
	EventType  core.EventType
	EventDate  time.Time
}

func (r *SQLiteRepository) ListRecordsByFriend(ctx context.Context, friendID string) ([]FriendRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.event_id, r.friend_id, r.amount_won, COALESCE(r.memo, ''),
		        r.direction, r.created_at, e.title, e.type, e.date
		 FROM records r JOIN events e ON e.id = r.event_id
		 WHERE r.friend_id = ? AND r.deleted_at IS NULL
		 ORDER BY r.created_at DESC`, friendID)
	if err != nil {
		return nil, fmt.Errorf("list records by friend: %w", err)
	}
	defer rows.Close()

	var out []FriendRecord
	for rows.Next() {
		var fr FriendRecord
		var direction, typ string
		if err := rows.Scan(&fr.ID, &fr.EventID, &fr.FriendID, &fr.Amount.Won, &fr.Memo,
			&direction, &fr.CreatedAt, &fr.EventTitle, &typ, &fr.EventDate); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		fr.Direction = core.Direction(direction)
		fr.EventType = core.EventType(typ)
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET deleted_at = CURRENT_TIMESTAMP, sync_status = 'pending',
		        version = version + 1
		 WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// EventBalance sums the ledger for one event.
type EventBalance struct {
	People int
	Total  core.Money
}

func (r *SQLiteRepository) GetEventBalance(ctx context.Context, eventID string) (EventBalance, error) {
	var b EventBalance
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount_won), 0) FROM records
		 WHERE event_id = ? AND deleted_at IS NULL`, eventID).
		Scan(&b.People, &b.Total.Won)
	if err != nil {
		return EventBalance{}, fmt.Errorf("get event balance: %w", err)
	}
	return b, nil
}

// GetRecord fetches a single record row regardless of sync state.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (EventRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT r.id, r.event_id, r.friend_id, r.amount_won, COALESCE(r.memo, ''),
		        r.direction, r.created_at, f.name, f.relation
		 FROM records r JOIN friends f ON f.id = r.friend_id
		 WHERE r.id = ?`, id)

	var er EventRecord
	var direction string
	err := row.Scan(&er.ID, &er.EventID, &er.FriendID, &er.Amount.Won, &er.Memo,
		&direction, &er.CreatedAt, &er.FriendName, &er.FriendRelation)
	if err == sql.ErrNoRows {
		return EventRecord{}, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return EventRecord{}, fmt.Errorf("get record: %w", err)
	}
	er.Direction = core.Direction(direction)
	return er, nil
}

// PendingSyncRecord is the minimal row the export queue needs.
type PendingSyncRecord struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetPendingSyncRecords returns records not yet mirrored to the backup
// ledger, oldest first.
func (r *SQLiteRepository) GetPendingSyncRecords(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM records
		 WHERE sync_status = 'pending' AND deleted_at IS NULL
		 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncRecord
	for rows.Next() {
		var p PendingSyncRecord
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.InfoContext(ctx, "Record marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "id", id)
	return nil
}

func scanEventRecords(rows *sql.Rows) ([]EventRecord, error) {
	var out []EventRecord
	for rows.Next() {
		var er EventRecord
		var direction string
		if err := rows.Scan(&er.ID, &er.EventID, &er.FriendID, &er.Amount.Won, &er.Memo,
			&direction, &er.CreatedAt, &er.FriendName, &er.FriendRelation); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		er.Direction = core.Direction(direction)
		out = append(out, er)
	}
	return out, rows.Err()
}
