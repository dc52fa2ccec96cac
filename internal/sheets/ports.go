package sheets

import "context"

// LedgerRow is one gift record flattened for the backup spreadsheet.
type LedgerRow struct {
	RecordID   string
	Date       string // YYYY-MM-DD
	EventTitle string
	EventType  string
	FriendName string
	Relation   string
	Direction  string
	AmountWon  int64
	Memo       string
}

// Ports for outbound adapters.
type (
	LedgerAppender interface {
		Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerRemover drops a mirrored record after a local soft delete.
	LedgerRemover interface {
		Remove(ctx context.Context, recordID string) error
	}
)
