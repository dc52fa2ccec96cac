package submit

import (
	"context"

	"bujo/internal/core"
)

// Ports consumed by the coordinator. The HTTP layer wires these to the
// sqlite repository, the record service and the server caches; tests
// wire fakes.
type (
	// FriendDirectory materializes new friends. Creation order matters
	// to the coordinator, so implementations are called one at a time.
	FriendDirectory interface {
		CreateFriend(ctx context.Context, f core.NewFriend) (id string, err error)
	}

	// RecordCreator persists one logical gift record fanned out across
	// all participant ids. The coordinator issues exactly one call per
	// submission regardless of participant count.
	RecordCreator interface {
		CreateRecord(ctx context.Context, rec NewRecord) error
	}

	// Revalidator drops cached views that the new record invalidates.
	// Calls are fire-and-forget: no error to check, a stale cache heals
	// itself on the next miss.
	Revalidator interface {
		InvalidateEvent(eventID string)
		InvalidateFriendList()
	}

	// Navigator returns the user to the previous screen. Invoked only
	// after a submission fully succeeds; non-interactive callers wire a
	// no-op.
	Navigator interface {
		GoBack()
	}
)

// NewRecord is the single fan-out payload handed to the RecordCreator.
type NewRecord struct {
	EventID   string
	FriendIDs []string
	Amount    int64
	Memo      string
	Direction core.Direction
}

// NopNavigator is the Navigator for callers with no screen stack, such
// as the REST and assistant paths.
type NopNavigator struct{}

func (NopNavigator) GoBack() {}
