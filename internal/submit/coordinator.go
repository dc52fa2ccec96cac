// Package submit orchestrates turning a composed record form into
// persisted rows: create the missing friends, create the record fanned
// across every participant, invalidate dependent caches, navigate
// back. It is the single submission path shared by the form UI and the
// assistant tool layer.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"bujo/internal/core"
	"bujo/internal/form"
)

// Phase is the submission lifecycle. Transitions only move forward,
// except that Reset returns a failed submission to idle for retry.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCreatingParticipants
	PhaseCreatingRecord
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCreatingParticipants:
		return "creating_participants"
	case PhaseCreatingRecord:
		return "creating_record"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UserFailureMessage is the single opaque message shown for any
// submission failure. The underlying cause goes to the log, not the
// user.
const UserFailureMessage = "기록 등록에 실패했습니다"

var (
	// ErrNothingToSubmit means the guard rejected the call: no positive
	// amount or no participants. No state changed and no calls were made.
	ErrNothingToSubmit = errors.New("nothing to submit")

	// ErrSubmitInFlight means a submission is already running; rapid
	// repeated submits are dropped rather than queued.
	ErrSubmitInFlight = errors.New("submission already in flight")
)

// Input is the logical submission payload. The form path builds it
// from the form models with BuildInput; the assistant tool layer
// builds it directly from tool parameters. Both converge here.
type Input struct {
	EventID string
	Memo    string

	Amount    int64
	GiftType  core.GiftType
	GoldDon   float64 // set with GoldPrice when GiftType is gold
	GoldPrice int64

	SelectedFriendIDs []string
	NewFriends        []core.NewFriend

	Direction core.Direction // defaults to received
}

// BuildInput snapshots the two form models into a submission payload.
func BuildInput(eventID, memo string, a form.AmountState, p form.ParticipantSetState) Input {
	return Input{
		EventID:           eventID,
		Memo:              memo,
		Amount:            a.Amount(),
		GiftType:          a.GiftType,
		GoldDon:           a.DonAmount(),
		GoldPrice:         a.PricePerDon,
		SelectedFriendIDs: p.SelectedIDs,
		NewFriends:        p.ResolveNewEntries(),
	}
}

func (in Input) totalPeople() int {
	return len(in.SelectedFriendIDs) + len(in.NewFriends)
}

// Coordinator owns the submission state machine for one form session.
// It is not reentrant: a second Submit while one is running is
// rejected, which is the double-tap guard.
type Coordinator struct {
	directory FriendDirectory
	records   RecordCreator
	caches    Revalidator
	nav       Navigator

	mu    sync.Mutex
	phase Phase
	err   error
}

func NewCoordinator(directory FriendDirectory, records RecordCreator, caches Revalidator, nav Navigator) *Coordinator {
	return &Coordinator{
		directory: directory,
		records:   records,
		caches:    caches,
		nav:       nav,
	}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the cause of the last failure, nil otherwise.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reset returns a failed coordinator to idle so the user can retry
// with their entered data intact. It is a no-op in any other phase.
// Retrying re-runs the whole sequence, so friends created before the
// failure can be created again; that duplication risk is accepted, see
// the note on Submit.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseFailed {
		c.phase = PhaseIdle
		c.err = nil
	}
}

// Submit runs the pipeline:
//
//  1. guard (amount > 0, at least one participant) — checked here, at
//     call time, because programmatic callers bypass any disabled
//     button
//  2. create each new friend sequentially, keeping creation order
//  3. one record-create call fanned across selected + created ids
//  4. only after that call succeeds: invalidate the event-detail
//     cache, and the friend-list cache if friends were created
//  5. navigate back
//
// Friend creation stops at the first failure and the record call is
// never made. Friends created before the failure stay: there is no
// rollback and no dedup on retry. Every failure is reported as the one
// generic user message; the cause is wrapped for the log and Err.
func (c *Coordinator) Submit(ctx context.Context, in Input) error {
	c.mu.Lock()
	if c.phase == PhaseCreatingParticipants || c.phase == PhaseCreatingRecord {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	if in.Amount <= 0 || in.totalPeople() == 0 {
		c.mu.Unlock()
		return ErrNothingToSubmit
	}
	c.phase = PhaseCreatingParticipants
	c.err = nil
	c.mu.Unlock()

	if in.Direction == "" {
		in.Direction = core.Received
	}

	toCreate := in.NewFriends
	createdIDs := make([]string, 0, len(toCreate))
	for _, nf := range toCreate {
		id, err := c.directory.CreateFriend(ctx, nf.Trimmed())
		if err != nil {
			return c.fail(ctx, fmt.Errorf("create friend %q: %w", nf.Name, err))
		}
		createdIDs = append(createdIDs, id)
	}

	allIDs := make([]string, 0, len(in.SelectedFriendIDs)+len(createdIDs))
	allIDs = append(allIDs, in.SelectedFriendIDs...)
	allIDs = append(allIDs, createdIDs...)

	c.setPhase(PhaseCreatingRecord)

	rec := NewRecord{
		EventID:   in.EventID,
		FriendIDs: allIDs,
		Amount:    in.Amount,
		Memo:      composeMemo(in),
		Direction: in.Direction,
	}
	if err := c.records.CreateRecord(ctx, rec); err != nil {
		return c.fail(ctx, fmt.Errorf("create record: %w", err))
	}

	// Strictly after the successful create, never before.
	c.caches.InvalidateEvent(in.EventID)
	if len(toCreate) > 0 {
		c.caches.InvalidateFriendList()
	}

	c.setPhase(PhaseSucceeded)
	slog.InfoContext(ctx, "Record submitted",
		"event_id", in.EventID,
		"amount", in.Amount,
		"participants", len(allIDs),
		"created_friends", len(createdIDs))

	c.nav.GoBack()
	return nil
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Coordinator) fail(ctx context.Context, err error) error {
	c.mu.Lock()
	c.phase = PhaseFailed
	c.err = err
	c.mu.Unlock()
	slog.ErrorContext(ctx, "Record submission failed", "error", err)
	return fmt.Errorf("%s: %w", UserFailureMessage, err)
}

// composeMemo prefixes a gold gift's memo with a machine-generated
// annotation of the weight and market price, so the conversion is
// visible in the ledger later. Cash memos pass through unchanged.
func composeMemo(in Input) string {
	if in.GiftType != core.GiftGold || in.GoldPrice <= 0 {
		return in.Memo
	}
	ann := "금 " + strconv.FormatFloat(in.GoldDon, 'f', -1, 64) + "돈 × " +
		strconv.FormatInt(in.GoldPrice, 10) + "원/돈"
	if strings.TrimSpace(in.Memo) == "" {
		return ann
	}
	return ann + " · " + in.Memo
}
