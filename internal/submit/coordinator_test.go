package submit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"bujo/internal/core"
	"bujo/internal/form"
)

// fakeDirectory hands out sequential ids and can be scripted to fail
// on the n-th create (1-based).
type fakeDirectory struct {
	created []core.NewFriend
	failOn  int
}

func (d *fakeDirectory) CreateFriend(_ context.Context, f core.NewFriend) (string, error) {
	if d.failOn > 0 && len(d.created)+1 == d.failOn {
		return "", errors.New("directory unavailable")
	}
	d.created = append(d.created, f)
	return fmt.Sprintf("created-%d", len(d.created)), nil
}

type fakeRecords struct {
	calls []NewRecord
	err   error
}

func (r *fakeRecords) CreateRecord(_ context.Context, rec NewRecord) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, rec)
	return nil
}

type spyRevalidator struct {
	events     []string
	friendList int
}

func (s *spyRevalidator) InvalidateEvent(id string) { s.events = append(s.events, id) }
func (s *spyRevalidator) InvalidateFriendList()     { s.friendList++ }

type spyNavigator struct{ backs int }

func (s *spyNavigator) GoBack() { s.backs++ }

type fixture struct {
	dir    *fakeDirectory
	recs   *fakeRecords
	caches *spyRevalidator
	nav    *spyNavigator
	coord  *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		dir:    &fakeDirectory{},
		recs:   &fakeRecords{},
		caches: &spyRevalidator{},
		nav:    &spyNavigator{},
	}
	f.coord = NewCoordinator(f.dir, f.recs, f.caches, f.nav)
	return f
}

func TestSubmitGuard(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"zero amount", Input{EventID: "evt", Amount: 0, SelectedFriendIDs: []string{"f1"}}},
		{"no participants", Input{EventID: "evt", Amount: 100000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			err := f.coord.Submit(context.Background(), tc.in)
			if !errors.Is(err, ErrNothingToSubmit) {
				t.Fatalf("err = %v, want ErrNothingToSubmit", err)
			}
			if len(f.dir.created) != 0 || len(f.recs.calls) != 0 {
				t.Errorf("guard failure still made network calls")
			}
			if f.coord.Phase() != PhaseIdle {
				t.Errorf("phase = %v, want idle", f.coord.Phase())
			}
		})
	}
}

func TestSubmitCashExistingFriendOnly(t *testing.T) {
	f := newFixture()
	in := Input{
		EventID:           "evt-1",
		Amount:            100000,
		GiftType:          core.GiftCash,
		SelectedFriendIDs: []string{"friend-1"},
	}
	if err := f.coord.Submit(context.Background(), in); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(f.dir.created) != 0 {
		t.Errorf("directory called for a submission with no new friends")
	}
	if len(f.recs.calls) != 1 {
		t.Fatalf("CreateRecord calls = %d, want 1", len(f.recs.calls))
	}
	rec := f.recs.calls[0]
	if rec.Amount != 100000 || !slices.Equal(rec.FriendIDs, []string{"friend-1"}) {
		t.Errorf("record = %+v", rec)
	}
	if rec.Memo != "" {
		t.Errorf("memo = %q, want empty", rec.Memo)
	}
	if !slices.Equal(f.caches.events, []string{"evt-1"}) {
		t.Errorf("event invalidations = %v, want [evt-1]", f.caches.events)
	}
	if f.caches.friendList != 0 {
		t.Errorf("friend list invalidated without new friends")
	}
	if f.coord.Phase() != PhaseSucceeded || f.nav.backs != 1 {
		t.Errorf("phase=%v backs=%d", f.coord.Phase(), f.nav.backs)
	}
}

func TestSubmitGoldWithNewFriend(t *testing.T) {
	f := newFixture()
	in := Input{
		EventID:    "evt-1",
		Memo:       "thanks",
		Amount:     1500000,
		GiftType:   core.GiftGold,
		GoldDon:    3,
		GoldPrice:  500000,
		NewFriends: []core.NewFriend{{Name: "Kim", Relation: "friend"}},
	}
	if err := f.coord.Submit(context.Background(), in); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(f.dir.created) != 1 || f.dir.created[0].Name != "Kim" {
		t.Fatalf("directory created = %v", f.dir.created)
	}
	rec := f.recs.calls[0]
	if rec.Amount != 1500000 {
		t.Errorf("amount = %d", rec.Amount)
	}
	if !slices.Equal(rec.FriendIDs, []string{"created-1"}) {
		t.Errorf("friend ids = %v", rec.FriendIDs)
	}
	if want := "금 3돈 × 500000원/돈 · thanks"; rec.Memo != want {
		t.Errorf("memo = %q, want %q", rec.Memo, want)
	}
	if len(f.caches.events) != 1 || f.caches.friendList != 1 {
		t.Errorf("invalidations: events=%v friendList=%d", f.caches.events, f.caches.friendList)
	}
}

func TestSubmitDirectoryFailureAbortsPipeline(t *testing.T) {
	f := newFixture()
	f.dir.failOn = 2
	in := Input{
		EventID: "evt-1",
		Amount:  50000,
		NewFriends: []core.NewFriend{
			{Name: "a", Relation: "r"},
			{Name: "b", Relation: "r"},
			{Name: "c", Relation: "r"},
		},
	}
	err := f.coord.Submit(context.Background(), in)
	if err == nil || !strings.Contains(err.Error(), UserFailureMessage) {
		t.Fatalf("err = %v, want wrapped user failure", err)
	}

	// Exactly the prefix before the failure was created; no record
	// call, no invalidation, no navigation.
	if len(f.dir.created) != 1 || f.dir.created[0].Name != "a" {
		t.Errorf("created = %v, want only the first entry", f.dir.created)
	}
	if len(f.recs.calls) != 0 {
		t.Errorf("CreateRecord called after directory failure")
	}
	if len(f.caches.events) != 0 || f.caches.friendList != 0 {
		t.Errorf("caches invalidated on failure")
	}
	if f.nav.backs != 0 {
		t.Errorf("navigated back on failure")
	}
	if f.coord.Phase() != PhaseFailed {
		t.Errorf("phase = %v, want failed", f.coord.Phase())
	}
}

func TestSubmitRecordFailureKeepsCreatedFriends(t *testing.T) {
	f := newFixture()
	f.recs.err = errors.New("persistence down")
	in := Input{
		EventID:    "evt-1",
		Amount:     50000,
		NewFriends: []core.NewFriend{{Name: "a", Relation: "r"}},
	}
	if err := f.coord.Submit(context.Background(), in); err == nil {
		t.Fatal("expected failure")
	}
	if len(f.dir.created) != 1 {
		t.Errorf("created friends = %v, want the one created before the failure", f.dir.created)
	}
	// Invalidation only after a successful create, never on failure.
	if len(f.caches.events) != 0 || f.caches.friendList != 0 {
		t.Errorf("caches invalidated despite record failure")
	}
	if f.coord.Phase() != PhaseFailed {
		t.Errorf("phase = %v", f.coord.Phase())
	}
}

func TestResetAllowsRetryAfterFailure(t *testing.T) {
	f := newFixture()
	f.recs.err = errors.New("down")
	in := Input{EventID: "evt", Amount: 1000, SelectedFriendIDs: []string{"f"}}
	if err := f.coord.Submit(context.Background(), in); err == nil {
		t.Fatal("expected failure")
	}

	f.coord.Reset()
	if f.coord.Phase() != PhaseIdle || f.coord.Err() != nil {
		t.Fatalf("reset did not return to idle: %v %v", f.coord.Phase(), f.coord.Err())
	}

	f.recs.err = nil
	if err := f.coord.Submit(context.Background(), in); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if f.coord.Phase() != PhaseSucceeded {
		t.Errorf("phase after retry = %v", f.coord.Phase())
	}
}

func TestResetIgnoredWhileIdleOrSucceeded(t *testing.T) {
	f := newFixture()
	f.coord.Reset()
	if f.coord.Phase() != PhaseIdle {
		t.Fatalf("phase = %v", f.coord.Phase())
	}
	in := Input{EventID: "evt", Amount: 1000, SelectedFriendIDs: []string{"f"}}
	if err := f.coord.Submit(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	f.coord.Reset()
	if f.coord.Phase() != PhaseSucceeded {
		t.Errorf("reset moved a succeeded submission to %v", f.coord.Phase())
	}
}

// blockingDirectory parks the first create until released, so a test
// can observe the in-flight phase from another goroutine.
type blockingDirectory struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDirectory) CreateFriend(context.Context, core.NewFriend) (string, error) {
	close(d.entered)
	<-d.release
	return "id-1", nil
}

func TestDoubleSubmitRejected(t *testing.T) {
	dir := &blockingDirectory{entered: make(chan struct{}), release: make(chan struct{})}
	recs := &fakeRecords{}
	coord := NewCoordinator(dir, recs, &spyRevalidator{}, &spyNavigator{})
	in := Input{
		EventID:    "evt",
		Amount:     1000,
		NewFriends: []core.NewFriend{{Name: "a", Relation: "r"}},
	}

	done := make(chan error, 1)
	go func() { done <- coord.Submit(context.Background(), in) }()
	<-dir.entered

	if err := coord.Submit(context.Background(), in); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit: err = %v, want ErrSubmitInFlight", err)
	}

	close(dir.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(recs.calls) != 1 {
		t.Errorf("CreateRecord calls = %d, want 1", len(recs.calls))
	}
}

func TestBuildInputFromFormModels(t *testing.T) {
	amount := form.NewAmountState().
		WithGiftType(core.GiftGold).
		SelectDon(3).WithPricePerDon(500000)
	people := form.NewParticipantSetState().
		ToggleFriend("friend-1").
		WithDraftName("Kim").WithDraftRelation("friend")

	in := BuildInput("evt-1", "thanks", amount, people)
	if in.Amount != 1500000 || in.GoldDon != 3 || in.GoldPrice != 500000 {
		t.Errorf("amount fields: %+v", in)
	}
	if !slices.Equal(in.SelectedFriendIDs, []string{"friend-1"}) {
		t.Errorf("selected = %v", in.SelectedFriendIDs)
	}
	if len(in.NewFriends) != 1 || in.NewFriends[0].Name != "Kim" {
		t.Errorf("new friends = %v", in.NewFriends)
	}
}

func TestComposeMemo(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want string
	}{
		{"cash passes through", Input{GiftType: core.GiftCash, Memo: "hi"}, "hi"},
		{"cash empty stays empty", Input{GiftType: core.GiftCash}, ""},
		{"gold without price passes through", Input{GiftType: core.GiftGold, GoldDon: 3, Memo: "hi"}, "hi"},
		{"gold annotation alone", Input{GiftType: core.GiftGold, GoldDon: 1.5, GoldPrice: 450000},
			"금 1.5돈 × 450000원/돈"},
		{"gold annotation joined with memo", Input{GiftType: core.GiftGold, GoldDon: 3, GoldPrice: 500000, Memo: "thanks"},
			"금 3돈 × 500000원/돈 · thanks"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := composeMemo(tc.in); got != tc.want {
				t.Errorf("composeMemo = %q, want %q", got, tc.want)
			}
		})
	}
}
