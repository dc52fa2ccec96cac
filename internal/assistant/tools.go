package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"bujo/internal/core"
	"bujo/internal/storage"
	"bujo/internal/submit"
)

type createFriendParams struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

func (r *Registry) createFriend(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p createFriendParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parse create_friend params: %w", err)
	}

	nf := core.NewFriend{Name: p.Name, Relation: p.Relation}.Trimmed()
	if err := nf.Validate(); err != nil {
		return nil, err
	}

	id, err := r.repo.CreateFriend(ctx, nf)
	if err != nil {
		return nil, err
	}
	r.caches.InvalidateFriendList()

	return &Result{
		Message: fmt.Sprintf("친구 '%s'님을 등록했습니다", nf.Name),
		Data:    map[string]string{"id": id},
	}, nil
}

type createEventParams struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Date  string `json:"date"` // YYYY-MM-DD
}

func (r *Registry) createEvent(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p createEventParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parse create_event params: %w", err)
	}

	date, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", p.Date, core.ErrInvalidDate)
	}

	event := core.Event{Title: p.Title, Type: core.EventType(p.Type), Date: date}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	created, err := r.repo.CreateEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	return &Result{
		Message: fmt.Sprintf("경조사 '%s'을(를) 등록했습니다", created.Title),
		Data:    map[string]string{"id": created.ID},
	}, nil
}

type createRecordParams struct {
	EventID         string  `json:"event_id"`
	AmountWon       int64   `json:"amount_won"`
	GoldDon         float64 `json:"gold_don"`
	GoldPricePerDon int64   `json:"gold_price_per_don"`
	Memo            string  `json:"memo"`
	Direction       string  `json:"direction"`

	FriendIDs  []string `json:"friend_ids"`
	NewFriends []struct {
		Name     string `json:"name"`
		Relation string `json:"relation"`
	} `json:"new_friends"`
}

// createRecord builds the submission input directly from tool
// parameters and runs it through the shared pipeline.
func (r *Registry) createRecord(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p createRecordParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parse create_record params: %w", err)
	}

	in := submit.Input{
		EventID:           p.EventID,
		Memo:              p.Memo,
		Amount:            p.AmountWon,
		GiftType:          core.GiftCash,
		SelectedFriendIDs: p.FriendIDs,
		Direction:         core.Direction(p.Direction),
	}
	if p.GoldDon > 0 && p.GoldPricePerDon > 0 {
		in.GiftType = core.GiftGold
		in.GoldDon = p.GoldDon
		in.GoldPrice = p.GoldPricePerDon
		in.Amount = core.GoldValue(p.GoldDon, p.GoldPricePerDon)
	}
	for _, nf := range p.NewFriends {
		in.NewFriends = append(in.NewFriends, core.NewFriend{Name: nf.Name, Relation: nf.Relation})
	}

	coordinator := submit.NewCoordinator(r.repo, r.records, r.caches, submit.NopNavigator{})
	if err := coordinator.Submit(ctx, in); err != nil {
		return nil, err
	}

	people := len(in.SelectedFriendIDs) + len(in.NewFriends)
	return &Result{
		Message: fmt.Sprintf("참여자 %d명의 기록을 %s원으로 등록했습니다",
			people, strconv.FormatInt(in.Amount, 10)),
		Data: map[string]any{
			"event_id":   in.EventID,
			"people":     people,
			"amount_won": in.Amount,
		},
	}, nil
}

type eventSummaryParams struct {
	EventID string `json:"event_id"`
}

// getEventSummary fetches the event, its records and the balance
// concurrently and folds them into one chat answer.
func (r *Registry) getEventSummary(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p eventSummaryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parse get_event_summary params: %w", err)
	}

	var (
		event   core.Event
		records []storage.EventRecord
		balance storage.EventBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = r.repo.GetEvent(gctx, p.EventID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = r.repo.ListRecordsByEvent(gctx, p.EventID)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = r.repo.GetEventBalance(gctx, p.EventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.FriendName)
	}

	return &Result{
		Message: fmt.Sprintf("'%s'에 %d명, 총 %s원이 기록되어 있습니다",
			event.Title, balance.People, strconv.FormatInt(balance.Total.Won, 10)),
		Data: map[string]any{
			"event":     map[string]string{"id": event.ID, "title": event.Title, "type": string(event.Type)},
			"people":    balance.People,
			"total_won": balance.Total.Won,
			"friends":   names,
		},
	}, nil
}
