package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Wedding    EventType = "결혼"
	FirstBirth EventType = "돌잔치"
	Birthday   EventType = "생일"
	Funeral    EventType = "장례"
	Housewarm  EventType = "집들이"
	Promotion  EventType = "승진"
	Opening    EventType = "개업"
	EtcEvent   EventType = "기타"
)

const (
	Received Direction = "received"
	Sent     Direction = "sent"
)

const (
	GiftCash GiftType = "cash"
	GiftGold GiftType = "gold"
)

type (
	EventType string

	// Direction tells whether the money flowed to the user (received at
	// their own event) or from the user (sent to a friend's event).
	Direction string

	// GiftType selects how the amount was entered: cash won or gold weight.
	GiftType string

	Money struct {
		Won int64
	}

	Friend struct {
		ID       string
		Name     string
		Relation string
	}

	// NewFriend is a not-yet-persisted friend entry typed into the record
	// form or passed by the assistant tool layer.
	NewFriend struct {
		Name     string
		Relation string
	}

	Event struct {
		ID    string
		Title string
		Type  EventType
		Date  time.Time
	}

	// GiftRecord is one logged contribution linking an event and a friend.
	// A fan-out submission produces one GiftRecord row per participant.
	GiftRecord struct {
		ID        string
		EventID   string
		FriendID  string
		Amount    Money
		Memo      string
		Direction Direction
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyRelation    = errors.New("empty relation")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNotFound         = errors.New("not found")
)

func (t EventType) IsValid() bool {
	switch t {
	case Wedding, FirstBirth, Birthday, Funeral, Housewarm, Promotion, Opening, EtcEvent:
		return true
	default:
		return false
	}
}

func (d Direction) IsValid() bool {
	return d == Received || d == Sent
}

func (m Money) Validate() error {
	if m.Won <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (f NewFriend) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(f.Relation) == "" {
		return ErrEmptyRelation
	}
	return nil
}

// Trimmed returns a copy with surrounding whitespace removed from both
// fields, the form the directory persists.
func (f NewFriend) Trimmed() NewFriend {
	return NewFriend{
		Name:     strings.TrimSpace(f.Name),
		Relation: strings.TrimSpace(f.Relation),
	}
}

func (f Friend) Validate() error {
	return NewFriend{Name: f.Name, Relation: f.Relation}.Validate()
}

func (e Event) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 100 {
		return errors.New("title too long (max 100 characters)")
	}
	if !e.Type.IsValid() {
		return ErrInvalidEventType
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (r GiftRecord) Validate() error {
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.EventID) == "" {
		return errors.New("empty event id")
	}
	if strings.TrimSpace(r.FriendID) == "" {
		return errors.New("empty friend id")
	}
	if !r.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if len(r.Memo) > 200 {
		return errors.New("memo too long (max 200 characters)")
	}
	return nil
}
