package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bujo/internal/core"
)

type eventView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Date  string `json:"date"`
}

type createEventRequest struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Date  string `json:"date"` // YYYY-MM-DD
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.repo.ListEvents(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List events failed", "error", err)
		writeInternalError(w, "경조사 목록을 불러오지 못했습니다")
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, toEventView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "잘못된 요청 형식입니다")
		return
	}

	date, err := time.Parse("2006-01-02", sanitizeInput(req.Date))
	if err != nil {
		writeValidationError(w, "날짜는 YYYY-MM-DD 형식이어야 합니다")
		return
	}

	event := core.Event{
		Title: sanitizeInput(req.Title),
		Type:  core.EventType(sanitizeInput(req.Type)),
		Date:  date,
	}
	if err := event.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	created, err := s.repo.CreateEvent(r.Context(), event)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create event failed", "error", err, "title", event.Title)
		writeInternalError(w, "경조사 등록에 실패했습니다")
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(created))
}

type eventRecordView struct {
	ID             string    `json:"id"`
	FriendID       string    `json:"friend_id"`
	FriendName     string    `json:"friend_name"`
	FriendRelation string    `json:"friend_relation"`
	AmountWon      int64     `json:"amount_won"`
	AmountLabel    string    `json:"amount_label"`
	Memo           string    `json:"memo"`
	Direction      string    `json:"direction"`
	CreatedAt      time.Time `json:"created_at"`
}

type balanceView struct {
	People     int    `json:"people"`
	TotalWon   int64  `json:"total_won"`
	TotalLabel string `json:"total_label"`
}

// eventDetail is the cached event page payload: the event itself, its
// records newest first, and the running balance.
type eventDetail struct {
	Event   eventView         `json:"event"`
	Records []eventRecordView `json:"records"`
	Balance balanceView       `json:"balance"`
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if detail, ok := s.eventCache.Get(id); ok {
		writeJSON(w, http.StatusOK, detail)
		return
	}

	event, err := s.repo.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "경조사를 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Get event failed", "error", err, "event_id", id)
		writeInternalError(w, "경조사 정보를 불러오지 못했습니다")
		return
	}

	records, err := s.repo.ListRecordsByEvent(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "List event records failed", "error", err, "event_id", id)
		writeInternalError(w, "경조사 기록을 불러오지 못했습니다")
		return
	}

	balance, err := s.repo.GetEventBalance(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get event balance failed", "error", err, "event_id", id)
		writeInternalError(w, "경조사 합계를 불러오지 못했습니다")
		return
	}

	detail := eventDetail{
		Event:   toEventView(event),
		Records: make([]eventRecordView, 0, len(records)),
		Balance: balanceView{
			People:     balance.People,
			TotalWon:   balance.Total.Won,
			TotalLabel: formatWon(balance.Total.Won),
		},
	}
	for _, rec := range records {
		detail.Records = append(detail.Records, eventRecordView{
			ID:             rec.ID,
			FriendID:       rec.FriendID,
			FriendName:     rec.FriendName,
			FriendRelation: rec.FriendRelation,
			AmountWon:      rec.Amount.Won,
			AmountLabel:    formatWon(rec.Amount.Won),
			Memo:           rec.Memo,
			Direction:      string(rec.Direction),
			CreatedAt:      rec.CreatedAt,
		})
	}

	s.eventCache.Set(id, detail)
	writeJSON(w, http.StatusOK, detail)
}

func toEventView(e core.Event) eventView {
	return eventView{
		ID:    e.ID,
		Title: e.Title,
		Type:  string(e.Type),
		Date:  e.Date.Format("2006-01-02"),
	}
}
