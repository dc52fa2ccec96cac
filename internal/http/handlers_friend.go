package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bujo/internal/core"
)

type friendView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

type createFriendRequest struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	friends, ok := s.friendsCache.Get(friendListCacheKey)
	if !ok {
		var err error
		friends, err = s.repo.ListFriends(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "List friends failed", "error", err)
			writeInternalError(w, "친구 목록을 불러오지 못했습니다")
			return
		}
		s.friendsCache.Set(friendListCacheKey, friends)
	}

	views := make([]friendView, 0, len(friends))
	for _, f := range friends {
		views = append(views, friendView{ID: f.ID, Name: f.Name, Relation: f.Relation})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateFriend(w http.ResponseWriter, r *http.Request) {
	var req createFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "잘못된 요청 형식입니다")
		return
	}

	nf := core.NewFriend{
		Name:     sanitizeInput(req.Name),
		Relation: sanitizeInput(req.Relation),
	}
	if err := nf.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	id, err := s.repo.CreateFriend(r.Context(), nf)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create friend failed", "error", err, "name", nf.Name)
		writeInternalError(w, "친구 등록에 실패했습니다")
		return
	}

	s.InvalidateFriendList()
	writeJSON(w, http.StatusCreated, friendView{ID: id, Name: nf.Name, Relation: nf.Relation})
}

func (s *Server) handleGetFriend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f, err := s.repo.GetFriend(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "친구를 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Get friend failed", "error", err, "friend_id", id)
		writeInternalError(w, "친구 정보를 불러오지 못했습니다")
		return
	}

	writeJSON(w, http.StatusOK, friendView{ID: f.ID, Name: f.Name, Relation: f.Relation})
}

func (s *Server) handleDeleteFriend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.repo.DeleteFriend(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "친구를 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Delete friend failed", "error", err, "friend_id", id)
		writeInternalError(w, "친구 삭제에 실패했습니다")
		return
	}

	s.InvalidateFriendList()
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type friendRecordView struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	EventTitle  string    `json:"event_title"`
	EventType   string    `json:"event_type"`
	EventDate   string    `json:"event_date"`
	AmountWon   int64     `json:"amount_won"`
	AmountLabel string    `json:"amount_label"`
	Memo        string    `json:"memo"`
	Direction   string    `json:"direction"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleFriendRecords(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.repo.GetFriend(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "친구를 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Get friend failed", "error", err, "friend_id", id)
		writeInternalError(w, "친구 기록을 불러오지 못했습니다")
		return
	}

	records, err := s.repo.ListRecordsByFriend(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "List friend records failed", "error", err, "friend_id", id)
		writeInternalError(w, "친구 기록을 불러오지 못했습니다")
		return
	}

	views := make([]friendRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, friendRecordView{
			ID:          rec.ID,
			EventID:     rec.EventID,
			EventTitle:  rec.EventTitle,
			EventType:   string(rec.EventType),
			EventDate:   rec.EventDate.Format("2006-01-02"),
			AmountWon:   rec.Amount.Won,
			AmountLabel: formatWon(rec.Amount.Won),
			Memo:        rec.Memo,
			Direction:   string(rec.Direction),
			CreatedAt:   rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
