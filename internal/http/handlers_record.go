package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bujo/internal/core"
	"bujo/internal/form"
	"bujo/internal/submit"
)

// submitRecordRequest carries the composed record form as the client
// last saw it: amount card state, participant set and memo. The server
// replays it through the same form models the UI uses, so both paths
// derive the amount and participant list identically.
type submitRecordRequest struct {
	EventID      string              `json:"event_id"`
	Direction    string              `json:"direction"`
	Memo         string              `json:"memo"`
	Amount       amountPayload       `json:"amount"`
	Participants participantsPayload `json:"participants"`
}

type amountPayload struct {
	GiftType    string  `json:"gift_type"` // "cash" (default) or "gold"
	SelectedWon int64   `json:"selected_won"`
	CustomWon   string  `json:"custom_won"`
	SelectedDon float64 `json:"selected_don"`
	CustomDon   string  `json:"custom_don"`
	PricePerDon int64   `json:"price_per_don"`
}

type participantsPayload struct {
	SelectedFriendIDs []string           `json:"selected_friend_ids"`
	NewFriends        []newFriendPayload `json:"new_friends"`
	Draft             *newFriendPayload  `json:"draft"`
}

type newFriendPayload struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

type submitRecordResponse struct {
	Phase       string `json:"phase"`
	People      int    `json:"people"`
	AmountWon   int64  `json:"amount_won"`
	TotalWon    int64  `json:"total_won"`
	AmountLabel string `json:"amount_label"`
}

func (s *Server) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	var req submitRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "잘못된 요청 형식입니다")
		return
	}

	eventID := sanitizeInput(req.EventID)
	if eventID == "" {
		writeValidationError(w, "event_id가 필요합니다")
		return
	}
	if _, err := s.repo.GetEvent(r.Context(), eventID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "경조사를 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Get event failed", "error", err, "event_id", eventID)
		writeInternalError(w, submit.UserFailureMessage)
		return
	}

	amount := req.Amount.toState()
	participants := req.Participants.toState()

	in := submit.BuildInput(eventID, sanitizeInput(req.Memo), amount, participants)
	in.Direction = core.Direction(sanitizeInput(req.Direction))
	if in.Direction != "" && !in.Direction.IsValid() {
		writeValidationError(w, "direction은 received 또는 sent여야 합니다")
		return
	}

	coordinator := submit.NewCoordinator(s.repo, s.records, s, submit.NopNavigator{})
	if err := coordinator.Submit(r.Context(), in); err != nil {
		switch {
		case errors.Is(err, submit.ErrNothingToSubmit):
			writeValidationError(w, "금액과 참여자를 입력해 주세요")
		default:
			writeInternalError(w, submit.UserFailureMessage)
		}
		return
	}

	summary := form.Summarize(in.Amount, len(in.SelectedFriendIDs)+len(in.NewFriends))
	resp := submitRecordResponse{
		Phase:       coordinator.Phase().String(),
		AmountWon:   in.Amount,
		AmountLabel: formatWon(in.Amount),
	}
	if summary != nil {
		resp.People = summary.People
		resp.TotalWon = summary.LineTotal
	}
	writeJSON(w, http.StatusCreated, resp)
}

// toState replays the payload into the amount model.
func (p amountPayload) toState() form.AmountState {
	st := form.NewAmountState()
	if core.GiftType(p.GiftType) == core.GiftGold {
		st = st.WithGiftType(core.GiftGold)
	}
	if p.SelectedWon > 0 {
		st = st.SelectWon(p.SelectedWon)
	}
	if p.CustomWon != "" {
		st = st.TypeWon(p.CustomWon)
	}
	if p.SelectedDon > 0 {
		st = st.SelectDon(p.SelectedDon)
	}
	if p.CustomDon != "" {
		st = st.TypeDon(p.CustomDon)
	}
	return st.WithPricePerDon(p.PricePerDon)
}

// toState rebuilds the participant model; an uncommitted draft rides
// along and is resolved by the submission pipeline.
func (p participantsPayload) toState() form.ParticipantSetState {
	st := form.NewParticipantSetState()
	for _, id := range p.SelectedFriendIDs {
		st = st.ToggleFriend(id)
	}
	for _, nf := range p.NewFriends {
		st = st.WithDraftName(nf.Name).WithDraftRelation(nf.Relation).CommitDraft()
	}
	if p.Draft != nil {
		st = st.WithDraftName(p.Draft.Name).WithDraftRelation(p.Draft.Relation)
	}
	return st
}

// handleListRecords filters by exactly one of eventId or friendId.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	eventID := sanitizeInput(r.URL.Query().Get("eventId"))
	friendID := sanitizeInput(r.URL.Query().Get("friendId"))

	switch {
	case eventID != "" && friendID != "":
		writeValidationError(w, "eventId와 friendId 중 하나만 지정해 주세요")
	case eventID != "":
		records, err := s.repo.ListRecordsByEvent(r.Context(), eventID)
		if err != nil {
			slog.ErrorContext(r.Context(), "List event records failed", "error", err, "event_id", eventID)
			writeInternalError(w, "기록을 불러오지 못했습니다")
			return
		}
		views := make([]eventRecordView, 0, len(records))
		for _, rec := range records {
			views = append(views, eventRecordView{
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
		writeJSON(w, http.StatusOK, views)
	case friendID != "":
		records, err := s.repo.ListRecordsByFriend(r.Context(), friendID)
		if err != nil {
			slog.ErrorContext(r.Context(), "List friend records failed", "error", err, "friend_id", friendID)
			writeInternalError(w, "기록을 불러오지 못했습니다")
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
	default:
		writeValidationError(w, "eventId 또는 friendId가 필요합니다")
	}
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.repo.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "기록을 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Get record failed", "error", err, "record_id", id)
		writeInternalError(w, "기록 삭제에 실패했습니다")
		return
	}

	if err := s.records.DeleteRecord(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeNotFound(w, "기록을 찾을 수 없습니다")
			return
		}
		slog.ErrorContext(r.Context(), "Delete record failed", "error", err, "record_id", id)
		writeInternalError(w, "기록 삭제에 실패했습니다")
		return
	}

	s.InvalidateEvent(rec.EventID)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
