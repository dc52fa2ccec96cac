package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"bujo/internal/services"
	"bujo/internal/storage"
)

type testServer struct {
	*Server
	repo *storage.SQLiteRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bujo-test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(":0", repo, services.NewRecordService(repo, nil))
	t.Cleanup(func() {
		srv.cacheManager.Stop()
		srv.limiter.Stop()
	})
	return &testServer{Server: srv, repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("response not successful: %+v", env.Error)
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func (ts *testServer) createEvent(t *testing.T, title string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/events", map[string]string{
		"title": title,
		"type":  "결혼",
		"date":  "2026-05-30",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: status %d, body %s", rec.Code, rec.Body.String())
	}
	var view struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &view)
	return view.ID
}

func (ts *testServer) createFriend(t *testing.T, name, relation string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/friends", map[string]string{
		"name":     name,
		"relation": relation,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create friend: status %d, body %s", rec.Code, rec.Body.String())
	}
	var view struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &view)
	return view.ID
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}

func TestFriendEndpoints(t *testing.T) {
	ts := newTestServer(t)

	id := ts.createFriend(t, "김철수", "친구")

	rec := ts.do(t, http.MethodGet, "/friends", nil)
	var friends []friendView
	decodeData(t, rec, &friends)
	if len(friends) != 1 || friends[0].Name != "김철수" {
		t.Errorf("friends = %+v", friends)
	}

	rec = ts.do(t, http.MethodDelete, "/friends/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete friend: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, "/friends/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d", rec.Code)
	}
}

func TestGetFriend(t *testing.T) {
	ts := newTestServer(t)

	id := ts.createFriend(t, "김철수", "친구")

	rec := ts.do(t, http.MethodGet, "/friends/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get friend: status %d", rec.Code)
	}
	var view friendView
	decodeData(t, rec, &view)
	if view.Name != "김철수" || view.Relation != "친구" {
		t.Errorf("friend = %+v", view)
	}

	if rec := ts.do(t, http.MethodGet, "/friends/no-such-id", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown friend: status %d", rec.Code)
	}
}

func TestCreateFriendValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/friends", map[string]string{"name": "  "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank name: status %d", rec.Code)
	}
}

func TestSubmitRecordFansOutAndInvalidates(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "철수 결혼식")
	kimID := ts.createFriend(t, "김철수", "친구")

	// Warm the event detail cache.
	if rec := ts.do(t, http.MethodGet, "/events/"+eventID, nil); rec.Code != http.StatusOK {
		t.Fatalf("warm event detail: status %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":  eventID,
		"direction": "sent",
		"memo":      "축하",
		"amount": map[string]any{
			"selected_won": 100000,
		},
		"participants": map[string]any{
			"selected_friend_ids": []string{kimID},
			"new_friends": []map[string]string{
				{"name": "이영희", "relation": "회사"},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit record: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp submitRecordResponse
	decodeData(t, rec, &resp)
	if resp.Phase != "succeeded" || resp.People != 2 || resp.TotalWon != 200000 {
		t.Errorf("response = %+v", resp)
	}

	// Detail must reflect the new rows, not the warmed cache.
	rec = ts.do(t, http.MethodGet, "/events/"+eventID, nil)
	var detail eventDetail
	decodeData(t, rec, &detail)
	if len(detail.Records) != 2 {
		t.Fatalf("event has %d records, want 2", len(detail.Records))
	}
	if detail.Balance.People != 2 || detail.Balance.TotalWon != 200000 {
		t.Errorf("balance = %+v", detail.Balance)
	}

	// The committed new friend must be in the directory now.
	rec = ts.do(t, http.MethodGet, "/friends", nil)
	var friends []friendView
	decodeData(t, rec, &friends)
	if len(friends) != 2 {
		t.Errorf("directory has %d friends, want 2", len(friends))
	}
}

func TestSubmitGoldRecordAnnotatesMemo(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "영희 돌잔치")
	kimID := ts.createFriend(t, "김철수", "친구")

	rec := ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id": eventID,
		"memo":     "감사",
		"amount": map[string]any{
			"gift_type":     "gold",
			"selected_don":  3,
			"price_per_don": 500000,
		},
		"participants": map[string]any{
			"selected_friend_ids": []string{kimID},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit gold record: status %d, body %s", rec.Code, rec.Body.String())
	}

	detailRec := ts.do(t, http.MethodGet, "/events/"+eventID, nil)
	var detail eventDetail
	decodeData(t, detailRec, &detail)
	if len(detail.Records) != 1 {
		t.Fatalf("event has %d records", len(detail.Records))
	}
	if detail.Records[0].AmountWon != 1500000 {
		t.Errorf("amount = %d, want 1500000", detail.Records[0].AmountWon)
	}
	if detail.Records[0].Memo != "금 3돈 × 500000원/돈 · 감사" {
		t.Errorf("memo = %q", detail.Records[0].Memo)
	}
}

func TestSubmitRecordGuard(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "철수 결혼식")

	rec := ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":     eventID,
		"amount":       map[string]any{"selected_won": 100000},
		"participants": map[string]any{},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no participants: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":     "no-such-event",
		"amount":       map[string]any{"selected_won": 100000},
		"participants": map[string]any{"selected_friend_ids": []string{"f"}},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown event: status %d", rec.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "철수 결혼식")
	kimID := ts.createFriend(t, "김철수", "친구")

	rec := ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":     eventID,
		"amount":       map[string]any{"selected_won": 50000},
		"participants": map[string]any{"selected_friend_ids": []string{kimID}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit record: status %d", rec.Code)
	}

	detailRec := ts.do(t, http.MethodGet, "/events/"+eventID, nil)
	var detail eventDetail
	decodeData(t, detailRec, &detail)
	recordID := detail.Records[0].ID

	if rec := ts.do(t, http.MethodDelete, "/records/"+recordID, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete record: status %d", rec.Code)
	}

	detailRec = ts.do(t, http.MethodGet, "/events/"+eventID, nil)
	decodeData(t, detailRec, &detail)
	if len(detail.Records) != 0 {
		t.Errorf("records after delete = %+v", detail.Records)
	}

	if rec := ts.do(t, http.MethodDelete, "/records/"+recordID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d", rec.Code)
	}
}

func TestFriendRecords(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "철수 결혼식")
	kimID := ts.createFriend(t, "김철수", "친구")

	ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":     eventID,
		"amount":       map[string]any{"custom_won": "70000"},
		"participants": map[string]any{"selected_friend_ids": []string{kimID}},
	})

	rec := ts.do(t, http.MethodGet, "/friends/"+kimID+"/records", nil)
	var records []friendRecordView
	decodeData(t, rec, &records)
	if len(records) != 1 {
		t.Fatalf("friend has %d records", len(records))
	}
	if records[0].AmountWon != 70000 || records[0].EventTitle != "철수 결혼식" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestListRecordsQuery(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "철수 결혼식")
	kimID := ts.createFriend(t, "김철수", "친구")

	ts.do(t, http.MethodPost, "/records", map[string]any{
		"event_id":     eventID,
		"amount":       map[string]any{"selected_won": 100000},
		"participants": map[string]any{"selected_friend_ids": []string{kimID}},
	})

	rec := ts.do(t, http.MethodGet, "/records?eventId="+eventID, nil)
	var byEvent []eventRecordView
	decodeData(t, rec, &byEvent)
	if len(byEvent) != 1 || byEvent[0].FriendID != kimID {
		t.Errorf("records by event = %+v", byEvent)
	}

	rec = ts.do(t, http.MethodGet, "/records?friendId="+kimID, nil)
	var byFriend []friendRecordView
	decodeData(t, rec, &byFriend)
	if len(byFriend) != 1 || byFriend[0].EventID != eventID {
		t.Errorf("records by friend = %+v", byFriend)
	}

	if rec := ts.do(t, http.MethodGet, "/records", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no filter: status %d", rec.Code)
	}
	path := "/records?eventId=" + eventID + "&friendId=" + kimID
	if rec := ts.do(t, http.MethodGet, path, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("both filters: status %d", rec.Code)
	}
}

func TestFormDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/form/defaults?direction=sent", nil)
	var data struct {
		AmountPresets       []int64   `json:"amount_presets"`
		GoldDonPresets      []float64 `json:"gold_don_presets"`
		RelationSuggestions []string  `json:"relation_suggestions"`
	}
	decodeData(t, rec, &data)
	if len(data.AmountPresets) == 0 || data.AmountPresets[0] != 30000 {
		t.Errorf("sent presets = %v", data.AmountPresets)
	}
	if len(data.GoldDonPresets) != 5 || len(data.RelationSuggestions) == 0 {
		t.Errorf("defaults = %+v", data)
	}
}

func TestAssistantToolEndpoint(t *testing.T) {
	ts := newTestServer(t)

	eventID := ts.createEvent(t, "민수 개업식")

	rec := ts.do(t, http.MethodPost, "/assistant/tools/create_record", map[string]any{
		"event_id":   eventID,
		"amount_won": 100000,
		"direction":  "sent",
		"new_friends": []map[string]string{
			{"name": "박민수", "relation": "지인"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create_record tool: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/assistant/tools/get_event_summary", map[string]any{
		"event_id": eventID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("get_event_summary tool: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Message string `json:"message"`
	}
	decodeData(t, rec, &result)
	if result.Message == "" {
		t.Error("summary message empty")
	}

	rec = ts.do(t, http.MethodPost, "/assistant/tools/no_such_tool", map[string]any{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown tool: status %d", rec.Code)
	}
}

func TestBadJSONRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/friends", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.Server.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status %d", rec.Code)
	}
}
