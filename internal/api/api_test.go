package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BTreeMap/HabitChat/internal/chat"
	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/store"
)

const testSecret = "test-secret"

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	engine := chat.NewEngine(st)
	return NewServer(st, engine, WithJWTSecret(testSecret)), st
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(t, s, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(t, s, http.MethodGet, "/api/v1/habits", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, "other-secret", "user1")
	rr := doRequest(t, s, http.MethodGet, "/api/v1/habits", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestChatCreatesConversation(t *testing.T) {
	s, st := newTestServer(t)
	token := signToken(t, testSecret, "user1")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/chat", token, `{"message":"create habit cricket description every sunday"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	var resp models.ChatResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("failed to decode chat response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("expected a conversation ID")
	}
	if resp.Message.Role != "assistant" || !strings.Contains(resp.Message.Content, "Cricket") {
		t.Errorf("unexpected reply message: %+v", resp.Message)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("expected suggestions")
	}

	habits, _ := st.ListHabits("user1")
	if len(habits) != 1 || habits[0].Name != "Cricket" {
		t.Errorf("habit not created through chat: %v", habits)
	}

	// Both sides of the exchange are persisted.
	messages, err := st.ListChatMessages("user1", resp.ConversationID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("conversation not persisted correctly: %v", messages)
	}
}

func TestChatContinuesConversation(t *testing.T) {
	s, st := newTestServer(t)
	token := signToken(t, testSecret, "user1")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/chat", token, `{"message":"hello"}`)
	env := decodeEnvelope(t, rr)
	var first models.ChatResponse
	json.Unmarshal(env.Result, &first)

	body := fmt.Sprintf(`{"message":"show my habits","conversation_id":%q}`, first.ConversationID)
	rr = doRequest(t, s, http.MethodPost, "/api/v1/chat", token, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env = decodeEnvelope(t, rr)
	var second models.ChatResponse
	json.Unmarshal(env.Result, &second)
	if second.ConversationID != first.ConversationID {
		t.Error("follow-up message should stay in the same conversation")
	}

	messages, _ := st.ListChatMessages("user1", first.ConversationID)
	if len(messages) != 4 {
		t.Errorf("expected 4 persisted messages, got %d", len(messages))
	}
}

func TestChatUnknownConversation(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "user1")
	rr := doRequest(t, s, http.MethodPost, "/api/v1/chat", token, `{"message":"hi","conversation_id":"nope"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "user1")
	rr := doRequest(t, s, http.MethodPost, "/api/v1/chat", token, `{"message":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHabitCRUD(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "user1")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/habits", token, `{"name":"Cricket","description":"Every sunday"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var habit models.Habit
	env := decodeEnvelope(t, rr)
	if err := json.Unmarshal(env.Result, &habit); err != nil {
		t.Fatalf("failed to decode habit: %v", err)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/v1/habits", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var habits []models.Habit
	env = decodeEnvelope(t, rr)
	json.Unmarshal(env.Result, &habits)
	if len(habits) != 1 || habits[0].ID != habit.ID {
		t.Errorf("listing wrong: %v", habits)
	}

	rr = doRequest(t, s, http.MethodPatch, "/api/v1/habits/"+habit.ID, token, `{"description":"Evening practice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated models.Habit
	env = decodeEnvelope(t, rr)
	json.Unmarshal(env.Result, &updated)
	if updated.Description != "Evening practice" || updated.Name != "Cricket" {
		t.Errorf("partial update wrong: %+v", updated)
	}

	rr = doRequest(t, s, http.MethodDelete, "/api/v1/habits/"+habit.ID, token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodGet, "/api/v1/habits/"+habit.ID, token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestHabitValidation(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "user1")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/habits", token, `{"name":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rr.Code)
	}
	longName := strings.Repeat("x", models.MaxHabitNameLength+1)
	rr = doRequest(t, s, http.MethodPost, "/api/v1/habits", token, fmt.Sprintf(`{"name":%q}`, longName))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized name, got %d", rr.Code)
	}
}

func TestDeleteAllHabitsReportsCount(t *testing.T) {
	s, st := newTestServer(t)
	token := signToken(t, testSecret, "user1")
	st.CreateHabit("user1", "Cricket", "")
	st.CreateHabit("user1", "Yoga", "")

	rr := doRequest(t, s, http.MethodDelete, "/api/v1/habits", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	var result map[string]int
	json.Unmarshal(env.Result, &result)
	if result["deleted"] != 2 {
		t.Errorf("deleted = %d, want 2", result["deleted"])
	}
}

func TestCompletionsAndStreakEndpoints(t *testing.T) {
	s, st := newTestServer(t)
	token := signToken(t, testSecret, "user1")
	h, _ := st.CreateHabit("user1", "Yoga", "")

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rr := doRequest(t, s, http.MethodPost, "/api/v1/habits/"+h.ID+"/completions", token,
		fmt.Sprintf(`{"date":%q,"status":true}`, yesterday))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, s, http.MethodPost, "/api/v1/habits/"+h.ID+"/completions", token, `{"status":true,"note":"evening"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	// A future date is rejected.
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	rr = doRequest(t, s, http.MethodPost, "/api/v1/habits/"+h.ID+"/completions", token,
		fmt.Sprintf(`{"date":%q,"status":true}`, tomorrow))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for future date, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/v1/habits/"+h.ID+"/streak", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	var report models.StreakReport
	json.Unmarshal(env.Result, &report)
	if report.Current != 2 || report.Longest != 2 {
		t.Errorf("streak report wrong: %+v", report)
	}

	rr = doRequest(t, s, http.MethodDelete, "/api/v1/habits/"+h.ID+"/completions", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodGet, "/api/v1/habits/"+h.ID+"/completions", token, "")
	env = decodeEnvelope(t, rr)
	var completions []models.Completion
	json.Unmarshal(env.Result, &completions)
	if len(completions) != 0 {
		t.Errorf("completions should be cleared, got %v", completions)
	}
}

func TestCrossUserIsolation(t *testing.T) {
	s, st := newTestServer(t)
	h, _ := st.CreateHabit("user1", "Cricket", "")
	session, _ := st.CreateSession("user1", "")

	otherToken := signToken(t, testSecret, "user2")
	rr := doRequest(t, s, http.MethodGet, "/api/v1/habits/"+h.ID, otherToken, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-user habit read should 404, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodDelete, "/api/v1/habits/"+h.ID, otherToken, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-user habit delete should 404, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodGet, "/api/v1/conversations/"+session.ID+"/messages", otherToken, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-user conversation read should 404, got %d", rr.Code)
	}
}

func TestListConversations(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "user1")

	doRequest(t, s, http.MethodPost, "/api/v1/chat", token, `{"message":"hello"}`)
	rr := doRequest(t, s, http.MethodGet, "/api/v1/conversations", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	var sessions []models.ChatSession
	json.Unmarshal(env.Result, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(sessions))
	}
	if sessions[0].Title != "hello" {
		t.Errorf("title = %q, want first user message", sessions[0].Title)
	}
}
