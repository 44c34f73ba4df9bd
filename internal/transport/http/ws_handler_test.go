package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
	"smartquiz-service/internal/infra/memory"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *app.QuizService, *memory.ResultStore) {
	t.Helper()
	store := memory.NewResultStore()

	questions := make([]domain.Question, 2)
	for i := range questions {
		questions[i] = domain.Question{
			Text:         "Q",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 0,
			Explanation:  "first option",
		}
	}
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.QuizDefinition{
		"mock_quizzes/quiz-1": {ID: "quiz-1", Subject: "History", Questions: questions},
	}), time.Minute)

	service := app.NewQuizService(app.Deps{
		Sessions:     memory.NewSessionStore(),
		Resolver:     app.NewResolver(quizRepo, memory.NewStaticGenerator(nil)),
		Results:      store,
		Bookmarks:    store,
		History:      store,
		Resume:       memory.NewResumeStore(),
		TickInterval: time.Hour,
	})

	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(service).ServeWS))
	t.Cleanup(server.Close)
	return server, service, store
}

func dialWS(t *testing.T, server *httptest.Server, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?uid=" + uid
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(wsMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil skips pushed snapshots (which interleave freely with command
// replies) until a message of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wsMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %q: %v", want, err)
		}
		if msg.Type == "error" {
			var p struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(msg.Payload, &p)
			t.Fatalf("got error while waiting for %q: %s", want, p.Message)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("never received %q", want)
	return wsMessage{}
}

func TestWSFullSessionFlow(t *testing.T) {
	server, _, store := newWSTestServer(t)
	conn := dialWS(t, server, "u1")

	sendWS(t, conn, "start", map[string]any{
		"quizId": "quiz-1", "collection": "mock_quizzes", "numQuestions": 2, "timePerQuestion": 20,
	})
	snapMsg := readUntil(t, conn, "snapshot")
	var snap app.Snapshot
	if err := json.Unmarshal(snapMsg.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != "answering" || snap.TotalQuestions != 2 {
		t.Fatalf("unexpected first snapshot %+v", snap)
	}
	if snap.CorrectIndex != domain.NoSelection {
		t.Fatalf("answer leaked before evaluation: %+v", snap)
	}

	sendWS(t, conn, "answer", map[string]any{"selected": 0})
	var outcome app.AnswerOutcome
	if err := json.Unmarshal(readUntil(t, conn, "answerResult").Payload, &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.Accepted || !outcome.Correct || outcome.Explanation != "first option" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	sendWS(t, conn, "bookmark", nil)
	readUntil(t, conn, "bookmarked")

	sendWS(t, conn, "next", nil)
	sendWS(t, conn, "answer", map[string]any{"selected": 3})
	if err := json.Unmarshal(readUntil(t, conn, "answerResult").Payload, &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Correct {
		t.Fatalf("expected incorrect outcome, got %+v", outcome)
	}
	sendWS(t, conn, "next", nil)

	sendWS(t, conn, "submit", nil)
	var submitted struct {
		Result  domain.QuizResult `json:"result"`
		Warning string            `json:"warning"`
	}
	if err := json.Unmarshal(readUntil(t, conn, "submitted").Payload, &submitted); err != nil {
		t.Fatalf("decode submitted: %v", err)
	}
	if submitted.Result.Score != 1 || submitted.Result.Total != 2 || submitted.Warning != "" {
		t.Fatalf("unexpected submission %+v", submitted)
	}

	attempts, _ := store.ListAttempts(context.Background(), "u1", 0)
	if len(attempts) != 1 {
		t.Fatalf("expected 1 persisted attempt, got %d", len(attempts))
	}
	bookmarks, _ := store.ListBookmarks(context.Background(), "u1", 0)
	if len(bookmarks) != 1 {
		t.Fatalf("expected 1 bookmark, got %d", len(bookmarks))
	}
}

func TestWSDisconnectAbandonsSession(t *testing.T) {
	server, service, store := newWSTestServer(t)
	conn := dialWS(t, server, "u1")

	sendWS(t, conn, "start", map[string]any{
		"quizId": "quiz-1", "collection": "mock_quizzes", "numQuestions": 2,
	})
	var snap app.Snapshot
	if err := json.Unmarshal(readUntil(t, conn, "snapshot").Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := service.Answer(context.Background(), snap.SessionID, 0); err == domain.ErrSessionNotFound {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := service.Answer(context.Background(), snap.SessionID, 0); err != domain.ErrSessionNotFound {
		t.Fatalf("expected abandoned session, got %v", err)
	}
	attempts, _ := store.ListAttempts(context.Background(), "u1", 0)
	if len(attempts) != 0 {
		t.Fatalf("disconnect must persist nothing, got %d attempts", len(attempts))
	}
}

func TestWSDegradedSubmitWarns(t *testing.T) {
	server, _, store := newWSTestServer(t)
	store.FailSaves = context.DeadlineExceeded
	conn := dialWS(t, server, "u1")

	sendWS(t, conn, "start", map[string]any{
		"quizId": "quiz-1", "collection": "mock_quizzes", "numQuestions": 2,
	})
	readUntil(t, conn, "snapshot")
	for i := 0; i < 2; i++ {
		sendWS(t, conn, "answer", map[string]any{"selected": 0})
		readUntil(t, conn, "answerResult")
		sendWS(t, conn, "next", nil)
	}

	sendWS(t, conn, "submit", nil)
	var submitted struct {
		Result  domain.QuizResult `json:"result"`
		Warning string            `json:"warning"`
	}
	if err := json.Unmarshal(readUntil(t, conn, "submitted").Payload, &submitted); err != nil {
		t.Fatalf("decode submitted: %v", err)
	}
	if submitted.Warning == "" {
		t.Fatalf("expected degraded-save warning")
	}
	if submitted.Result.Score != 2 {
		t.Fatalf("expected score still reported, got %v", submitted.Result.Score)
	}
}

func TestWSRejectsMissingUID(t *testing.T) {
	server, _, _ := newWSTestServer(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("expected handshake rejection without uid")
	}
}
