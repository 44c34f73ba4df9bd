package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
	"smartquiz-service/internal/infra/memory"
)

func newAPITestServer(t *testing.T) (*httptest.Server, *memory.ResultStore, *memory.ResumeStore) {
	t.Helper()
	store := memory.NewResultStore()
	resume := memory.NewResumeStore()

	service := app.NewQuizService(app.Deps{
		Sessions:     memory.NewSessionStore(),
		Resolver:     app.NewResolver(memory.NewQuizRepository(memory.NewStaticQuizLoader(nil), time.Minute), memory.NewStaticGenerator(nil)),
		Results:      store,
		Written:      store,
		Resume:       resume,
		History:      store,
		TickInterval: time.Hour,
	})

	mux := http.NewServeMux()
	NewAPIHandler(service).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store, resume
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAttemptsEndpoint(t *testing.T) {
	server, store, _ := newAPITestServer(t)
	ctx := context.Background()

	err := store.SaveResult(ctx, app.ResultBatch{
		Result:      domain.QuizResult{ID: "r1", UID: "u1", Score: 7, Total: 10, CreatedAt: time.Now()},
		PointsDelta: 70,
		StreakDelta: 1,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var attempts []domain.QuizResult
	if status := getJSON(t, server.URL+"/api/users/u1/attempts", &attempts); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if len(attempts) != 1 || attempts[0].Score != 7 {
		t.Fatalf("unexpected attempts %+v", attempts)
	}

	var empty []domain.QuizResult
	if status := getJSON(t, server.URL+"/api/users/u2/attempts", &empty); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no attempts for u2, got %+v", empty)
	}
}

func TestDeleteMistakeEndpoint(t *testing.T) {
	server, store, _ := newAPITestServer(t)
	ctx := context.Background()

	err := store.SaveResult(ctx, app.ResultBatch{
		Result:   domain.QuizResult{ID: "r1", UID: "u1"},
		Mistakes: []domain.MistakeRecord{{ID: "m1", UID: "u1"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/users/u1/mistakes/m1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	mistakes, _ := store.ListMistakes(ctx, "u1", 0)
	if len(mistakes) != 0 {
		t.Fatalf("expected mistake removed, got %+v", mistakes)
	}
}

func TestResumeEndpoint(t *testing.T) {
	server, _, resume := newAPITestServer(t)

	if status := getJSON(t, server.URL+"/api/users/u1/resume", nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 without pointer, got %d", status)
	}

	ptr := domain.ResumePointer{Subject: "History", NumQuestions: 10, TimePerQuestion: 20}
	if err := resume.SetResume(context.Background(), "u1", ptr); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got domain.ResumePointer
	if status := getJSON(t, server.URL+"/api/users/u1/resume", &got); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if got != ptr {
		t.Fatalf("unexpected pointer %+v", got)
	}
}

func TestWrittenEndpoint(t *testing.T) {
	server, store, _ := newAPITestServer(t)

	body, _ := json.Marshal(map[string]any{
		"uid":     "u1",
		"subject": "History",
		"questions": []domain.Question{
			{Text: "Explain the 1952 language movement.", Marks: 10},
		},
		"answers": []string{"It established Bangla as a state language."},
	})
	resp, err := http.Post(server.URL+"/api/written", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var sub domain.WrittenSubmission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Status != "pending" || len(store.Written()) != 1 {
		t.Fatalf("unexpected submission %+v", sub)
	}

	// Blank answers are rejected before anything persists.
	bad, _ := json.Marshal(map[string]any{
		"uid":       "u1",
		"subject":   "History",
		"questions": []domain.Question{{Text: "Q", Marks: 5}},
		"answers":   []string{""},
	})
	resp2, err := http.Post(server.URL+"/api/written", "application/json", bytes.NewReader(bad))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank answer, got %d", resp2.StatusCode)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, store, _ := newAPITestServer(t)
	ctx := context.Background()

	for uid, points := range map[string]int{"alice": 30, "bob": 10} {
		err := store.SaveResult(ctx, app.ResultBatch{
			Result:      domain.QuizResult{ID: uid + "-1", UID: uid},
			PointsDelta: points,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var entries []domain.LeaderboardEntry
	if status := getJSON(t, server.URL+"/api/leaderboard?limit=1", &entries); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if len(entries) != 1 || entries[0].UID != "alice" || entries[0].Rank != 1 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
