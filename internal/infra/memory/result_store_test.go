package memory

import (
	"context"
	"testing"
	"time"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

func saveAttempt(t *testing.T, s *ResultStore, uid string, points int, at time.Time) {
	t.Helper()
	err := s.SaveResult(context.Background(), app.ResultBatch{
		Result:      domain.QuizResult{ID: uid + "-" + at.String(), UID: uid, CreatedAt: at},
		PointsDelta: points,
		StreakDelta: 1,
	})
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
}

func TestSaveResultAccumulatesStats(t *testing.T) {
	s := NewResultStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	saveAttempt(t, s, "u1", 10, base)
	saveAttempt(t, s, "u1", 20, base.Add(time.Hour))

	stats, ok := s.Stats("u1")
	if !ok || stats.TotalPoints != 30 || stats.Streak != 2 {
		t.Fatalf("unexpected stats %+v ok=%v", stats, ok)
	}
}

func TestListAttemptsNewestFirst(t *testing.T) {
	s := NewResultStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	saveAttempt(t, s, "u1", 10, base)
	saveAttempt(t, s, "u1", 10, base.Add(time.Hour))
	saveAttempt(t, s, "u2", 10, base.Add(2*time.Hour))

	attempts, err := s.ListAttempts(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts for u1, got %d", len(attempts))
	}
	if !attempts[0].CreatedAt.After(attempts[1].CreatedAt) {
		t.Fatalf("attempts not newest-first: %v then %v", attempts[0].CreatedAt, attempts[1].CreatedAt)
	}
}

func TestDeleteMistakeScopedToUser(t *testing.T) {
	s := NewResultStore()
	ctx := context.Background()
	err := s.SaveResult(ctx, app.ResultBatch{
		Result: domain.QuizResult{ID: "r1", UID: "u1"},
		Mistakes: []domain.MistakeRecord{
			{ID: "m1", UID: "u1"},
			{ID: "m2", UID: "u1"},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Wrong user: no-op.
	if err := s.DeleteMistake(ctx, "u2", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	mistakes, _ := s.ListMistakes(ctx, "u1", 0)
	if len(mistakes) != 2 {
		t.Fatalf("cross-user delete must not remove records, got %d", len(mistakes))
	}

	if err := s.DeleteMistake(ctx, "u1", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	mistakes, _ = s.ListMistakes(ctx, "u1", 0)
	if len(mistakes) != 1 || mistakes[0].ID != "m2" {
		t.Fatalf("expected only m2 left, got %+v", mistakes)
	}
}

func TestLeaderboardRanksAndTruncates(t *testing.T) {
	s := NewResultStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	saveAttempt(t, s, "carol", 5, base)
	saveAttempt(t, s, "alice", 30, base)
	saveAttempt(t, s, "bob", 30, base)

	entries, err := s.Leaderboard(context.Background(), 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(entries))
	}
	// Ties break on UID so ranks stay stable between refreshes.
	if entries[0].UID != "alice" || entries[0].Rank != 1 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].UID != "bob" || entries[1].Rank != 2 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	session := app.NewSession(app.SessionConfig{
		ID:  "s1",
		UID: "u1",
		Questions: []domain.Question{
			{Text: "Q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
		},
		TimePerQuestion: 20,
	})

	store.Put(session)
	got, ok := store.Get("s1")
	if !ok || got.UID() != "u1" {
		t.Fatalf("expected stored session, got ok=%v", ok)
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
}
