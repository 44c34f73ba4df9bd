package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"smartquiz-service/internal/domain"
)

type countingLoader struct {
	calls int64
	inner QuizLoader
}

func (l *countingLoader) LoadQuiz(ctx context.Context, collection, quizID string) (domain.QuizDefinition, error) {
	atomic.AddInt64(&l.calls, 1)
	return l.inner.LoadQuiz(ctx, collection, quizID)
}

func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:      "quiz-1",
		Subject: "History",
		Questions: []domain.Question{
			{Text: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
		},
	}
}

func TestGetQuizCachesUntilTTL(t *testing.T) {
	loader := &countingLoader{inner: NewStaticQuizLoader(map[string]domain.QuizDefinition{
		"mock_quizzes/quiz-1": sampleQuiz(),
	})}
	repo := NewQuizRepository(loader, time.Minute)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := base
	repo.clock = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := repo.GetQuiz(ctx, "mock_quizzes", "quiz-1"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if got := atomic.LoadInt64(&loader.calls); got != 1 {
		t.Fatalf("expected 1 loader call before expiry, got %d", got)
	}

	// Past TTL plus the maximum 10% jitter.
	now = base.Add(2 * time.Minute)
	if _, err := repo.GetQuiz(ctx, "mock_quizzes", "quiz-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := atomic.LoadInt64(&loader.calls); got != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", got)
	}
}

func TestGetQuizDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{inner: NewStaticQuizLoader(nil)}
	repo := NewQuizRepository(loader, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := repo.GetQuiz(ctx, "mock_quizzes", "missing"); err != domain.ErrQuizNotFound {
			t.Fatalf("expected ErrQuizNotFound, got %v", err)
		}
	}
	if got := atomic.LoadInt64(&loader.calls); got != 3 {
		t.Fatalf("misses must hit the loader every time, got %d calls", got)
	}
}

func TestGetQuizKeysByCollection(t *testing.T) {
	a := sampleQuiz()
	b := sampleQuiz()
	b.Subject = "Science"
	loader := &countingLoader{inner: NewStaticQuizLoader(map[string]domain.QuizDefinition{
		"mock_quizzes/quiz-1": a,
		"paid_quizzes/quiz-1": b,
	})}
	repo := NewQuizRepository(loader, time.Minute)

	ctx := context.Background()
	got, err := repo.GetQuiz(ctx, "paid_quizzes", "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != "Science" {
		t.Fatalf("collection leaked into cache key: %+v", got)
	}
}
