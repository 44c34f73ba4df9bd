package app_test

import (
	"testing"
	"time"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

func waitForState(t *testing.T, s *app.Session, want string) app.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.State == want {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session never reached state %q (last %q)", want, s.Snapshot().State)
	return app.Snapshot{}
}

func TestTimerAutoAnswersOnExpiry(t *testing.T) {
	s := app.NewSession(app.SessionConfig{
		ID:              "s1",
		UID:             "u1",
		Questions:       threeQuestions()[:1],
		TimePerQuestion: 3,
	})
	driver := app.StartTimer(s, time.Millisecond)
	defer driver.Stop()

	snap := waitForState(t, s, "answered")
	if snap.Selected != domain.NoSelection {
		t.Fatalf("expected timeout selection, got %d", snap.Selected)
	}

	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	summary, err := s.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Mistakes) != 1 {
		t.Fatalf("expected one timeout mistake, got %d", len(summary.Mistakes))
	}
}

func TestTimerDoesNotTickWhileAnswered(t *testing.T) {
	s := app.NewSession(app.SessionConfig{
		ID:              "s1",
		UID:             "u1",
		Questions:       threeQuestions(),
		TimePerQuestion: 10,
	})
	driver := app.StartTimer(s, time.Millisecond)
	defer driver.Stop()

	if _, err := s.Answer(0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	remaining := s.Snapshot().RemainingSeconds

	time.Sleep(20 * time.Millisecond)
	if got := s.Snapshot().RemainingSeconds; got != remaining {
		t.Fatalf("countdown moved on the review screen: %d -> %d", remaining, got)
	}
}

func TestTimerStopIsIdempotent(t *testing.T) {
	s := app.NewSession(app.SessionConfig{
		ID:              "s1",
		UID:             "u1",
		Questions:       threeQuestions(),
		TimePerQuestion: 20,
	})
	driver := app.StartTimer(s, time.Hour)
	driver.Stop()
	driver.Stop()
}
