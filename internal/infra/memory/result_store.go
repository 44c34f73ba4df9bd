package memory

import (
	"context"
	"sort"
	"sync"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

// ResultStore keeps results, counters, mistakes, bookmarks and written
// submissions in memory. It backs the no-database demo mode and the unit
// tests; the Postgres store is the production implementation.
type ResultStore struct {
	mu        sync.RWMutex
	attempts  []domain.QuizResult
	stats     map[string]*domain.UserStats
	mistakes  []domain.MistakeRecord
	bookmarks []domain.Bookmark
	written   []domain.WrittenSubmission

	// FailSaves forces SaveResult to return this error, for exercising the
	// degraded submission path in tests.
	FailSaves error
}

func NewResultStore() *ResultStore {
	return &ResultStore{stats: make(map[string]*domain.UserStats)}
}

func (s *ResultStore) SaveResult(_ context.Context, batch app.ResultBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}

	s.attempts = append(s.attempts, batch.Result)
	st, ok := s.stats[batch.Result.UID]
	if !ok {
		st = &domain.UserStats{UID: batch.Result.UID}
		s.stats[batch.Result.UID] = st
	}
	st.TotalPoints += batch.PointsDelta
	st.Streak += batch.StreakDelta
	s.mistakes = append(s.mistakes, batch.Mistakes...)
	return nil
}

func (s *ResultStore) SaveBookmark(_ context.Context, b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks = append(s.bookmarks, b)
	return nil
}

func (s *ResultStore) SaveWritten(_ context.Context, sub domain.WrittenSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, sub)
	return nil
}

func (s *ResultStore) ListAttempts(_ context.Context, uid string, limit int) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizResult
	for _, a := range s.attempts {
		if a.UID == uid {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ResultStore) ListMistakes(_ context.Context, uid string, limit int) ([]domain.MistakeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MistakeRecord
	for _, m := range s.mistakes {
		if m.UID == uid {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ResultStore) DeleteMistake(_ context.Context, uid, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.mistakes {
		if m.ID == id && m.UID == uid {
			s.mistakes = append(s.mistakes[:i], s.mistakes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *ResultStore) ListBookmarks(_ context.Context, uid string, limit int) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bookmark
	for _, b := range s.bookmarks {
		if b.UID == uid {
			out = append(out, b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ResultStore) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.stats))
	for _, st := range s.stats {
		entries = append(entries, domain.LeaderboardEntry{UID: st.UID, TotalPoints: st.TotalPoints})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].UID < entries[j].UID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Stats exposes a user's counters for assertions.
func (s *ResultStore) Stats(uid string) (domain.UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[uid]
	if !ok {
		return domain.UserStats{}, false
	}
	return *st, true
}

// Written exposes stored written submissions for assertions.
func (s *ResultStore) Written() []domain.WrittenSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WrittenSubmission, len(s.written))
	copy(out, s.written)
	return out
}

// ResumeStore is an in-memory app.ResumeStore.
type ResumeStore struct {
	mu       sync.RWMutex
	pointers map[string]domain.ResumePointer
}

func NewResumeStore() *ResumeStore {
	return &ResumeStore{pointers: make(map[string]domain.ResumePointer)}
}

func (s *ResumeStore) SetResume(_ context.Context, uid string, ptr domain.ResumePointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[uid] = ptr
	return nil
}

func (s *ResumeStore) GetResume(_ context.Context, uid string) (domain.ResumePointer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ptr, ok := s.pointers[uid]
	return ptr, ok, nil
}

func (s *ResumeStore) ClearResume(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pointers, uid)
	return nil
}
