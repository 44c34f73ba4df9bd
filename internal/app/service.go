package app

import (
	"context"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartquiz-service/internal/domain"
)

const (
	defaultTimePerQuestion = 20
	maxQuestions           = 1000
	// maxPersistedMistakes caps how many mistake records one session may
	// write; the full list still counts toward the score summary.
	maxPersistedMistakes = 10
	defaultSubmitTimeout = 45 * time.Second
)

// SessionRepository abstracts how live sessions are held (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// ResultBatch is the one logical write performed on submission: the
// attempt record, the commutative counter increments, and the capped
// mistake records. Implementations apply it atomically.
type ResultBatch struct {
	Result      domain.QuizResult
	PointsDelta int
	StreakDelta int
	Mistakes    []domain.MistakeRecord
}

// ResultStore persists completed attempts.
type ResultStore interface {
	SaveResult(ctx context.Context, batch ResultBatch) error
}

// BookmarkStore persists question bookmarks.
type BookmarkStore interface {
	SaveBookmark(ctx context.Context, b domain.Bookmark) error
}

// WrittenStore persists written-exam submissions for later grading.
type WrittenStore interface {
	SaveWritten(ctx context.Context, sub domain.WrittenSubmission) error
}

// ResumeStore remembers the coarse "unfinished quiz" pointer per user.
// It never holds mid-flight answers.
type ResumeStore interface {
	SetResume(ctx context.Context, uid string, ptr domain.ResumePointer) error
	GetResume(ctx context.Context, uid string) (domain.ResumePointer, bool, error)
	ClearResume(ctx context.Context, uid string) error
}

// HistoryStore serves the read side: attempt history, the mistake practice
// set, bookmarks and the points leaderboard.
type HistoryStore interface {
	ListAttempts(ctx context.Context, uid string, limit int) ([]domain.QuizResult, error)
	ListMistakes(ctx context.Context, uid string, limit int) ([]domain.MistakeRecord, error)
	DeleteMistake(ctx context.Context, uid, id string) error
	ListBookmarks(ctx context.Context, uid string, limit int) ([]domain.Bookmark, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Deps wires the service's collaborators. Results and the resolver are
// required; the rest may be nil and the matching features degrade.
type Deps struct {
	Sessions  SessionRepository
	Resolver  *Resolver
	Results   ResultStore
	Bookmarks BookmarkStore
	Written   WrittenStore
	Resume    ResumeStore
	History   HistoryStore

	// SubmitTimeout bounds the result write; zero means 45s.
	SubmitTimeout time.Duration
	// TickInterval drives countdowns; zero means one second.
	TickInterval time.Duration
	// Clock is test-only; zero means time.Now.
	Clock func() time.Time
}

// QuizService hosts the quiz-session engine: start, answer, advance,
// submit, plus the surrounding bookmark/resume/history use cases.
type QuizService struct {
	deps          Deps
	submitTimeout time.Duration
	tickInterval  time.Duration
	now           func() time.Time

	mu     sync.Mutex
	timers map[string]*TimerDriver
}

func NewQuizService(deps Deps) *QuizService {
	s := &QuizService{
		deps:          deps,
		submitTimeout: deps.SubmitTimeout,
		tickInterval:  deps.TickInterval,
		now:           deps.Clock,
		timers:        make(map[string]*TimerDriver),
	}
	if s.submitTimeout <= 0 {
		s.submitTimeout = defaultSubmitTimeout
	}
	if s.tickInterval <= 0 {
		s.tickInterval = time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// StartRequest configures one quiz attempt.
type StartRequest struct {
	UID             string
	QuizID          string
	Collection      string
	Subject         string
	NumQuestions    int
	TimePerQuestion int
	Language        string
	NegativeMarking bool
}

// Start resolves questions and creates a live session with its countdown
// running on the first question.
func (s *QuizService) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	count := req.NumQuestions
	if count < 1 {
		count = 1
	}
	if count > maxQuestions {
		count = maxQuestions
	}
	perQuestion := req.TimePerQuestion
	if perQuestion <= 0 {
		perQuestion = defaultTimePerQuestion
	}

	questions, def, err := s.deps.Resolver.Resolve(ctx, ResolveRequest{
		QuizID:     req.QuizID,
		Collection: req.Collection,
		Subject:    req.Subject,
		Count:      count,
		Language:   req.Language,
	})
	if err != nil {
		return Snapshot{}, err
	}

	negative := req.NegativeMarking
	if def != nil {
		if def.Window != nil && !def.Window.Contains(s.now()) {
			return Snapshot{}, domain.ErrQuizNotOpen
		}
		if def.NegativeMarking || def.EntryFee > 0 {
			negative = true
		}
	}

	session := NewSessionWithClock(SessionConfig{
		ID:              uuid.NewString(),
		UID:             req.UID,
		QuizID:          req.QuizID,
		Subject:         req.Subject,
		Questions:       questions,
		TimePerQuestion: perQuestion,
		NegativeMarking: negative,
	}, s.now)
	s.deps.Sessions.Put(session)

	if s.deps.Resume != nil {
		ptr := domain.ResumePointer{
			Subject:         req.Subject,
			QuizID:          req.QuizID,
			NumQuestions:    count,
			TimePerQuestion: perQuestion,
			NegativeMarking: negative,
		}
		if err := s.deps.Resume.SetResume(ctx, req.UID, ptr); err != nil {
			log.Printf("set resume pointer for %s: %v", req.UID, err)
		}
	}

	s.mu.Lock()
	s.timers[session.ID()] = StartTimer(session, s.tickInterval)
	s.mu.Unlock()

	return session.Snapshot(), nil
}

// Answer evaluates a selected option for the session's current question.
func (s *QuizService) Answer(_ context.Context, sessionID string, selected int) (AnswerOutcome, error) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return AnswerOutcome{}, domain.ErrSessionNotFound
	}
	return session.Answer(selected)
}

// Advance moves an answered session on to the next question or to the
// finished state after the last one.
func (s *QuizService) Advance(_ context.Context, sessionID string) (Snapshot, error) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	state, err := session.Next()
	if err != nil {
		return Snapshot{}, err
	}
	if state == StateFinished {
		s.stopTimer(sessionID)
	}
	return session.Snapshot(), nil
}

// Submit persists the finished session as one logical write and destroys
// the session. A store failure is wrapped in SubmissionError but the
// session still ends: the caller warns the user and moves on, there is no
// automatic retry. The submitting guard means a double-tap persists
// exactly one attempt.
func (s *QuizService) Submit(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	if err := session.beginSubmit(); err != nil {
		return domain.QuizResult{}, err
	}

	summary, err := session.Summary()
	if err != nil {
		return domain.QuizResult{}, err
	}

	now := s.now()
	result := domain.QuizResult{
		ID:               uuid.NewString(),
		UID:              session.UID(),
		QuizID:           session.quizID,
		Subject:          session.subject,
		Score:            summary.Score,
		Total:            summary.Total,
		TimeTakenSeconds: summary.TimeTakenSeconds,
		CreatedAt:        now,
	}

	mistakes := summary.Mistakes
	if len(mistakes) > maxPersistedMistakes {
		mistakes = mistakes[:maxPersistedMistakes]
	}
	records := make([]domain.MistakeRecord, 0, len(mistakes))
	for _, q := range mistakes {
		records = append(records, domain.MistakeRecord{
			ID:        uuid.NewString(),
			UID:       session.UID(),
			Question:  q,
			CreatedAt: now,
		})
	}

	batch := ResultBatch{
		Result:      result,
		PointsDelta: pointsFromScore(summary.Score),
		StreakDelta: 1,
		Mistakes:    records,
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	saveErr := s.deps.Results.SaveResult(writeCtx, batch)

	s.stopTimer(sessionID)
	session.terminate()
	s.deps.Sessions.Delete(sessionID)
	if s.deps.Resume != nil {
		if err := s.deps.Resume.ClearResume(ctx, session.UID()); err != nil {
			log.Printf("clear resume pointer for %s: %v", session.UID(), err)
		}
	}

	if saveErr != nil {
		return result, &domain.SubmissionError{Err: saveErr}
	}
	return result, nil
}

// Abandon discards the in-memory session with nothing persisted. The
// resume pointer survives so the user can restart the same configuration.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return
	}
	s.stopTimer(sessionID)
	session.terminate()
	s.deps.Sessions.Delete(sessionID)
}

// Bookmark snapshots the session's current question for the user. An
// in-flight guard collapses rapid repeated taps into a single record.
func (s *QuizService) Bookmark(ctx context.Context, sessionID string) (domain.Bookmark, error) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return domain.Bookmark{}, domain.ErrSessionNotFound
	}
	q, ok := session.beginBookmark()
	if !ok {
		return domain.Bookmark{}, domain.ErrBookmarkUnavailable
	}
	defer session.endBookmark()

	b := domain.Bookmark{
		ID:        uuid.NewString(),
		UID:       session.UID(),
		Question:  q,
		CreatedAt: s.now(),
	}
	if err := s.deps.Bookmarks.SaveBookmark(ctx, b); err != nil {
		return domain.Bookmark{}, err
	}
	return b, nil
}

// Subscribe returns a channel of session snapshots. The caller must invoke
// the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan Snapshot, func(), error) {
	session, ok := s.deps.Sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Resume reports the user's unfinished quiz configuration, if any.
func (s *QuizService) Resume(ctx context.Context, uid string) (domain.ResumePointer, bool, error) {
	if s.deps.Resume == nil {
		return domain.ResumePointer{}, false, nil
	}
	return s.deps.Resume.GetResume(ctx, uid)
}

// WrittenRequest carries a complete written-exam attempt.
type WrittenRequest struct {
	UID       string
	QuizID    string
	Subject   string
	Questions []domain.Question
	Answers   []string
}

// SubmitWritten stores a written-exam attempt as pending. Every question
// must carry a non-empty answer. The write shares the submission timeout.
func (s *QuizService) SubmitWritten(ctx context.Context, req WrittenRequest) (domain.WrittenSubmission, error) {
	if len(req.Questions) == 0 || len(req.Answers) != len(req.Questions) {
		return domain.WrittenSubmission{}, domain.ErrMissingAnswer
	}
	answers := make([]domain.WrittenAnswer, 0, len(req.Questions))
	for i, q := range req.Questions {
		if strings.TrimSpace(req.Answers[i]) == "" {
			return domain.WrittenSubmission{}, domain.ErrMissingAnswer
		}
		maxMarks := q.Marks
		if maxMarks <= 0 {
			maxMarks = 10
		}
		answers = append(answers, domain.WrittenAnswer{
			Question:   q.Text,
			UserAnswer: req.Answers[i],
			MaxMarks:   maxMarks,
		})
	}

	sub := domain.WrittenSubmission{
		ID:        uuid.NewString(),
		UID:       req.UID,
		QuizID:    req.QuizID,
		Subject:   req.Subject,
		Answers:   answers,
		Status:    "pending",
		CreatedAt: s.now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	if err := s.deps.Written.SaveWritten(writeCtx, sub); err != nil {
		return domain.WrittenSubmission{}, &domain.SubmissionError{Err: err}
	}
	return sub, nil
}

// Attempts lists a user's completed quiz attempts, newest first.
func (s *QuizService) Attempts(ctx context.Context, uid string, limit int) ([]domain.QuizResult, error) {
	return s.deps.History.ListAttempts(ctx, uid, limit)
}

// Mistakes lists the user's practice set.
func (s *QuizService) Mistakes(ctx context.Context, uid string, limit int) ([]domain.MistakeRecord, error) {
	return s.deps.History.ListMistakes(ctx, uid, limit)
}

// DeleteMistake removes one practice record owned by the user.
func (s *QuizService) DeleteMistake(ctx context.Context, uid, id string) error {
	return s.deps.History.DeleteMistake(ctx, uid, id)
}

// Bookmarks lists the user's saved questions.
func (s *QuizService) Bookmarks(ctx context.Context, uid string, limit int) ([]domain.Bookmark, error) {
	return s.deps.History.ListBookmarks(ctx, uid, limit)
}

// Leaderboard lists the top users by aggregate points.
func (s *QuizService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return s.deps.History.Leaderboard(ctx, limit)
}

func (s *QuizService) stopTimer(sessionID string) {
	s.mu.Lock()
	driver, ok := s.timers[sessionID]
	if ok {
		delete(s.timers, sessionID)
	}
	s.mu.Unlock()
	if ok {
		driver.Stop()
	}
}

// pointsFromScore converts the session score into leaderboard points:
// ten points per mark, clamped at zero so a negative score never drains
// the aggregate.
func pointsFromScore(score float64) int {
	points := int(math.Floor(score * 10))
	if points < 0 {
		return 0
	}
	return points
}
