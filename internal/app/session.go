package app

import (
	"math"
	"sync"
	"time"

	"smartquiz-service/internal/domain"
)

// State is the single tag describing where a session is in its lifecycle.
// Using one enum instead of a pile of booleans makes impossible
// combinations (answered while finished, submitting twice) unrepresentable.
type State int

const (
	// StateAnswering: current question shown, countdown running, awaiting
	// exactly one evaluation.
	StateAnswering State = iota
	// StateAnswered: evaluation recorded, countdown suspended, awaiting one
	// manual advance.
	StateAnswered
	// StateFinished: last question answered and advanced past; final score
	// available, awaiting one explicit submission.
	StateFinished
	// StateSubmitting: result write in flight; re-submission is rejected.
	StateSubmitting
	// StateDone: result handed back to the caller; session is dead.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAnswering:
		return "answering"
	case StateAnswered:
		return "answered"
	case StateFinished:
		return "finished"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// negativePenalty is subtracted for an incorrect answer (timeouts included)
// when the session runs with negative marking. No floor is applied here;
// point conversion clamps at zero on submission instead.
const negativePenalty = 0.25

// Session is one user's in-progress attempt at a question sequence. It
// lives only in memory and is discarded on abandonment or submission.
type Session struct {
	id              string
	uid             string
	quizID          string
	subject         string
	negativeMarking bool
	timePerQuestion int

	now func() time.Time

	mu               sync.Mutex
	state            State
	questions        []domain.Question
	currentIndex     int
	score            float64
	mistakes         []domain.Question
	selected         int
	remainingSeconds int
	startedAt        time.Time
	bookmarking      bool
	subscribers      map[chan Snapshot]struct{}
}

// SessionConfig carries everything needed to seed a session.
type SessionConfig struct {
	ID              string
	UID             string
	QuizID          string
	Subject         string
	Questions       []domain.Question
	TimePerQuestion int
	NegativeMarking bool
}

// NewSession seeds a session in the answering state on its first question.
// The question slice must be non-empty; the resolver guarantees that.
func NewSession(cfg SessionConfig) *Session {
	return NewSessionWithClock(cfg, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(cfg SessionConfig, now func() time.Time) *Session {
	return &Session{
		id:               cfg.ID,
		uid:              cfg.UID,
		quizID:           cfg.QuizID,
		subject:          cfg.Subject,
		negativeMarking:  cfg.NegativeMarking,
		timePerQuestion:  cfg.TimePerQuestion,
		now:              now,
		state:            StateAnswering,
		questions:        cfg.Questions,
		selected:         domain.NoSelection,
		remainingSeconds: cfg.TimePerQuestion,
		startedAt:        now(),
		subscribers:      make(map[chan Snapshot]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UID returns the owning user.
func (s *Session) UID() string { return s.uid }

// AnswerOutcome reports what a single evaluation did. Accepted is false
// when the call was a no-op because the question was already answered.
type AnswerOutcome struct {
	Accepted     bool    `json:"accepted"`
	Correct      bool    `json:"correct"`
	Selected     int     `json:"selected"`
	CorrectIndex int     `json:"correctIndex"`
	Explanation  string  `json:"explanation,omitempty"`
	Score        float64 `json:"score"`
}

// Answer evaluates a selected option index (or domain.NoSelection) against
// the current question. Exactly one call per question is honored; any call
// after that is a no-op, which is also how a timer-expiry racing a user tap
// resolves: first in wins.
func (s *Session) Answer(idx int) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerLocked(idx)
}

func (s *Session) answerLocked(idx int) (AnswerOutcome, error) {
	switch s.state {
	case StateAnswering:
		// fall through to evaluation
	case StateAnswered:
		return AnswerOutcome{Accepted: false, Score: s.score}, nil
	default:
		return AnswerOutcome{}, domain.ErrSessionFinished
	}

	q := s.questions[s.currentIndex]
	correct := idx == q.CorrectIndex
	if correct {
		s.score++
	} else {
		s.mistakes = append(s.mistakes, q)
		if s.negativeMarking {
			s.score -= negativePenalty
		}
	}
	s.selected = idx
	s.state = StateAnswered
	s.broadcastLocked()

	return AnswerOutcome{
		Accepted:     true,
		Correct:      correct,
		Selected:     idx,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Score:        s.score,
	}, nil
}

// Tick decrements the countdown by one second. It does nothing unless the
// session is answering. When the countdown reaches zero the no-selection
// sentinel is evaluated, which counts as incorrect.
func (s *Session) Tick() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAnswering {
		return s.state, false
	}
	if s.remainingSeconds > 1 {
		s.remainingSeconds--
		s.broadcastLocked()
		return s.state, false
	}
	s.remainingSeconds = 0
	_, _ = s.answerLocked(domain.NoSelection)
	return s.state, true
}

// Next performs the single manual transition out of the answered state:
// to the next question, or to finished after the last one.
func (s *Session) Next() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAnswered:
		// fall through
	case StateAnswering:
		return s.state, domain.ErrNotAnswered
	default:
		return s.state, domain.ErrSessionFinished
	}

	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.selected = domain.NoSelection
		s.remainingSeconds = s.timePerQuestion
		s.state = StateAnswering
	} else {
		s.state = StateFinished
	}
	s.broadcastLocked()
	return s.state, nil
}

// CurrentQuestion returns the question under evaluation. Only meaningful
// in the answering/answered states.
func (s *Session) CurrentQuestion() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAnswering && s.state != StateAnswered {
		return domain.Question{}, false
	}
	return s.questions[s.currentIndex], true
}

// Summary is the scored outcome exposed once the session is finished.
type Summary struct {
	Score            float64
	Total            int
	Mistakes         []domain.Question
	TimeTakenSeconds int
}

// Summary returns the final score (rounded to 2 decimals), total question
// count, accumulated mistakes and elapsed time. Only valid from the
// finished state onward.
func (s *Session) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFinished && s.state != StateSubmitting && s.state != StateDone {
		return Summary{}, domain.ErrSessionNotFinished
	}
	mistakes := make([]domain.Question, len(s.mistakes))
	copy(mistakes, s.mistakes)
	return Summary{
		Score:            math.Round(s.score*100) / 100,
		Total:            len(s.questions),
		Mistakes:         mistakes,
		TimeTakenSeconds: int(s.now().Sub(s.startedAt) / time.Second),
	}, nil
}

// beginSubmit moves finished -> submitting. A second caller gets
// ErrAlreadySubmitted, which is what prevents double-tap duplicates.
func (s *Session) beginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateFinished:
		s.state = StateSubmitting
		s.broadcastLocked()
		return nil
	case StateSubmitting, StateDone:
		return domain.ErrAlreadySubmitted
	default:
		return domain.ErrSessionNotFinished
	}
}

// terminate kills the session and closes all subscriber channels. Used
// both after submission (the write may have failed; a failed submission
// degrades to a warning, never back into the quiz) and on abandonment.
func (s *Session) terminate() {
	s.mu.Lock()
	s.state = StateDone
	s.broadcastLocked()
	subs := s.subscribers
	s.subscribers = make(map[chan Snapshot]struct{})
	s.mu.Unlock()
	for ch := range subs {
		close(ch)
	}
}

// beginBookmark reserves the bookmark slot so rapid repeated taps persist
// a single record. Returns the question to snapshot.
func (s *Session) beginBookmark() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookmarking || (s.state != StateAnswering && s.state != StateAnswered) {
		return domain.Question{}, false
	}
	s.bookmarking = true
	return s.questions[s.currentIndex], true
}

func (s *Session) endBookmark() {
	s.mu.Lock()
	s.bookmarking = false
	s.mu.Unlock()
}

// Snapshot is the render-ready view pushed to subscribers. The correct
// index and explanation are withheld until the question is answered.
type Snapshot struct {
	SessionID        string   `json:"sessionId"`
	State            string   `json:"state"`
	QuestionIndex    int      `json:"questionIndex"`
	TotalQuestions   int      `json:"totalQuestions"`
	QuestionText     string   `json:"questionText,omitempty"`
	Options          []string `json:"options,omitempty"`
	Media            *domain.Media `json:"media,omitempty"`
	RemainingSeconds int      `json:"remainingSeconds"`
	Selected         int      `json:"selected"`
	CorrectIndex     int      `json:"correctIndex"`
	Explanation      string   `json:"explanation,omitempty"`
	Score            float64  `json:"score"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		State:            s.state.String(),
		QuestionIndex:    s.currentIndex,
		TotalQuestions:   len(s.questions),
		RemainingSeconds: s.remainingSeconds,
		Selected:         s.selected,
		CorrectIndex:     domain.NoSelection,
		Score:            math.Round(s.score*100) / 100,
	}
	if s.state == StateAnswering || s.state == StateAnswered {
		q := s.questions[s.currentIndex]
		snap.QuestionText = q.Text
		snap.Options = q.Options
		snap.Media = q.Media
		if s.state == StateAnswered {
			snap.CorrectIndex = q.CorrectIndex
			snap.Explanation = q.Explanation
		}
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow reader never blocks ticks.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
