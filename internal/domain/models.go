package domain

import (
	"fmt"
	"time"
)

// NoSelection is the sentinel answer index used when the timer expires
// before the participant picks an option. It always scores as incorrect.
const NoSelection = -1

// MediaKind tags optional question media.
type MediaKind string

const (
	MediaNone  MediaKind = "none"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is an optional attachment rendered alongside a question.
type Media struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Question models an MCQ question with exactly one correct option index.
// Marks is only meaningful for written-exam questions.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
	Media        *Media   `json:"media,omitempty"`
	Marks        float64  `json:"marks,omitempty"`
}

// Validate enforces the MCQ invariants: 2-6 options and a correct index
// that points into them.
func (q Question) Validate() error {
	if len(q.Options) < 2 || len(q.Options) > 6 {
		return fmt.Errorf("%w: got %d options", ErrBadOptionCount, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: index %d for %d options", ErrBadCorrectIndex, q.CorrectIndex, len(q.Options))
	}
	return nil
}

// ScheduleWindow bounds when a live/paid quiz may be started.
type ScheduleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window. Zero bounds are open.
func (w ScheduleWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// QuizDefinition is the admin-owned quiz content. Read-only to the
// session engine.
type QuizDefinition struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Subject         string          `json:"subject"`
	Category        string          `json:"category"`
	DurationMinutes int             `json:"durationMinutes"`
	EntryFee        int             `json:"entryFee"`
	PrizePool       int             `json:"prizePool"`
	NegativeMarking bool            `json:"negativeMarking"`
	Questions       []Question      `json:"questions"`
	Window          *ScheduleWindow `json:"window,omitempty"`
}

// QuizResult is the persisted outcome of one completed session.
// Immutable after creation.
type QuizResult struct {
	ID               string    `json:"id"`
	UID              string    `json:"uid"`
	QuizID           string    `json:"quizId"`
	Subject          string    `json:"subject"`
	Score            float64   `json:"score"`
	Total            int       `json:"total"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	CreatedAt        time.Time `json:"createdAt"`
}

// MistakeRecord is a persisted copy of an incorrectly answered question,
// owned and deletable by the user, used to build a practice set.
type MistakeRecord struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Question  Question  `json:"question"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bookmark is a question snapshot the user saved mid-session.
type Bookmark struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Question  Question  `json:"question"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStats aggregates the shared counters incremented on submission.
// Increments are commutative; the store applies them atomically.
type UserStats struct {
	UID         string `json:"uid"`
	TotalPoints int    `json:"totalPoints"`
	Streak      int    `json:"streak"`
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	UID         string `json:"uid"`
	TotalPoints int    `json:"totalPoints"`
	Rank        int    `json:"rank"`
}

// WrittenAnswer pairs a written-exam question with the free-text answer.
// Marks stay zero and feedback empty until an examiner grades it.
type WrittenAnswer struct {
	Question    string  `json:"question"`
	UserAnswer  string  `json:"userAnswer"`
	MarksGained float64 `json:"marksGained"`
	MaxMarks    float64 `json:"maxMarks"`
	Feedback    string  `json:"feedback"`
}

// WrittenSubmission is a pending written-exam attempt.
type WrittenSubmission struct {
	ID        string          `json:"id"`
	UID       string          `json:"uid"`
	QuizID    string          `json:"quizId"`
	Subject   string          `json:"subject"`
	Answers   []WrittenAnswer `json:"answers"`
	Status    string          `json:"status"` // "pending" until graded
	CreatedAt time.Time       `json:"createdAt"`
}

// ResumePointer remembers that a quiz configuration was started but not
// finished. It never carries in-progress answers, only the coarse config.
type ResumePointer struct {
	Subject         string `json:"subject"`
	QuizID          string `json:"quizId,omitempty"`
	NumQuestions    int    `json:"numQuestions"`
	TimePerQuestion int    `json:"timePerQuestion"`
	NegativeMarking bool   `json:"negativeMarking"`
}
