package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a session ID does not resolve.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNoQuestions means neither storage nor generation produced questions.
	ErrNoQuestions = errors.New("no questions available")
	// ErrSessionFinished rejects answer/advance calls after the last question.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrSessionNotFinished rejects submission before the last question is done.
	ErrSessionNotFinished = errors.New("quiz session not finished yet")
	// ErrNotAnswered rejects an advance before the current question is answered.
	ErrNotAnswered = errors.New("current question not answered")
	// ErrAlreadySubmitted guards against duplicate result submission.
	ErrAlreadySubmitted = errors.New("result already submitted")
	// ErrQuizNotOpen means the quiz scheduling window excludes the current time.
	ErrQuizNotOpen = errors.New("quiz is not open")
	// ErrBookmarkUnavailable means a bookmark is already in flight or the
	// session has no current question.
	ErrBookmarkUnavailable = errors.New("bookmark unavailable")
	// ErrMissingAnswer rejects a written submission with unanswered questions.
	ErrMissingAnswer = errors.New("all questions must be answered")
	// ErrBadOptionCount flags questions outside the 2-6 option range.
	ErrBadOptionCount = errors.New("question must have 2 to 6 options")
	// ErrBadCorrectIndex flags a correct-answer index outside the options.
	ErrBadCorrectIndex = errors.New("correct answer index out of range")
)

// LoadError wraps a question fetch/generation failure. Callers surface it
// with a manual retry affordance; there is no automatic retry.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "loading questions failed: " + e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// SubmissionError wraps a result write failure. It is non-fatal: the caller
// warns the user and proceeds, accepting possible data loss.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submitting result failed: " + e.Err.Error() }

func (e *SubmissionError) Unwrap() error { return e.Err }
