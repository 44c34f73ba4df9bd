package app

import (
	"context"
	"errors"

	"smartquiz-service/internal/domain"
)

// QuizRepository loads stored quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, collection, quizID string) (domain.QuizDefinition, error)
}

// QuestionGenerator produces questions on demand when no stored set exists.
// Calls are non-deterministic and non-idempotent; results are never cached.
type QuestionGenerator interface {
	Generate(ctx context.Context, subject string, count int, language string) ([]domain.Question, error)
}

// ResolveRequest identifies which question set a session should run.
type ResolveRequest struct {
	QuizID     string
	Collection string
	Subject    string
	Count      int
	Language   string
}

// Resolver turns a quiz identifier into a concrete ordered question list:
// stored definition first, AI generation as the fallback.
type Resolver struct {
	quizzes   QuizRepository
	generator QuestionGenerator
}

func NewResolver(quizzes QuizRepository, generator QuestionGenerator) *Resolver {
	return &Resolver{quizzes: quizzes, generator: generator}
}

// Resolve returns at most req.Count questions plus the definition they came
// from, if any. A stored quiz with fewer questions than requested is served
// as-is, not an error. Any terminal failure is wrapped in a LoadError so
// callers know to offer a manual retry.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) ([]domain.Question, *domain.QuizDefinition, error) {
	if req.QuizID != "" {
		def, err := r.quizzes.GetQuiz(ctx, req.Collection, req.QuizID)
		switch {
		case err == nil:
			questions := def.Questions
			if req.Count > 0 && len(questions) > req.Count {
				questions = questions[:req.Count]
			}
			if len(questions) > 0 {
				return questions, &def, nil
			}
			// Stored but empty: fall back to generation.
		case errors.Is(err, domain.ErrQuizNotFound):
			// Unknown ID: fall back to generation.
		default:
			return nil, nil, &domain.LoadError{Err: err}
		}
	}

	questions, err := r.generator.Generate(ctx, req.Subject, req.Count, req.Language)
	if err != nil {
		return nil, nil, &domain.LoadError{Err: err}
	}
	if len(questions) == 0 {
		return nil, nil, &domain.LoadError{Err: domain.ErrNoQuestions}
	}
	if req.Count > 0 && len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil, nil
}
