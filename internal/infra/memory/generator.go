package memory

import (
	"context"

	"smartquiz-service/internal/domain"
)

// StaticGenerator hands out a fixed question bank per subject, cycling
// when more are requested than exist. It stands in for the AI generator
// in demo mode and tests.
type StaticGenerator struct {
	banks map[string][]domain.Question
	// Err, when set, makes every call fail. Exercises the LoadError path.
	Err error
}

func NewStaticGenerator(banks map[string][]domain.Question) *StaticGenerator {
	return &StaticGenerator{banks: banks}
}

func (g *StaticGenerator) Generate(_ context.Context, subject string, count int, _ string) ([]domain.Question, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	bank := g.banks[subject]
	if len(bank) == 0 {
		return nil, domain.ErrNoQuestions
	}
	if count <= 0 || count > len(bank) {
		count = len(bank)
	}
	out := make([]domain.Question, count)
	copy(out, bank[:count])
	return out, nil
}
