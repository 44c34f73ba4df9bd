package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID               string    `bun:"id,pk"`
	UID              string    `bun:"uid"`
	QuizID           string    `bun:"quiz_id"`
	Subject          string    `bun:"subject"`
	Score            float64   `bun:"score"`
	Total            int       `bun:"total"`
	TimeTakenSeconds int       `bun:"time_taken_seconds"`
	CreatedAt        time.Time `bun:"created_at"`
}

type userStatsRow struct {
	bun.BaseModel `bun:"table:user_stats"`

	UID         string `bun:"uid,pk"`
	TotalPoints int    `bun:"total_points"`
	Streak      int    `bun:"streak"`
}

type mistakeRow struct {
	bun.BaseModel `bun:"table:mistakes_practice"`

	ID        string    `bun:"id,pk"`
	UID       string    `bun:"uid"`
	Question  []byte    `bun:"question"`
	CreatedAt time.Time `bun:"created_at"`
}

type bookmarkRow struct {
	bun.BaseModel `bun:"table:bookmarks"`

	ID        string    `bun:"id,pk"`
	UID       string    `bun:"uid"`
	Question  []byte    `bun:"question"`
	CreatedAt time.Time `bun:"created_at"`
}

type writtenRow struct {
	bun.BaseModel `bun:"table:written_submissions"`

	ID        string    `bun:"id,pk"`
	UID       string    `bun:"uid"`
	QuizID    string    `bun:"quiz_id"`
	Subject   string    `bun:"subject"`
	Answers   []byte    `bun:"answers"`
	Status    string    `bun:"status"`
	CreatedAt time.Time `bun:"created_at"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID         string `bun:"id,pk"`
	Collection string `bun:"collection,pk"`
	Data       []byte `bun:"data"`
}

// Store is the bun-backed persistence for everything the session engine
// writes and the history endpoints read.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// SaveResult applies the submission batch in a single transaction: the
// attempt insert, the commutative counter increments, and the capped
// mistake records. Either everything lands or nothing does.
func (s *Store) SaveResult(ctx context.Context, batch app.ResultBatch) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		attempt := attemptRow{
			ID:               batch.Result.ID,
			UID:              batch.Result.UID,
			QuizID:           batch.Result.QuizID,
			Subject:          batch.Result.Subject,
			Score:            batch.Result.Score,
			Total:            batch.Result.Total,
			TimeTakenSeconds: batch.Result.TimeTakenSeconds,
			CreatedAt:        batch.Result.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(&attempt).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}

		stats := userStatsRow{
			UID:         batch.Result.UID,
			TotalPoints: batch.PointsDelta,
			Streak:      batch.StreakDelta,
		}
		if _, err := tx.NewInsert().
			Model(&stats).
			On("CONFLICT (uid) DO UPDATE").
			Set("total_points = user_stats.total_points + EXCLUDED.total_points").
			Set("streak = user_stats.streak + EXCLUDED.streak").
			Exec(ctx); err != nil {
			return fmt.Errorf("increment user stats: %w", err)
		}

		for _, m := range batch.Mistakes {
			raw, err := json.Marshal(m.Question)
			if err != nil {
				return fmt.Errorf("marshal mistake: %w", err)
			}
			row := mistakeRow{ID: m.ID, UID: m.UID, Question: raw, CreatedAt: m.CreatedAt}
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return fmt.Errorf("insert mistake: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) SaveBookmark(ctx context.Context, b domain.Bookmark) error {
	raw, err := json.Marshal(b.Question)
	if err != nil {
		return fmt.Errorf("marshal bookmark: %w", err)
	}
	row := bookmarkRow{ID: b.ID, UID: b.UID, Question: raw, CreatedAt: b.CreatedAt}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

func (s *Store) SaveWritten(ctx context.Context, sub domain.WrittenSubmission) error {
	raw, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("marshal written answers: %w", err)
	}
	row := writtenRow{
		ID:        sub.ID,
		UID:       sub.UID,
		QuizID:    sub.QuizID,
		Subject:   sub.Subject,
		Answers:   raw,
		Status:    sub.Status,
		CreatedAt: sub.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert written submission: %w", err)
	}
	return nil
}

// SaveQuiz upserts a quiz definition as JSONB. Used by the bulk import
// command; the session engine only reads.
func (s *Store) SaveQuiz(ctx context.Context, collection string, def domain.QuizDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	row := quizRow{ID: def.ID, Collection: collection, Data: raw}
	if _, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (collection, id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, uid string, limit int) ([]domain.QuizResult, error) {
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows).Where("uid = ?", uid).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.QuizResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.QuizResult{
			ID:               r.ID,
			UID:              r.UID,
			QuizID:           r.QuizID,
			Subject:          r.Subject,
			Score:            r.Score,
			Total:            r.Total,
			TimeTakenSeconds: r.TimeTakenSeconds,
			CreatedAt:        r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) ListMistakes(ctx context.Context, uid string, limit int) ([]domain.MistakeRecord, error) {
	var rows []mistakeRow
	q := s.db.NewSelect().Model(&rows).Where("uid = ?", uid).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	out := make([]domain.MistakeRecord, 0, len(rows))
	for _, r := range rows {
		var question domain.Question
		if err := json.Unmarshal(r.Question, &question); err != nil {
			return nil, fmt.Errorf("unmarshal mistake %s: %w", r.ID, err)
		}
		out = append(out, domain.MistakeRecord{ID: r.ID, UID: r.UID, Question: question, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Store) DeleteMistake(ctx context.Context, uid, id string) error {
	if _, err := s.db.NewDelete().
		Model((*mistakeRow)(nil)).
		Where("id = ? AND uid = ?", id, uid).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete mistake: %w", err)
	}
	return nil
}

func (s *Store) ListBookmarks(ctx context.Context, uid string, limit int) ([]domain.Bookmark, error) {
	var rows []bookmarkRow
	q := s.db.NewSelect().Model(&rows).Where("uid = ?", uid).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	out := make([]domain.Bookmark, 0, len(rows))
	for _, r := range rows {
		var question domain.Question
		if err := json.Unmarshal(r.Question, &question); err != nil {
			return nil, fmt.Errorf("unmarshal bookmark %s: %w", r.ID, err)
		}
		out = append(out, domain.Bookmark{ID: r.ID, UID: r.UID, Question: question, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []userStatsRow
	q := s.db.NewSelect().Model(&rows).Order("total_points DESC", "uid ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		out = append(out, domain.LeaderboardEntry{UID: r.UID, TotalPoints: r.TotalPoints, Rank: i + 1})
	}
	return out, nil
}
