package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_init.sql
var initSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(initSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS written_submissions;
				DROP TABLE IF EXISTS bookmarks;
				DROP TABLE IF EXISTS mistakes_practice;
				DROP TABLE IF EXISTS user_stats;
				DROP TABLE IF EXISTS quiz_attempts;
				DROP TABLE IF EXISTS quizzes;
			`)
			return err
		},
	)
}
