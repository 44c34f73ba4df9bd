package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"smartquiz-service/internal/bulk"
	"smartquiz-service/internal/config"
	"smartquiz-service/internal/domain"
	pgstore "smartquiz-service/internal/infra/postgres"
)

// NewImportCmd bulk-imports pipe-delimited questions into a quiz.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		file       string
		collection string
		quizID     string
		title      string
		subject    string
		category   string
		duration   int
		entryFee   int
		prizePool  int
		negative   bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import pipe-delimited questions as a quiz definition",
		Long: `Reads questions in the bulk format, one per line:

  question|option1|option2|option3|option4|correctIndex|explanation|marks

and upserts them as a quiz definition in Postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, importParams{
				file:       file,
				collection: collection,
				quizID:     quizID,
				title:      title,
				subject:    subject,
				category:   category,
				duration:   duration,
				entryFee:   entryFee,
				prizePool:  prizePool,
				negative:   negative,
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the bulk question file (required)")
	cmd.Flags().StringVar(&collection, "collection", "mock_quizzes", "quiz collection to import into")
	cmd.Flags().StringVar(&quizID, "id", "", "quiz ID (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "quiz title (required)")
	cmd.Flags().StringVar(&subject, "subject", "", "quiz subject (required)")
	cmd.Flags().StringVar(&category, "category", "", "quiz category")
	cmd.Flags().IntVar(&duration, "duration", 15, "duration in minutes")
	cmd.Flags().IntVar(&entryFee, "entry-fee", 0, "entry fee")
	cmd.Flags().IntVar(&prizePool, "prize-pool", 0, "prize pool")
	cmd.Flags().BoolVar(&negative, "negative-marking", false, "apply negative marking")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type importParams struct {
	file       string
	collection string
	quizID     string
	title      string
	subject    string
	category   string
	duration   int
	entryFee   int
	prizePool  int
	negative   bool
}

func runImport(ctx context.Context, configPath string, p importParams) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	f, err := os.Open(p.file)
	if err != nil {
		return err
	}
	defer f.Close()

	questions, err := bulk.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.file, err)
	}

	if p.quizID == "" {
		p.quizID = uuid.NewString()
	}
	def := domain.QuizDefinition{
		ID:              p.quizID,
		Title:           p.title,
		Subject:         p.subject,
		Category:        p.category,
		DurationMinutes: p.duration,
		EntryFee:        p.entryFee,
		PrizePool:       p.prizePool,
		NegativeMarking: p.negative || p.entryFee > 0,
		Questions:       questions,
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	if err := pgstore.NewStore(db).SaveQuiz(ctx, p.collection, def); err != nil {
		return err
	}
	log.Printf("imported %d questions into %s/%s", len(questions), p.collection, p.quizID)
	return nil
}
