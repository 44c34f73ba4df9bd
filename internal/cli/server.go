package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/config"
	"smartquiz-service/internal/domain"
	"smartquiz-service/internal/gen"
	"smartquiz-service/internal/infra/memory"
	pgstore "smartquiz-service/internal/infra/postgres"
	redisstore "smartquiz-service/internal/infra/redis"
	transport "smartquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var generator app.QuestionGenerator = memory.NewStaticGenerator(sampleBank())
	if cfg.Generator.BaseURL != "" {
		generator = gen.NewClient(gen.Config{
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey,
			Model:   cfg.Generator.Model,
			Timeout: config.TTLDuration(cfg.Generator.Timeout, 30*time.Second),
		})
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var resume app.ResumeStore = memory.NewResumeStore()
	if redisClient != nil {
		resume = redisstore.NewResumeStore(redisClient, config.TTLDuration(cfg.Resume.TTL, 24*time.Hour))
	}

	deps := app.Deps{
		Sessions:      sessions,
		Resolver:      app.NewResolver(quizRepo, generator),
		Resume:        resume,
		SubmitTimeout: config.TTLDuration(cfg.Quiz.SubmitTimeout, 45*time.Second),
	}

	if pool != nil {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		store := pgstore.NewStore(db)
		deps.Results = store
		deps.Bookmarks = store
		deps.Written = store
		deps.History = store
	} else {
		store := memory.NewResultStore()
		deps.Results = store
		deps.Bookmarks = store
		deps.Written = store
		deps.History = store
	}

	service := app.NewQuizService(deps)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds demo content for running without Postgres.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"mock_quizzes/quiz-1": {
			ID:      "quiz-1",
			Title:   "General Knowledge Mock",
			Subject: "General Knowledge",
			Questions: []domain.Question{
				{
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "6"},
					CorrectIndex: 1,
					Explanation:  "Basic addition.",
				},
				{
					Text:         "Which planet is known as the Red Planet?",
					Options:      []string{"Venus", "Jupiter", "Mars", "Saturn"},
					CorrectIndex: 2,
				},
			},
		},
	}
}

// sampleBank feeds the static generator in demo mode.
func sampleBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"General Knowledge": {
			{
				Text:         "How many continents are there?",
				Options:      []string{"5", "6", "7", "8"},
				CorrectIndex: 2,
			},
			{
				Text:         "What is the capital of Bangladesh?",
				Options:      []string{"Chittagong", "Dhaka", "Sylhet", "Khulna"},
				CorrectIndex: 1,
			},
		},
	}
}
