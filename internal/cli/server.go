package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/infra/postgres"
	redisinfra "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/logger"
	transport "quiz-session-service/internal/transport/http"
	"quiz-session-service/internal/worker"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, *port)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, portFlag string) error {
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
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
		defer redisClient.Close()
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
		err  error
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = postgres.Open(cfg.Postgres.URL)
		defer db.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	} else {
		store = memory.NewSessionStore()
	}

	g, gctx := errgroup.WithContext(ctx)

	var results app.ResultSink
	switch {
	case redisClient != nil && db != nil:
		queueKey := cfg.Worker.Queue
		if queueKey == "" {
			queueKey = redisinfra.DefaultResultQueue
		}
		queue := redisinfra.NewResultQueue(redisClient, queueKey)
		results = queue
		w := worker.NewAttemptWorker(queue, postgres.NewAttemptStore(db), worker.Options{
			BatchSize:    cfg.Worker.BatchSize,
			BatchTimeout: config.TTLDuration(cfg.Worker.BatchTimeout, 0),
		}, log)
		g.Go(func() error { return w.Start(gctx) })
	case db != nil:
		results = postgres.NewAttemptStore(db)
	default:
		results = memory.NewResultLog(log)
	}

	service := app.NewQuizService(store, quizRepo, results, app.ServiceOptions{
		SecondsPerQuestion: cfg.Session.SecondsPerQuestion,
		TickInterval:       config.TTLDuration(cfg.Session.TickInterval, time.Second),
	}, log)
	defer service.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, log).ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting quiz session service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sampleQuizzes seeds the server when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Warm-up",
			Description: "A short arithmetic and geography check.",
			Questions: []domain.Question{
				{
					ID:                 "q1",
					Content:            "What is 2 + 2?",
					Options:            []string{"3", "4", "5"},
					CorrectAnswerIndex: 1,
					Explanation:        "Two pairs make four.",
				},
				{
					ID:                 "q2",
					Content:            "Which city is the capital of France?",
					Options:            []string{"Lyon", "Marseille", "Paris", "Nice"},
					CorrectAnswerIndex: 2,
					Explanation:        "Paris has been the capital since the 10th century.",
				},
			},
		},
	}
}
