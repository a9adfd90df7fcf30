package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	pgstore "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/worker"
)

func TestSessionResultPersistedEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	db := pgstore.Open(pgURL)
	defer db.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, pgstore.NewQuizLoader(pool), 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	queue := infraredis.NewResultQueue(redisClient, infraredis.DefaultResultQueue)
	attempts := pgstore.NewAttemptStore(db)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	w := worker.NewAttemptWorker(queue, attempts, worker.Options{BatchSize: 1}, zerolog.Nop())
	go func() { _ = w.Start(workerCtx) }()

	service := app.NewQuizService(sessionStore, quizRepo, queue, app.ServiceOptions{
		NewTicker: func() app.TickSource { return app.NewManualTicker() },
	}, zerolog.Nop())
	defer service.Close()

	view, err := service.Begin(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, view.SessionID, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Next(ctx, view.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, view.SessionID, 0); err != nil {
		t.Fatalf("select: %v", err)
	}
	res, err := service.Submit(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 50 || res.Forced {
		t.Fatalf("unexpected result %+v", res)
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		stored, err := attempts.ListByUser(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("list attempts: %v", err)
		}
		if len(stored) == 1 {
			if stored[0].ID != res.ID || stored[0].Score != 50 || !stored[0].Answers[1].Is(0) {
				t.Fatalf("stored attempt mismatch: %+v", stored[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("attempt not persisted, found %d", len(stored))
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	db := pgstore.Open(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Integration",
		Questions: []domain.Question{
			{ID: "q1", Content: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswerIndex: 1},
			{ID: "q2", Content: "What is 3 + 3?", Options: []string{"5", "6"}, CorrectAnswerIndex: 1},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
