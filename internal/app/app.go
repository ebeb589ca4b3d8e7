package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/auth"
	"github.com/classkit/live-quiz/internal/config"
	"github.com/classkit/live-quiz/internal/db/repository"
	"github.com/classkit/live-quiz/internal/game"
	"github.com/classkit/live-quiz/internal/logging"
	"github.com/classkit/live-quiz/internal/question"
	"github.com/classkit/live-quiz/internal/server"
	"github.com/classkit/live-quiz/internal/store/redisstore"
	ws "github.com/classkit/live-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	http    *http.Server
	gameSvc *game.Service
}

// New bootstraps configs, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := auth.NewManager(auth.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	})

	// Question bank: Postgres source behind a Redis read-through cache.
	questionRepo := repository.NewQuestionRepository(pool)
	questionCache := question.NewCache(redisClient, cfg.Game.QuestionCacheTTL)
	questionSvc := question.NewService(questionRepo, questionCache, logger)

	sessionStore := redisstore.NewStore(redisClient, cfg.Game.SessionTTL, logger)

	gameSvc := game.NewService(sessionStore, questionSvc, game.ServiceOptions{
		FeedbackDelay:    cfg.Game.FeedbackDelay,
		JoinCodeAttempts: cfg.Game.JoinCodeAttempts,
		QuestionLimit:    cfg.Game.QuestionLimit,
	}, logger)

	wsHub := ws.NewHub(logger)
	httpHandlers := game.NewHTTPHandlers(gameSvc, tokens, logger)
	wsHandler := game.NewWSHandler(gameSvc, wsHub, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.SessionRoutes{
		Create:       httpHandlers.CreateSession,
		Lookup:       httpHandlers.LookupSession,
		Get:          httpHandlers.GetSession,
		Start:        httpHandlers.Lifecycle("start"),
		Pause:        httpHandlers.Lifecycle("pause"),
		Resume:       httpHandlers.Lifecycle("resume"),
		Finish:       httpHandlers.Lifecycle("finish"),
		SubmitAnswer: httpHandlers.SubmitAnswer,
		WebSocket:    wsHandler.HandleWebSocket,
	})

	return &Application{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		redis:   redisClient,
		http:    apiServer,
		gameSvc: gameSvc,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.gameSvc.Close()
	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
