package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"live-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
	Redis    Redis
	Security Security
	Game     Game
}

// Postgres captures connection info for the question bank database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds session store + cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing presenter tokens.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL" envDefault:"8h"`
}

// Game groups gameplay defaults.
type Game struct {
	FeedbackDelay          time.Duration `env:"FEEDBACK_DELAY" envDefault:"3s"`
	JoinCodeAttempts       int           `env:"JOIN_CODE_ATTEMPTS" envDefault:"10"`
	QuestionLimit          int           `env:"QUESTION_FETCH_LIMIT" envDefault:"20"`
	QuestionCacheTTL       time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"5m"`
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	DefaultTimePerQuestion int           `env:"DEFAULT_TIME_PER_QUESTION" envDefault:"30"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
