package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/config"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: implement proper origin checking for production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionRoutes carries the session endpoints as plain handler funcs so this
// package does not depend on the game package (which imports WSUpgrader).
type SessionRoutes struct {
	Create       http.HandlerFunc
	Lookup       http.HandlerFunc
	Get          http.HandlerFunc
	Start        http.HandlerFunc
	Pause        http.HandlerFunc
	Resume       http.HandlerFunc
	Finish       http.HandlerFunc
	SubmitAnswer http.HandlerFunc
	WebSocket    http.HandlerFunc
}

// NewHTTPServer wires base routes (health, metrics) plus the session API.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, sessions SessionRoutes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	// Session endpoints
	if sessions.Create != nil {
		mux.HandleFunc("POST /v1/sessions", sessions.Create)
		mux.HandleFunc("GET /v1/sessions/lookup", sessions.Lookup)
		mux.HandleFunc("GET /v1/sessions/{id}", sessions.Get)
		mux.HandleFunc("POST /v1/sessions/{id}/start", sessions.Start)
		mux.HandleFunc("POST /v1/sessions/{id}/pause", sessions.Pause)
		mux.HandleFunc("POST /v1/sessions/{id}/resume", sessions.Resume)
		mux.HandleFunc("POST /v1/sessions/{id}/finish", sessions.Finish)
		mux.HandleFunc("POST /v1/sessions/{id}/answers", sessions.SubmitAnswer)
	}

	// WebSocket endpoint
	if sessions.WebSocket != nil {
		mux.HandleFunc("/ws/sessions", sessions.WebSocket)
	} else {
		mux.HandleFunc("/ws/sessions", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "WebSocket handler not yet integrated", http.StatusNotImplemented)
		})
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if err := redis.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}
