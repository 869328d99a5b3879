package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/classpoll/backend/internal/config"
	"github.com/classpoll/backend/internal/gateway"
	"github.com/classpoll/backend/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord := session.NewCoordinator(session.Config{
		TickInterval: time.Duration(cfg.Poll.TickSeconds) * time.Second,
		QueueSize:    cfg.Poll.CommandQueue,
	}, clockwork.NewRealClock())
	go coord.Run(ctx)

	gwCfg := gateway.DefaultConfig()
	gwCfg.ReadTimeout = time.Duration(cfg.Gateway.ReadTimeoutSec) * time.Second
	gwCfg.WriteTimeout = time.Duration(cfg.Gateway.WriteTimeoutSec) * time.Second
	gwCfg.PingInterval = time.Duration(cfg.Gateway.PingIntervalSec) * time.Second
	gwCfg.MaxMessageSize = cfg.Gateway.MaxMessageBytes
	gwCfg.SendBufferSize = cfg.Gateway.SendBufferSize
	handler := gateway.NewHandler(coord, gwCfg)

	srv := setupServer(cfg, handler)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	handler.Registry().CloseAll()
}

func setupServer(cfg *config.Config, handler *gateway.Handler) *http.Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	setupHealthCheck(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: splitOrigins(cfg.Server.CORSAllowedOrigins),
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
