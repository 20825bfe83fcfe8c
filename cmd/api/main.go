package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"finai.app/internal/config"
	"finai.app/internal/httpapi"
	"finai.app/internal/intent"
	"finai.app/internal/ledger"
	"finai.app/internal/obs"
	"finai.app/internal/store/file"
	"finai.app/internal/store/pg"
	"finai.app/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.AuthSecret != "" {
		// The auth package reads the secret from the environment; keep the
		// viper-resolved value authoritative.
		_ = os.Setenv("FINAI_AUTH_SECRET", cfg.AuthSecret)
	}

	// Storage: Postgres when a DSN is configured, local files otherwise.
	var (
		svc     ledger.Service
		probe   httpapi.ReadyProbe
		cleanup func()
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres store")
		}
		svc = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		cleanup = func() { _ = store.Close() }
	} else {
		store, err := file.Open(cfg.DataPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("open file store")
		}
		svc = store
		cleanup = func() {}
	}
	defer cleanup()

	var oracle intent.Oracle
	if cfg.GeminiAPIKey != "" {
		oracle, err = intent.NewGeminiOracle(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("init gemini oracle")
		}
	} else {
		log.Warn().Msg("no gemini api key configured, assistant endpoints disabled")
	}

	api := httpapi.New(probe, httpapi.Options{
		Ledger:     svc,
		Oracle:     oracle,
		Stream:     stream.New(),
		Version:    version,
		TokenTTL:   cfg.TokenTTL,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // SSE connections stay open
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting finai-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	var grpcSrv = httpapi.NewGRPCServer(probe)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health endpoint up")
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error().Err(err).Msg("grpc serve")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	log.Info().Msg("stopped")
}
