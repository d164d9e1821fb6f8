package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accessgov.org/internal/audit"
	"accessgov.org/internal/config"
	"accessgov.org/internal/httpapi"
	"accessgov.org/internal/obs"
)

var version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.App.Env, cfg.App.LogLevel)
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("BUILD_COMMIT"))

	var db *sql.DB
	if cfg.Audit.Store == "postgres" || cfg.DB.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DB.ConnectionString())
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var recordStore audit.RecordStore
	switch cfg.Audit.Store {
	case "file":
		recordStore, err = audit.NewFileStore(cfg.Audit.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("open audit dir")
		}
	default:
		recordStore = audit.NewPGStore(db)
	}

	auditLog := audit.New(recordStore, log,
		audit.WithFlushInterval(cfg.Audit.FlushInterval),
		audit.WithFlushTimeout(cfg.Audit.FlushTimeout),
	)
	auditLog.Start()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, cfg.App.Name, version)
	inner := httpapi.MaxBodyBytes(api.Handler(), 1<<20)
	if cfg.Auth.Secret != "" {
		inner = httpapi.WithActor(inner, cfg.Auth.Secret, cfg.Auth.Issuer)
	}
	handler := httpapi.Logging(log, httpapi.SecurityHeaders(
		httpapi.RateLimit(inner, 20, 10)))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if err := auditLog.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("audit shutdown flush")
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}
