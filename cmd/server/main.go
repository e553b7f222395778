// Package main runs the plaza HTTP server: configuration, storage,
// migrations, and graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/plaza-social/plaza/internal/app"
	"github.com/plaza-social/plaza/internal/app/httpapi"
	"github.com/plaza-social/plaza/internal/app/metrics"
	"github.com/plaza-social/plaza/internal/app/storage/postgres"
	"github.com/plaza-social/plaza/internal/config"
	"github.com/plaza-social/plaza/internal/platform/migrations"
	"github.com/plaza-social/plaza/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load() // allow .env for local runs

	if *configPath == "" {
		*configPath = os.Getenv("PLAZA_CONFIG")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("configure logging")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx := context.Background()

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
		stores.Gateway = postgres.New(db)
		log.Info("storage: postgres")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(stores, log)
	if err != nil {
		return err
	}

	var opts []httpapi.Option
	if cfg.Audit.FilePath != "" {
		opts = append(opts, httpapi.WithAuditSink(cfg.Audit.FilePath))
	}

	var handler http.Handler = httpapi.NewHandler(application, log, opts...)
	handler = metrics.InstrumentHandler(handler)
	handler = httpapi.CORSMiddleware(cfg.CORS.AllowedOrigins)(handler)

	if err := application.Attach(httpapi.NewServer(cfg.Server.Addr, handler, log)); err != nil {
		return err
	}

	if err := application.Start(ctx); err != nil {
		return err
	}
	log.WithField("addr", cfg.Server.Addr).Info("plaza started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.WithField("signal", sig.String()).Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	return application.Stop(shutdownCtx)
}
