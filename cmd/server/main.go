package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bizportal/internal/api"
	"bizportal/internal/audit"
	"bizportal/internal/config"
	"bizportal/internal/db"
	"bizportal/internal/logging"
	"bizportal/internal/notify"
	"bizportal/internal/permission"
	"bizportal/internal/service"
	"bizportal/internal/store"
	"bizportal/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	sqdb, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBPath, db.Pool{
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("open db", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer sqdb.Close()
	migration := db.MigrationPathFor(cfg.MigrationPath, cfg.DBDriver)
	if err := db.ApplyMigrationFile(sqdb, migration); err != nil {
		logger.Fatal("migration", zap.String("path", migration), zap.Error(err))
	}

	st := store.New(sqdb, cfg.DBDriver)
	if err := service.EnsureBootstrapAdmin(context.Background(), cfg, st, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	auditLog := audit.NewLogger(st, logger.Named("audit"))
	sender := notify.NewSender(cfg, logger.Named("notify"))
	forms := service.NewQuestionnaireService(st, auditLog)

	deps := api.Deps{
		Auth:           service.NewAuthService(cfg, st, permission.NewResolver(st), auditLog, logger.Named("auth")),
		Activity:       service.NewActivityService(st),
		Questionnaires: forms,
		Submissions:    service.NewSubmissionService(forms, st, sender, auditLog, logger.Named("submissions")),
		DB:             st,
		Log:            logger.Named("http"),
	}
	if smtp, ok := sender.(notify.SMTPSender); ok {
		deps.SMTPProbe = smtp.Probe
	}

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg, deps),
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("notify_sender", cfg.NotifySender),
			zap.String("version", version.Current().Version),
		)
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hsrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
