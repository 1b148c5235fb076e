package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"warbler/internal/config"
	"warbler/internal/core"
	"warbler/internal/db"
	"warbler/internal/http/handler"
	"warbler/internal/http/handler/middleware"
	"warbler/internal/http/payload"
	"warbler/internal/http/server"
	"warbler/internal/http/view"
	"warbler/internal/metrics"
	"warbler/internal/repository"
	"warbler/internal/session"
	"warbler/pkg/jwt"
	"warbler/pkg/log"

	"go.uber.org/zap/zapcore"
)

func Start() error {
	config, err := config.NewAppConfig()
	if err != nil {
		log.NewZapLogger("warbler", zapcore.InfoLevel).Errorw("failed to create config", "error", err)
		return err
	}

	logger := log.NewZapLogger("warbler", log.ParseLevel(config.LogLevel))
	defer func() { _ = logger.Sync() }()

	dbConn, err := openDB(config)
	if err != nil {
		logger.Errorw("failed to connect to database", "error", err, "driver", config.DBDriver)
		return err
	}
	defer dbConn.Close()

	// repository
	repo := repository.NewWarblerRepository(dbConn)
	if err = repo.Migrate(); err != nil {
		logger.Errorw("failed to migrate tables to database", "error", err)
		return err
	}

	// jwt service
	jwtService := jwt.NewJWTService([]byte(config.JWTSecret))

	// warbler
	warbler := core.NewWarbler(logger, repo, jwtService, config.BcryptCost)

	if config.SeedDemoData {
		if err = warbler.SeedDemo(context.Background()); err != nil {
			logger.Errorw("failed to seed demo data", "error", err)
			return err
		}
	}

	renderer, err := view.NewRenderer()
	if err != nil {
		logger.Errorw("failed to parse templates", "error", err)
		return err
	}

	sessions := session.NewManager([]byte(config.SessionSecret), config.SessionSecure)
	appMetrics := metrics.New()

	// handler
	warblerHlr := handler.NewWarblerHandler(
		logger,
		payload.DecodeValidator{},
		warbler,
		sessions,
		renderer,
		appMetrics)

	// middleware
	router := handler.NewRouter(warblerHlr, appMetrics.Handler(),
		middleware.NewLoggingMiddleware(logger, appMetrics).Logging,
		middleware.NewCurrentUserMiddleware(logger, sessions, warbler).LoadUser)
	hdlr := middleware.NewRequestIDMiddleware().RequestID(router)

	srv := server.NewHTTP(logger, hdlr, config.Port)
	return run(srv)
}

func openDB(cfg config.App) (*db.GormDB, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return db.NewSQLiteDB(cfg.DBConnectionURL)
	default:
		return db.NewPostgresDB(cfg.DBConnectionURL)
	}
}

func run(server *server.HTTPServer) error {
	// expect a signal to gracefully shutdown the server
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := server.Run()

	var err error
	select {
	case <-sig:
	case err = <-errChan:
	}

	sdErr := server.Shutdown()
	if sdErr != nil && (err == nil || errors.Is(err, http.ErrServerClosed)) {
		return fmt.Errorf("server shutdown: %w", sdErr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
