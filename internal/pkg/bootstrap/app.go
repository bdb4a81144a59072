package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"orderflow/internal/pkg/config"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/tracing"
)

// AppCtx is handed to the service's route registration hook.
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
}

// AppInfo describes one service to start.
type AppInfo struct {
	ConfigPath       string
	RegisterHandlers func(appCtx AppCtx)
	OnShutdown       func(ctx context.Context)
}

// StartService runs the shared startup and graceful-shutdown sequence: config,
// logger, tracer, HTTP server, then teardown in reverse on SIGINT/SIGTERM.
func StartService(info AppInfo) {
	cfg, err := config.Load(info.ConfigPath)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.ServiceName, cfg.App.LogLevel)

	tp, err := tracing.InitTracerProvider(cfg.App.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.App.Port), Handler: mux}
	go func() {
		logger.Logger().Info().Msgf("%s listening on %s", cfg.App.ServiceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger().Info().Msgf("shutting down %s", cfg.App.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down http server")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down tracer provider")
	}
	logger.Logger().Info().Msgf("%s stopped", cfg.App.ServiceName)
}
