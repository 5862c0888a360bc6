package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pymata-gateway/config"
	"pymata-gateway/internal/api"
	"pymata-gateway/internal/app"
	"pymata-gateway/internal/discovery"
	"pymata-gateway/internal/firmata"
	"pymata-gateway/internal/metric"
	"pymata-gateway/internal/model"
	"pymata-gateway/internal/repo"
	"pymata-gateway/internal/transport/ws"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// 1. Repository
	var r repo.Repository
	if cfg.DBPath != "" {
		logger.Info("opening session journal", "path", cfg.DBPath)
		sq, err := repo.NewSQLiteRepo(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize repository: %w", err)
		}
		defer sq.Close()
		r = sq
	}

	// 2. Device
	dial := firmata.SerialDialer(cfg.Comport, cfg.Baud, cfg.PollInterval())
	if cfg.Comport == config.ComportSimulator {
		logger.Info("using built-in board simulator")
		dial = firmata.NewSimulator().Dial
	}
	board := firmata.NewBoard(dial, firmata.Config{
		Wait:         cfg.WaitDuration(),
		QueryTimeout: cfg.QueryTimeout,
	}, logger)

	// 3. Application service
	metrics := metric.New()
	svc := app.NewService(board, r, metrics, logger)

	// 4. HTTP and WebSocket
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	wsServer := ws.NewServer(svc, cfg.WriteTimeout, logger)
	api.NewHandler(svc, wsServer).SetupRoutes(engine)

	srv := &http.Server{Addr: cfg.Addr(), Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.Addr(), "version", model.Version)
		errCh <- srv.ListenAndServe()
	}()

	// 5. Discovery
	if cfg.MDNS {
		adv := discovery.NewAdvertiser(cfg.MDNSName, logger)
		if err := adv.Start(cfg.Port); err != nil {
			logger.Warn("mdns disabled", "err", err)
		} else {
			defer adv.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown", "err", err)
	}
	if err := board.Shutdown(shutdownCtx); err != nil {
		logger.Warn("board shutdown", "err", err)
	}
	return nil
}
