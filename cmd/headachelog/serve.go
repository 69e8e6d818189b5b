package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
	"github.com/headachelog/internal/db"
	"github.com/headachelog/internal/handler"
	"github.com/headachelog/internal/localstore"
	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/router"
	"github.com/headachelog/internal/service"
)

func addServe(topLevel *cobra.Command, cfg *config.AppConfig) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Example: `
headachelog serve --addr :8080
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	topLevel.AddCommand(cmd)
}

func serve(parent context.Context, cfg config.AppConfig) error {
	logger := logging.New(os.Stderr, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	gdb, err := db.Init(db.Options{DatabasePath: cfg.DatabasePath, DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	created, err := db.EnsureUser(gdb, cfg.InitUserEmail, cfg.InitUserPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info("initial account created", "email", db.NormalizeEmail(cfg.InitUserEmail))
	}

	factory := service.StoreBackendFactory{DB: gdb, Local: localstore.Open(cfg.LocalStorePath)}
	sessions := service.NewSessionManager(factory, service.AutoSaveOptions{
		Delay:     cfg.AutoSaveDelay,
		TextDelay: cfg.AutoSaveTextDelay,
		Logger:    logger,
	}, cfg.SessionIdleTimeout)

	api := handler.NewAPI(handler.Deps{
		DB:        gdb,
		Sessions:  sessions,
		Analysis:  service.NewAnalysisService(cfg.AnalysisProxyURL, nil, logger),
		Anthropic: service.NewAnthropicClient(cfg.AnthropicBaseURL, cfg.AnthropicModel, logger),
		Logger:    logger,
	})
	r := router.SetupRouter(api, cfg.SessionSecret, logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go sessions.RunJanitor(ctx, time.Minute)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	case <-parent.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	// 进程退出前把所有会话里待写的修改落盘
	sessions.CloseAll(shutdownCtx)

	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
