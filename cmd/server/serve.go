package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KennethHeine/chat-ai/internal/app"
	"github.com/KennethHeine/chat-ai/internal/config"
	"github.com/KennethHeine/chat-ai/internal/logger"

	"github.com/spf13/cobra"
)

var serveFlags struct {
	configFile string
	port       string
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "start"},
	Short:   "Start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(serveFlags.configFile)
		if err != nil {
			return err
		}
		if serveFlags.port != "" {
			cfg.Port = serveFlags.port
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}

		logger.Init(cfg.LogLevel)
		logger.Debug("configuration loaded", map[string]any{"config": cfg.String()})

		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configFile, "config", "c", "", "path to a config file (yaml, json or toml)")
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "port to listen on, overrides PORT")
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(
		parent,
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	logger.Info("chat-ai started", map[string]any{
		"port":    cfg.Port,
		"env":     cfg.AppEnv,
		"backend": cfg.SessionBackend,
		"version": version,
	})

	select {
	case <-ctx.Done(): // wait for Ctrl+C
		logger.Info("shutdown signal received", nil)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", map[string]any{
				"error": err.Error(),
			})
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	logger.Info("chat-ai stopped cleanly", nil)
	return nil
}
