package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/config"
	"github.com/Longhodac/anirec/internal/logger"
	"github.com/Longhodac/anirec/internal/metrics"
	"github.com/Longhodac/anirec/internal/pipeline"
	chiTransport "github.com/Longhodac/anirec/internal/transport/chi"
	"github.com/Longhodac/anirec/internal/tui"
	"github.com/Longhodac/anirec/internal/version"
)

func main() {
	_ = godotenv.Load()

	var (
		serve   bool
		rebuild bool
	)
	flag.BoolVar(&serve, "serve", false, "run the HTTP API instead of the interactive shell")
	flag.BoolVar(&rebuild, "rebuild", false, "force re-normalization and re-embedding of the catalog")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.New(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting anirec",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Bool("serve", serve),
		zap.Bool("rebuild", rebuild),
	)

	metrics.RegisterPipelineMetrics()

	// Init-once pipeline handle; construction normalizes and embeds the
	// catalog when no persisted index exists, so it can take a while.
	handle := pipeline.NewHandle(func(ctx context.Context) (*pipeline.Pipeline, error) {
		return pipeline.New(ctx, cfg, pipeline.Options{Rebuild: rebuild}, log)
	})

	ctx := context.Background()
	p, err := handle.Get(ctx)
	if err != nil {
		log.Fatal("failed to construct pipeline", zap.Error(err))
	}
	log.Info("pipeline ready", zap.Int("documents", p.IndexSize()))

	if serve {
		runServer(cfg, p, log)
		return
	}
	runShell(p, log)
}

func runShell(p *pipeline.Pipeline, log *zap.Logger) {
	status := fmt.Sprintf("Indexed %d titles. Enter your anime preference.", p.IndexSize())
	m := tui.New(p, status)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal("shell exited", zap.Error(err))
	}
}

func runServer(cfg config.Config, p *pipeline.Pipeline, log *zap.Logger) {
	server := chiTransport.NewServer(p, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
