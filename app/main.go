package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/api"
	"github.com/lysyi3m/bulletin-comb/app/auth"
	"github.com/lysyi3m/bulletin-comb/app/cfg"
	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/document"
	"github.com/lysyi3m/bulletin-comb/app/llm"
	"github.com/lysyi3m/bulletin-comb/app/lock"
	"github.com/lysyi3m/bulletin-comb/app/pipeline"
	"github.com/lysyi3m/bulletin-comb/app/source"
	"github.com/lysyi3m/bulletin-comb/app/tasks"
)

func main() {
	appConfig, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appConfig == nil {
		return
	}

	setupLogger(appConfig.Debug)

	if err := run(appConfig); err != nil {
		slog.Error("Bulletin Comb stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(appConfig *cfg.Cfg) error {
	slog.Info("Starting Bulletin Comb", "version", appConfig.Version)

	db, err := database.Open(appConfig.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	registry := source.NewRegistry(appConfig.SourcesDir)
	if err := registry.Run(); err != nil {
		return fmt.Errorf("failed to load source definitions: %w", err)
	}
	slog.Info("Source definitions loaded", "dir", appConfig.SourcesDir, "count", registry.Count())

	sourceRepo := database.NewSourceRepository(db)
	eventRepo := database.NewEventRepository(db)
	runRepo := database.NewRunRepository(db)

	llmClient, err := llm.NewClient(llm.Options{
		Provider:         appConfig.LLMProvider,
		OpenAIAPIKey:     appConfig.OpenAIAPIKey,
		OpenAIModel:      appConfig.OpenAIModel,
		OpenAIBaseURL:    appConfig.OpenAIBaseURL,
		AnthropicAPIKey:  appConfig.AnthropicAPIKey,
		AnthropicModel:   appConfig.AnthropicModel,
		AnthropicBaseURL: appConfig.AnthropicBaseURL,
		MaxTokens:        appConfig.LLMMaxTokens,
	})
	if err != nil {
		return err
	}
	extractor := llm.NewExtractor(llmClient, appConfig.LLMMaxRetries, appConfig.LLMRetryBackoff, appConfig.LLMTimeout)
	slog.Info("LLM provider configured", "provider", extractor.Provider())

	locker, closeLocker, err := newLocker(appConfig)
	if err != nil {
		return err
	}
	defer closeLocker()

	orchestrator := pipeline.New(pipeline.Dependencies{
		Sources:   sourceRepo,
		Events:    eventRepo,
		Runs:      runRepo,
		Prompts:   registry,
		Documents: document.NewExtractor(appConfig.UserAgent, appConfig.FetchTimeout),
		LLM:       extractor,
		Locker:    locker,
	}, appConfig.RunLockTTL, appConfig.LLMMaxInputChars)

	if closed, err := orchestrator.Reconcile(context.Background()); err != nil {
		slog.Warn("Failed to reconcile runs at startup", "error", err)
	} else if closed > 0 {
		slog.Info("Interrupted runs closed at startup", "count", closed)
	}

	authenticator, err := newAuthenticator(appConfig)
	if err != nil {
		return err
	}

	scheduler := tasks.NewScheduler(registry, sourceRepo, eventRepo, runRepo, orchestrator, tasks.Settings{
		Interval:         appConfig.SchedulerInterval,
		WorkerCount:      appConfig.WorkerCount,
		TaskTimeout:      appConfig.MaxRunDuration() + time.Minute,
		LogRetentionDays: appConfig.LogRetentionDays,
		StaleAfterDays:   appConfig.StaleAfterDays,
	})
	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "interval", appConfig.SchedulerInterval)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.Dependencies{
		Sources:   sourceRepo,
		Events:    eventRepo,
		Runs:      runRepo,
		Registry:  registry,
		Runner:    orchestrator,
		Scheduler: scheduler,
		Store:     document.NewStore(appConfig.UploadsDir, appConfig.MaxUploadBytes()),
		Auth:      authenticator,
		DB:        db,
	}, baseURL(appConfig), appConfig.Version)

	router := api.NewServer(handler, api.ServerOptions{
		RateLimitRPS:   appConfig.RateLimitRPS,
		RateLimitBurst: appConfig.RateLimitBurst,
		Debug:          appConfig.Debug,
	})

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: appConfig.MaxRunDuration() + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port, "admin_enabled", authenticator != nil)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// newLocker uses Redis when an address is configured so several instances
// share run locks.
func newLocker(appConfig *cfg.Cfg) (lock.Locker, func(), error) {
	if appConfig.RedisAddr == "" {
		slog.Info("Using in-process run lock")
		return lock.NewMemoryLocker(), func() {}, nil
	}

	redisLocker, err := lock.NewRedisLocker(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Using Redis run lock", "addr", appConfig.RedisAddr)

	return redisLocker, func() {
		if err := redisLocker.Close(); err != nil {
			slog.Warn("Failed to close Redis connection", "error", err)
		}
	}, nil
}

func newAuthenticator(appConfig *cfg.Cfg) (*auth.Authenticator, error) {
	if !appConfig.AdminEnabled() {
		slog.Warn("No admin password configured, admin API disabled")
		return nil, nil
	}

	hash := appConfig.AdminPasswordHash
	if hash == "" {
		hashed, err := auth.HashPassword(appConfig.AdminPassword)
		if err != nil {
			return nil, err
		}
		hash = hashed
	}

	return auth.New(appConfig.AdminUsername, hash, appConfig.JWTSecret, appConfig.JWTTTL), nil
}

func baseURL(appConfig *cfg.Cfg) string {
	if appConfig.BaseUrl != "" {
		return strings.TrimSuffix(appConfig.BaseUrl, "/")
	}
	return "http://localhost:" + appConfig.Port
}
