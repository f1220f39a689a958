package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YannKr/jpegforensics"
	"github.com/YannKr/jpegforensics/internal/auth"
	"github.com/YannKr/jpegforensics/internal/cleanup"
	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/config"
	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/diskstat"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/handler"
	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/sse"
	"github.com/YannKr/jpegforensics/internal/webhook"
	"github.com/YannKr/jpegforensics/internal/worker"
)

func Run(ctx context.Context, cfg *config.Config) error {
	scratchDir := filepath.Join(cfg.DataDir, "scratch")

	// Ensure data directories exist
	for _, dir := range []string{cfg.DataDir, filepath.Join(cfg.DataDir, "uploads"), filepath.Join(cfg.DataDir, "analyses"), scratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if n, err := db.RequeueRunning(database); err != nil {
		return fmt.Errorf("requeue interrupted analyses: %w", err)
	} else if n > 0 {
		slog.Info("requeued interrupted analyses", "count", n)
	}

	c, err := codec.New(cfg.Codec, cfg.MagickPath)
	if err != nil {
		return err
	}
	if m, ok := c.(codec.MagickCodec); ok && !m.Available() {
		return fmt.Errorf("codec %q selected but %s is not installed", cfg.Codec, m.Path)
	}
	analyzer := forensics.NewAnalyzer(c, scratchDir)

	notifier := webhook.New(cfg.WebhookURL, cfg.WebhookSecret)
	if notifier != nil {
		slog.Info("webhook enabled", "url", cfg.WebhookURL)
		defer notifier.Wait()
	}

	// Create SSE hub for real-time updates
	sseHub := sse.New()

	// Start cleanup scheduler
	cleaner := &cleanup.Cleaner{
		DB:         database,
		Hub:        sseHub,
		DataDir:    cfg.DataDir,
		ScratchDir: scratchDir,
		Retention:  time.Duration(cfg.RetentionHours) * time.Hour,
		Interval:   time.Duration(cfg.CleanupIntervalMins) * time.Minute,
	}
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// Start worker pool
	pool := worker.NewPool(database, cfg, analyzer, notifier, sseHub)
	pool.Start(ctx)
	defer pool.Stop()

	templateFS, err := fs.Sub(jpegforensics.TemplateFS, "templates")
	if err != nil {
		return err
	}
	staticFS, err := fs.Sub(jpegforensics.StaticFS, "static")
	if err != nil {
		return err
	}

	// Pages: 2 requests/sec, burst of 20. API: 2 requests/sec, burst of 60.
	webRL := handler.NewRateLimiter(2.0, 20)
	defer webRL.Stop()
	apiRL := handler.NewRateLimiter(2.0, 60)
	defer apiRL.Stop()

	// Start disk stats cache
	diskCache := diskstat.New(cfg.DataDir, 60*time.Second)
	diskCache.Start()
	defer diskCache.Stop()

	h := handler.New(database, cfg, templateFS, sseHub, diskCache)
	router := h.Routes(staticFS, webRL, apiRL)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL, "codec", c.Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, jpegforensics.MigrationFS); err != nil {
		database.Close()
		return nil, err
	}
	slog.Info("database ready")
	return database, nil
}

// CreateAPIKey issues a new API key named name and returns it. The key
// itself is not stored and cannot be shown again.
func CreateAPIKey(cfg *config.Config, name string) (string, error) {
	database, err := openDB(cfg)
	if err != nil {
		return "", err
	}
	defer database.Close()

	key, prefix, hash, err := auth.NewAPIKey()
	if err != nil {
		return "", err
	}
	k := &model.APIKey{ID: uuid.New().String(), Name: name, KeyPrefix: prefix, KeyHash: hash}
	if err := db.CreateAPIKey(database, k); err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return key, nil
}
