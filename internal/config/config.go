package config

import (
	"os"
	"strconv"
)

type Config struct {
	ListenAddr     string
	DataDir        string
	BaseURL        string
	SessionSecret  string // CSRF key for the HTML forms
	MaxUploadBytes int64
	WorkerCount    int
	LogLevel       string

	Codec      string // "go" or "magick"
	MagickPath string

	RetentionHours      int
	CleanupIntervalMins int
	RenderWidth         int // heatmap width in pixels, 0 keeps map resolution
	DiskBlockPct        float64

	WebhookURL    string
	WebhookSecret string
}

func Load() *Config {
	return &Config{
		ListenAddr:          envOr("LISTEN_ADDR", ":8080"),
		DataDir:             envOr("DATA_DIR", "./data"),
		BaseURL:             envOr("BASE_URL", "http://localhost:8080"),
		SessionSecret:       envOr("SESSION_SECRET", "change-me-in-production-32-bytes!"),
		MaxUploadBytes:      envInt64Or("MAX_UPLOAD_BYTES", 64*1024*1024),
		WorkerCount:         envIntOr("WORKER_COUNT", 2),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		Codec:               envOr("CODEC", "go"),
		MagickPath:          envOr("MAGICK_PATH", "magick"),
		RetentionHours:      envIntOr("RETENTION_HOURS", 72),
		CleanupIntervalMins: envIntOr("CLEANUP_INTERVAL_MINS", 30),
		RenderWidth:         envIntOr("RENDER_WIDTH", 768),
		DiskBlockPct:        envFloatOr("DISK_BLOCK_PCT", 2),
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
