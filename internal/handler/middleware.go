package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/YannKr/jpegforensics/internal/auth"
	"github.com/YannKr/jpegforensics/internal/db"
)

func bearerKey(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// requireAPIAuth admits requests carrying a valid "Bearer jf_..." key.
func (h *Handler) requireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := bearerKey(r)
		if !ok {
			renderJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key")
			return
		}
		id, ok := h.validateAPIKey(key)
		if !ok {
			renderJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAPIKey(r.Context(), id)))
	})
}

func (h *Handler) validateAPIKey(key string) (string, bool) {
	prefix, ok := auth.SplitPrefix(key)
	if !ok {
		return "", false
	}

	apiKey, err := db.GetAPIKeyByPrefix(h.DB, prefix)
	if err != nil {
		slog.Error("lookup api key", "error", err)
		return "", false
	}
	if apiKey == nil || !auth.CheckPassword(apiKey.KeyHash, key) {
		return "", false
	}

	// Update last used timestamp
	go db.TouchAPIKeyUsed(h.DB, apiKey.ID)

	return apiKey.ID, true
}

// apiRateLimit limits API calls per key, falling back to the client IP
// before authentication has happened.
func (h *Handler) apiRateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if k, ok := bearerKey(r); ok {
				if prefix, ok := auth.SplitPrefix(k); ok {
					key = prefix
				}
			}
			if !rl.Get(key).Allow() {
				w.Header().Set("Retry-After", rl.retryAfter())
				renderJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireDiskSpace refuses new uploads once free space on DATA_DIR falls to
// the configured block threshold.
func (h *Handler) requireDiskSpace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Disk != nil && h.Disk.Get().Blocked(h.Cfg.DiskBlockPct) {
			slog.Warn("upload refused: low disk space", "pct_free", h.Disk.Get().PctFree())
			if strings.HasPrefix(r.URL.Path, "/api/") {
				renderJSONError(w, http.StatusInsufficientStorage, "INSUFFICIENT_STORAGE", "server is low on disk space")
				return
			}
			http.Error(w, "Server is low on disk space", http.StatusInsufficientStorage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
