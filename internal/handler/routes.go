package handler

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/YannKr/jpegforensics/internal/auth"
)

func (h *Handler) Routes(staticFS fs.FS, webRL, apiRL *RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	csrfProtect := csrf.Protect(
		[]byte(h.Cfg.SessionSecret),
		csrf.Secure(strings.HasPrefix(h.Cfg.BaseURL, "https")),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)
	r.Use(func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "+auth.KeyPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	})

	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.FS(staticFS))))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// JSON REST API v1: Bearer API key auth, separate rate limiter
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.apiRateLimit(apiRL))
		r.Use(h.requireAPIAuth)

		r.With(h.requireDiskSpace).Post("/analyses", h.APIAnalysisSubmit)
		r.Get("/analyses/{id}", h.APIAnalysisGet)
		r.Get("/analyses/{id}/maps/{name}", h.APIAnalysisMap)
		r.Get("/analyses/{id}/raw/{name}", h.APIAnalysisRaw)
		r.Get("/analyses/{id}/ela", h.APIAnalysisELA)
	})

	r.Group(func(r chi.Router) {
		r.Use(webRL.Middleware)

		r.Get("/", h.Index)
		r.With(h.requireDiskSpace).Post("/analyses", h.AnalysisSubmit)
		r.Get("/analyses/{id}", h.AnalysisDetail)
		r.Get("/analyses/{id}/maps/{name}", h.AnalysisMap)
		r.Get("/analyses/{id}/raw/{name}", h.AnalysisRaw)
		r.Get("/analyses/{id}/ela", h.AnalysisELA)
	})

	// Event streams are long-lived and reconnect on their own; keep them out
	// of the page rate limit.
	r.Get("/analyses/{id}/events", h.AnalysisSSE)

	return r
}
