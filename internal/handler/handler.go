package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/YannKr/jpegforensics/internal/config"
	"github.com/YannKr/jpegforensics/internal/diskstat"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/sse"
)

type Handler struct {
	DB        *sql.DB
	Cfg       *config.Config
	SSE       *sse.Hub
	Disk      *diskstat.Cache
	templates map[string]*template.Template
}

func New(database *sql.DB, cfg *config.Config, templateFS fs.FS, sseHub *sse.Hub, disk *diskstat.Cache) *Handler {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04 UTC")
		},
		"formatTimePtr": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02 15:04 UTC")
		},
		"shortenID": func(id string) string {
			if len(id) > 8 {
				return id[:8]
			}
			return id
		},
		"formatStat": func(v float64) string {
			return fmt.Sprintf("%.4g", v)
		},
		"stateBadge": func(state string) template.HTML {
			class := "badge"
			switch state {
			case model.StatePending:
				class += " badge-blue"
			case model.StateRunning:
				class += " badge-yellow"
			case model.StateCompleted:
				class += " badge-green"
			case model.StateFailed:
				class += " badge-red"
			}
			return template.HTML(fmt.Sprintf(`<span class="%s">%s</span>`, class, template.HTMLEscapeString(state)))
		},
	}

	// Parse layout template as the base
	layoutTmpl := template.Must(
		template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "layout.html"),
	)

	// Build per-page template sets: clone layout + parse page
	templates := make(map[string]*template.Template)
	entries, err := fs.ReadDir(templateFS, ".")
	if err != nil {
		panic("read template dir: " + err.Error())
	}
	for _, e := range entries {
		name := e.Name()
		if name == "layout.html" || e.IsDir() {
			continue
		}
		t := template.Must(template.Must(layoutTmpl.Clone()).ParseFS(templateFS, name))
		templates[name] = t
	}

	return &Handler{
		DB:        database,
		Cfg:       cfg,
		SSE:       sseHub,
		Disk:      disk,
		templates: templates,
	}
}

type PageData struct {
	Title     string
	Flash     string
	Error     string
	CSRFField template.HTML
	Data      interface{}
}

// AlgorithmChoice is one entry of the upload form's algorithm selector.
type AlgorithmChoice struct {
	Value string
	Label string
}

var algorithmChoices = []AlgorithmChoice{
	{string(forensics.AlgoAll), "All analyses"},
	{string(forensics.AlgoGhostSweep), "JPEG ghost sweep"},
	{string(forensics.AlgoGhost), "JPEG ghost (single quality)"},
	{string(forensics.AlgoELA), "Error level analysis"},
	{string(forensics.AlgoNoise), "Wavelet noise inconsistency"},
	{string(forensics.AlgoMedianNoise), "Median noise residue"},
	{string(forensics.AlgoCFA), "CFA artifacts"},
}

func (h *Handler) render(w http.ResponseWriter, name string, data PageData) {
	t, ok := h.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.Error("render template", "name", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode json response", "error", err)
	}
}

func renderJSONError(w http.ResponseWriter, status int, code, message string) {
	renderJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
