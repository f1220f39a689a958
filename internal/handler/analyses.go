package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/mapfile"
	"github.com/YannKr/jpegforensics/internal/model"
)

const recentLimit = 25

type indexData struct {
	Algorithms []AlgorithmChoice
	Recent     []model.Analysis
	Defaults   map[string]int
}

type analysisData struct {
	Analysis *model.Analysis
	Result   *model.Result
	Done     bool
}

func (h *Handler) indexPage(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	recent, err := db.ListRecentAnalyses(h.DB, recentLimit)
	if err != nil {
		slog.Error("list analyses", "error", err)
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	h.render(w, "index.html", PageData{
		Title:     "JPEG forensics",
		Error:     errMsg,
		CSRFField: csrf.TemplateField(r),
		Data: indexData{
			Algorithms: algorithmChoices,
			Recent:     recent,
			Defaults: map[string]int{
				"BlockSize":  forensics.DefaultBlockSize,
				"SweepStart": forensics.DefaultSweepStart,
				"SweepSteps": forensics.DefaultSweepSteps,
				"SweepStep":  forensics.DefaultSweepStep,
				"ELAQuality": forensics.DefaultELAQuality,
			},
		},
	})
}

// Index - GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.indexPage(w, r, http.StatusOK, "")
}

// AnalysisSubmit - POST /analyses
func (h *Handler) AnalysisSubmit(w http.ResponseWriter, r *http.Request) {
	a, serr := h.submit(w, r, "")
	if serr != nil {
		h.indexPage(w, r, serr.Status, serr.Message)
		return
	}
	http.Redirect(w, r, "/analyses/"+a.ID, http.StatusSeeOther)
}

// AnalysisDetail - GET /analyses/{id}
func (h *Handler) AnalysisDetail(w http.ResponseWriter, r *http.Request) {
	a := h.webLoadAnalysis(w, r)
	if a == nil {
		return
	}
	h.render(w, "analysis.html", PageData{
		Title: a.OriginalName,
		Data: analysisData{
			Analysis: a,
			Result:   analysisResult(a),
			Done:     a.State == model.StateCompleted || a.State == model.StateFailed,
		},
	})
}

// AnalysisMap - GET /analyses/{id}/maps/{name}
func (h *Handler) AnalysisMap(w http.ResponseWriter, r *http.Request) {
	h.webArtifact(w, r, "map")
}

// AnalysisRaw - GET /analyses/{id}/raw/{name}
func (h *Handler) AnalysisRaw(w http.ResponseWriter, r *http.Request) {
	h.webArtifact(w, r, "raw")
}

// AnalysisELA - GET /analyses/{id}/ela
func (h *Handler) AnalysisELA(w http.ResponseWriter, r *http.Request) {
	h.webArtifact(w, r, "ela")
}

// webLoadAnalysis resolves {id} for browser routes. Analyses submitted with
// an API key are only reachable through the API.
func (h *Handler) webLoadAnalysis(w http.ResponseWriter, r *http.Request) *model.Analysis {
	a, err := h.loadAnalysis(r)
	if err != nil {
		slog.Error("get analysis", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil
	}
	if a == nil || a.APIKeyID != "" {
		http.NotFound(w, r)
		return nil
	}
	return a
}

func (h *Handler) webArtifact(w http.ResponseWriter, r *http.Request, kind string) {
	a := h.webLoadAnalysis(w, r)
	if a == nil {
		return
	}
	name := chi.URLParam(r, "name")
	path, contentType := h.artifactPath(a, kind, name)
	download := ""
	if kind == "raw" {
		download = name + mapfile.Ext
	}
	if path == "" || !serveArtifact(w, r, path, contentType, download) {
		http.NotFound(w, r)
	}
}
