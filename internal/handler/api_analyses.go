package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YannKr/jpegforensics/internal/auth"
	"github.com/YannKr/jpegforensics/internal/mapfile"
	"github.com/YannKr/jpegforensics/internal/model"
)

type apiAnalysis struct {
	ID           string          `json:"id"`
	Algorithm    string          `json:"algorithm"`
	State        string          `json:"state"`
	Progress     int             `json:"progress"`
	Stage        string          `json:"stage,omitempty"`
	OriginalName string          `json:"original_name"`
	Params       json.RawMessage `json:"params"`
	Result       *model.Result   `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    string          `json:"created_at"`
	StartedAt    *string         `json:"started_at"`
	CompletedAt  *string         `json:"completed_at"`
}

func formatAPITime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toAPIAnalysis(a *model.Analysis) apiAnalysis {
	params := json.RawMessage(a.ParamsJSON)
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return apiAnalysis{
		ID:           a.ID,
		Algorithm:    a.Algorithm,
		State:        a.State,
		Progress:     a.Progress,
		Stage:        a.Stage,
		OriginalName: a.OriginalName,
		Params:       params,
		Result:       analysisResult(a),
		Error:        a.ErrorMessage,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339),
		StartedAt:    formatAPITime(a.StartedAt),
		CompletedAt:  formatAPITime(a.CompletedAt),
	}
}

// apiLoadAnalysis resolves {id} for the calling key; analyses submitted by
// other keys or through the browser are reported as missing.
func (h *Handler) apiLoadAnalysis(w http.ResponseWriter, r *http.Request) *model.Analysis {
	a, err := h.loadAnalysis(r)
	if err != nil {
		slog.Error("api get analysis", "error", err)
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analysis")
		return nil
	}
	if a == nil || a.APIKeyID != auth.APIKeyFromContext(r.Context()) {
		renderJSONError(w, http.StatusNotFound, "NOT_FOUND", "analysis not found")
		return nil
	}
	return a
}

// APIAnalysisSubmit - POST /api/v1/analyses
func (h *Handler) APIAnalysisSubmit(w http.ResponseWriter, r *http.Request) {
	a, serr := h.submit(w, r, auth.APIKeyFromContext(r.Context()))
	if serr != nil {
		renderJSONError(w, serr.Status, serr.Code, serr.Message)
		return
	}
	a.CreatedAt = time.Now()
	w.Header().Set("Location", "/api/v1/analyses/"+a.ID)
	renderJSON(w, http.StatusAccepted, toAPIAnalysis(a))
}

// APIAnalysisGet - GET /api/v1/analyses/{id}
func (h *Handler) APIAnalysisGet(w http.ResponseWriter, r *http.Request) {
	a := h.apiLoadAnalysis(w, r)
	if a == nil {
		return
	}
	renderJSON(w, http.StatusOK, toAPIAnalysis(a))
}

// APIAnalysisMap - GET /api/v1/analyses/{id}/maps/{name}
func (h *Handler) APIAnalysisMap(w http.ResponseWriter, r *http.Request) {
	h.apiArtifact(w, r, "map")
}

// APIAnalysisRaw - GET /api/v1/analyses/{id}/raw/{name}
func (h *Handler) APIAnalysisRaw(w http.ResponseWriter, r *http.Request) {
	h.apiArtifact(w, r, "raw")
}

// APIAnalysisELA - GET /api/v1/analyses/{id}/ela
func (h *Handler) APIAnalysisELA(w http.ResponseWriter, r *http.Request) {
	h.apiArtifact(w, r, "ela")
}

func (h *Handler) apiArtifact(w http.ResponseWriter, r *http.Request, kind string) {
	a := h.apiLoadAnalysis(w, r)
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
		renderJSONError(w, http.StatusNotFound, "NOT_FOUND", "artifact not found")
	}
}
