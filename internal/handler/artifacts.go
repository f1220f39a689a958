package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/mapfile"
	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/worker"
)

// mapName matches the labels the engines give their maps.
var mapName = regexp.MustCompile(`^[a-z0-9_]+$`)

// loadAnalysis resolves the {id} URL parameter. It returns nil when the id
// is malformed or unknown.
func (h *Handler) loadAnalysis(r *http.Request) (*model.Analysis, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return db.GetAnalysis(h.DB, id)
}

func analysisResult(a *model.Analysis) *model.Result {
	if a.State != model.StateCompleted || a.ResultJSON == "" {
		return nil
	}
	var res model.Result
	if err := json.Unmarshal([]byte(a.ResultJSON), &res); err != nil {
		slog.Error("decode stored result", "analysis", a.ID, "error", err)
		return nil
	}
	return &res
}

// hasMap reports whether the completed analysis produced a map named name.
func hasMap(res *model.Result, name string) bool {
	if res == nil || !mapName.MatchString(name) {
		return false
	}
	for _, m := range res.Maps {
		if m.Name == name {
			return true
		}
	}
	return false
}

// artifactPath resolves one stored artifact of a completed analysis, or ""
// if it does not exist. kind is "map", "raw" or "ela".
func (h *Handler) artifactPath(a *model.Analysis, kind, name string) (path, contentType string) {
	res := analysisResult(a)
	switch kind {
	case "map":
		if hasMap(res, name) {
			return worker.HeatmapPath(h.Cfg.DataDir, a.ID, name), "image/png"
		}
	case "raw":
		if hasMap(res, name) {
			return worker.RawPath(h.Cfg.DataDir, a.ID, name), mapfile.ContentType
		}
	case "ela":
		if res != nil && res.ELAArtifact != "" {
			return filepath.Join(worker.OutputDir(h.Cfg.DataDir, a.ID), res.ELAArtifact), "image/png"
		}
	}
	return "", ""
}

func serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType, downloadName string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", contentType)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	}
	http.ServeContent(w, r, "", info.ModTime(), f)
	return true
}
