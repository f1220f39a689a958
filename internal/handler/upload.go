package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/model"
)

// submitError is a rejected submission: an HTTP status, an API error code
// and a message safe to show the submitter.
type submitError struct {
	Status  int
	Code    string
	Message string
}

func (e *submitError) Error() string { return e.Message }

func badRequest(code, format string, args ...any) *submitError {
	return &submitError{Status: http.StatusBadRequest, Code: code, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string) *submitError {
	return &submitError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: msg}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName reduces an uploaded file name to a base name that is safe on disk
// and keeps the stem the ELA artifact is named after.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "upload"
	}
	return name
}

// formInt reads an optional integer form field; empty means 0.
func formInt(r *http.Request, field string) (int, *submitError) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("INVALID_PARAMETER", "%s must be an integer", field)
	}
	return n, nil
}

// parseSubmission reads the algorithm and engine parameters from the form
// and validates them before anything is stored.
func parseSubmission(r *http.Request) (forensics.Algorithm, model.Params, *submitError) {
	var params model.Params
	name := r.FormValue("algorithm")
	if name == "" {
		name = string(forensics.AlgoAll)
	}
	algo, err := forensics.ParseAlgorithm(name)
	if err != nil {
		return "", params, badRequest("INVALID_PARAMETER", "%v", err)
	}

	fields := []struct {
		name string
		dst  *int
	}{
		{"quality", &params.Quality},
		{"block_size", &params.BlockSize},
		{"sweep_start", &params.SweepStart},
		{"sweep_steps", &params.SweepSteps},
		{"sweep_step", &params.SweepStep},
	}
	for _, f := range fields {
		n, serr := formInt(r, f.name)
		if serr != nil {
			return "", params, serr
		}
		*f.dst = n
	}

	req := forensics.Request{
		Algorithm: algo,
		Quality:   params.Quality,
		BlockSize: params.BlockSize,
		Sweep: forensics.SweepOptions{
			Start:     params.SweepStart,
			Steps:     params.SweepSteps,
			Step:      params.SweepStep,
			BlockSize: params.BlockSize,
		},
	}
	if err := req.Validate(); err != nil {
		return "", params, badRequest("INVALID_PARAMETER", "%v", err)
	}
	return algo, params, nil
}

// submit stores the uploaded JPEG, checks that it decodes and queues the
// analysis. Rejected uploads leave nothing behind.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, apiKeyID string) (*model.Analysis, *submitError) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &submitError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    "TOO_LARGE",
				Message: fmt.Sprintf("upload exceeds %d bytes", h.Cfg.MaxUploadBytes),
			}
		}
		return nil, badRequest("BAD_REQUEST", "failed to parse multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	algo, params, serr := parseSubmission(r)
	if serr != nil {
		return nil, serr
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("BAD_REQUEST", "missing file field")
	}
	defer file.Close()

	name := safeName(header.Filename)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
	default:
		return nil, badRequest("INVALID_INPUT", "only .jpg and .jpeg files can be analysed")
	}

	id := uuid.New().String()
	uploadDir := filepath.Join(h.Cfg.DataDir, "uploads", id)
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		slog.Error("create upload dir", "error", err)
		return nil, internalError("failed to store upload")
	}
	inputPath := filepath.Join(uploadDir, name)
	if err := saveFile(inputPath, file); err != nil {
		os.RemoveAll(uploadDir)
		slog.Error("save upload", "error", err)
		return nil, internalError("failed to store upload")
	}

	if _, err := forensics.LoadImage(inputPath); err != nil {
		os.RemoveAll(uploadDir)
		slog.Info("upload rejected", "name", header.Filename, "error", err)
		return nil, badRequest("INVALID_INPUT", "%s is not a decodable JPEG", name)
	}

	paramsJSON, _ := json.Marshal(params)
	a := &model.Analysis{
		ID:           id,
		Algorithm:    string(algo),
		State:        model.StatePending,
		OriginalName: header.Filename,
		InputPath:    inputPath,
		ParamsJSON:   string(paramsJSON),
		APIKeyID:     apiKeyID,
	}
	if err := db.CreateAnalysis(h.DB, a); err != nil {
		os.RemoveAll(uploadDir)
		slog.Error("create analysis", "error", err)
		return nil, internalError("failed to queue analysis")
	}
	slog.Info("analysis queued", "analysis", id, "algorithm", algo, "name", header.Filename)
	return a, nil
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
