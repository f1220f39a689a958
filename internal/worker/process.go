package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/mapfile"
	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/render"
	"github.com/YannKr/jpegforensics/internal/sse"
)

// OutputDir is where the artifacts of analysis id are written.
func OutputDir(dataDir, id string) string {
	return filepath.Join(dataDir, "analyses", id)
}

// HeatmapPath and RawPath name the rendered and archived form of one map.
func HeatmapPath(dataDir, id, label string) string {
	return filepath.Join(OutputDir(dataDir, id), label+".png")
}

func RawPath(dataDir, id, label string) string {
	return filepath.Join(OutputDir(dataDir, id), label+mapfile.Ext)
}

// request turns a stored analysis into an engine request.
func request(a *model.Analysis) (forensics.Request, error) {
	algo, err := forensics.ParseAlgorithm(a.Algorithm)
	if err != nil {
		return forensics.Request{}, err
	}
	var params model.Params
	if a.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(a.ParamsJSON), &params); err != nil {
			return forensics.Request{}, fmt.Errorf("decode params: %w", err)
		}
	}
	return forensics.Request{
		Algorithm: algo,
		Quality:   params.Quality,
		BlockSize: params.BlockSize,
		Sweep: forensics.SweepOptions{
			Start:     params.SweepStart,
			Steps:     params.SweepSteps,
			Step:      params.SweepStep,
			BlockSize: params.BlockSize,
		},
	}, nil
}

func (p *Pool) process(ctx context.Context, a *model.Analysis) (*model.Result, error) {
	req, err := request(a)
	if err != nil {
		return nil, err
	}
	img, err := forensics.LoadImage(a.InputPath)
	if err != nil {
		return nil, err
	}
	req.Image = img

	outDir := OutputDir(p.cfg.DataDir, a.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	// A failed analysis keeps no partial output.
	kept := false
	defer func() {
		if !kept {
			if err := os.RemoveAll(outDir); err != nil {
				slog.Warn("remove partial output", "analysis", a.ID, "error", err)
			}
		}
	}()
	req.OutDir = outDir
	req.Progress = func(pr forensics.Progress) {
		pct := 0
		if pr.Total > 0 {
			// 100 is reserved for the completed state.
			pct = pr.Done * 99 / pr.Total
		}
		if err := db.UpdateAnalysisProgress(p.database, a.ID, pct, pr.Stage); err != nil {
			slog.Warn("update progress", "analysis", a.ID, "error", err)
		}
		p.publish(a.ID, "progress", map[string]any{"id": a.ID, "progress": pct, "stage": pr.Stage})
	}

	rep, err := p.analyzer.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &model.Result{}
	for _, m := range rep.Maps {
		if err := p.writeMap(a.ID, m, rep); err != nil {
			return nil, err
		}
		rows, cols := m.Data.Dims()
		st := m.Stats()
		result.Maps = append(result.Maps, model.MapSummary{
			Name:    m.Label,
			Quality: m.Quality,
			Offset:  m.Offset,
			Rows:    rows,
			Cols:    cols,
			Min:     st.Min,
			Max:     st.Max,
			Mean:    st.Mean,
			StdDev:  st.StdDev,
		})
	}
	if rep.ELA != nil {
		result.ELAArtifact = filepath.Base(rep.ELA.ArtifactPath)
	}
	kept = true
	return result, nil
}

// writeMap renders m as a heatmap and archives its raw values. The ELA map is
// rendered from the amplified difference image instead of a colour ramp.
func (p *Pool) writeMap(id string, m *forensics.Map, rep *forensics.Report) error {
	img := render.Heatmap(m.Data, p.cfg.RenderWidth)
	if rep.ELA != nil && m.Label == rep.ELA.Map().Label {
		img = render.Scale(render.Amplify(rep.ELA.Diff).ToImage(), p.cfg.RenderWidth)
	}
	if err := render.WritePNG(HeatmapPath(p.cfg.DataDir, id, m.Label), img); err != nil {
		return fmt.Errorf("render %s: %w", m.Label, err)
	}
	if err := mapfile.WriteFile(RawPath(p.cfg.DataDir, id, m.Label), m.Data); err != nil {
		return fmt.Errorf("archive %s: %w", m.Label, err)
	}
	return nil
}

func (p *Pool) publish(id, eventType string, payload map[string]any) {
	if p.sseHub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.sseHub.Publish(sse.AnalysisTopic(id), sse.Event{Type: eventType, Data: string(data)})
}

func marshalResult(r *model.Result) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
