package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/YannKr/jpegforensics/internal/config"
	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/sse"
	"github.com/YannKr/jpegforensics/internal/webhook"
)

// pollInterval is how long an idle worker waits before looking for work again.
const pollInterval = 2 * time.Second

type Pool struct {
	database *sql.DB
	cfg      *config.Config
	analyzer *forensics.Analyzer
	notifier *webhook.Notifier
	sseHub   *sse.Hub
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewPool(database *sql.DB, cfg *config.Config, analyzer *forensics.Analyzer, notifier *webhook.Notifier, sseHub *sse.Hub) *Pool {
	return &Pool{database: database, cfg: cfg, analyzer: analyzer, notifier: notifier, sseHub: sseHub}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	workers := p.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	slog.Info("worker pool started", "workers", workers, "codec", p.analyzer.Codec.Name())
}

func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a, err := db.ClaimNextAnalysis(p.database)
		if err != nil {
			slog.Error("claim analysis", "worker", id, "error", err)
			sleep(ctx, pollInterval)
			continue
		}
		if a == nil {
			sleep(ctx, pollInterval)
			continue
		}

		slog.Info("processing analysis", "worker", id, "analysis", a.ID, "algorithm", a.Algorithm)
		start := time.Now()
		result, err := p.process(ctx, a)
		p.finish(ctx, a, result, err, time.Since(start))
	}
}

// finish records the outcome of one analysis. An analysis interrupted by
// shutdown stays RUNNING and is requeued on the next start.
func (p *Pool) finish(ctx context.Context, a *model.Analysis, result *model.Result, err error, took time.Duration) {
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		slog.Info("analysis interrupted by shutdown", "analysis", a.ID)
		return
	}
	if err != nil {
		msg := failureMessage(err)
		slog.Error("analysis failed", "analysis", a.ID, "error", err)
		if dbErr := db.FailAnalysis(p.database, a.ID, msg); dbErr != nil {
			slog.Error("record failure", "analysis", a.ID, "error", dbErr)
		}
		p.publish(a.ID, "failed", map[string]any{"id": a.ID, "error": msg})
		p.notifier.Notify(ctx, webhook.EventAnalysisFailed, map[string]any{
			"id": a.ID, "algorithm": a.Algorithm, "error": msg,
		})
		return
	}

	resultJSON, err := marshalResult(result)
	if err != nil {
		slog.Error("marshal result", "analysis", a.ID, "error", err)
		db.FailAnalysis(p.database, a.ID, "internal error")
		return
	}
	if err := db.CompleteAnalysis(p.database, a.ID, resultJSON); err != nil {
		slog.Error("record completion", "analysis", a.ID, "error", err)
		return
	}
	slog.Info("analysis completed", "analysis", a.ID, "maps", len(result.Maps), "took", took)
	p.publish(a.ID, "done", map[string]any{"id": a.ID, "progress": 100})
	p.notifier.Notify(ctx, webhook.EventAnalysisCompleted, map[string]any{
		"id": a.ID, "algorithm": a.Algorithm, "maps": result.Maps,
	})
}

// failureMessage is the error text shown to the submitter. Input problems are
// reported as such; everything else is summarised.
func failureMessage(err error) string {
	var invalid *forensics.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.Is(err, forensics.ErrInvalidParameter):
		return err.Error()
	}
	var enc *forensics.EncodeError
	var dec *forensics.DecodeError
	switch {
	case errors.As(err, &enc):
		return fmt.Sprintf("re-encoding at quality %d failed", enc.Quality)
	case errors.As(err, &dec):
		return "decoding a re-encoded variant failed"
	}
	return "internal error"
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
