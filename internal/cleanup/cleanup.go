package cleanup

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/YannKr/jpegforensics/internal/db"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/sse"
)

// staleScratchAge is how old a scratch re-encoding must be before it is
// treated as left behind by a crashed process.
const staleScratchAge = time.Hour

type Cleaner struct {
	DB         *sql.DB
	Hub        *sse.Hub // optional; expired analyses are forgotten here too
	DataDir    string
	ScratchDir string
	Retention  time.Duration
	Interval   time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
	slog.Info("cleanup scheduler started", "interval", c.Interval, "retention", c.Retention)
}

func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	slog.Info("cleanup scheduler stopped")
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)

	c.runOnce(time.Now())

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.runOnce(now)
		}
	}
}

func (c *Cleaner) runOnce(now time.Time) {
	if c.Retention > 0 {
		c.expireAnalyses(now.Add(-c.Retention))
	}
	c.sweepScratch(now.Add(-staleScratchAge))
}

func (c *Cleaner) expireAnalyses(cutoff time.Time) {
	analyses, err := db.ListFinishedBefore(c.DB, cutoff)
	if err != nil {
		slog.Error("cleanup: list expired analyses", "error", err)
		return
	}
	for _, a := range analyses {
		for _, dir := range []string{
			filepath.Join(c.DataDir, "analyses", a.ID),
			filepath.Join(c.DataDir, "uploads", a.ID),
		} {
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("cleanup: remove analysis dir", "dir", dir, "error", err)
			}
		}
		if err := db.DeleteAnalysis(c.DB, a.ID); err != nil {
			slog.Error("cleanup: delete analysis", "id", a.ID, "error", err)
			continue
		}
		if c.Hub != nil {
			c.Hub.Forget(sse.AnalysisTopic(a.ID))
		}
		slog.Info("cleanup: expired analysis", "id", a.ID, "created", a.CreatedAt)
	}
}

func (c *Cleaner) sweepScratch(cutoff time.Time) {
	if c.ScratchDir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(c.ScratchDir, forensics.ScratchPattern))
	if err != nil {
		slog.Error("cleanup: glob scratch", "error", err)
		return
	}
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("cleanup: remove scratch file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("cleanup: removed stale scratch files", "count", removed)
	}
}
