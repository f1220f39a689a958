package diskstat

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Stats is a point-in-time snapshot of disk usage.
type Stats struct {
	TotalBytes    uint64
	FreeBytes     uint64
	AppBytes      uint64 // bytes under DATA_DIR
	UploadsBytes  uint64
	AnalysesBytes uint64
	ScratchBytes  uint64
	CapturedAt    time.Time
}

// PctFree returns the percentage of disk space that is free (0 to 100).
func (s Stats) PctFree() float64 {
	if s.TotalBytes == 0 {
		return 100
	}
	return float64(s.FreeBytes) / float64(s.TotalBytes) * 100
}

// Blocked reports whether free space has fallen to or below blockPct. A
// zero snapshot never blocks.
func (s Stats) Blocked(blockPct float64) bool {
	if s.TotalBytes == 0 {
		return false
	}
	return s.PctFree() <= blockPct
}

// Cache is a goroutine-safe cached disk stats value, refreshed periodically.
type Cache struct {
	mu      sync.RWMutex
	stats   Stats
	dataDir string
	ttl     time.Duration
	stop    chan struct{}
}

// New creates a Cache. Call Start to begin polling.
func New(dataDir string, ttl time.Duration) *Cache {
	return &Cache{
		dataDir: dataDir,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
}

// Start begins background polling.
func (c *Cache) Start() {
	c.refresh()
	go func() {
		t := time.NewTicker(c.ttl)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				c.refresh()
			}
		}
	}()
}

// Stop halts background polling.
func (c *Cache) Stop() {
	select {
	case c.stop <- struct{}{}:
	default:
	}
}

// Get returns the latest cached stats.
func (c *Cache) Get() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Refresh forces an immediate update.
func (c *Cache) Refresh() {
	c.refresh()
}

func (c *Cache) refresh() {
	total, free, err := statFS(c.dataDir)
	if err != nil {
		// Not fatal; leave previous values in place
		return
	}
	s := walkDirSizes(c.dataDir)
	s.TotalBytes = total
	s.FreeBytes = free
	s.CapturedAt = time.Now()
	c.mu.Lock()
	c.stats = s
	c.mu.Unlock()
}

func statFS(path string) (total, free uint64, err error) {
	var stat syscall.Statfs_t
	if err = syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return bsize * stat.Blocks, bsize * stat.Bavail, nil
}

func walkDirSizes(dataDir string) Stats {
	var s Stats
	filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size := uint64(info.Size())
		s.AppBytes += size
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return nil
		}
		top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		switch top {
		case "uploads":
			s.UploadsBytes += size
		case "analyses":
			s.AnalysesBytes += size
		case "scratch":
			s.ScratchBytes += size
		}
		return nil
	})
	return s
}
