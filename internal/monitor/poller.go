package monitor

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/metrics"
)

const defaultPollInterval = time.Second

// poller detects changes by walking its roots and comparing modification
// times. It covers roots where native watching is unavailable.
type poller struct {
	roots    []string
	interval time.Duration
	filter   *Filter
	onChange func(path string)
	onDelete func(path string)
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

func newPoller(roots []string, interval time.Duration, filter *Filter, onChange, onDelete func(string), logger *zap.Logger) *poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &poller{
		roots:    roots,
		interval: interval,
		filter:   filter,
		onChange: onChange,
		onDelete: onDelete,
		logger:   logger,
		seen:     make(map[string]time.Time),
	}
}

// prime records current modification times without firing callbacks so the
// first sweep only reports changes made after startup.
func (p *poller) prime() {
	found := p.walk()
	p.mu.Lock()
	p.seen = found
	p.mu.Unlock()
}

// run sweeps on the poll interval until ctx is canceled.
func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep walks all roots once and reports modified and vanished files.
func (p *poller) sweep() {
	found := p.walk()

	p.mu.Lock()
	var changed, deleted []string
	for path, mtime := range found {
		prev, ok := p.seen[path]
		if !ok || mtime.After(prev) {
			changed = append(changed, path)
		}
	}
	for path := range p.seen {
		if _, ok := found[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	p.seen = found
	p.mu.Unlock()

	for _, path := range changed {
		metrics.RecordWatchEvent("poll", "write")
		p.onChange(path)
	}
	for _, path := range deleted {
		metrics.RecordWatchEvent("poll", "remove")
		p.onDelete(path)
	}
}

func (p *poller) walk() map[string]time.Time {
	found := make(map[string]time.Time)
	for _, root := range p.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				p.logger.Debug("poll walk error", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				if path != root && p.filter.IgnoredDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			if !p.filter.Relevant(rel) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			found[path] = info.ModTime()
			return nil
		})
	}
	return found
}
