package monitor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/analyzer"
	"github.com/kmattern/basewatch/internal/events"
	"github.com/kmattern/basewatch/internal/metrics"
	"github.com/kmattern/basewatch/internal/store"
	"github.com/kmattern/basewatch/internal/telemetry"
)

// Config holds the monitor's runtime settings.
type Config struct {
	// Roots are the directories to watch.
	Roots []string
	// PollInterval is the sweep cadence for roots covered by polling.
	PollInterval time.Duration
	// Debounce is how long a path must stay quiet before analysis runs.
	Debounce time.Duration
	// Extensions and IgnoreDirs feed the relevance filter; empty lists use
	// the package defaults.
	Extensions []string
	IgnoreDirs []string
	// ForcePoll disables native watching entirely.
	ForcePoll bool
	// CacheSize bounds the change-suppression cache.
	CacheSize int
	// RescanSchedule re-runs a full scan on a cron expression or duration.
	// Empty disables scheduled rescans.
	RescanSchedule string
	// InitialScan analyzes everything under the roots right after Start.
	InitialScan bool
}

// Monitor ties the pipeline together: change detection, debounce, content
// suppression, analysis, record storage, evaluation and alerting.
type Monitor struct {
	cfg      Config
	filter   *Filter
	analyzer analyzer.Analyzer
	eval     *alerts.Evaluator
	mgr      *alerts.Manager
	st       store.Store
	bus      *events.Bus
	logger   *zap.Logger

	cache *ChangeCache

	recMu   sync.RWMutex
	records map[string]*analyzer.Assessment

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	watcher  *watcher
	poller   *poller
	debounce *Debouncer
	roots    []string
}

// New builds a monitor. The analyzer and alert manager are required; a nil
// store falls back to memory, a nil bus to a private one. Existing records
// are loaded from the store so restarts keep their state.
func New(cfg Config, an analyzer.Analyzer, eval *alerts.Evaluator, mgr *alerts.Manager, st store.Store, bus *events.Bus, logger *zap.Logger) (*Monitor, error) {
	if an == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if mgr == nil {
		return nil, fmt.Errorf("alert manager is required")
	}
	if eval == nil {
		eval = alerts.NewEvaluator(alerts.DefaultThresholds())
	}
	if st == nil {
		st = store.NewMemory()
	}
	if bus == nil {
		bus = events.NewBus(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RescanSchedule != "" {
		if _, err := nextRescan(cfg.RescanSchedule, time.Now()); err != nil {
			return nil, fmt.Errorf("invalid rescan schedule %q: %w", cfg.RescanSchedule, err)
		}
	}

	m := &Monitor{
		cfg:      cfg,
		filter:   NewFilter(cfg.Extensions, cfg.IgnoreDirs),
		analyzer: an,
		eval:     eval,
		mgr:      mgr,
		st:       st,
		bus:      bus,
		logger:   logger,
		cache:    NewChangeCache(cfg.CacheSize),
		records:  make(map[string]*analyzer.Assessment),
	}

	loaded, err := st.List()
	if err != nil {
		logger.Warn("loading stored records failed", zap.Error(err))
	}
	for i := range loaded {
		a := loaded[i]
		m.records[a.Path] = &a
	}
	metrics.WatchedFiles.Set(float64(len(m.records)))

	return m, nil
}

// Start validates the roots and begins watching. Roots that do not exist
// are skipped with a warning; native watch failures degrade that root to
// polling. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}

	var roots []string
	for _, root := range m.cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			m.logger.Warn("watch root unusable, skipping", zap.String("path", root), zap.Error(err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			m.logger.Warn("watch root unavailable, skipping", zap.String("path", root), zap.Error(err))
			continue
		}
		if !info.IsDir() {
			m.logger.Warn("watch root is not a directory, skipping", zap.String("path", root))
			continue
		}
		roots = append(roots, abs)
	}
	if len(roots) == 0 {
		return fmt.Errorf("no usable watch roots")
	}
	m.roots = roots

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.debounce = NewDebouncer(m.cfg.Debounce, func(path string) {
		m.handleChange(runCtx, path, "watch")
	})

	pollRoots := roots
	if !m.cfg.ForcePoll {
		w, err := newWatcher(m.filter, m.logger)
		if err != nil {
			m.logger.Warn("native watcher unavailable, polling all roots", zap.Error(err))
			m.publishError("native watcher unavailable", err)
		} else {
			m.watcher = w
			var fallback []string
			for _, root := range roots {
				if err := w.addTree(root); err != nil {
					m.logger.Warn("native watch failed, polling root", zap.String("root", root), zap.Error(err))
					m.publishError(fmt.Sprintf("native watch failed for %s", root), err)
					fallback = append(fallback, root)
				}
			}
			pollRoots = fallback
			m.wg.Add(1)
			go m.watchLoop(runCtx)
		}
	}

	if len(pollRoots) > 0 {
		m.poller = newPoller(pollRoots, m.cfg.PollInterval, m.filter,
			func(path string) { m.handleChange(runCtx, path, "poll") },
			func(path string) { m.handleDelete(path) },
			m.logger)
		m.poller.prime()
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.poller.run(runCtx)
		}()
	}

	if m.cfg.RescanSchedule != "" {
		m.wg.Add(1)
		go m.rescanLoop(runCtx)
	}

	if m.cfg.InitialScan {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.scanRoots(runCtx)
		}()
	}

	m.running = true
	m.logger.Info("monitor started",
		zap.Strings("roots", roots),
		zap.Bool("native", m.watcher != nil),
		zap.Int("polled_roots", len(pollRoots)),
	)
	m.bus.Publish(events.Event{Type: events.MonitorStarted, Summary: "monitoring started"})
	return nil
}

// Stop halts watching and waits for in-flight work to drain. Results from
// analyses still running when Stop is called are dropped. Stopping a
// stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}

	m.cancel()
	if m.watcher != nil {
		_ = m.watcher.close()
	}
	m.wg.Wait()
	m.debounce.Stop()

	m.watcher = nil
	m.poller = nil
	m.running = false
	m.logger.Info("monitor stopped")
	m.bus.Publish(events.Event{Type: events.MonitorStopped, Summary: "monitoring stopped"})
}

// Running reports whether the monitor is started.
func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

// Roots returns the directories being watched.
func (m *Monitor) Roots() []string {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return append([]string(nil), m.roots...)
	}
	return append([]string(nil), m.cfg.Roots...)
}

// Records returns a snapshot of the latest assessment per file, ordered by
// path.
func (m *Monitor) Records() []analyzer.Assessment {
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	out := make([]analyzer.Assessment, 0, len(m.records))
	for _, a := range m.records {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// AnalyzeFile analyzes one file on demand, outside the watch pipeline. The
// result is recorded and evaluated for alerts like any watched change.
func (m *Monitor) AnalyzeFile(ctx context.Context, path string) (*analyzer.Assessment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m.cache.RecordAndCheck(path, Signature(content))
	return m.analyzeContent(ctx, path, "manual", content)
}

func (m *Monitor) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-m.watcher.fw.Events:
			if !ok {
				return
			}
			m.handleFsEvent(evt)
		case err, ok := <-m.watcher.fw.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watcher error", zap.Error(err))
			m.publishError("watcher error", err)
		}
	}
}

func (m *Monitor) handleFsEvent(evt fsnotify.Event) {
	name := evt.Name
	switch {
	case evt.Op.Has(fsnotify.Create):
		info, err := os.Stat(name)
		if err == nil && info.IsDir() {
			m.watchNewDir(name)
			return
		}
		if m.relevant(name) {
			metrics.RecordWatchEvent("native", "create")
			m.debounce.Trigger(name)
		}
	case evt.Op.Has(fsnotify.Write):
		if m.relevant(name) {
			metrics.RecordWatchEvent("native", "write")
			m.debounce.Trigger(name)
		}
	case evt.Op.Has(fsnotify.Remove), evt.Op.Has(fsnotify.Rename):
		if m.relevant(name) {
			metrics.RecordWatchEvent("native", "remove")
			m.handleDelete(name)
		}
	}
}

// watchNewDir registers a directory created after Start and queues any
// relevant files it already contains (a moved-in tree arrives whole).
func (m *Monitor) watchNewDir(dir string) {
	if m.filter.IgnoredDir(filepath.Base(dir)) {
		return
	}
	if err := m.watcher.addTree(dir); err != nil {
		m.logger.Warn("watch new directory failed", zap.String("path", dir), zap.Error(err))
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && m.filter.IgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.relevant(path) {
			metrics.RecordWatchEvent("native", "create")
			m.debounce.Trigger(path)
		}
		return nil
	})
}

// relevant applies the filter to the path relative to its watch root, so
// ignored names above the root do not disqualify files inside it.
func (m *Monitor) relevant(path string) bool {
	root := m.rootFor(path)
	if root == "" {
		return m.filter.Relevant(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return m.filter.Relevant(path)
	}
	return m.filter.Relevant(rel)
}

func (m *Monitor) rootFor(path string) string {
	best := ""
	for _, root := range m.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

func (m *Monitor) handleChange(ctx context.Context, path, source string) {
	if ctx.Err() != nil {
		return
	}
	ctx, span := telemetry.StartChangeSpan(ctx, path, source)
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug("file vanished before analysis", zap.String("path", path))
			m.handleDelete(path)
			return
		}
		m.logger.Warn("read failed", zap.String("path", path), zap.Error(err))
		metrics.RecordAnalysis("read_error", 0)
		m.publishError(fmt.Sprintf("read %s failed", path), err)
		return
	}

	if !m.cache.RecordAndCheck(path, Signature(content)) {
		m.logger.Debug("content unchanged, analysis suppressed", zap.String("path", path))
		metrics.RecordAnalysis("unchanged", 0)
		return
	}

	if _, err := m.analyzeContent(ctx, path, source, content); err != nil && ctx.Err() == nil {
		m.publishError(fmt.Sprintf("analyze %s failed", path), err)
	}
}

func (m *Monitor) analyzeContent(ctx context.Context, path, source string, content []byte) (*analyzer.Assessment, error) {
	start := time.Now()
	assessment, err := m.analyzer.Analyze(ctx, path, content)
	if err != nil {
		m.logger.Warn("analysis failed", zap.String("path", path), zap.Error(err))
		metrics.RecordAnalysis("error", 0)
		return nil, err
	}
	// A result that finished after shutdown or request cancellation is
	// dropped without recording or alerting.
	if err := ctx.Err(); err != nil {
		m.logger.Debug("analysis result dropped", zap.String("path", path), zap.Error(err))
		metrics.RecordAnalysis("dropped", 0)
		return nil, err
	}
	metrics.RecordAnalysis("analyzed", time.Since(start))

	m.recordAssessment(assessment)
	m.bus.Publish(events.Event{
		Type:    events.FileAnalyzed,
		Path:    path,
		Summary: fmt.Sprintf("risk %d, compatibility %d", assessment.RiskScore, assessment.CompatScore),
		Detail:  assessment,
	})

	evalCtx, evalSpan := telemetry.StartEvaluateSpan(ctx, path)
	raws := m.eval.Evaluate(assessment)
	for _, raw := range raws {
		m.mgr.Process(evalCtx, raw)
	}
	evalSpan.End()

	m.logger.Info("file analyzed",
		zap.String("path", path),
		zap.String("source", source),
		zap.Int("risk", assessment.RiskScore),
		zap.Int("compatibility", assessment.CompatScore),
		zap.Int("alerts", len(raws)),
	)
	return assessment, nil
}

func (m *Monitor) recordAssessment(a *analyzer.Assessment) {
	m.recMu.Lock()
	m.records[a.Path] = a
	n := len(m.records)
	m.recMu.Unlock()
	metrics.WatchedFiles.Set(float64(n))

	if err := m.st.Put(a); err != nil {
		m.logger.Warn("record store failed", zap.String("path", a.Path), zap.Error(err))
	}
}

func (m *Monitor) handleDelete(path string) {
	m.cache.Evict(path)

	m.recMu.Lock()
	_, existed := m.records[path]
	delete(m.records, path)
	n := len(m.records)
	m.recMu.Unlock()
	if !existed {
		return
	}
	metrics.WatchedFiles.Set(float64(n))

	if err := m.st.Delete(path); err != nil && !store.IsNotFound(err) {
		m.logger.Warn("record delete failed", zap.String("path", path), zap.Error(err))
	}

	m.logger.Info("file removed", zap.String("path", path))
	m.bus.Publish(events.Event{Type: events.FileDeleted, Path: path, Summary: "analysis record evicted"})
}

// scanRoots runs every relevant file under the roots through the normal
// change pipeline. Unchanged content is suppressed by the cache, so repeat
// scans are cheap.
func (m *Monitor) scanRoots(ctx context.Context) {
	start := time.Now()
	var files int
	for _, root := range m.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && m.filter.IgnoredDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !m.relevant(path) {
				return nil
			}
			files++
			m.handleChange(ctx, path, "scan")
			return nil
		})
	}
	m.logger.Info("scan pass complete", zap.Int("files", files), zap.Duration("elapsed", time.Since(start)))
}

func (m *Monitor) rescanLoop(ctx context.Context) {
	defer m.wg.Done()
	last := time.Now()
	for {
		next, err := nextRescan(m.cfg.RescanSchedule, last)
		if err != nil {
			m.logger.Warn("invalid rescan schedule", zap.String("schedule", m.cfg.RescanSchedule), zap.Error(err))
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		m.logger.Info("scheduled rescan starting", zap.String("schedule", m.cfg.RescanSchedule))
		m.scanRoots(ctx)
		last = time.Now()
	}
}

// nextRescan computes the rescan time after a given instant. The schedule
// is either a Go duration ("30m") or a five-field cron expression.
func nextRescan(schedule string, after time.Time) (time.Time, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return time.Time{}, fmt.Errorf("schedule is required")
	}
	if interval, err := time.ParseDuration(schedule); err == nil {
		if interval <= 0 {
			return time.Time{}, fmt.Errorf("interval must be > 0")
		}
		return after.Add(interval), nil
	}
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(after), nil
}

func (m *Monitor) publishError(summary string, err error) {
	m.bus.Publish(events.Event{
		Type:    events.MonitorError,
		Summary: summary,
		Detail:  map[string]string{"error": err.Error()},
	})
}
