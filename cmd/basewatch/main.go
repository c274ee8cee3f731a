// Basewatch watches source trees for web platform compatibility risk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/analyzer"
	"github.com/kmattern/basewatch/internal/baseline"
	"github.com/kmattern/basewatch/internal/config"
	"github.com/kmattern/basewatch/internal/events"
	"github.com/kmattern/basewatch/internal/mcpserver"
	"github.com/kmattern/basewatch/internal/monitor"
	"github.com/kmattern/basewatch/internal/notify"
	"github.com/kmattern/basewatch/internal/report"
	"github.com/kmattern/basewatch/internal/scanner"
	"github.com/kmattern/basewatch/internal/server"
	"github.com/kmattern/basewatch/internal/store"
	"github.com/kmattern/basewatch/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		scanOnce    = flag.Bool("scan", false, "run one analysis sweep over the roots and exit")
		format      = flag.String("format", "json", "scan report format: json or markdown")
		outPath     = flag.String("out", "", "write the scan report to a file instead of stdout")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("basewatch %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Roots given on the command line override the configured paths.
	roots := cfg.Watch.Paths
	if args := flag.Args(); len(args) > 0 {
		roots = args
	}

	table := loadBaseline(ctx, cfg, logger)

	if *scanOnce {
		if err := runScan(ctx, cfg, table, roots, *format, *outPath, logger); err != nil {
			logger.Error("scan failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := runWatch(ctx, cfg, table, roots, logger); err != nil {
		logger.Error("monitor failed", zap.Error(err))
		os.Exit(1)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		lvl = parsed
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// loadBaseline builds the feature table: the built-in table, overlaid with a
// local YAML table and then a registry pack when configured. Load failures
// fall back to what is already loaded.
func loadBaseline(ctx context.Context, cfg config.Config, logger *zap.Logger) *baseline.Table {
	table := baseline.Default()

	if cfg.Baseline.TablePath != "" {
		extra, err := baseline.LoadFile(cfg.Baseline.TablePath)
		if err != nil {
			logger.Warn("cannot load baseline table",
				zap.String("path", cfg.Baseline.TablePath), zap.Error(err))
		} else {
			table.Merge(extra)
		}
	}

	if cfg.Baseline.PackRef != "" {
		pulled, err := pullBaselinePack(ctx, cfg.Baseline)
		if err != nil {
			logger.Warn("cannot pull baseline pack",
				zap.String("ref", cfg.Baseline.PackRef), zap.Error(err))
		} else {
			table.Merge(pulled)
		}
	}

	logger.Info("baseline table ready",
		zap.String("version", table.Version), zap.Int("features", table.Len()))
	return table
}

func pullBaselinePack(ctx context.Context, cfg config.BaselineConfig) (*baseline.Table, error) {
	ref, err := baseline.ParseRef(cfg.PackRef)
	if err != nil {
		return nil, err
	}

	client := baseline.NewRegistryClient()
	if cfg.Registry.Username != "" {
		client = client.WithAuth(cfg.Registry.Username, cfg.Registry.Password)
	}
	if cfg.Registry.PlainHTTP {
		client = client.WithPlainHTTP(true)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	table, _, err := client.Pull(pullCtx, ref)
	return table, err
}

func runScan(ctx context.Context, cfg config.Config, table *baseline.Table, roots []string, format, outPath string, logger *zap.Logger) error {
	an := analyzer.New(table, analyzer.Config{})
	filter := monitor.NewFilter(cfg.Watch.Extensions, cfg.Watch.IgnoreDirs)
	sc := scanner.New(an, filter, logger.Named("scanner"))

	rep, err := sc.Scan(ctx, roots)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	data := report.Data{Scan: rep}
	switch format {
	case "json":
		return report.RenderJSON(out, data)
	case "markdown", "md":
		return report.RenderMarkdown(out, data)
	default:
		return fmt.Errorf("unknown report format %q: expected json or markdown", format)
	}
}

func runWatch(ctx context.Context, cfg config.Config, table *baseline.Table, roots []string, logger *zap.Logger) error {
	shutdownTrace, err := telemetry.InitTraceProvider(ctx, cfg.Telemetry.OTLPEndpoint, version)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		shutdownTrace = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	bus := events.NewBus(256)
	defer bus.Close()

	var st store.Store
	if cfg.Store.Path != "" {
		sqlStore, err := store.Open(cfg.Store.Path)
		if err != nil {
			logger.Warn("cannot open record store, keeping records in memory",
				zap.String("path", cfg.Store.Path), zap.Error(err))
			st = store.NewMemory()
		} else {
			st = sqlStore
		}
	} else {
		st = store.NewMemory()
	}
	defer func() { _ = st.Close() }()

	router, err := notify.FromConfig(cfg.Notifications, logger)
	if err != nil {
		return fmt.Errorf("configure notifications: %w", err)
	}
	defer router.Close()

	mgr := alerts.NewManager(alerts.ManagerConfig{
		HistoryPath: cfg.History.Path,
		MaxHistory:  cfg.History.MaxSize,
		Rules:       escalationRules(cfg.Escalation),
	}, router, bus, logger.Named("alerts"))
	defer mgr.Close()

	eval := alerts.NewEvaluator(alerts.Thresholds{
		Risk:          cfg.Thresholds.Risk,
		Compatibility: cfg.Thresholds.Compatibility,
	})

	// Both durations were validated at load time.
	pollInterval, _ := cfg.PollInterval()
	debounce, _ := cfg.Debounce()

	an := analyzer.New(table, analyzer.Config{})
	mon, err := monitor.New(monitor.Config{
		Roots:          roots,
		PollInterval:   pollInterval,
		Debounce:       debounce,
		Extensions:     cfg.Watch.Extensions,
		IgnoreDirs:     cfg.Watch.IgnoreDirs,
		ForcePoll:      cfg.Watch.ForcePoll,
		RescanSchedule: cfg.Rescan.Schedule,
		InitialScan:    true,
	}, an, eval, mgr, st, bus, logger.Named("monitor"))
	if err != nil {
		return err
	}

	if err := mon.Start(); err != nil {
		return err
	}
	defer mon.Stop()

	var serverDone chan error
	if cfg.Server.Enabled {
		srv := server.New(server.Config{ListenAddr: cfg.Server.ListenAddr},
			mon, mgr, bus, router, logger.Named("server"))
		if cfg.MCP.Enabled {
			mcpserver.Version = version
			mcp := mcpserver.New(mon, mgr, table, logger)
			srv.MountMCP(mcp.Handler())
			logger.Info("mcp tools mounted", zap.String("path", "/mcp"))
		}
		serverDone = make(chan error, 1)
		go func() { serverDone <- srv.Run(ctx) }()
	}

	logger.Info("basewatch running",
		zap.Strings("roots", mon.Roots()),
		zap.Bool("server", cfg.Server.Enabled))

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	if serverDone != nil {
		if err := <-serverDone; err != nil {
			logger.Warn("http server shutdown", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// escalationRules converts the configured per-severity windows, keeping the
// stock rule for any severity the config leaves incomplete.
func escalationRules(cfg config.EscalationConfig) map[alerts.Severity]alerts.EscalationRule {
	rules := alerts.DefaultRules()
	apply := func(sev alerts.Severity, w config.EscalationWindow) {
		if w.MaxCount <= 0 || w.Window == "" {
			return
		}
		d, err := time.ParseDuration(w.Window)
		if err != nil || d <= 0 {
			return
		}
		rules[sev] = alerts.EscalationRule{MaxCount: w.MaxCount, Window: d}
	}
	apply(alerts.SeverityLow, cfg.Low)
	apply(alerts.SeverityMedium, cfg.Medium)
	apply(alerts.SeverityHigh, cfg.High)
	apply(alerts.SeverityCritical, cfg.Critical)
	return rules
}
