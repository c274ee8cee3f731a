package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kmattern/basewatch/internal/events"
	"github.com/kmattern/basewatch/internal/metrics"
	"github.com/kmattern/basewatch/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxHistory bounds the in-memory alert history.
const DefaultMaxHistory = 1000

const dispatchTimeout = 30 * time.Second

// NotificationKind distinguishes a first-time alert from an escalation of
// one already being tracked.
type NotificationKind string

const (
	KindAlert      NotificationKind = "alert"
	KindEscalation NotificationKind = "escalation"
)

// Delivery is the outcome of one channel send.
type Delivery struct {
	Channel string
	Err     error
}

// Notifier fans an alert out to the configured channels. A failed channel
// must not prevent the others from being attempted.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, alert *Alert) []Delivery
}

// DefaultRules returns the stock escalation ladder. Higher severities
// escalate on fewer repeats inside tighter windows.
func DefaultRules() map[Severity]EscalationRule {
	return map[Severity]EscalationRule{
		SeverityLow:      {MaxCount: 5, Window: 10 * time.Minute},
		SeverityMedium:   {MaxCount: 4, Window: 5 * time.Minute},
		SeverityHigh:     {MaxCount: 3, Window: 2 * time.Minute},
		SeverityCritical: {MaxCount: 2, Window: time.Minute},
	}
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// HistoryPath is where history is persisted. Empty disables persistence.
	HistoryPath string
	// MaxHistory bounds the history length. Zero means DefaultMaxHistory.
	MaxHistory int
	// Rules maps each severity to its escalation rule. Nil means DefaultRules.
	Rules map[Severity]EscalationRule
}

// Manager deduplicates raw alerts by identity key, counts repeats, promotes
// severities when repeats pile up inside an escalation window, keeps a
// bounded newest-first history, and hands alerts to the notifier.
type Manager struct {
	notifier Notifier
	bus      *events.Bus
	logger   *zap.Logger

	rules       map[Severity]EscalationRule
	historyPath string
	maxHistory  int

	now func() time.Time

	mu          sync.Mutex
	active      map[string]*Alert
	history     []*Alert
	occurrences map[string][]time.Time

	persistMu  sync.Mutex
	dispatchWG sync.WaitGroup
}

// NewManager creates an alert manager and loads persisted history if a
// history path is configured. An unreadable history file is logged and
// skipped so a corrupt file cannot keep the monitor from starting.
func NewManager(cfg ManagerConfig, notifier Notifier, bus *events.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}

	m := &Manager{
		notifier:    notifier,
		bus:         bus,
		logger:      logger,
		rules:       cfg.Rules,
		historyPath: cfg.HistoryPath,
		maxHistory:  cfg.MaxHistory,
		now:         time.Now,
		active:      make(map[string]*Alert),
		occurrences: make(map[string][]time.Time),
	}

	if cfg.HistoryPath != "" {
		loaded, err := loadHistory(cfg.HistoryPath)
		if err != nil {
			logger.Warn("failed to load alert history, starting empty",
				zap.String("path", cfg.HistoryPath), zap.Error(err))
		}
		if len(loaded) > cfg.MaxHistory {
			loaded = loaded[:cfg.MaxHistory]
		}
		for i := range loaded {
			a := loaded[i]
			m.history = append(m.history, &a)
			if a.Status == StatusActive && a.Key != "" {
				if _, seen := m.active[a.Key]; !seen {
					m.active[a.Key] = m.history[len(m.history)-1]
				}
			}
		}
	}

	metrics.ActiveAlerts.Set(float64(len(m.active)))
	return m
}

// Process folds one raw alert into the tracked state. Repeats of the same
// type, path, and message bump the existing alert instead of creating a new
// one; every occurrence still notifies the channels. The returned copy
// reflects the alert after any escalation.
func (m *Manager) Process(ctx context.Context, raw RawAlert) Alert {
	if !raw.Severity.Valid() {
		raw.Severity = SeverityLow
	}
	_, span := telemetry.StartProcessSpan(ctx, string(raw.Type), string(raw.Severity))
	defer span.End()

	key := IdentityKey(raw.Type, raw.Path, raw.Message)
	now := m.now().UTC()

	m.mu.Lock()

	if existing, ok := m.active[key]; ok {
		existing.Count++
		existing.LastSeen = now
		m.occurrences[key] = append(m.occurrences[key], now)
		escalated := m.maybeEscalateLocked(existing, now)
		snap := *existing
		m.mu.Unlock()

		metrics.RecordDuplicate()
		if escalated {
			m.persist()
		}
		m.publish(events.AlertRaised, snap)
		m.dispatch(KindAlert, snap)
		if escalated {
			m.publish(events.AlertEscalated, snap)
			m.dispatch(KindEscalation, snap)
		}
		return snap
	}

	alert := &Alert{
		ID:               uuid.NewString(),
		Key:              key,
		Type:             raw.Type,
		Severity:         raw.Severity,
		OriginalSeverity: raw.Severity,
		Message:          raw.Message,
		Path:             raw.Path,
		Count:            1,
		FirstSeen:        now,
		LastSeen:         now,
		Status:           StatusActive,
	}
	m.active[key] = alert
	m.history = append([]*Alert{alert}, m.history...)
	if len(m.history) > m.maxHistory {
		// Truncated entries stay reachable through the active map until
		// they are cleared.
		m.history = m.history[:m.maxHistory]
	}
	m.occurrences[key] = append(m.occurrences[key], now)
	escalated := m.maybeEscalateLocked(alert, now)
	snap := *alert
	activeCount := len(m.active)
	m.mu.Unlock()

	metrics.RecordAlert(string(snap.Type), string(snap.OriginalSeverity))
	metrics.ActiveAlerts.Set(float64(activeCount))
	m.persist()
	m.publish(events.AlertRaised, snap)
	m.dispatch(KindAlert, snap)
	if escalated {
		m.publish(events.AlertEscalated, snap)
		m.dispatch(KindEscalation, snap)
	}
	return snap
}

// maybeEscalateLocked promotes the alert one severity level when its recent
// occurrences meet the rule for its current severity. Occurrences are
// cleared on promotion so the next tier has to be earned from scratch.
// Callers must hold m.mu.
func (m *Manager) maybeEscalateLocked(a *Alert, now time.Time) bool {
	rule, ok := m.rules[a.Severity]
	if !ok || rule.MaxCount <= 0 {
		return false
	}

	times := m.occurrences[a.Key]
	if rule.Window > 0 {
		cutoff := now.Add(-rule.Window)
		kept := times[:0]
		for _, ts := range times {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		times = kept
		m.occurrences[a.Key] = kept
	}
	if len(times) < rule.MaxCount {
		return false
	}

	from := a.Severity
	a.Severity = a.Severity.Promote()
	a.Escalated = true
	a.EscalationCount++
	a.LastSeen = now
	delete(m.occurrences, a.Key)

	metrics.RecordEscalation(string(a.Severity))
	m.logger.Warn("alert escalated",
		zap.String("alert_id", a.ID),
		zap.String("from", string(from)),
		zap.String("to", string(a.Severity)),
		zap.Int("count", a.Count))
	return true
}

// ClearAlert resolves the active alert with the given ID. It reports
// whether an alert was found.
func (m *Manager) ClearAlert(id string) bool {
	m.mu.Lock()
	var cleared *Alert
	for key, a := range m.active {
		if a.ID == id {
			a.Status = StatusResolved
			delete(m.active, key)
			delete(m.occurrences, key)
			snap := *a
			cleared = &snap
			break
		}
	}
	activeCount := len(m.active)
	m.mu.Unlock()

	if cleared == nil {
		return false
	}

	metrics.ActiveAlerts.Set(float64(activeCount))
	m.persist()
	m.publish(events.AlertCleared, *cleared)
	return true
}

// ClearAll resolves every active alert and returns how many were cleared.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	n := len(m.active)
	for key, a := range m.active {
		a.Status = StatusResolved
		delete(m.active, key)
		delete(m.occurrences, key)
	}
	m.mu.Unlock()

	if n == 0 {
		return 0
	}

	metrics.ActiveAlerts.Set(0)
	m.persist()
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type:      events.AlertCleared,
			Summary:   fmt.Sprintf("cleared %d active alerts", n),
			Timestamp: m.now().UTC(),
		})
	}
	return n
}

// ActiveAlerts returns copies of the active alerts, most recently seen
// first.
func (m *Manager) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// History returns copies of the newest-first history. A limit of zero or
// less returns everything retained.
func (m *Manager) History(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, n)
	for i := 0; i < n; i++ {
		out[i] = *m.history[i]
	}
	return out
}

// Stats summarizes the retained history. The 24h and 1h windows are
// computed by filtering on FirstSeen at call time.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	st := Stats{
		Total:      len(m.history),
		Active:     len(m.active),
		BySeverity: make(map[Severity]int),
		ByType:     make(map[AlertType]int),
	}
	for _, a := range m.history {
		st.BySeverity[a.Severity]++
		st.ByType[a.Type]++
		if a.Escalated {
			st.Escalated++
		}
		age := now.Sub(a.FirstSeen)
		if age <= 24*time.Hour {
			st.Last24h++
		}
		if age <= time.Hour {
			st.Last1h++
		}
	}
	return st
}

// Close waits for in-flight notification dispatches to finish and writes a
// final history snapshot.
func (m *Manager) Close() {
	m.dispatchWG.Wait()
	m.persist()
}

// persist writes the full history to disk. The persist lock is taken before
// the snapshot so concurrent writers cannot land an older snapshot last.
func (m *Manager) persist() {
	if m.historyPath == "" {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	snapshot := make([]Alert, len(m.history))
	for i, a := range m.history {
		snapshot[i] = *a
	}
	m.mu.Unlock()

	if err := saveHistory(m.historyPath, snapshot); err != nil {
		m.logger.Warn("failed to persist alert history",
			zap.String("path", m.historyPath), zap.Error(err))
	}
}

func (m *Manager) publish(evtType events.EventType, a Alert) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Type:      evtType,
		Path:      a.Path,
		Summary:   fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Message),
		Detail:    a,
		Timestamp: m.now().UTC(),
	})
}

// dispatch hands the alert to the notifier on a fresh goroutine. Delivery
// runs against a background context so shutting down a caller cannot cancel
// a send already in flight.
func (m *Manager) dispatch(kind NotificationKind, a Alert) {
	if m.notifier == nil {
		return
	}

	m.dispatchWG.Add(1)
	go func() {
		defer m.dispatchWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		for _, d := range m.notifier.Notify(ctx, kind, &a) {
			ok := d.Err == nil
			metrics.RecordNotification(d.Channel, ok)
			if !ok {
				m.logger.Warn("notification delivery failed",
					zap.String("channel", d.Channel),
					zap.String("alert_id", a.ID),
					zap.String("kind", string(kind)),
					zap.Error(d.Err))
			}
			if m.bus == nil {
				continue
			}

			summary := fmt.Sprintf("%s delivered via %s", kind, d.Channel)
			detail := map[string]any{"alert_id": a.ID, "channel": d.Channel, "kind": string(kind), "ok": ok}
			if !ok {
				summary = fmt.Sprintf("%s delivery via %s failed", kind, d.Channel)
				detail["error"] = d.Err.Error()
			}
			m.bus.Publish(events.Event{
				Type:      events.NotificationSent,
				Path:      a.Path,
				Summary:   summary,
				Detail:    detail,
				Timestamp: m.now().UTC(),
			})
		}
	}()
}
