package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/analyzer"
	"github.com/kmattern/basewatch/internal/baseline"
	"github.com/kmattern/basewatch/internal/events"
	"github.com/kmattern/basewatch/internal/monitor"
)

func testTable(t *testing.T) *baseline.Table {
	t.Helper()
	table := baseline.NewTable("test")
	features := []baseline.Feature{
		{ID: "api-webgpu", Name: "WebGPU", Status: baseline.StatusLimited, Patterns: []string{"navigator.gpu"}, Hint: "gate behind a capability check"},
		{ID: "css-nesting", Name: "CSS Nesting", Status: baseline.StatusNewly, Patterns: []string{"&:hover"}},
		{ID: "api-fetch", Name: "Fetch", Status: baseline.StatusWidely, Patterns: []string{"fetch("}},
	}
	for _, f := range features {
		if err := table.Add(f); err != nil {
			t.Fatalf("add feature: %v", err)
		}
	}
	return table
}

func newTestMCPServer(t *testing.T) (*MCPServer, *alerts.Manager, string) {
	t.Helper()
	dir := t.TempDir()

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	mgr := alerts.NewManager(alerts.ManagerConfig{
		Rules: map[alerts.Severity]alerts.EscalationRule{},
	}, nil, bus, zap.NewNop())
	t.Cleanup(mgr.Close)

	table := testTable(t)
	an := analyzer.New(table, analyzer.Config{})
	mon, err := monitor.New(monitor.Config{Roots: []string{dir}}, an, nil, mgr, nil, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	return New(mon, mgr, table, zap.NewNop()), mgr, dir
}

func connectClient(t *testing.T, srv *MCPServer) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.server.Run(runCtx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Logf("mcp server run exited with: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Log("timed out waiting for mcp server shutdown")
		}
	})

	return session
}

func decodeToolJSON(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("empty tool result: %#v", result)
	}

	var text string
	switch content := result.Content[0].(type) {
	case *mcp.TextContent:
		text = content.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("decode tool json: %v (text=%q)", err, text)
	}
}

func TestToolsRegistered(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)
	session := connectClient(t, srv)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	expected := []string{
		"basewatch_active_alerts",
		"basewatch_alert_stats",
		"basewatch_analyze_file",
		"basewatch_check_feature",
	}

	if len(names) != len(expected) {
		t.Fatalf("expected %d tools, got %d: %v", len(expected), len(names), names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("unexpected tool list: got %v want %v", names, expected)
		}
	}
}

func TestAnalyzeFileTool(t *testing.T) {
	srv, _, dir := newTestMCPServer(t)

	path := filepath.Join(dir, "app.js")
	content := "const adapter = await navigator.gpu.requestAdapter();\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	session := connectClient(t, srv)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "basewatch_analyze_file",
		Arguments: map[string]any{
			"path": path,
		},
	})
	if err != nil {
		t.Fatalf("call basewatch_analyze_file: %v", err)
	}

	var assessment analyzer.Assessment
	decodeToolJSON(t, result, &assessment)
	if assessment.Path != path {
		t.Fatalf("expected path %s, got %s", path, assessment.Path)
	}
	if assessment.RiskScore != 25 {
		t.Fatalf("expected risk 25 for one limited feature, got %d", assessment.RiskScore)
	}
	if len(assessment.Features) != 1 || assessment.Features[0].FeatureID != "api-webgpu" {
		t.Fatalf("expected api-webgpu hit, got %+v", assessment.Features)
	}
}

func TestAnalyzeFileToolRequiresPath(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)

	result, _, err := srv.handleAnalyzeFile(context.Background(), nil, analyzeFileInput{})
	if result != nil {
		t.Fatalf("expected nil tool result, got %#v", result)
	}
	if err == nil || err.Error() != "path is required" {
		t.Fatalf("expected path validation error, got %v", err)
	}
}

func TestActiveAlertsTool(t *testing.T) {
	srv, mgr, _ := newTestMCPServer(t)

	mgr.Process(context.Background(), alerts.RawAlert{
		Type: alerts.TypeRisk, Severity: alerts.SeverityHigh, Message: "risk high", Path: "a.js",
	})
	mgr.Process(context.Background(), alerts.RawAlert{
		Type: alerts.TypeCritical, Severity: alerts.SeverityCritical, Message: "webgpu unguarded", Path: "b.js",
	})

	session := connectClient(t, srv)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "basewatch_active_alerts",
		Arguments: map[string]any{
			"severity": "critical",
		},
	})
	if err != nil {
		t.Fatalf("call basewatch_active_alerts: %v", err)
	}

	var active []alerts.Alert
	decodeToolJSON(t, result, &active)
	if len(active) != 1 {
		t.Fatalf("expected 1 critical alert, got %d (%+v)", len(active), active)
	}
	if active[0].Path != "b.js" {
		t.Fatalf("expected path b.js, got %s", active[0].Path)
	}
}

func TestActiveAlertsToolRejectsUnknownSeverity(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)

	result, _, err := srv.handleActiveAlerts(context.Background(), nil, activeAlertsInput{Severity: "urgent"})
	if result != nil {
		t.Fatalf("expected nil tool result, got %#v", result)
	}
	if err == nil || !strings.Contains(err.Error(), "invalid severity") {
		t.Fatalf("expected severity validation error, got %v", err)
	}
}

func TestAlertStatsTool(t *testing.T) {
	srv, mgr, _ := newTestMCPServer(t)

	raw := alerts.RawAlert{Type: alerts.TypeRisk, Severity: alerts.SeverityHigh, Message: "again", Path: "a.js"}
	mgr.Process(context.Background(), raw)
	mgr.Process(context.Background(), raw)

	session := connectClient(t, srv)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "basewatch_alert_stats",
	})
	if err != nil {
		t.Fatalf("call basewatch_alert_stats: %v", err)
	}

	var stats alerts.Stats
	decodeToolJSON(t, result, &stats)
	if stats.Total != 1 || stats.Active != 1 {
		t.Fatalf("expected one deduplicated alert, got %+v", stats)
	}
	if stats.BySeverity[alerts.SeverityHigh] != 1 {
		t.Fatalf("expected 1 high severity alert, got %+v", stats.BySeverity)
	}
}

func TestCheckFeatureTool(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)
	session := connectClient(t, srv)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "basewatch_check_feature",
		Arguments: map[string]any{
			"feature": "api-webgpu",
		},
	})
	if err != nil {
		t.Fatalf("call basewatch_check_feature: %v", err)
	}

	var report featureReport
	decodeToolJSON(t, result, &report)
	if report.ID != "api-webgpu" || report.Status != "limited" {
		t.Fatalf("unexpected feature report: %+v", report)
	}
	if !strings.Contains(report.Verdict, "limited availability") {
		t.Fatalf("expected limited verdict, got %q", report.Verdict)
	}
	if report.Hint == "" {
		t.Fatalf("expected hint to survive lookup")
	}
}

func TestCheckFeatureToolMatchesByName(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)

	result, _, err := srv.handleCheckFeature(context.Background(), nil, checkFeatureInput{Feature: "nesting"})
	if err != nil {
		t.Fatalf("check feature by name: %v", err)
	}

	var report featureReport
	decodeToolJSON(t, result, &report)
	if report.ID != "css-nesting" {
		t.Fatalf("expected css-nesting, got %s", report.ID)
	}
	if !strings.Contains(report.Verdict, "newly available") {
		t.Fatalf("expected newly verdict, got %q", report.Verdict)
	}
}

func TestCheckFeatureToolUnknown(t *testing.T) {
	srv, _, _ := newTestMCPServer(t)

	result, _, err := srv.handleCheckFeature(context.Background(), nil, checkFeatureInput{Feature: "api-teleport"})
	if result != nil {
		t.Fatalf("expected nil tool result, got %#v", result)
	}
	if err == nil || !strings.Contains(err.Error(), "unknown feature") {
		t.Fatalf("expected unknown feature error, got %v", err)
	}
}
