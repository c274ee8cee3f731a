package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/baseline"
)

type analyzeFileInput struct {
	Path string `json:"path" jsonschema:"path of the source file to analyze"`
}

type activeAlertsInput struct {
	Severity string `json:"severity,omitempty" jsonschema:"optional severity filter: low, medium, high, or critical"`
}

type alertStatsInput struct{}

type checkFeatureInput struct {
	Feature string `json:"feature" jsonschema:"feature id or name to look up in the baseline table"`
}

type featureReport struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Since   string `json:"since,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Verdict string `json:"verdict"`
}

func (s *MCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "basewatch_analyze_file",
		Description: "Analyze one source file for web platform compatibility risks",
	}, s.handleAnalyzeFile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "basewatch_active_alerts",
		Description: "List currently active compatibility alerts, optionally filtered by severity",
	}, s.handleActiveAlerts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "basewatch_alert_stats",
		Description: "Summarize alert activity: totals, severity and type breakdowns, recent windows",
	}, s.handleAlertStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "basewatch_check_feature",
		Description: "Look up a web platform feature's baseline status and adoption guidance",
	}, s.handleCheckFeature)
}

func (s *MCPServer) handleAnalyzeFile(ctx context.Context, _ *mcp.CallToolRequest, input analyzeFileInput) (*mcp.CallToolResult, any, error) {
	if s.mon == nil {
		return nil, nil, fmt.Errorf("monitor unavailable")
	}
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, nil, fmt.Errorf("path is required")
	}

	assessment, err := s.mon.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return jsonToolResult(assessment)
}

func (s *MCPServer) handleActiveAlerts(_ context.Context, _ *mcp.CallToolRequest, input activeAlertsInput) (*mcp.CallToolResult, any, error) {
	if s.mgr == nil {
		return nil, nil, fmt.Errorf("alert manager unavailable")
	}

	active := s.mgr.ActiveAlerts()
	severity := strings.ToLower(strings.TrimSpace(input.Severity))
	if severity != "" {
		if !alerts.Severity(severity).Valid() {
			return nil, nil, fmt.Errorf("invalid severity %q: expected low, medium, high, or critical", input.Severity)
		}
		filtered := make([]alerts.Alert, 0, len(active))
		for _, a := range active {
			if a.Severity == alerts.Severity(severity) {
				filtered = append(filtered, a)
			}
		}
		active = filtered
	}
	return jsonToolResult(active)
}

func (s *MCPServer) handleAlertStats(_ context.Context, _ *mcp.CallToolRequest, _ alertStatsInput) (*mcp.CallToolResult, any, error) {
	if s.mgr == nil {
		return nil, nil, fmt.Errorf("alert manager unavailable")
	}
	return jsonToolResult(s.mgr.Stats())
}

func (s *MCPServer) handleCheckFeature(_ context.Context, _ *mcp.CallToolRequest, input checkFeatureInput) (*mcp.CallToolResult, any, error) {
	if s.table == nil {
		return nil, nil, fmt.Errorf("baseline table unavailable")
	}
	query := strings.TrimSpace(input.Feature)
	if query == "" {
		return nil, nil, fmt.Errorf("feature is required")
	}

	feature, ok := s.table.Lookup(query)
	if !ok {
		// Fall back to a case-insensitive name match.
		needle := strings.ToLower(query)
		for _, f := range s.table.Features() {
			if strings.Contains(strings.ToLower(f.Name), needle) {
				feature, ok = f, true
				break
			}
		}
	}
	if !ok {
		return nil, nil, fmt.Errorf("unknown feature %q", input.Feature)
	}

	return jsonToolResult(featureReport{
		ID:      feature.ID,
		Name:    feature.Name,
		Status:  string(feature.Status),
		Since:   feature.Since,
		Hint:    feature.Hint,
		Verdict: verdictFor(feature.Status),
	})
}

func verdictFor(status baseline.Status) string {
	switch status {
	case baseline.StatusWidely:
		return "widely available, safe to adopt"
	case baseline.StatusNewly:
		return "newly available, consider a fallback for older engines"
	case baseline.StatusLimited:
		return "limited availability, guard usage or ship a polyfill"
	}
	return "unknown status"
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(string(data)), nil, nil
}

func textToolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
