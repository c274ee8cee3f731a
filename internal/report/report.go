// Package report renders scan results and alert statistics as JSON or
// Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/analyzer"
	"github.com/kmattern/basewatch/internal/scanner"
)

// Data collects everything a report can include. Scan, Stats and
// ActiveAlerts are each optional; absent parts are left out of the output.
type Data struct {
	GeneratedAt  time.Time
	Scan         *scanner.Report
	Stats        *alerts.Stats
	ActiveAlerts []alerts.Alert
}

type jsonScan struct {
	Roots       []string              `json:"roots"`
	Files       int                   `json:"files"`
	Analyzed    int                   `json:"analyzed"`
	Skipped     int                   `json:"skipped"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    string                `json:"duration"`
	Assessments []analyzer.Assessment `json:"assessments"`
}

type jsonPayload struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	Scan         *jsonScan      `json:"scan,omitempty"`
	AlertStats   *alerts.Stats  `json:"alert_stats,omitempty"`
	ActiveAlerts []alerts.Alert `json:"active_alerts,omitempty"`
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, d Data) error {
	payload := jsonPayload{
		GeneratedAt:  generatedAt(d),
		AlertStats:   d.Stats,
		ActiveAlerts: d.ActiveAlerts,
	}
	if d.Scan != nil {
		payload.Scan = &jsonScan{
			Roots:       d.Scan.Roots,
			Files:       d.Scan.Files,
			Analyzed:    d.Scan.Analyzed,
			Skipped:     d.Scan.Skipped,
			StartedAt:   d.Scan.StartedAt,
			Duration:    d.Scan.Duration.String(),
			Assessments: d.Scan.Assessments,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// RenderMarkdown writes the report as a Markdown document.
func RenderMarkdown(w io.Writer, d Data) error {
	var b strings.Builder

	b.WriteString("# Web Compatibility Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt(d).Format(time.RFC3339))

	if d.Scan != nil {
		writeScanSection(&b, d.Scan)
	}
	if d.Stats != nil {
		writeStatsSection(&b, d.Stats)
	}
	if len(d.ActiveAlerts) > 0 {
		writeActiveSection(&b, d.ActiveAlerts)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func generatedAt(d Data) time.Time {
	if d.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return d.GeneratedAt
}

func writeScanSection(b *strings.Builder, scan *scanner.Report) {
	b.WriteString("\n## Scan Summary\n\n")
	fmt.Fprintf(b, "- Roots: %s\n", strings.Join(scan.Roots, ", "))
	fmt.Fprintf(b, "- Files seen: %d\n", scan.Files)
	fmt.Fprintf(b, "- Analyzed: %d\n", scan.Analyzed)
	fmt.Fprintf(b, "- Skipped: %d\n", scan.Skipped)
	fmt.Fprintf(b, "- Duration: %s\n", scan.Duration)

	findings := make([]analyzer.Assessment, 0, len(scan.Assessments))
	for _, a := range scan.Assessments {
		if a.RiskScore > 0 || len(a.Recommendations) > 0 {
			findings = append(findings, a)
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].RiskScore != findings[j].RiskScore {
			return findings[i].RiskScore > findings[j].RiskScore
		}
		return findings[i].Path < findings[j].Path
	})

	b.WriteString("\n## Findings\n\n")
	if len(findings) == 0 {
		b.WriteString("No compatibility findings.\n")
		return
	}
	fmt.Fprintf(b, "%d of %d analyzed files had findings.\n\n", len(findings), scan.Analyzed)

	b.WriteString("| File | Risk | Compatibility | Recommendations |\n")
	b.WriteString("|------|-----:|--------------:|----------------:|\n")
	for _, a := range findings {
		fmt.Fprintf(b, "| `%s` | %d | %d | %d |\n",
			mdEscape(a.Path), a.RiskScore, a.CompatScore, len(a.Recommendations))
	}

	for _, a := range findings {
		if len(a.Recommendations) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n### %s\n\n", mdEscape(a.Path))
		for _, rec := range a.Recommendations {
			if rec.FeatureID != "" {
				fmt.Fprintf(b, "- **%s** %s (`%s`)\n", rec.Severity, mdEscape(rec.Message), rec.FeatureID)
			} else {
				fmt.Fprintf(b, "- **%s** %s\n", rec.Severity, mdEscape(rec.Message))
			}
		}
	}
}

func writeStatsSection(b *strings.Builder, stats *alerts.Stats) {
	b.WriteString("\n## Alert Statistics\n\n")
	fmt.Fprintf(b, "- Total: %d (active %d, escalated %d)\n", stats.Total, stats.Active, stats.Escalated)
	fmt.Fprintf(b, "- Last 24h: %d, last hour: %d\n", stats.Last24h, stats.Last1h)

	b.WriteString("\n| Severity | Count |\n|----------|------:|\n")
	for _, sev := range []alerts.Severity{alerts.SeverityLow, alerts.SeverityMedium, alerts.SeverityHigh, alerts.SeverityCritical} {
		fmt.Fprintf(b, "| %s | %d |\n", sev, stats.BySeverity[sev])
	}

	b.WriteString("\n| Type | Count |\n|------|------:|\n")
	for _, at := range []alerts.AlertType{alerts.TypeRisk, alerts.TypeCompatibility, alerts.TypeCritical, alerts.TypeCustom} {
		fmt.Fprintf(b, "| %s | %d |\n", at, stats.ByType[at])
	}
}

func writeActiveSection(b *strings.Builder, active []alerts.Alert) {
	b.WriteString("\n## Active Alerts\n\n")
	b.WriteString("| Severity | Type | Count | Message |\n")
	b.WriteString("|----------|------|------:|---------|\n")
	for _, a := range active {
		fmt.Fprintf(b, "| %s | %s | %d | %s |\n", a.Severity, a.Type, a.Count, mdEscape(a.Message))
	}
}

// mdEscape keeps cell content from breaking table markup.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
