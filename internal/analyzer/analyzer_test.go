/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/kmattern/basewatch/internal/baseline"
)

func newTestAnalyzer(t *testing.T) *BaselineAnalyzer {
	t.Helper()
	return New(nil, Config{})
}

func TestAnalyzeCleanFile(t *testing.T) {
	a := newTestAnalyzer(t)

	content := []byte(`function add(a, b) { return a + b; }`)
	got, err := a.Analyze(context.Background(), "src/math.js", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if got.RiskScore != 0 {
		t.Errorf("risk = %d, want 0", got.RiskScore)
	}
	if got.CompatScore != 100 {
		t.Errorf("compat = %d, want 100", got.CompatScore)
	}
	if len(got.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %d", len(got.Recommendations))
	}
	if got.AnalyzedAt.IsZero() {
		t.Error("expected analyzed_at to be stamped")
	}
}

func TestAnalyzeLimitedFeatures(t *testing.T) {
	a := newTestAnalyzer(t)

	content := []byte(`
const adapter = await navigator.gpu.requestAdapter();
document.startViewTransition(() => render());
const pattern = new URLPattern({ pathname: "/books/:id" });
`)
	got, err := a.Analyze(context.Background(), "src/gpu.js", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	// Three limited features: risk 75, compat 40 at default weights.
	if got.RiskScore != 75 {
		t.Errorf("risk = %d, want 75", got.RiskScore)
	}
	if got.CompatScore != 40 {
		t.Errorf("compat = %d, want 40", got.CompatScore)
	}
	if got.CriticalRecommendations() != 3 {
		t.Errorf("critical recommendations = %d, want 3", got.CriticalRecommendations())
	}
	for _, rec := range got.Recommendations {
		if rec.Severity != SeverityCritical {
			t.Errorf("recommendation severity = %q, want critical", rec.Severity)
		}
	}
}

func TestAnalyzeNewlyFeatures(t *testing.T) {
	a := newTestAnalyzer(t)

	content := []byte(`const { promise, resolve } = Promise.withResolvers();`)
	got, err := a.Analyze(context.Background(), "src/defer.js", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if got.RiskScore != 10 {
		t.Errorf("risk = %d, want 10", got.RiskScore)
	}
	if got.CompatScore != 93 {
		t.Errorf("compat = %d, want 93", got.CompatScore)
	}
	if got.CriticalRecommendations() != 0 {
		t.Errorf("critical recommendations = %d, want 0", got.CriticalRecommendations())
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].Severity != SeverityWarning {
		t.Fatalf("expected one warning recommendation, got %+v", got.Recommendations)
	}
}

func TestAnalyzeWidelyFeaturesScoreNothing(t *testing.T) {
	a := newTestAnalyzer(t)

	content := []byte(`const copy = structuredClone(state); el.showModal();`)
	got, err := a.Analyze(context.Background(), "src/ui.js", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if got.RiskScore != 0 || got.CompatScore != 100 {
		t.Errorf("scores = %d/%d, want 0/100", got.RiskScore, got.CompatScore)
	}
	// Widely-available features still show up as hits for reporting.
	if len(got.Features) != 2 {
		t.Errorf("feature hits = %d, want 2", len(got.Features))
	}
}

func TestAnalyzeScoresClamp(t *testing.T) {
	a := newTestAnalyzer(t)

	// Every limited feature in the default table at once.
	var sb strings.Builder
	sb.WriteString("navigator.gpu\nstartViewTransition\nnew URLPattern\n")
	sb.WriteString("scheduler.postTask(\nnavigation.navigate(\nanchor-name\n")

	got, err := a.Analyze(context.Background(), "src/kitchen-sink.js", []byte(sb.String()))
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if got.RiskScore != 100 {
		t.Errorf("risk = %d, want clamped 100", got.RiskScore)
	}
	if got.CompatScore != 0 {
		t.Errorf("compat = %d, want clamped 0", got.CompatScore)
	}
}

func TestAnalyzeDeterministicHitOrder(t *testing.T) {
	a := newTestAnalyzer(t)

	content := []byte("startViewTransition navigator.gpu :has( @container")
	first, err := a.Analyze(context.Background(), "src/a.css", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	second, err := a.Analyze(context.Background(), "src/a.css", content)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if len(first.Features) != len(second.Features) {
		t.Fatalf("hit counts differ: %d vs %d", len(first.Features), len(second.Features))
	}
	for i := range first.Features {
		if first.Features[i].FeatureID != second.Features[i].FeatureID {
			t.Fatalf("hit order differs at %d: %q vs %q", i, first.Features[i].FeatureID, second.Features[i].FeatureID)
		}
	}
}

func TestAnalyzeRejectsOversizeFile(t *testing.T) {
	a := New(nil, Config{MaxFileSize: 16})

	if _, err := a.Analyze(context.Background(), "src/big.js", []byte(strings.Repeat("x", 32))); err == nil {
		t.Error("expected error for oversize file")
	}
}

func TestAnalyzeCustomTable(t *testing.T) {
	table := baseline.NewTable("test")
	if err := table.Add(baseline.Feature{
		ID: "test-feature", Name: "Test Feature", Status: baseline.StatusLimited,
		Patterns: []string{"dangerZone("}, Hint: "use safeZone instead",
	}); err != nil {
		t.Fatalf("add feature: %v", err)
	}

	a := New(table, Config{})
	got, err := a.Analyze(context.Background(), "src/x.js", []byte("dangerZone(1)"))
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if len(got.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(got.Recommendations))
	}
	if !strings.Contains(got.Recommendations[0].Message, "use safeZone instead") {
		t.Errorf("expected hint in message, got %q", got.Recommendations[0].Message)
	}
}
