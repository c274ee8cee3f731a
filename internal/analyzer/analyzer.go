/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package analyzer scores source files against the baseline feature table.
// An assessment carries a risk score, a compatibility score, and the
// recommendations downstream alerting acts on.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kmattern/basewatch/internal/baseline"
	"github.com/kmattern/basewatch/internal/telemetry"
)

// Recommendation severities, ordered info < warning < critical.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Recommendation is one actionable finding attached to an assessment.
type Recommendation struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	FeatureID string `json:"feature_id,omitempty"`
}

// FeatureHit records one baseline feature detected in a file.
type FeatureHit struct {
	FeatureID string          `json:"feature_id"`
	Name      string          `json:"name"`
	Status    baseline.Status `json:"status"`
	Pattern   string          `json:"pattern"`
	Count     int             `json:"count"`
}

// Assessment is the analysis result for one file. Scores are clamped to
// 0..100: risk grows with usage of not-yet-baseline features, compatibility
// shrinks with it.
type Assessment struct {
	Path            string           `json:"path"`
	RiskScore       int              `json:"risk_score"`
	CompatScore     int              `json:"compatibility_score"`
	Features        []FeatureHit     `json:"features,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// CriticalRecommendations counts recommendations at critical severity.
func (a *Assessment) CriticalRecommendations() int {
	n := 0
	for _, rec := range a.Recommendations {
		if rec.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Analyzer assesses a single file's web-platform compatibility.
type Analyzer interface {
	Analyze(ctx context.Context, path string, content []byte) (*Assessment, error)
}

// Config tunes how feature hits turn into scores.
type Config struct {
	// Risk added per limited / newly feature in use.
	LimitedRiskWeight int
	NewlyRiskWeight   int

	// Compatibility subtracted per limited / newly feature in use.
	LimitedCompatPenalty int
	NewlyCompatPenalty   int

	// Files larger than MaxFileSize bytes are rejected.
	MaxFileSize int
}

// DefaultConfig returns the scoring weights tuned for the default table.
func DefaultConfig() Config {
	return Config{
		LimitedRiskWeight:    25,
		NewlyRiskWeight:      10,
		LimitedCompatPenalty: 20,
		NewlyCompatPenalty:   7,
		MaxFileSize:          2 << 20,
	}
}

// BaselineAnalyzer scores files by substring-matching baseline feature
// patterns. Matching is deliberately dumb: no parsing, no regex, just the
// detection tokens from the table. That keeps a single analysis cheap
// enough to run on every save.
type BaselineAnalyzer struct {
	table *baseline.Table
	cfg   Config
}

// New creates a baseline-driven analyzer. A nil table gets the built-in one.
func New(table *baseline.Table, cfg Config) *BaselineAnalyzer {
	if table == nil {
		table = baseline.Default()
	}
	defaults := DefaultConfig()
	if cfg.LimitedRiskWeight <= 0 {
		cfg.LimitedRiskWeight = defaults.LimitedRiskWeight
	}
	if cfg.NewlyRiskWeight <= 0 {
		cfg.NewlyRiskWeight = defaults.NewlyRiskWeight
	}
	if cfg.LimitedCompatPenalty <= 0 {
		cfg.LimitedCompatPenalty = defaults.LimitedCompatPenalty
	}
	if cfg.NewlyCompatPenalty <= 0 {
		cfg.NewlyCompatPenalty = defaults.NewlyCompatPenalty
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaults.MaxFileSize
	}
	return &BaselineAnalyzer{table: table, cfg: cfg}
}

// Table returns the table the analyzer scores against.
func (b *BaselineAnalyzer) Table() *baseline.Table {
	return b.table
}

// Analyze scores one file's content against the baseline table.
func (b *BaselineAnalyzer) Analyze(ctx context.Context, path string, content []byte) (*Assessment, error) {
	_, span := telemetry.StartAnalyzeSpan(ctx, path)

	if len(content) > b.cfg.MaxFileSize {
		span.End()
		return nil, fmt.Errorf("analyze %s: file size %d exceeds limit %d", path, len(content), b.cfg.MaxFileSize)
	}

	text := string(content)
	hits := b.matchFeatures(text)

	risk := 0
	compat := 100
	var recs []Recommendation

	for _, hit := range hits {
		switch hit.Status {
		case baseline.StatusLimited:
			risk += b.cfg.LimitedRiskWeight
			compat -= b.cfg.LimitedCompatPenalty
			recs = append(recs, Recommendation{
				Severity:  SeverityCritical,
				Message:   b.limitedMessage(hit),
				FeatureID: hit.FeatureID,
			})
		case baseline.StatusNewly:
			risk += b.cfg.NewlyRiskWeight
			compat -= b.cfg.NewlyCompatPenalty
			recs = append(recs, Recommendation{
				Severity:  SeverityWarning,
				Message:   b.newlyMessage(hit),
				FeatureID: hit.FeatureID,
			})
		}
	}

	assessment := &Assessment{
		Path:            path,
		RiskScore:       clampScore(risk),
		CompatScore:     clampScore(compat),
		Features:        hits,
		Recommendations: recs,
		AnalyzedAt:      time.Now().UTC(),
	}

	telemetry.EndAnalyzeSpan(span, assessment.RiskScore, assessment.CompatScore, len(hits))
	return assessment, nil
}

// matchFeatures returns one hit per table feature present in text, sorted
// by feature ID so assessments are deterministic.
func (b *BaselineAnalyzer) matchFeatures(text string) []FeatureHit {
	var hits []FeatureHit
	for _, f := range b.table.Features() {
		for _, pattern := range f.Patterns {
			count := strings.Count(text, pattern)
			if count == 0 {
				continue
			}
			hits = append(hits, FeatureHit{
				FeatureID: f.ID,
				Name:      f.Name,
				Status:    f.Status,
				Pattern:   pattern,
				Count:     count,
			})
			break
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].FeatureID < hits[j].FeatureID })
	return hits
}

func (b *BaselineAnalyzer) limitedMessage(hit FeatureHit) string {
	msg := fmt.Sprintf("%s has limited availability across browsers", hit.Name)
	if hint := b.hint(hit.FeatureID); hint != "" {
		msg += ": " + hint
	}
	return msg
}

func (b *BaselineAnalyzer) newlyMessage(hit FeatureHit) string {
	msg := fmt.Sprintf("%s is newly available; verify it against your browser support window", hit.Name)
	if hint := b.hint(hit.FeatureID); hint != "" {
		msg += ". " + hint
	}
	return msg
}

func (b *BaselineAnalyzer) hint(featureID string) string {
	f, ok := b.table.Lookup(featureID)
	if !ok {
		return ""
	}
	return f.Hint
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
