package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kmattern/basewatch/internal/analyzer"
)

func sampleAssessment(path string, risk int) *analyzer.Assessment {
	return &analyzer.Assessment{
		Path:        path,
		RiskScore:   risk,
		CompatScore: 100 - risk,
		Features: []analyzer.FeatureHit{
			{FeatureID: "api-webgpu", Name: "WebGPU", Status: "limited"},
		},
		Recommendations: []analyzer.Recommendation{
			{Severity: "critical", Message: "WebGPU has limited availability", FeatureID: "api-webgpu"},
		},
		AnalyzedAt: time.Now().UTC(),
	}
}

func TestSQLitePutGetList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Put(sampleAssessment("src/app.js", 85)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(sampleAssessment("src/util.ts", 20)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get("src/app.js")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.RiskScore != 85 {
		t.Fatalf("expected risk 85, got %d", got.RiskScore)
	}
	if len(got.Features) != 1 || got.Features[0].FeatureID != "api-webgpu" {
		t.Fatalf("features did not survive roundtrip: %+v", got.Features)
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].Severity != "critical" {
		t.Fatalf("recommendations did not survive roundtrip: %+v", got.Recommendations)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].Path != "src/app.js" || list[1].Path != "src/util.ts" {
		t.Fatalf("expected path order, got %s then %s", list[0].Path, list[1].Path)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

func TestSQLitePutReplacesByPath(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Put(sampleAssessment("src/app.js", 85)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(sampleAssessment("src/app.js", 30)); err != nil {
		t.Fatalf("second Put error: %v", err)
	}

	got, err := s.Get("src/app.js")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.RiskScore != 30 {
		t.Fatalf("expected replacement risk 30, got %d", got.RiskScore)
	}

	n, _ := s.Count()
	if n != 1 {
		t.Fatalf("expected 1 record after upsert, got %d", n)
	}
}

func TestSQLiteDeleteAndNotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.Get("missing.js"); !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err := s.Delete("missing.js"); !IsNotFound(err) {
		t.Fatalf("expected not-found error on delete, got %v", err)
	}

	if err := s.Put(sampleAssessment("src/app.js", 85)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Delete("src/app.js"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get("src/app.js"); !IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestSQLiteSurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s1.Put(sampleAssessment("src/app.js", 85)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	_ = s1.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer func() { _ = s2.Close() }()

	got, err := s2.Get("src/app.js")
	if err != nil {
		t.Fatalf("Get after reopen error: %v", err)
	}
	if got.RiskScore != 85 {
		t.Fatalf("expected risk 85 after reopen, got %d", got.RiskScore)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	defer func() { _ = m.Close() }()

	if _, err := m.Get("missing.js"); !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}

	if err := m.Put(sampleAssessment("b.js", 40)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := m.Put(sampleAssessment("a.js", 60)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	list, err := m.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 || list[0].Path != "a.js" || list[1].Path != "b.js" {
		t.Fatalf("expected sorted paths, got %+v", list)
	}

	got, err := m.Get("a.js")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	got.RiskScore = 0
	again, _ := m.Get("a.js")
	if again.RiskScore != 60 {
		t.Fatalf("stored record mutated through returned pointer")
	}

	if err := m.Delete("a.js"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := m.Delete("a.js"); !IsNotFound(err) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}

	n, _ := m.Count()
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
}
