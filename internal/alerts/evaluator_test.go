package alerts

import (
	"strings"
	"testing"

	"github.com/kmattern/basewatch/internal/analyzer"
)

func TestEvaluateRiskThreshold(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	got := ev.Evaluate(&analyzer.Assessment{Path: "src/app.js", RiskScore: 85, CompatScore: 80})
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Type != TypeRisk {
		t.Fatalf("expected risk alert, got %s", got[0].Type)
	}
	if got[0].Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", got[0].Severity)
	}
	if got[0].Path != "src/app.js" {
		t.Fatalf("expected path carried through, got %q", got[0].Path)
	}
	if !strings.Contains(got[0].Message, "85") || !strings.Contains(got[0].Message, "70") {
		t.Fatalf("expected message to name score and threshold, got %q", got[0].Message)
	}
}

func TestEvaluateRiskBoundaryDoesNotFire(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	got := ev.Evaluate(&analyzer.Assessment{RiskScore: 70, CompatScore: 80})
	if len(got) != 0 {
		t.Fatalf("expected score at threshold not to fire, got %d alerts", len(got))
	}
}

func TestEvaluateCompatThreshold(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	got := ev.Evaluate(&analyzer.Assessment{RiskScore: 10, CompatScore: 45})
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Type != TypeCompatibility {
		t.Fatalf("expected compatibility alert, got %s", got[0].Type)
	}

	got = ev.Evaluate(&analyzer.Assessment{RiskScore: 10, CompatScore: 60})
	if len(got) != 0 {
		t.Fatalf("expected score at threshold not to fire, got %d alerts", len(got))
	}
}

func TestEvaluateCriticalRecommendations(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	got := ev.Evaluate(&analyzer.Assessment{
		RiskScore:   10,
		CompatScore: 90,
		Recommendations: []analyzer.Recommendation{
			{Severity: analyzer.SeverityCritical, Message: "m1", FeatureID: "api-webgpu"},
			{Severity: analyzer.SeverityWarning, Message: "m2", FeatureID: "css-nesting"},
			{Severity: analyzer.SeverityCritical, Message: "m3", FeatureID: "api-urlpattern"},
		},
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Type != TypeCritical || got[0].Severity != SeverityCritical {
		t.Fatalf("expected critical/critical, got %s/%s", got[0].Type, got[0].Severity)
	}
	if !strings.Contains(got[0].Message, "2 critical") {
		t.Fatalf("expected message to count critical recs, got %q", got[0].Message)
	}
	if !strings.Contains(got[0].Message, "api-webgpu") || !strings.Contains(got[0].Message, "api-urlpattern") {
		t.Fatalf("expected message to name offending features, got %q", got[0].Message)
	}
	if strings.Contains(got[0].Message, "css-nesting") {
		t.Fatalf("expected warnings to be left out of the critical message, got %q", got[0].Message)
	}
}

func TestEvaluateRulesAreIndependent(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	got := ev.Evaluate(&analyzer.Assessment{
		RiskScore:   95,
		CompatScore: 20,
		Recommendations: []analyzer.Recommendation{
			{Severity: analyzer.SeverityCritical, Message: "m", FeatureID: "api-webgpu"},
		},
	})
	if len(got) != 3 {
		t.Fatalf("expected all three rules to fire, got %d", len(got))
	}

	types := make(map[AlertType]bool)
	for _, raw := range got {
		types[raw.Type] = true
	}
	for _, want := range []AlertType{TypeRisk, TypeCompatibility, TypeCritical} {
		if !types[want] {
			t.Fatalf("expected %s alert, got %v", want, types)
		}
	}
}

func TestEvaluateCleanAssessment(t *testing.T) {
	ev := NewEvaluator(Thresholds{})

	if got := ev.Evaluate(&analyzer.Assessment{RiskScore: 0, CompatScore: 100}); len(got) != 0 {
		t.Fatalf("expected no alerts for a clean assessment, got %d", len(got))
	}
	if got := ev.Evaluate(nil); got != nil {
		t.Fatalf("expected nil assessment to produce nothing, got %v", got)
	}
}

func TestEvaluateCustomThresholds(t *testing.T) {
	ev := NewEvaluator(Thresholds{Risk: 50, Compatibility: 80})

	got := ev.Evaluate(&analyzer.Assessment{RiskScore: 55, CompatScore: 75})
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts with tightened thresholds, got %d", len(got))
	}
}

func TestNewEvaluatorDefaults(t *testing.T) {
	ev := NewEvaluator(Thresholds{})
	if th := ev.Thresholds(); th.Risk != 70 || th.Compatibility != 60 {
		t.Fatalf("expected defaults 70/60, got %d/%d", th.Risk, th.Compatibility)
	}

	ev = NewEvaluator(Thresholds{Risk: 90})
	if th := ev.Thresholds(); th.Risk != 90 || th.Compatibility != 60 {
		t.Fatalf("expected 90/60, got %d/%d", th.Risk, th.Compatibility)
	}
}
