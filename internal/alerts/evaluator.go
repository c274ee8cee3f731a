package alerts

import (
	"fmt"
	"strings"

	"github.com/kmattern/basewatch/internal/analyzer"
)

// Thresholds tune when assessments become alerts.
type Thresholds struct {
	// Risk alerts fire when the risk score exceeds Risk.
	Risk int
	// Compatibility alerts fire when the compat score drops below Compatibility.
	Compatibility int
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Risk: 70, Compatibility: 60}
}

// Evaluator turns assessments into raw alerts. Rules are independent: one
// assessment can produce zero, one, or several alerts.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator. Zero-valued thresholds get defaults.
func NewEvaluator(t Thresholds) *Evaluator {
	defaults := DefaultThresholds()
	if t.Risk <= 0 {
		t.Risk = defaults.Risk
	}
	if t.Compatibility <= 0 {
		t.Compatibility = defaults.Compatibility
	}
	return &Evaluator{thresholds: t}
}

// Thresholds returns the evaluator's effective thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate applies the alert rules to one assessment.
func (e *Evaluator) Evaluate(a *analyzer.Assessment) []RawAlert {
	if a == nil {
		return nil
	}

	var out []RawAlert

	if a.RiskScore > e.thresholds.Risk {
		out = append(out, RawAlert{
			Type:     TypeRisk,
			Severity: SeverityHigh,
			Path:     a.Path,
			Message:  fmt.Sprintf("Risk score %d exceeds threshold %d", a.RiskScore, e.thresholds.Risk),
		})
	}

	if a.CompatScore < e.thresholds.Compatibility {
		out = append(out, RawAlert{
			Type:     TypeCompatibility,
			Severity: SeverityHigh,
			Path:     a.Path,
			Message:  fmt.Sprintf("Compatibility score %d is below threshold %d", a.CompatScore, e.thresholds.Compatibility),
		})
	}

	if n := a.CriticalRecommendations(); n > 0 {
		out = append(out, RawAlert{
			Type:     TypeCritical,
			Severity: SeverityCritical,
			Path:     a.Path,
			Message:  criticalMessage(a, n),
		})
	}

	return out
}

func criticalMessage(a *analyzer.Assessment, n int) string {
	var ids []string
	for _, rec := range a.Recommendations {
		if rec.Severity == analyzer.SeverityCritical && rec.FeatureID != "" {
			ids = append(ids, rec.FeatureID)
		}
	}
	if len(ids) == 0 {
		return fmt.Sprintf("%d critical compatibility recommendations", n)
	}
	return fmt.Sprintf("%d critical compatibility recommendations: %s", n, strings.Join(ids, ", "))
}
