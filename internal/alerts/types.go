package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Severity of an alert, ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering of a severity; unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Promote returns the next severity up. Critical stays critical.
func (s Severity) Promote() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	default:
		return s
	}
}

// AlertType classifies what tripped an alert.
type AlertType string

const (
	TypeRisk          AlertType = "risk"
	TypeCompatibility AlertType = "compatibility"
	TypeCritical      AlertType = "critical"
	TypeCustom        AlertType = "custom"
)

// Alert statuses.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// RawAlert is evaluator output before dedup.
type RawAlert struct {
	Type     AlertType
	Severity Severity
	Message  string
	Path     string
}

// Alert is one deduplicated, tracked alert.
type Alert struct {
	ID               string    `json:"id"`
	Key              string    `json:"key"`
	Type             AlertType `json:"type"`
	Severity         Severity  `json:"severity"`
	OriginalSeverity Severity  `json:"original_severity"`
	Message          string    `json:"message"`
	Path             string    `json:"path,omitempty"`
	Count            int       `json:"count"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	Status           string    `json:"status"`
	Escalated        bool      `json:"escalated"`
	EscalationCount  int       `json:"escalation_count,omitempty"`
}

// EscalationRule promotes an alert's severity when it repeats quickly:
// MaxCount occurrences inside Window trigger a one-level promotion.
type EscalationRule struct {
	MaxCount int
	Window   time.Duration
}

// Stats summarizes alert activity. Window counts are computed by filtering
// history, not maintained incrementally.
type Stats struct {
	Total      int               `json:"total"`
	Active     int               `json:"active"`
	Last24h    int               `json:"last24h"`
	Last1h     int               `json:"last1h"`
	BySeverity map[Severity]int  `json:"bySeverity"`
	ByType     map[AlertType]int `json:"byType"`
	Escalated  int               `json:"escalated"`
}

// IdentityKey derives the dedup key for an alert. Two raw alerts collide
// only when type, path, and message all match.
func IdentityKey(alertType AlertType, path, message string) string {
	h := sha256.New()
	h.Write([]byte(alertType))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
