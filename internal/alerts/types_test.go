package alerts

import "testing"

func TestIdentityKeyDeterministic(t *testing.T) {
	a := IdentityKey(TypeRisk, "src/app.js", "risk score 85 exceeds threshold 70")
	b := IdentityKey(TypeRisk, "src/app.js", "risk score 85 exceeds threshold 70")
	if a != b {
		t.Fatalf("expected identical keys, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars (128 bits), got %d", len(a))
	}
}

func TestIdentityKeyComponentsMatter(t *testing.T) {
	base := IdentityKey(TypeRisk, "src/app.js", "message")
	cases := map[string]string{
		"type":    IdentityKey(TypeCompatibility, "src/app.js", "message"),
		"path":    IdentityKey(TypeRisk, "src/other.js", "message"),
		"message": IdentityKey(TypeRisk, "src/app.js", "other message"),
	}
	for name, key := range cases {
		if key == base {
			t.Fatalf("expected changing %s to change the key", name)
		}
	}

	// The separator prevents boundary ambiguity between path and message.
	if IdentityKey(TypeRisk, "ab", "c") == IdentityKey(TypeRisk, "a", "bc") {
		t.Fatal("expected shifted path/message boundary to change the key")
	}
}

func TestSeverityPromote(t *testing.T) {
	cases := []struct {
		in, want Severity
	}{
		{SeverityLow, SeverityMedium},
		{SeverityMedium, SeverityHigh},
		{SeverityHigh, SeverityCritical},
		{SeverityCritical, SeverityCritical},
	}
	for _, tc := range cases {
		if got := tc.in.Promote(); got != tc.want {
			t.Fatalf("expected %s to promote to %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("expected %s to rank below %s", order[i-1], order[i])
		}
	}
	if Severity("urgent").Valid() {
		t.Fatal("expected unknown severity to be invalid")
	}
}
