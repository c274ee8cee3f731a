/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestAllowPerKeyLimit(t *testing.T) {
	l := NewLimiter(Config{MaxPerHourPerKey: 3})

	for i := 0; i < 3; i++ {
		if d := l.Allow("key-a", false); !d.Allowed {
			t.Fatalf("send %d should be allowed, got %q", i+1, d.Reason)
		}
	}

	d := l.Allow("key-a", false)
	if d.Allowed {
		t.Fatal("4th send for the same key should be limited")
	}
	if !strings.Contains(d.Reason, "per-alert") {
		t.Fatalf("expected per-alert reason, got %q", d.Reason)
	}

	if d := l.Allow("key-b", false); !d.Allowed {
		t.Fatalf("different key should be allowed, got %q", d.Reason)
	}
}

func TestAllowGlobalLimit(t *testing.T) {
	l := NewLimiter(Config{MaxPerHour: 2})

	l.Allow("a", false)
	l.Allow("b", false)

	d := l.Allow("c", false)
	if d.Allowed {
		t.Fatal("3rd send should hit the global limit")
	}
	if !strings.Contains(d.Reason, "global") {
		t.Fatalf("expected global reason, got %q", d.Reason)
	}
}

func TestEscalationBurst(t *testing.T) {
	l := NewLimiter(Config{MaxPerHour: 1, EscalationBurst: 2})

	l.Allow("a", false)

	if d := l.Allow("b", false); d.Allowed {
		t.Fatal("regular send past the limit should be blocked")
	}
	if d := l.Allow("b", true); !d.Allowed {
		t.Fatalf("escalation should use the burst allowance, got %q", d.Reason)
	}
}

func TestZeroConfigDisablesLimits(t *testing.T) {
	l := NewLimiter(Config{})

	for i := 0; i < 50; i++ {
		if d := l.Allow("key", false); !d.Allowed {
			t.Fatalf("send %d blocked with limits disabled: %q", i+1, d.Reason)
		}
	}
}

func TestPruneExpiresOldRecords(t *testing.T) {
	l := NewLimiter(Config{MaxPerHour: 1})

	l.history = []sendRecord{{key: "old", time: time.Now().Add(-2 * time.Hour)}}

	if d := l.Allow("new", false); !d.Allowed {
		t.Fatalf("expected stale record to be pruned, got %q", d.Reason)
	}
}

func TestGetStats(t *testing.T) {
	l := NewLimiter(DefaultConfig())

	l.Allow("a", false)
	l.Allow("a", false)
	l.Allow("b", false)

	stats := l.GetStats()
	if stats.SentLastHour != 3 {
		t.Fatalf("expected 3 sends, got %d", stats.SentLastHour)
	}
	if stats.ByKey["a"] != 2 || stats.ByKey["b"] != 1 {
		t.Fatalf("unexpected per-key counts: %v", stats.ByKey)
	}
}
