package monitor

import (
	"testing"
	"time"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	fired := make(chan string, 16)
	d := NewDebouncer(50*time.Millisecond, func(path string) { fired <- path })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger("src/app.js")
	}

	select {
	case path := <-fired:
		if path != "src/app.js" {
			t.Fatalf("expected src/app.js, got %s", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced callback")
	}

	select {
	case path := <-fired:
		t.Fatalf("expected a single callback for the burst, got another for %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncerTracksPathsIndependently(t *testing.T) {
	fired := make(chan string, 16)
	d := NewDebouncer(50*time.Millisecond, func(path string) { fired <- path })
	defer d.Stop()

	d.Trigger("a.js")
	d.Trigger("b.css")

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case path := <-fired:
			got[path] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, fired so far: %v", got)
		}
	}
	if !got["a.js"] || !got["b.css"] {
		t.Fatalf("expected both paths to fire, got %v", got)
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	fired := make(chan string, 16)
	d := NewDebouncer(100*time.Millisecond, func(path string) { fired <- path })

	d.Trigger("pending.js")
	d.Stop()

	if n := d.Pending(); n != 0 {
		t.Fatalf("expected no pending timers after Stop, got %d", n)
	}
	select {
	case path := <-fired:
		t.Fatalf("expected no callback after Stop, got %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDebouncerTriggerAfterStopIgnored(t *testing.T) {
	fired := make(chan string, 16)
	d := NewDebouncer(20*time.Millisecond, func(path string) { fired <- path })

	d.Stop()
	d.Trigger("late.js")

	if n := d.Pending(); n != 0 {
		t.Fatalf("expected trigger after Stop to be ignored, got %d pending", n)
	}
	select {
	case path := <-fired:
		t.Fatalf("expected no callback after Stop, got %s", path)
	case <-time.After(150 * time.Millisecond):
	}
}
