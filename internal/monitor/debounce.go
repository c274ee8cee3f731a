package monitor

import (
	"sync"
	"time"

	"github.com/kmattern/basewatch/internal/metrics"
)

const defaultDebounce = 500 * time.Millisecond

// Debouncer coalesces rapid event bursts per path. Every trigger resets the
// path's timer; the callback fires once the path has stayed quiet for the
// full delay.
type Debouncer struct {
	delay time.Duration
	fn    func(path string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewDebouncer returns a debouncer that invokes fn with the path once a
// burst settles. A non-positive delay falls back to the default.
func NewDebouncer(delay time.Duration, fn func(path string)) *Debouncer {
	if delay <= 0 {
		delay = defaultDebounce
	}
	return &Debouncer{
		delay:  delay,
		fn:     fn,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger schedules (or reschedules) the callback for a path.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if timer, ok := d.timers[path]; ok {
		if timer.Stop() {
			d.wg.Done()
		}
		metrics.RecordCoalesced()
	}
	d.wg.Add(1)
	d.timers[path] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		d.fn(path)
	})
}

// Pending returns the number of paths with an armed timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels pending timers and waits for in-flight callbacks. Further
// triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for path, timer := range d.timers {
		if timer.Stop() {
			d.wg.Done()
		}
		delete(d.timers, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
