package utils

import (
	"bytes"
	"runtime"
	"testing"
	"time"
)

// GoroutineLeakDetector fails a test when goroutines started during the test
// are still running once it settles.
type GoroutineLeakDetector struct {
	t             testing.TB
	baseline      int
	allowedGrowth int
	settle        time.Duration
	pollInterval  time.Duration
	stackFilter   string
}

// NewGoroutineLeakDetector creates a detector reporting to t.
func NewGoroutineLeakDetector(t testing.TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:            t,
		settle:       time.Second,
		pollInterval: 10 * time.Millisecond,
		stackFilter:  "github.com/ajitpratap0/polyglot/",
	}
}

// SetAllowedGrowth sets how many extra goroutines are tolerated.
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetSettleTimeout bounds how long Check waits for goroutines to exit.
func (d *GoroutineLeakDetector) SetSettleTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.settle = timeout
	return d
}

// SetStackFilter limits the dumped stacks to goroutines mentioning filter.
// An empty filter dumps every goroutine.
func (d *GoroutineLeakDetector) SetStackFilter(filter string) *GoroutineLeakDetector {
	d.stackFilter = filter
	return d
}

// Start records the baseline goroutine count.
func (d *GoroutineLeakDetector) Start() *GoroutineLeakDetector {
	d.baseline = runtime.NumGoroutine()
	return d
}

// CheckOnCleanup runs Check when the test and its subtests finish.
func (d *GoroutineLeakDetector) CheckOnCleanup() {
	d.t.Cleanup(d.Check)
}

// Check waits up to the settle timeout for the goroutine count to return to
// the baseline plus the allowed growth, and fails the test otherwise.
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	limit := d.baseline + d.allowedGrowth
	deadline := time.Now().Add(d.settle)
	count := runtime.NumGoroutine()
	for count > limit && time.Now().Before(deadline) {
		time.Sleep(d.pollInterval)
		count = runtime.NumGoroutine()
	}

	if count <= limit {
		return
	}
	d.t.Errorf("goroutine leak: %d running, baseline %d, allowed growth %d", count, d.baseline, d.allowedGrowth)
	if stacks := d.stacks(); len(stacks) > 0 {
		d.t.Logf("goroutines:\n%s", stacks)
	}
}

func (d *GoroutineLeakDetector) stacks() []byte {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]
	if d.stackFilter == "" {
		return buf
	}

	var out bytes.Buffer
	for _, g := range bytes.Split(buf, []byte("\n\n")) {
		if bytes.Contains(g, []byte(d.stackFilter)) {
			out.Write(g)
			out.WriteString("\n\n")
		}
	}
	return out.Bytes()
}
