package utils

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	testing.TB
	mu     sync.Mutex
	errors []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) Logf(string, ...interface{}) {}

func TestGoroutineLeakDetector_NoLeak(t *testing.T) {
	rec := &recordingT{}
	d := NewGoroutineLeakDetector(rec).SetSettleTimeout(500 * time.Millisecond).Start()

	done := make(chan struct{})
	go func() { close(done) }()
	<-done

	d.Check()
	assert.Empty(t, rec.errors)
}

func TestGoroutineLeakDetector_DetectsLeak(t *testing.T) {
	rec := &recordingT{}
	d := NewGoroutineLeakDetector(rec).SetSettleTimeout(50 * time.Millisecond).Start()

	stop := make(chan struct{})
	defer close(stop)
	go func() { <-stop }()

	d.Check()
	if assert.Len(t, rec.errors, 1) {
		assert.Contains(t, rec.errors[0], "goroutine leak")
	}
}

func TestGoroutineLeakDetector_AllowedGrowth(t *testing.T) {
	rec := &recordingT{}
	d := NewGoroutineLeakDetector(rec).SetAllowedGrowth(1).SetSettleTimeout(50 * time.Millisecond).Start()

	stop := make(chan struct{})
	defer close(stop)
	go func() { <-stop }()

	d.Check()
	assert.Empty(t, rec.errors)
}

func TestGoroutineLeakDetector_WaitsForExit(t *testing.T) {
	rec := &recordingT{}
	d := NewGoroutineLeakDetector(rec).Start()

	go func() { time.Sleep(50 * time.Millisecond) }()

	d.Check()
	assert.Empty(t, rec.errors)
}
