// Package profiler logs frame rate and Go heap statistics at a fixed
// interval, for watching allocation churn in the render loop.
package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler accumulates frame counts between ticks and logs a stats line once
// per interval.
type Profiler struct {
	interval time.Duration

	frameCount     int
	lastTime       time.Time
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// ProfilerOption configures a Profiler at construction.
type ProfilerOption func(*Profiler)

// WithInterval sets how often a stats line is logged.
//
// Parameters:
//   - interval: the time between log lines
//
// Returns:
//   - ProfilerOption: the option to pass to NewProfiler
func WithInterval(interval time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.interval = interval
	}
}

// NewProfiler creates a profiler that logs once per second unless configured
// otherwise.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - *Profiler: the new profiler
func NewProfiler(opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		interval: time.Second,
		lastTime: time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick counts one frame and logs a stats line when the interval has elapsed.
//
// Returns:
//   - bool: true if a line was logged this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)

	heapMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	lastPauseUs, maxPauseUs := p.gcPauses()

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, heapMB, allocRateMB, p.memStats.NumGC, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// gcPauses returns the most recent GC pause and the longest pause since the
// previous tick, both in microseconds. PauseNs is a ring of the last 256
// pauses, so older entries may already be overwritten.
func (p *Profiler) gcPauses() (last, max uint64) {
	count := p.memStats.NumGC
	if count == 0 {
		return 0, 0
	}
	last = p.memStats.PauseNs[(count-1)%256] / 1000

	start := p.lastGCCount
	if count-start > 256 {
		start = count - 256
	}
	for i := start; i < count; i++ {
		if pause := p.memStats.PauseNs[i%256] / 1000; pause > max {
			max = pause
		}
	}
	return last, max
}
