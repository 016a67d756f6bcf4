package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfilerLogsAfterInterval(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.True(t, p.Tick(), "a zero interval logs on every tick")
}

func TestProfilerWaitsForInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Hour))
	assert.False(t, p.Tick())
	assert.False(t, p.Tick())
}
