// Package enginehealth samples process CPU and memory usage for ambient
// observability. It has no ticker of its own: a sample is taken each time
// the owner calls Sampler.Tick. The engine package does not create a
// Sampler or call Tick itself.
package enginehealth

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/resonantwave/engine/internal/xlog"
)

// Sample is one point-in-time reading of process resource usage.
type Sample struct {
	CPUPercent    float64
	RSSBytes      uint64
	NumGoroutines int
	Timestamp     time.Time
}

// Sampler reads CPU and memory usage for the current process. Safe for
// concurrent use; the last sample is published via an atomic pointer so
// readers never block on a sample in progress.
type Sampler struct {
	proc *process.Process
	log  *slog.Logger

	last atomic.Pointer[Sample]
}

// NewSampler constructs a Sampler bound to the current OS process.
func NewSampler() (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: p, log: xlog.ForSubsystem("health")}, nil
}

// Tick takes one sample and publishes it. It is for a caller off the
// realtime path, such as a main-goroutine timer handler. ctx bounds the syscalls gopsutil
// makes internally; a generous timeout (a few hundred ms) is appropriate
// since this runs off the realtime path.
func (s *Sampler) Tick(ctx context.Context, numGoroutines int) {
	cpuPct, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		s.log.Warn("cpu sample failed", "error", err)
	}

	memInfo, err := s.proc.MemoryInfoWithContext(ctx)
	var rss uint64
	if err != nil {
		s.log.Warn("memory sample failed", "error", err)
	} else if memInfo != nil {
		rss = memInfo.RSS
	}

	s.last.Store(&Sample{
		CPUPercent:    cpuPct,
		RSSBytes:      rss,
		NumGoroutines: numGoroutines,
		Timestamp:     time.Now(),
	})
}

// Last returns the most recently published sample, or nil if Tick has never
// run.
func (s *Sampler) Last() *Sample {
	return s.last.Load()
}
