// Package enginemetrics exposes the engine's prometheus instrumentation:
// schedule compiles, ring underruns and fill level, and process-block
// duration. A Collector wraps a *prometheus.Registry so the engine can run
// with metrics disabled entirely (nil registry) without branching at every
// call site.
package enginemetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records engine-internal metrics. The zero value is a safe no-op
// collector; use New to attach a real registry.
type Collector struct {
	enabled bool

	scheduleCompiles   *prometheus.CounterVec
	scheduleCompileDur prometheus.Histogram
	scheduleSwaps      prometheus.Counter

	ringUnderruns *prometheus.CounterVec
	ringFillLevel *prometheus.GaugeVec

	delayNodesEvicted prometheus.Counter

	processBlockDur prometheus.Histogram
	processBlocks   prometheus.Counter
	processDropped  *prometheus.CounterVec
}

// New builds a Collector registered against reg. Passing a nil registry
// returns a disabled collector whose record methods are no-ops, which is how
// the engine runs in tests and in the CLI demo.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		return &Collector{enabled: false}
	}

	c := &Collector{
		enabled: true,
		scheduleCompiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "graph",
			Name:      "compiles_total",
			Help:      "Number of abstract-to-concrete schedule compiles, by outcome.",
		}, []string{"outcome"}),
		scheduleCompileDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engine",
			Subsystem: "graph",
			Name:      "compile_duration_seconds",
			Help:      "Wall time spent compiling an abstract schedule into a concrete one.",
			Buckets:   prometheus.DefBuckets,
		}),
		scheduleSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "graph",
			Name:      "schedule_swaps_total",
			Help:      "Number of times a new compiled schedule was installed for the process thread.",
		}),
		ringUnderruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "ring",
			Name:      "underruns_total",
			Help:      "Number of times a ring buffer had too little data or too little free space for a block.",
		}, []string{"ring"}),
		ringFillLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "engine",
			Subsystem: "ring",
			Name:      "fill_level_frames",
			Help:      "Most recently observed number of readable frames in a ring buffer.",
		}, []string{"ring"}),
		delayNodesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "graph",
			Name:      "delay_nodes_evicted_total",
			Help:      "Number of cached delay-compensation nodes dropped because their edge no longer appears in a compiled schedule.",
		}),
		processBlockDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engine",
			Subsystem: "process",
			Name:      "block_duration_seconds",
			Help:      "Wall time spent executing one process block through the schedule.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		processBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "process",
			Name:      "blocks_total",
			Help:      "Number of process blocks executed.",
		}),
		processDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "process",
			Name:      "blocks_dropped_total",
			Help:      "Number of process blocks skipped due to underrun or missing schedule.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.scheduleCompiles,
		c.scheduleCompileDur,
		c.scheduleSwaps,
		c.ringUnderruns,
		c.ringFillLevel,
		c.delayNodesEvicted,
		c.processBlockDur,
		c.processBlocks,
		c.processDropped,
	)
	return c
}

// RecordCompile records the outcome and duration of a schedule compile.
func (c *Collector) RecordCompile(ok bool, d time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	c.scheduleCompiles.WithLabelValues(outcome).Inc()
	c.scheduleCompileDur.Observe(d.Seconds())
}

// RecordScheduleSwap records that a new schedule was installed into the cell
// the process thread loads from.
func (c *Collector) RecordScheduleSwap() {
	if c == nil || !c.enabled {
		return
	}
	c.scheduleSwaps.Inc()
}

// RecordRingUnderrun records that the named ring could not supply or accept
// a full block (an under-filled read or an exhausted write).
func (c *Collector) RecordRingUnderrun(ring string) {
	if c == nil || !c.enabled {
		return
	}
	c.ringUnderruns.WithLabelValues(ring).Inc()
}

// RecordRingFillLevel records the most recent observed fill level, in frames.
func (c *Collector) RecordRingFillLevel(ring string, frames int) {
	if c == nil || !c.enabled {
		return
	}
	c.ringFillLevel.WithLabelValues(ring).Set(float64(frames))
}

// RecordDelayNodeEvicted records a cached delay-compensation node dropped
// from the delay cache during a compile's sweep pass.
func (c *Collector) RecordDelayNodeEvicted() {
	if c == nil || !c.enabled {
		return
	}
	c.delayNodesEvicted.Inc()
}

// RecordProcessBlock records a completed process block's duration.
func (c *Collector) RecordProcessBlock(d time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.processBlocks.Inc()
	c.processBlockDur.Observe(d.Seconds())
}

// RecordProcessBlockDropped records a skipped process block and why.
func (c *Collector) RecordProcessBlockDropped(reason string) {
	if c == nil || !c.enabled {
		return
	}
	c.processDropped.WithLabelValues(reason).Inc()
}
