package graphcompile

import (
	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/enginemetrics"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/reclaim"
	"github.com/resonantwave/engine/internal/schedule"
)

// delayCacheKey identifies one cached delay node by the edge that produced
// it and the rounded sample delay currently requested for that edge.
type delayCacheKey struct {
	edgeID string
	delay  int
}

// DelayCache maps (edge, delaySamples) to a pooled delay node, so repeated
// recompilations of a stable edge reuse the in-flight ring state instead of
// discarding it and re-ramping from silence.
type DelayCache struct {
	nodes map[delayCacheKey]*schedule.DelayNode
}

// NewDelayCache constructs an empty cache.
func NewDelayCache() *DelayCache {
	return &DelayCache{nodes: make(map[delayCacheKey]*schedule.DelayNode)}
}

// beginSweep clears every cached node's active flag ahead of a compile pass.
func (c *DelayCache) beginSweep() {
	for _, n := range c.nodes {
		n.MarkInactiveForSweep()
	}
}

// getOrCreate returns the cached node for (edgeID, delay), creating one if
// absent, and marks it active for the current compile pass.
func (c *DelayCache) getOrCreate(edgeID string, delay int) *schedule.DelayNode {
	key := delayCacheKey{edgeID: edgeID, delay: delay}
	n, ok := c.nodes[key]
	if !ok {
		n = schedule.NewDelayNode(delay)
		c.nodes[key] = n
	}
	n.MarkActive()
	return n
}

// sweepInactive removes every node left inactive after a compile pass and
// hands the eviction count to the deferred reclaimer as a metrics-recording
// job, rather than doing the (cheap, but non-realtime-thread) prometheus
// call inline on whatever goroutine is calling Compile.
func (c *DelayCache) sweepInactive(reclaimer *reclaim.Queue, metrics *enginemetrics.Collector) {
	var evicted int
	for key, n := range c.nodes {
		if !n.Active() {
			evicted++
			delete(c.nodes, key)
		}
	}
	if evicted == 0 || reclaimer == nil {
		return
	}
	jobs := make([]reclaim.Job, evicted)
	for i := range jobs {
		jobs[i] = func() { metrics.RecordDelayNodeEvicted() }
	}
	reclaimer.PushAll(jobs)
}

// SharedPools aggregates the buffer pool, delay cache, plugin-host registry,
// and deferred reclaimer used across compiles of one engine instance. The
// plugin registry is keyed by NodeID rather than PluginInstanceID: the
// abstract schedule addresses nodes by id, and one HostEntry's
// PluginInstanceID is carried inside the entry purely for logging/metrics
// labels.
type SharedPools struct {
	Buffers    *audiobuf.Pool
	DelayCache *DelayCache
	Plugins    map[NodeID]*pluginapi.HostEntry
	Reclaimer  *reclaim.Queue
}

// NewSharedPools constructs an empty SharedPools ready for repeated compiles,
// using the buffer pool's default note/automation event capacity.
func NewSharedPools(maxBlockSize int, reclaimer *reclaim.Queue) *SharedPools {
	return NewSharedPoolsWithEventCapacity(maxBlockSize, 0, reclaimer)
}

// NewSharedPoolsWithEventCapacity is NewSharedPools with an explicit
// per-block note/automation event capacity; maxEventsPerBlock <= 0 falls
// back to the buffer pool's default.
func NewSharedPoolsWithEventCapacity(maxBlockSize, maxEventsPerBlock int, reclaimer *reclaim.Queue) *SharedPools {
	buffers := audiobuf.NewPool(maxBlockSize)
	if maxEventsPerBlock > 0 {
		buffers = audiobuf.NewPoolWithEventCapacity(maxBlockSize, maxEventsPerBlock)
	}
	return &SharedPools{
		Buffers:    buffers,
		DelayCache: NewDelayCache(),
		Plugins:    make(map[NodeID]*pluginapi.HostEntry),
		Reclaimer:  reclaimer,
	}
}
