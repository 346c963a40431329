package schedule

import (
	"fmt"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// DelayNode holds the ring state for one audio delay-compensation edge. It
// is cached by (edgeID, delaySamples) across recompilations so a stable edge
// keeps its in-flight samples through a graph edit elsewhere in the graph.
type DelayNode struct {
	ring   []float32
	cursor int
	delay  int

	// active is cleared at the start of every compile and set by any
	// abstract entry that still references this node; entries left clear
	// after a compile are removed from the delay cache, and only the
	// eviction's metrics bookkeeping goes to the deferred reclaimer.
	active bool
}

// NewDelayNode allocates a ring of the given delay length. A zero delay is
// legal (the compiler only warns) and produces a pass-through node.
func NewDelayNode(delaySamples int) *DelayNode {
	n := delaySamples
	if n < 0 {
		n = 0
	}
	return &DelayNode{
		ring:  make([]float32, n),
		delay: n,
	}
}

// MarkActive flags the node as still referenced by the current compile.
func (n *DelayNode) MarkActive() { n.active = true }

// MarkInactiveForSweep clears the active flag ahead of a new compile pass.
func (n *DelayNode) MarkInactiveForSweep() { n.active = false }

// Active reports whether MarkActive has run since the last sweep.
func (n *DelayNode) Active() bool { return n.active }

// Delay returns the node's fixed delay length in samples.
func (n *DelayNode) Delay() int { return n.delay }

// process runs the delay-comp shift-register algorithm for one block: emit
// the delay oldest samples, then fold the new block into the ring.
func (n *DelayNode) process(in, out []float32) {
	frames := len(in)
	if n.delay == 0 {
		copy(out, in)
		return
	}

	if frames <= n.delay {
		// Emit `frames` samples from the ring starting at cursor, then
		// write the new block into the ring at the same position,
		// advancing the cursor modulo delay.
		for i := 0; i < frames; i++ {
			idx := (n.cursor + i) % n.delay
			out[i] = n.ring[idx]
			n.ring[idx] = in[i]
		}
		n.cursor = (n.cursor + frames) % n.delay
		return
	}

	// frames > delay: the first `delay` output samples come from the ring
	// (oldest-first starting at cursor); the remainder come directly from
	// the head of the input; the ring is then reloaded from the input's
	// tail (the last `delay` samples of in).
	for i := 0; i < n.delay; i++ {
		idx := (n.cursor + i) % n.delay
		out[i] = n.ring[idx]
	}
	copy(out[n.delay:], in[:frames-n.delay])

	tailStart := frames - n.delay
	copy(n.ring, in[tailStart:])
	n.cursor = 0
}

// AudioDelayCompTask delays one audio buffer by the node's fixed sample
// count, setting the output's constant-hint flag iff every output sample in
// this block equals the first.
type AudioDelayCompTask struct {
	Node   *DelayNode
	Input  *audiobuf.AudioBuffer
	Output *audiobuf.AudioBuffer
}

func (t *AudioDelayCompTask) Label() string {
	return fmt.Sprintf("audio-delay-comp[%d]", t.Node.Delay())
}

func (t *AudioDelayCompTask) Process(info pluginapi.ProcInfo) error {
	frames := info.Frames
	t.Node.process(t.Input.Samples[:frames], t.Output.Samples[:frames])

	constant := true
	first := t.Output.Samples[0]
	for _, s := range t.Output.Samples[:frames] {
		if s != first {
			constant = false
			break
		}
	}
	t.Output.IsConstant = constant
	return nil
}

// NoteDelayCompTask shifts every note event's frame offset later by the
// node's delay, carrying events that overflow the current block into the
// next one.
type NoteDelayCompTask struct {
	DelaySamples int
	Input        *audiobuf.NoteBuffer
	Output       *audiobuf.NoteBuffer
	carry        []audiobuf.NoteEvent
}

func (t *NoteDelayCompTask) Label() string {
	return fmt.Sprintf("note-delay-comp[%d]", t.DelaySamples)
}

func (t *NoteDelayCompTask) Process(info pluginapi.ProcInfo) error {
	t.Output.Clear()
	t.Output.Events = append(t.Output.Events, t.carry...)
	t.carry = t.carry[:0]

	for _, ev := range t.Input.Events {
		shifted := ev.FrameOffset + t.DelaySamples
		if shifted >= info.Frames {
			t.carry = append(t.carry, audiobuf.NoteEvent{
				FrameOffset: shifted - info.Frames,
				Kind:        ev.Kind,
				Data:        ev.Data,
			})
			continue
		}
		t.Output.Events = append(t.Output.Events, audiobuf.NoteEvent{
			FrameOffset: shifted,
			Kind:        ev.Kind,
			Data:        ev.Data,
		})
	}
	return nil
}

// AutomationDelayCompTask is the automation-port analogue of
// NoteDelayCompTask.
type AutomationDelayCompTask struct {
	DelaySamples int
	Input        *audiobuf.AutomationBuffer
	Output       *audiobuf.AutomationBuffer
	carry        []audiobuf.AutomationEvent
}

func (t *AutomationDelayCompTask) Label() string {
	return fmt.Sprintf("automation-delay-comp[%d]", t.DelaySamples)
}

func (t *AutomationDelayCompTask) Process(info pluginapi.ProcInfo) error {
	t.Output.Clear()
	t.Output.Events = append(t.Output.Events, t.carry...)
	t.carry = t.carry[:0]

	for _, ev := range t.Input.Events {
		shifted := ev.FrameOffset + t.DelaySamples
		if shifted >= info.Frames {
			t.carry = append(t.carry, audiobuf.AutomationEvent{
				FrameOffset: shifted - info.Frames,
				ParamID:     ev.ParamID,
				Value:       ev.Value,
			})
			continue
		}
		t.Output.Events = append(t.Output.Events, audiobuf.AutomationEvent{
			FrameOffset: shifted,
			ParamID:     ev.ParamID,
			Value:       ev.Value,
		})
	}
	return nil
}
