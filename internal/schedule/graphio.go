package schedule

import (
	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// GraphInTask deinterleaves the device's input block into one audio buffer
// per channel. It is not itself invoked through Process — the executor
// calls Deinterleave directly once per sub-block, before any other task
// runs — but it still implements Task so it can sit in diagnostics alongside
// the rest of the schedule.
type GraphInTask struct {
	Channels []*audiobuf.AudioBuffer
}

func (t *GraphInTask) Label() string { return "graph-in" }

func (t *GraphInTask) Process(_ pluginapi.ProcInfo) error { return nil }

// Deinterleave splits an interleaved input slice of length frames*len(Channels)
// into the per-channel buffers.
func (t *GraphInTask) Deinterleave(in []float32, frames int) {
	nCh := len(t.Channels)
	if nCh == 0 {
		return
	}
	for ch, buf := range t.Channels {
		dst := buf.Samples[:frames]
		for f := 0; f < frames; f++ {
			dst[f] = in[f*nCh+ch]
		}
		buf.IsConstant = false
	}
}

// GraphOutTask interleaves the per-channel audio buffers the graph produced
// into the device's output block.
type GraphOutTask struct {
	Channels []*audiobuf.AudioBuffer
}

func (t *GraphOutTask) Label() string { return "graph-out" }

func (t *GraphOutTask) Process(_ pluginapi.ProcInfo) error { return nil }

// Interleave writes the per-channel buffers into an interleaved output
// slice of length frames*len(Channels).
func (t *GraphOutTask) Interleave(out []float32, frames int) {
	nCh := len(t.Channels)
	if nCh == 0 {
		return
	}
	for ch, buf := range t.Channels {
		src := buf.Samples[:frames]
		for f := 0; f < frames; f++ {
			out[f*nCh+ch] = src[f]
		}
	}
}
