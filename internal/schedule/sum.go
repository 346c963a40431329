package schedule

import (
	"fmt"
	"sort"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// AudioSumTask adds multiple audio inputs into one output buffer, in the
// fixed order the schedule lists them — addition order is not
// commutatively re-derived, so reordering the abstract schedule's inputs
// deterministically reorders the sum.
type AudioSumTask struct {
	Inputs []*audiobuf.AudioBuffer
	Output *audiobuf.AudioBuffer
}

func (t *AudioSumTask) Label() string {
	return fmt.Sprintf("audio-sum[%d inputs]", len(t.Inputs))
}

func (t *AudioSumTask) Process(info pluginapi.ProcInfo) error {
	frames := info.Frames
	out := t.Output.Samples[:frames]
	for i := range out {
		out[i] = 0
	}
	allConstant := true
	for _, in := range t.Inputs {
		src := in.Samples[:frames]
		for j := range out {
			out[j] += src[j]
		}
		if !in.IsConstant {
			allConstant = false
		}
	}

	t.Output.IsConstant = allConstant && sameValue(out)
	return nil
}

func sameValue(s []float32) bool {
	if len(s) == 0 {
		return true
	}
	first := s[0]
	for _, v := range s {
		if v != first {
			return false
		}
	}
	return true
}

// NoteSumTask merges multiple note-event streams into one output, sorted by
// frame offset (stable on input order, so ties preserve schedule order).
type NoteSumTask struct {
	Inputs []*audiobuf.NoteBuffer
	Output *audiobuf.NoteBuffer
}

func (t *NoteSumTask) Label() string {
	return fmt.Sprintf("note-sum[%d inputs]", len(t.Inputs))
}

func (t *NoteSumTask) Process(_ pluginapi.ProcInfo) error {
	t.Output.Clear()
	for _, in := range t.Inputs {
		t.Output.Events = append(t.Output.Events, in.Events...)
	}
	sort.SliceStable(t.Output.Events, func(i, j int) bool {
		return t.Output.Events[i].FrameOffset < t.Output.Events[j].FrameOffset
	})
	return nil
}

// AutomationSumTask is the automation-port analogue of NoteSumTask.
type AutomationSumTask struct {
	Inputs []*audiobuf.AutomationBuffer
	Output *audiobuf.AutomationBuffer
}

func (t *AutomationSumTask) Label() string {
	return fmt.Sprintf("automation-sum[%d inputs]", len(t.Inputs))
}

func (t *AutomationSumTask) Process(_ pluginapi.ProcInfo) error {
	t.Output.Clear()
	for _, in := range t.Inputs {
		t.Output.Events = append(t.Output.Events, in.Events...)
	}
	sort.SliceStable(t.Output.Events, func(i, j int) bool {
		return t.Output.Events[i].FrameOffset < t.Output.Events[j].FrameOffset
	})
	return nil
}
