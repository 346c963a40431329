package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

func TestAudioSumTask_CommutesAcrossInputOrder(t *testing.T) {
	a := &audiobuf.AudioBuffer{Samples: []float32{1, 2, 3}}
	b := &audiobuf.AudioBuffer{Samples: []float32{10, 20, 30}}
	c := &audiobuf.AudioBuffer{Samples: []float32{100, 200, 300}}

	forward := &audiobuf.AudioBuffer{Samples: make([]float32, 3)}
	reversed := &audiobuf.AudioBuffer{Samples: make([]float32, 3)}

	forwardTask := &AudioSumTask{Inputs: []*audiobuf.AudioBuffer{a, b, c}, Output: forward}
	reversedTask := &AudioSumTask{Inputs: []*audiobuf.AudioBuffer{c, b, a}, Output: reversed}

	require.NoError(t, forwardTask.Process(pluginapi.ProcInfo{Frames: 3}))
	require.NoError(t, reversedTask.Process(pluginapi.ProcInfo{Frames: 3}))

	assert.Equal(t, []float32{111, 222, 333}, forward.Samples)
	assert.Equal(t, forward.Samples, reversed.Samples)
}

func TestAudioSumTask_ConstantHintRequiresAllConstantInputsAndUniformResult(t *testing.T) {
	a := &audiobuf.AudioBuffer{Samples: []float32{1, 1, 1}, IsConstant: true}
	b := &audiobuf.AudioBuffer{Samples: []float32{2, 2, 2}, IsConstant: true}
	out := &audiobuf.AudioBuffer{Samples: make([]float32, 3)}

	task := &AudioSumTask{Inputs: []*audiobuf.AudioBuffer{a, b}, Output: out}
	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 3}))
	assert.True(t, out.IsConstant)

	nonConstant := &audiobuf.AudioBuffer{Samples: []float32{5, 6, 7}, IsConstant: false}
	task2 := &AudioSumTask{Inputs: []*audiobuf.AudioBuffer{a, nonConstant}, Output: out}
	require.NoError(t, task2.Process(pluginapi.ProcInfo{Frames: 3}))
	assert.False(t, out.IsConstant)
}

func TestNoteSumTask_MergesAndSortsStableByFrameOffset(t *testing.T) {
	a := &audiobuf.NoteBuffer{Events: []audiobuf.NoteEvent{
		{FrameOffset: 10, Kind: 1},
		{FrameOffset: 5, Kind: 2},
	}}
	b := &audiobuf.NoteBuffer{Events: []audiobuf.NoteEvent{
		{FrameOffset: 5, Kind: 3},
		{FrameOffset: 1, Kind: 4},
	}}
	out := &audiobuf.NoteBuffer{}
	task := &NoteSumTask{Inputs: []*audiobuf.NoteBuffer{a, b}, Output: out}
	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 64}))

	require.Len(t, out.Events, 4)
	offsets := make([]int, len(out.Events))
	for i, ev := range out.Events {
		offsets[i] = ev.FrameOffset
	}
	assert.Equal(t, []int{1, 5, 5, 10}, offsets)
	// Stable sort: the two FrameOffset==5 events keep a's before b's since a
	// was listed first in Inputs.
	assert.Equal(t, 2, out.Events[1].Kind)
	assert.Equal(t, 3, out.Events[2].Kind)
}

func TestAutomationSumTask_MergesAndSorts(t *testing.T) {
	a := &audiobuf.AutomationBuffer{Events: []audiobuf.AutomationEvent{{FrameOffset: 20, ParamID: 1}}}
	b := &audiobuf.AutomationBuffer{Events: []audiobuf.AutomationEvent{{FrameOffset: 2, ParamID: 2}}}
	out := &audiobuf.AutomationBuffer{}
	task := &AutomationSumTask{Inputs: []*audiobuf.AutomationBuffer{a, b}, Output: out}
	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 64}))

	require.Len(t, out.Events, 2)
	assert.Equal(t, uint32(2), out.Events[0].ParamID)
	assert.Equal(t, uint32(1), out.Events[1].ParamID)
}
