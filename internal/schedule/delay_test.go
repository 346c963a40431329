package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// feed drives an AudioDelayCompTask over a sequence of blocks and returns the
// concatenation of every block's output, so delay correctness can be checked
// against a simple shifted-input model regardless of how the input was
// chopped into blocks.
func feed(t *testing.T, delay int, blockSizes []int, totalFrames int) (input, output []float32) {
	t.Helper()
	node := NewDelayNode(delay)
	in := &audiobuf.AudioBuffer{Samples: make([]float32, totalFrames)}
	out := &audiobuf.AudioBuffer{Samples: make([]float32, totalFrames)}
	for i := range in.Samples {
		in.Samples[i] = float32(i + 1)
	}
	task := &AudioDelayCompTask{Node: node, Input: in, Output: out}

	offset := 0
	for _, bs := range blockSizes {
		require.LessOrEqual(t, offset+bs, totalFrames)
		task.Input.Samples = in.Samples[offset : offset+bs]
		task.Output.Samples = out.Samples[offset : offset+bs]
		require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: bs}))
		offset += bs
	}
	return in.Samples[:offset], out.Samples[:offset]
}

func TestAudioDelayCompTask_DelayOne(t *testing.T) {
	const delay = 1
	in, out := feed(t, delay, []int{8}, 8)
	for i := 0; i < len(in); i++ {
		if i < delay {
			assert.Equal(t, float32(0), out[i], "index %d", i)
		} else {
			assert.Equal(t, in[i-delay], out[i], "index %d", i)
		}
	}
}

func TestAudioDelayCompTask_DelaySixtyFour_AcrossSmallBlocks(t *testing.T) {
	const delay = 64
	total := 256
	blockSizes := make([]int, 0, total/16)
	for i := 0; i < total/16; i++ {
		blockSizes = append(blockSizes, 16)
	}
	in, out := feed(t, delay, blockSizes, total)
	for i := 0; i < len(in); i++ {
		if i < delay {
			assert.Equal(t, float32(0), out[i], "index %d", i)
		} else {
			assert.Equal(t, in[i-delay], out[i], "index %d", i)
		}
	}
}

func TestAudioDelayCompTask_DelayEqualsMaxBlockSize(t *testing.T) {
	const delay = 128
	total := 384
	in, out := feed(t, delay, []int{128, 128, 128}, total)
	for i := 0; i < len(in); i++ {
		if i < delay {
			assert.Equal(t, float32(0), out[i], "index %d", i)
		} else {
			assert.Equal(t, in[i-delay], out[i], "index %d", i)
		}
	}
}

func TestAudioDelayCompTask_DelayLessThanOneBlock(t *testing.T) {
	// Exercises the frames > delay branch: a single block larger than the
	// delay length.
	const delay = 64
	total := 128
	in, out := feed(t, delay, []int{128}, total)
	for i := 0; i < len(in); i++ {
		if i < delay {
			assert.Equal(t, float32(0), out[i], "index %d", i)
		} else {
			assert.Equal(t, in[i-delay], out[i], "index %d", i)
		}
	}
}

func TestAudioDelayCompTask_DelayExceedsOneBlock(t *testing.T) {
	// D = maxBlockSize + 1: the ring holds more than one block's worth of
	// history, so every one of the three 128-frame blocks takes the
	// frames <= delay branch and the frames > delay branch never applies.
	const delay = 129
	total := 384
	in, out := feed(t, delay, []int{128, 128, 128}, total)
	for i := 0; i < len(in); i++ {
		if i < delay {
			assert.Equal(t, float32(0), out[i], "index %d", i)
		} else {
			assert.Equal(t, in[i-delay], out[i], "index %d", i)
		}
	}
}

func TestAudioDelayCompTask_ZeroDelayIsPassThrough(t *testing.T) {
	in, out := feed(t, 0, []int{32}, 32)
	assert.Equal(t, in, out)
}

func TestNoteDelayCompTask_CarriesOverflowingEventsToNextBlock(t *testing.T) {
	const delaySamples = 10
	in := &audiobuf.NoteBuffer{Events: []audiobuf.NoteEvent{
		{FrameOffset: 60, Kind: 1},
	}}
	out := &audiobuf.NoteBuffer{}
	task := &NoteDelayCompTask{DelaySamples: delaySamples, Input: in, Output: out}

	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 64}))
	assert.Empty(t, out.Events, "event shifted past the block boundary should carry over")

	task.Input = &audiobuf.NoteBuffer{}
	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 64}))
	require.Len(t, out.Events, 1)
	assert.Equal(t, 60+delaySamples-64, out.Events[0].FrameOffset)
}

func TestAutomationDelayCompTask_ShiftsWithinBlock(t *testing.T) {
	in := &audiobuf.AutomationBuffer{Events: []audiobuf.AutomationEvent{
		{FrameOffset: 5, ParamID: 1, Value: 0.5},
	}}
	out := &audiobuf.AutomationBuffer{}
	task := &AutomationDelayCompTask{DelaySamples: 3, Input: in, Output: out}

	require.NoError(t, task.Process(pluginapi.ProcInfo{Frames: 64}))
	require.Len(t, out.Events, 1)
	assert.Equal(t, 8, out.Events[0].FrameOffset)
}
