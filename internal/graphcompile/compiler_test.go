package graphcompile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/reclaim"
	"github.com/resonantwave/engine/internal/schedule"
)

type stubProcessor struct{}

func (stubProcessor) Activate(context.Context, float64, int) error               { return nil }
func (stubProcessor) Process(pluginapi.ProcInfo, [][]float32, [][]float32) error { return nil }
func (stubProcessor) FlushParams() error                                         { return nil }
func (stubProcessor) Deactivate() error                                          { return nil }
func (stubProcessor) PortInfo() pluginapi.PortLayout {
	return pluginapi.PortLayout{Ports: []pluginapi.PortInfo{
		{StableID: 1, Type: pluginapi.PortTypeAudio, IsInput: true, Channels: 1, IsMain: true},
		{StableID: 2, Type: pluginapi.PortTypeAudio, IsInput: false, Channels: 1, IsMain: true},
	}}
}

func newTestPools(maxBlockSize int) *SharedPools {
	return NewSharedPools(maxBlockSize, reclaim.NewQueue(func(any) {}))
}

func passThroughAbstract(graphIn, graphOut NodeID, channels int) *AbstractSchedule {
	inAssign := make([]PortBufferAssignment, channels)
	outAssign := make([]PortBufferAssignment, channels)
	for ch := 0; ch < channels; ch++ {
		inAssign[ch] = PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: false, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
		outAssign[ch] = PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: true, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
	}
	return &AbstractSchedule{
		Entries: []Entry{
			NodeEntry{NodeID: graphIn, PortBuffers: inAssign},
			NodeEntry{NodeID: graphOut, PortBuffers: outAssign},
		},
		NumAudioBuffers: channels,
		GraphInNodeID:   graphIn,
		GraphOutNodeID:  graphOut,
		InChannels:      channels,
		OutChannels:     channels,
		Version:         1,
	}
}

func TestCompile_PassThroughSucceeds(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 2)

	sched, err := c.Compile(abs, nil)
	require.NoError(t, err)
	assert.Empty(t, sched.Tasks)
	assert.NotNil(t, sched.GraphIn)
	assert.NotNil(t, sched.GraphOut)
}

func TestCompile_MissingGraphEndpoint(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := &AbstractSchedule{
		Entries:         nil,
		NumAudioBuffers: 1,
		GraphInNodeID:   "in",
		GraphOutNodeID:  "out",
	}

	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingGraphInBuffer)
}

func TestCompile_SumWithOneInputRejected(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.Entries = append(abs.Entries, SumEntry{
		Kind:   audiobuf.KindAudio,
		Inputs: []audiobuf.BufferID{{Kind: audiobuf.KindAudio, Index: 0}},
		Output: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 1},
	})

	var verr *VerifierError
	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	assert.False(t, errors.As(err, &verr), "insufficient sum inputs is a compile error, not a verifier error")
	assert.ErrorIs(t, err, ErrInsufficientSumInputs)
}

func TestCompile_NegativeDelayRejected(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.Entries = append(abs.Entries, DelayEntry{
		EdgeID:       "e1",
		Kind:         audiobuf.KindAudio,
		DelaySamples: -5,
		Input:        audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0},
		Output:       audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0},
	})

	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegativeDelay)
}

func TestCompile_ZeroDelayStillCompilesAndWarns(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.NumAudioBuffers = 2
	abs.Entries = append(abs.Entries, DelayEntry{
		EdgeID:       "e-zero",
		Kind:         audiobuf.KindAudio,
		DelaySamples: 0,
		Input:        audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0},
		Output:       audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 1},
	})

	sched, err := c.Compile(abs, nil)
	require.NoError(t, err, "a zero-delay insertion is a warning, not a compile error")
	require.Len(t, sched.Tasks, 1)
	task, ok := sched.Tasks[0].(*schedule.AudioDelayCompTask)
	require.True(t, ok)
	assert.Equal(t, 0, task.Node.Delay())
}

func TestCompile_UnknownNodeRejected(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.Entries = append(abs.Entries, NodeEntry{NodeID: "missing-plugin"})

	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestCompile_SamePluginTwiceFailsVerification(t *testing.T) {
	pools := newTestPools(64)
	host := &pluginapi.HostEntry{ID: 1, Loaded: true, Processor: stubProcessor{}}
	pools.Plugins["p1"] = host
	pools.Plugins["p2"] = host // same instance bound to two node ids

	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.NumAudioBuffers = 3
	abs.Entries = append(abs.Entries,
		NodeEntry{NodeID: "p1", PortBuffers: []PortBufferAssignment{
			{Port: pluginapi.PortKey{StableID: 1, Type: pluginapi.PortTypeAudio, IsInput: true, Channel: 0}, Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0}},
			{Port: pluginapi.PortKey{StableID: 2, Type: pluginapi.PortTypeAudio, IsInput: false, Channel: 0}, Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 1}},
		}},
		NodeEntry{NodeID: "p2", PortBuffers: []PortBufferAssignment{
			{Port: pluginapi.PortKey{StableID: 1, Type: pluginapi.PortTypeAudio, IsInput: true, Channel: 0}, Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0}},
			{Port: pluginapi.PortKey{StableID: 2, Type: pluginapi.PortTypeAudio, IsInput: false, Channel: 0}, Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 2}},
		}},
	)

	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	var verr *VerifierError
	require.True(t, errors.As(err, &verr))
}

func TestCompile_DuplicateNoteBufferInSumFailsVerification(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)
	abs := passThroughAbstract("in", "out", 1)
	abs.NumNoteBuffers = 2
	abs.Entries = append(abs.Entries, SumEntry{
		Kind: audiobuf.KindNote,
		// Buffer 0 appears as both an input and the output: a note-sum task
		// that both reads and writes the same buffer in one step.
		Inputs: []audiobuf.BufferID{
			{Kind: audiobuf.KindNote, Index: 0},
			{Kind: audiobuf.KindNote, Index: 1},
		},
		Output: audiobuf.BufferID{Kind: audiobuf.KindNote, Index: 0},
	})

	_, err := c.Compile(abs, nil)
	require.Error(t, err)
	var verr *VerifierError
	require.True(t, errors.As(err, &verr))
}

func TestCompile_DelayCacheReusedAcrossRecompiles(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)

	abs := passThroughAbstract("in", "out", 1)
	abs.NumAudioBuffers = 2
	abs.Entries = append(abs.Entries, DelayEntry{
		EdgeID:       "stable-edge",
		Kind:         audiobuf.KindAudio,
		DelaySamples: 4,
		Input:        audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0},
		Output:       audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 1},
	})

	sched1, err := c.Compile(abs, nil)
	require.NoError(t, err)
	task1 := sched1.Tasks[0].(*schedule.AudioDelayCompTask)

	sched2, err := c.Compile(abs, nil)
	require.NoError(t, err)
	task2 := sched2.Tasks[0].(*schedule.AudioDelayCompTask)

	assert.Same(t, task1.Node, task2.Node, "stable edge id should reuse the cached delay node across recompiles")
}

func TestCompile_DelayCacheEvictsDroppedEdge(t *testing.T) {
	pools := newTestPools(64)
	c := NewCompiler(pools, &schedule.StaticTransport{}, nil)

	withDelay := passThroughAbstract("in", "out", 1)
	withDelay.NumAudioBuffers = 2
	withDelay.Entries = append(withDelay.Entries, DelayEntry{
		EdgeID:       "edge-a",
		Kind:         audiobuf.KindAudio,
		DelaySamples: 4,
		Input:        audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 0},
		Output:       audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: 1},
	})
	_, err := c.Compile(withDelay, nil)
	require.NoError(t, err)
	assert.Len(t, pools.DelayCache.nodes, 1)

	withoutDelay := passThroughAbstract("in", "out", 1)
	_, err = c.Compile(withoutDelay, nil)
	require.NoError(t, err)
	assert.Empty(t, pools.DelayCache.nodes, "edge no longer present should be swept from the cache")
}
