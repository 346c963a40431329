package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/engineconf"
	"github.com/resonantwave/engine/internal/graphcompile"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/schedule"
)

func testSettings() *engineconf.Settings {
	return &engineconf.Settings{
		Engine: engineconf.EngineSettings{
			SampleRate:        48000,
			MaxBlockSize:      64,
			PollProfile:       engineconf.PollProfileFine,
			MaxEventsPerBlock: 256,
		},
		Timer: engineconf.TimerSettings{
			MainIdleIntervalMS:       5,
			GarbageCollectIntervalMS: 20,
		},
	}
}

func passThroughAbstract(channels int) *graphcompile.AbstractSchedule {
	const graphIn graphcompile.NodeID = "graph-in"
	const graphOut graphcompile.NodeID = "graph-out"

	inAssign := make([]graphcompile.PortBufferAssignment, channels)
	outAssign := make([]graphcompile.PortBufferAssignment, channels)
	for ch := 0; ch < channels; ch++ {
		inAssign[ch] = graphcompile.PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: false, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
		outAssign[ch] = graphcompile.PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: true, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
	}
	return &graphcompile.AbstractSchedule{
		Entries: []graphcompile.Entry{
			graphcompile.NodeEntry{NodeID: graphIn, PortBuffers: inAssign},
			graphcompile.NodeEntry{NodeID: graphOut, PortBuffers: outAssign},
		},
		NumAudioBuffers: channels,
		GraphInNodeID:   graphIn,
		GraphOutNodeID:  graphOut,
		InChannels:      channels,
		OutChannels:     channels,
		Version:         1,
	}
}

func TestEngine_PassThroughProducesSilenceWithPlaceholderInput(t *testing.T) {
	settings := testSettings()
	transport := &schedule.StaticTransport{State: pluginapi.TransportPlaying, TempoBPM: 120}
	eng := New(settings, 2, 2, transport, nil)

	_, err := eng.InstallSchedule(passThroughAbstract(2), nil)
	require.NoError(t, err)

	eng.Start()
	defer eng.Stop()

	out := make([]float32, settings.Engine.MaxBlockSize*2)
	for i := range out {
		out[i] = 1 // poison the buffer so a no-op callback would be caught
	}

	require.Eventually(t, func() bool {
		ProcessInterleavedOutput(eng.Callback, 2, out)
		for _, s := range out {
			if s != 0 {
				return false
			}
		}
		return true
	}, 3*time.Second, time.Millisecond, "engine should settle to silence once the schedule drains the placeholder input")
}

func TestEngine_InstallSchedule_KeepsPreviousScheduleOnCompileFailure(t *testing.T) {
	settings := testSettings()
	transport := &schedule.StaticTransport{State: pluginapi.TransportPlaying}
	eng := New(settings, 1, 1, transport, nil)

	good, err := eng.InstallSchedule(passThroughAbstract(1), nil)
	require.NoError(t, err)
	require.Same(t, good, eng.Schedule.Load())

	broken := &graphcompile.AbstractSchedule{
		Entries:         nil, // missing graph-in/graph-out entries
		NumAudioBuffers: 1,
		GraphInNodeID:   "in",
		GraphOutNodeID:  "out",
	}
	_, err = eng.InstallSchedule(broken, nil)
	assert.Error(t, err)
	assert.Same(t, good, eng.Schedule.Load(), "a failed compile must not replace the installed schedule")
}

func TestEngine_AdvanceTimers_FiresBuiltinEntries(t *testing.T) {
	settings := testSettings()
	eng := New(settings, 1, 1, &schedule.StaticTransport{}, nil)

	require.Eventually(t, func() bool {
		return len(eng.AdvanceTimers()) > 0
	}, time.Second, time.Millisecond)
}
