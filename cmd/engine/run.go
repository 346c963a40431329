package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/engine"
	"github.com/resonantwave/engine/internal/engineconf"
	"github.com/resonantwave/engine/internal/graphcompile"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/schedule"
	"github.com/resonantwave/engine/internal/xlog"
)

const (
	demoChannels   = 2
	demoBlockCount = 50
)

func runCommand(configPath *string) *cobra.Command {
	var seconds int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a pass-through schedule and process synthetic blocks through it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(*configPath, seconds)
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 1, "approximate seconds of synthetic audio to process")
	return cmd
}

func runDemo(configPath string, seconds int) error {
	settings, err := engineconf.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	xlog.Init(xlog.Options{
		Filename:   settings.Logging.Filename,
		MaxSizeMB:  settings.Logging.MaxSizeMB,
		MaxBackups: settings.Logging.MaxBackups,
		MaxAgeDays: settings.Logging.MaxAgeDays,
	})
	defer xlog.Close()

	transport := &schedule.StaticTransport{State: pluginapi.TransportPlaying, TempoBPM: 120}
	eng := engine.New(settings, demoChannels, demoChannels, transport, nil)

	abs := passThroughSchedule(demoChannels)
	if _, err := eng.InstallSchedule(abs, nil); err != nil {
		return fmt.Errorf("compile initial schedule: %w", err)
	}

	eng.Start()
	defer eng.Stop()

	frames := settings.Engine.MaxBlockSize
	out := make([]float32, frames*demoChannels)

	blocks := demoBlockCount
	if seconds > 0 {
		blocksPerSecond := settings.Engine.SampleRate / frames
		blocks = blocksPerSecond * seconds
	}

	fmt.Printf("running %d blocks of %d frames at %d Hz\n", blocks, frames, settings.Engine.SampleRate)

	for i := 0; i < blocks; i++ {
		engine.ProcessInterleavedOutput(eng.Callback, demoChannels, out)
		for _, e := range eng.AdvanceTimers() {
			_ = e // a real host would dispatch plugin timer callbacks here
		}
		time.Sleep(time.Millisecond)
	}

	fmt.Println("done")
	return nil
}

// passThroughSchedule builds the simplest legal abstract schedule: graph-in
// wired directly to graph-out on every channel, with no plugin nodes.
func passThroughSchedule(channels int) *graphcompile.AbstractSchedule {
	const graphIn graphcompile.NodeID = "graph-in"
	const graphOut graphcompile.NodeID = "graph-out"

	inAssignments := make([]graphcompile.PortBufferAssignment, channels)
	outAssignments := make([]graphcompile.PortBufferAssignment, channels)
	for ch := 0; ch < channels; ch++ {
		inAssignments[ch] = graphcompile.PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: false, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
		outAssignments[ch] = graphcompile.PortBufferAssignment{
			Port:   pluginapi.PortKey{Type: pluginapi.PortTypeAudio, IsInput: true, Channel: ch},
			Buffer: audiobuf.BufferID{Kind: audiobuf.KindAudio, Index: ch},
		}
	}

	return &graphcompile.AbstractSchedule{
		Entries: []graphcompile.Entry{
			graphcompile.NodeEntry{NodeID: graphIn, PortBuffers: inAssignments},
			graphcompile.NodeEntry{NodeID: graphOut, PortBuffers: outAssignments},
		},
		NumAudioBuffers: channels,
		GraphInNodeID:   graphIn,
		GraphOutNodeID:  graphOut,
		InChannels:      channels,
		OutChannels:     channels,
		Version:         1,
	}
}
