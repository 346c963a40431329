// Package pluginapi defines the capability surface a plugin processor must
// implement to be scheduled by this engine, plus the small value types
// (instance ids, port layouts, transport state) that flow between the
// compiler, the schedule, and the process thread. There is deliberately no
// plugin class hierarchy: any type satisfying Processor can be scheduled,
// whether it wraps internal DSP or a third-party binary plugin loaded by an
// out-of-scope hosting shim.
package pluginapi

import "context"

// PluginInstanceID is a stable identifier for one plugin instance within a
// graph, assigned by the collaborator that owns the abstract graph.
type PluginInstanceID uint64

// PluginFormat identifies the ABI family a plugin instance was loaded
// through. The core never interprets this beyond carrying it for logging
// and metrics labels; ABI translation is an out-of-scope collaborator.
type PluginFormat string

const (
	PluginFormatInternal PluginFormat = "internal"
	PluginFormatExternal PluginFormat = "external"
)

// PortType distinguishes the three buffer kinds a port can carry.
type PortType int

const (
	PortTypeAudio PortType = iota
	PortTypeNote
	PortTypeAutomation
)

// StablePortID is a plugin-defined, host-stable identifier for one port,
// stable across plugin version upgrades (unlike a plain integer index).
type StablePortID uint32

// PortKey uniquely identifies one port on one plugin instance.
type PortKey struct {
	StableID StablePortID
	Type     PortType
	IsInput  bool
	Channel  int
}

// PortInfo describes one port's static layout.
type PortInfo struct {
	StableID StablePortID
	Type     PortType
	IsInput  bool
	Channels int
	IsMain   bool
}

// PortLayout is a plugin's full set of ports, as reported by PortInfo().
type PortLayout struct {
	Ports []PortInfo
}

// MainInOut reports the main audio input and output ports, if both exist,
// used by the schedule compiler to build UnloadedPlugin pass-through tasks.
func (l PortLayout) MainInOut() (in, out PortInfo, ok bool) {
	var foundIn, foundOut bool
	for _, p := range l.Ports {
		if p.Type != PortTypeAudio || !p.IsMain {
			continue
		}
		if p.IsInput {
			in, foundIn = p, true
		} else {
			out, foundOut = p, true
		}
	}
	return in, out, foundIn && foundOut
}

// TransportState is the coarse play/record state shared with every task via
// ProcInfo; smoothing and tempo-map interpretation are out-of-scope
// collaborators, so the core treats this as opaque passed-through state.
type TransportState int

const (
	TransportStopped TransportState = iota
	TransportPlaying
	TransportRecording
)

// TransportInfo is the per-block transport snapshot handed to every task.
type TransportInfo struct {
	State          TransportState
	PositionFrames int64
	TempoBPM       float64
}

// ProcInfo is the immutable per-block context passed to every task's
// Process call. All tasks in one block observe the same ProcInfo value.
type ProcInfo struct {
	Frames           int
	SteadyTimeFrames int64
	Transport        TransportInfo
	ScheduleVersion  uint64
}

// Processor is the capability interface a plugin instance's DSP object must
// implement. Only the process goroutine ever calls Process/FlushParams/
// Deactivate; the main goroutine may call Activate/PortInfo.
type Processor interface {
	// Activate prepares the processor for the given sample rate and maximum
	// block size. Called once before the processor is first scheduled.
	Activate(ctx context.Context, sampleRate float64, maxBlockSize int) error

	// Process runs one block. Buffers passed in are resolved by the
	// schedule's Plugin task from the buffer pool; the processor must not
	// retain them past the call.
	Process(info ProcInfo, in, out [][]float32) error

	// FlushParams applies queued parameter changes without processing
	// audio, used when a plugin is bypassed or between blocks.
	FlushParams() error

	// Deactivate releases any resources the processor holds. Always called
	// on the process goroutine via the schedule's drop list, never on the
	// main goroutine, so it may block or perform blocking teardown safely
	// relative to caller expectations (though it must still return in
	// bounded time to avoid stalling subsequent blocks).
	Deactivate() error

	// PortInfo reports the processor's static port layout.
	PortInfo() PortLayout
}

// HostEntry is the schedule's handle to one plugin instance: identity,
// static layout, and the processor slot itself. By construction of the
// protocol, only the process goroutine ever reads or clears Processor once
// the instance has been scheduled, so the field needs no synchronization.
type HostEntry struct {
	ID     PluginInstanceID
	Format PluginFormat
	Layout PortLayout
	Loaded bool

	Processor Processor
}
