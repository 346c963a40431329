package graphcompile

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/enginemetrics"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/schedule"
	"github.com/resonantwave/engine/internal/xerrors"
	"github.com/resonantwave/engine/internal/xlog"
)

// Compiler turns an AbstractSchedule into a concrete schedule.ProcessorSchedule,
// reusing buffers, delay nodes, and plugin registrations from a SharedPools
// across repeated compiles.
type Compiler struct {
	pools     *SharedPools
	transport schedule.Transport
	metrics   *enginemetrics.Collector
	log       *slog.Logger
}

// NewCompiler constructs a Compiler over the given shared state. transport
// is attached to every schedule this compiler produces. metrics may be nil,
// which is equivalent to a disabled *enginemetrics.Collector. Compile runs
// on the main goroutine, never the process thread, so the compiler logs
// through the plain subsystem logger rather than the realtime async one.
func NewCompiler(pools *SharedPools, transport schedule.Transport, metrics *enginemetrics.Collector) *Compiler {
	return &Compiler{pools: pools, transport: transport, metrics: metrics, log: xlog.ForSubsystem("graphcompile")}
}

// Compile runs the full compile-and-verify pipeline described in the
// component design: resize buffer pools, emit one task per abstract entry,
// sweep the delay cache, verify race-freedom, and return the result.
func (c *Compiler) Compile(abs *AbstractSchedule, dropList []pluginapi.Processor) (*schedule.ProcessorSchedule, error) {
	c.pools.DelayCache.beginSweep()
	c.pools.Buffers.SetSizes(abs.NumAudioBuffers, abs.NumNoteBuffers, abs.NumAutomationBuffers)

	var (
		tasks    []schedule.Task
		graphIn  *schedule.GraphInTask
		graphOut *schedule.GraphOutTask
	)

	for _, entry := range abs.Entries {
		task, err := c.compileEntry(entry, abs, &graphIn, &graphOut)
		if err != nil {
			return nil, wrapCompile(xerrors.CategoryCompile, err)
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}

	c.pools.DelayCache.sweepInactive(c.pools.Reclaimer, c.metrics)

	if graphIn == nil || graphOut == nil {
		return nil, wrapCompile(xerrors.CategoryCompile,
			fmt.Errorf("graphcompile: %w: graph-in/graph-out entry missing", ErrMissingGraphInBuffer))
	}

	concrete := &schedule.ProcessorSchedule{
		Tasks:        tasks,
		GraphIn:      graphIn,
		GraphOut:     graphOut,
		Transport:    c.transport,
		DropList:     dropList,
		MaxBlockSize: c.pools.Buffers.MaxBlockSize(),
		Version:      abs.Version,
		InChannels:   abs.InChannels,
		OutChannels:  abs.OutChannels,
	}

	if err := Verify(concrete); err != nil {
		return nil, wrapCompile(xerrors.CategoryVerify, &VerifierError{Abstract: abs, Concrete: concrete, Reason: err})
	}

	return concrete, nil
}

func (c *Compiler) compileEntry(entry Entry, abs *AbstractSchedule, graphIn **schedule.GraphInTask, graphOut **schedule.GraphOutTask) (schedule.Task, error) {
	switch e := entry.(type) {
	case NodeEntry:
		return c.compileNode(e, abs, graphIn, graphOut)
	case DelayEntry:
		return c.compileDelay(e)
	case SumEntry:
		return c.compileSum(e)
	default:
		return nil, fmt.Errorf("graphcompile: unknown entry type %T", entry)
	}
}

func (c *Compiler) compileNode(e NodeEntry, abs *AbstractSchedule, graphIn **schedule.GraphInTask, graphOut **schedule.GraphOutTask) (schedule.Task, error) {
	switch e.NodeID {
	case abs.GraphInNodeID:
		task, err := c.buildGraphIn(e)
		*graphIn = task
		return nil, err // graph endpoints aren't added to the task list
	case abs.GraphOutNodeID:
		task, err := c.buildGraphOut(e)
		*graphOut = task
		return nil, err
	default:
		return c.buildPluginNode(e)
	}
}

func (c *Compiler) buildGraphIn(e NodeEntry) (*schedule.GraphInTask, error) {
	byChannel := map[int]audiobuf.BufferID{}
	maxCh := -1
	for _, a := range e.PortBuffers {
		if a.Port.Type != pluginapi.PortTypeAudio {
			continue
		}
		byChannel[a.Port.Channel] = a.Buffer
		if a.Port.Channel > maxCh {
			maxCh = a.Port.Channel
		}
	}
	if maxCh < 0 {
		return nil, fmt.Errorf("%w: graph-in", ErrMissingGraphInBuffer)
	}
	channels := make([]*audiobuf.AudioBuffer, maxCh+1)
	for ch := 0; ch <= maxCh; ch++ {
		id, ok := byChannel[ch]
		if !ok {
			return nil, fmt.Errorf("%w: graph-in channel %d", ErrMissingGraphInBuffer, ch)
		}
		channels[ch] = c.pools.Buffers.AudioAt(id.Index)
	}
	return &schedule.GraphInTask{Channels: channels}, nil
}

func (c *Compiler) buildGraphOut(e NodeEntry) (*schedule.GraphOutTask, error) {
	byChannel := map[int]audiobuf.BufferID{}
	maxCh := -1
	for _, a := range e.PortBuffers {
		if a.Port.Type != pluginapi.PortTypeAudio {
			continue
		}
		byChannel[a.Port.Channel] = a.Buffer
		if a.Port.Channel > maxCh {
			maxCh = a.Port.Channel
		}
	}
	if maxCh < 0 {
		return nil, fmt.Errorf("%w: graph-out", ErrMissingGraphInBuffer)
	}
	channels := make([]*audiobuf.AudioBuffer, maxCh+1)
	for ch := 0; ch <= maxCh; ch++ {
		id, ok := byChannel[ch]
		if !ok {
			return nil, fmt.Errorf("%w: graph-out channel %d", ErrMissingGraphInBuffer, ch)
		}
		channels[ch] = c.pools.Buffers.AudioAt(id.Index)
	}
	return &schedule.GraphOutTask{Channels: channels}, nil
}

func (c *Compiler) buildPluginNode(e NodeEntry) (schedule.Task, error) {
	host, ok := c.pools.Plugins[e.NodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.NodeID)
	}

	if !host.Loaded {
		return c.buildUnloadedPlugin(host, e)
	}

	var audioIn, audioOut []*audiobuf.AudioBuffer
	var noteIn, noteOut *audiobuf.NoteBuffer
	var autoIn, autoOut *audiobuf.AutomationBuffer

	for _, a := range e.PortBuffers {
		switch a.Port.Type {
		case pluginapi.PortTypeAudio:
			buf := c.pools.Buffers.AudioAt(a.Buffer.Index)
			if a.Port.IsInput {
				audioIn = growAudio(audioIn, a.Port.Channel, buf)
			} else {
				audioOut = growAudio(audioOut, a.Port.Channel, buf)
			}
		case pluginapi.PortTypeNote:
			if a.Port.IsInput {
				noteIn = c.pools.Buffers.NoteAt(a.Buffer.Index)
			} else {
				noteOut = c.pools.Buffers.NoteAt(a.Buffer.Index)
			}
		case pluginapi.PortTypeAutomation:
			if a.Port.IsInput {
				autoIn = c.pools.Buffers.AutomationAt(a.Buffer.Index)
			} else {
				autoOut = c.pools.Buffers.AutomationAt(a.Buffer.Index)
			}
		}
	}

	inRaw := make([][]float32, len(audioIn))
	for i, b := range audioIn {
		inRaw[i] = b.Samples
	}
	outRaw := make([][]float32, len(audioOut))
	for i, b := range audioOut {
		outRaw[i] = b.Samples
	}

	return &schedule.PluginTask{
		Entry:         host,
		AudioIn:       inRaw,
		AudioOut:      outRaw,
		NoteIn:        noteIn,
		NoteOut:       noteOut,
		AutomationIn:  autoIn,
		AutomationOut: autoOut,
	}, nil
}

func growAudio(s []*audiobuf.AudioBuffer, idx int, buf *audiobuf.AudioBuffer) []*audiobuf.AudioBuffer {
	for len(s) <= idx {
		s = append(s, nil)
	}
	s[idx] = buf
	return s
}

// notePassThroughPorts picks the port-in/out pair this unloaded plugin's
// note stream passes through unmodified: the first note input and the
// first note output the plugin's layout declares. Note ports carry no
// "is-main" flag of their own, so the choice is by position, unlike the main
// audio ports, which PortLayout.MainInOut picks by their IsMain flag.
func notePassThroughPorts(layout pluginapi.PortLayout) (in, out pluginapi.PortInfo, ok bool) {
	var foundIn, foundOut bool
	for _, p := range layout.Ports {
		if p.Type != pluginapi.PortTypeNote {
			continue
		}
		if p.IsInput && !foundIn {
			in, foundIn = p, true
		} else if !p.IsInput && !foundOut {
			out, foundOut = p, true
		}
	}
	return in, out, foundIn && foundOut
}

func (c *Compiler) buildUnloadedPlugin(host *pluginapi.HostEntry, e NodeEntry) (schedule.Task, error) {
	in, out, hasMain := host.Layout.MainInOut()
	noteIn, noteOut, hasNoteThrough := notePassThroughPorts(host.Layout)

	var mainIn, mainOut *audiobuf.AudioBuffer
	var noteThroughIn, noteThroughOut *audiobuf.NoteBuffer
	var clearOutputs []*audiobuf.AudioBuffer
	var clearNoteOutputs []*audiobuf.NoteBuffer
	var autoOut *audiobuf.AutomationBuffer

	for _, a := range e.PortBuffers {
		switch {
		case a.Port.Type == pluginapi.PortTypeAudio && hasMain && a.Port.IsInput && a.Port.StableID == in.StableID:
			mainIn = c.pools.Buffers.AudioAt(a.Buffer.Index)
		case a.Port.Type == pluginapi.PortTypeAudio && hasMain && !a.Port.IsInput && a.Port.StableID == out.StableID:
			mainOut = c.pools.Buffers.AudioAt(a.Buffer.Index)
		case a.Port.Type == pluginapi.PortTypeAudio && !a.Port.IsInput:
			clearOutputs = append(clearOutputs, c.pools.Buffers.AudioAt(a.Buffer.Index))
		case a.Port.Type == pluginapi.PortTypeNote && hasNoteThrough && a.Port.IsInput && a.Port.StableID == noteIn.StableID:
			noteThroughIn = c.pools.Buffers.NoteAt(a.Buffer.Index)
		case a.Port.Type == pluginapi.PortTypeNote && hasNoteThrough && !a.Port.IsInput && a.Port.StableID == noteOut.StableID:
			noteThroughOut = c.pools.Buffers.NoteAt(a.Buffer.Index)
		case a.Port.Type == pluginapi.PortTypeNote && !a.Port.IsInput:
			clearNoteOutputs = append(clearNoteOutputs, c.pools.Buffers.NoteAt(a.Buffer.Index))
		case a.Port.Type == pluginapi.PortTypeAutomation && !a.Port.IsInput:
			autoOut = c.pools.Buffers.AutomationAt(a.Buffer.Index)
		}
	}

	return &schedule.UnloadedPluginTask{
		EntryID:          host.ID,
		MainIn:           mainIn,
		MainOut:          mainOut,
		NoteIn:           noteThroughIn,
		NoteOut:          noteThroughOut,
		ClearOutputs:     clearOutputs,
		ClearNoteOutputs: clearNoteOutputs,
		AutomationOutput: autoOut,
	}, nil
}

func (c *Compiler) compileDelay(e DelayEntry) (schedule.Task, error) {
	delaySamples := int(math.Round(e.DelaySamples))
	if delaySamples < 0 {
		return nil, ErrNegativeDelay
	}
	if delaySamples == 0 {
		c.log.Warn("zero-latency delay-compensation insertion", "edge", e.EdgeID, "kind", e.Kind.String())
	}
	node := c.pools.DelayCache.getOrCreate(e.EdgeID, delaySamples)

	switch e.Kind {
	case audiobuf.KindAudio:
		return &schedule.AudioDelayCompTask{
			Node:   node,
			Input:  c.pools.Buffers.AudioAt(e.Input.Index),
			Output: c.pools.Buffers.AudioAt(e.Output.Index),
		}, nil
	case audiobuf.KindNote:
		return &schedule.NoteDelayCompTask{
			DelaySamples: delaySamples,
			Input:        c.pools.Buffers.NoteAt(e.Input.Index),
			Output:       c.pools.Buffers.NoteAt(e.Output.Index),
		}, nil
	case audiobuf.KindAutomation:
		return &schedule.AutomationDelayCompTask{
			DelaySamples: delaySamples,
			Input:        c.pools.Buffers.AutomationAt(e.Input.Index),
			Output:       c.pools.Buffers.AutomationAt(e.Output.Index),
		}, nil
	default:
		return nil, fmt.Errorf("graphcompile: unknown delay kind %v", e.Kind)
	}
}

func (c *Compiler) compileSum(e SumEntry) (schedule.Task, error) {
	if len(e.Inputs) < 2 {
		return nil, ErrInsufficientSumInputs
	}

	switch e.Kind {
	case audiobuf.KindAudio:
		inputs := make([]*audiobuf.AudioBuffer, len(e.Inputs))
		for i, id := range e.Inputs {
			inputs[i] = c.pools.Buffers.AudioAt(id.Index)
		}
		return &schedule.AudioSumTask{Inputs: inputs, Output: c.pools.Buffers.AudioAt(e.Output.Index)}, nil
	case audiobuf.KindNote:
		inputs := make([]*audiobuf.NoteBuffer, len(e.Inputs))
		for i, id := range e.Inputs {
			inputs[i] = c.pools.Buffers.NoteAt(id.Index)
		}
		return &schedule.NoteSumTask{Inputs: inputs, Output: c.pools.Buffers.NoteAt(e.Output.Index)}, nil
	case audiobuf.KindAutomation:
		inputs := make([]*audiobuf.AutomationBuffer, len(e.Inputs))
		for i, id := range e.Inputs {
			inputs[i] = c.pools.Buffers.AutomationAt(id.Index)
		}
		return &schedule.AutomationSumTask{Inputs: inputs, Output: c.pools.Buffers.AutomationAt(e.Output.Index)}, nil
	default:
		return nil, fmt.Errorf("graphcompile: unknown sum kind %v", e.Kind)
	}
}
