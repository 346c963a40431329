package schedule

import (
	"fmt"

	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// PluginTask invokes one loaded plugin instance's processor for a block.
type PluginTask struct {
	Entry *pluginapi.HostEntry

	AudioIn  [][]float32
	AudioOut [][]float32

	NoteIn  *audiobuf.NoteBuffer
	NoteOut *audiobuf.NoteBuffer

	AutomationIn  *audiobuf.AutomationBuffer
	AutomationOut *audiobuf.AutomationBuffer

	// ClearBeforeInvoke lists output buffers the task must zero before
	// calling Process, for ports the processor does not itself guarantee
	// to fully overwrite every block.
	ClearBeforeInvoke []*audiobuf.AudioBuffer

	Bypass bool
}

func (t *PluginTask) Label() string {
	return fmt.Sprintf("plugin[%d]", t.Entry.ID)
}

func (t *PluginTask) Process(info pluginapi.ProcInfo) error {
	for _, buf := range t.ClearBeforeInvoke {
		buf.Clear()
	}

	if t.Bypass {
		return t.Entry.Processor.FlushParams()
	}

	if err := t.Entry.Processor.Process(info, t.AudioIn, t.AudioOut); err != nil {
		return fmt.Errorf("schedule: plugin %d process: %w", t.Entry.ID, err)
	}
	return nil
}

// UnloadedPluginTask substitutes for a plugin node whose processor failed to
// load: it passes the main audio input through to the main audio output
// unmodified, passes the note input through to the note output unmodified
// (if the node declares both), and zeroes every other declared output, so
// the rest of the graph downstream of the missing plugin still receives
// well-defined silence instead of garbage or a missing buffer.
type UnloadedPluginTask struct {
	EntryID pluginapi.PluginInstanceID

	MainIn  *audiobuf.AudioBuffer // nil if the plugin declares no main input
	MainOut *audiobuf.AudioBuffer // nil if the plugin declares no main output

	NoteIn  *audiobuf.NoteBuffer // nil if the plugin declares no note input
	NoteOut *audiobuf.NoteBuffer // nil if the plugin declares no note output

	ClearOutputs     []*audiobuf.AudioBuffer
	ClearNoteOutputs []*audiobuf.NoteBuffer
	AutomationOutput *audiobuf.AutomationBuffer
}

func (t *UnloadedPluginTask) Label() string {
	return fmt.Sprintf("unloaded-plugin[%d]", t.EntryID)
}

func (t *UnloadedPluginTask) Process(_ pluginapi.ProcInfo) error {
	if t.MainIn != nil && t.MainOut != nil {
		copy(t.MainOut.Samples, t.MainIn.Samples)
		t.MainOut.IsConstant = t.MainIn.IsConstant
	}
	if t.NoteIn != nil && t.NoteOut != nil {
		t.NoteOut.Clear()
		t.NoteOut.Events = append(t.NoteOut.Events, t.NoteIn.Events...)
	}
	for _, buf := range t.ClearOutputs {
		buf.Clear()
	}
	for _, buf := range t.ClearNoteOutputs {
		buf.Clear()
	}
	if t.AutomationOutput != nil {
		t.AutomationOutput.Clear()
	}
	return nil
}
