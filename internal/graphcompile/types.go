// Package graphcompile translates an abstract, externally produced graph
// description (a node/edge list with per-port buffer assignments, plus
// inserted delay and sum directives) into a concrete schedule.ProcessorSchedule,
// verifying race-freedom before handing it back to the caller.
package graphcompile

import (
	"github.com/resonantwave/engine/internal/audiobuf"
	"github.com/resonantwave/engine/internal/pluginapi"
)

// NodeID identifies one node in the abstract graph: a plugin instance, or
// one of the two reserved endpoint ids (AbstractSchedule.GraphInNodeID /
// GraphOutNodeID).
type NodeID string

// PortBufferAssignment attaches one buffer to one port of a node entry.
type PortBufferAssignment struct {
	Port   pluginapi.PortKey
	Buffer audiobuf.BufferID
}

// Entry is one line of the abstract schedule, in the order the compiler
// must emit tasks. Modeled as a capability interface with one implementation
// per variant, matching this codebase's no-class-hierarchy discipline.
type Entry interface {
	isEntry()
}

// NodeEntry schedules a plugin node (including the two graph endpoint
// pseudo-nodes) with its port-to-buffer assignments.
type NodeEntry struct {
	NodeID      NodeID
	PortBuffers []PortBufferAssignment
}

func (NodeEntry) isEntry() {}

// DelayEntry inserts a delay-compensation node on one edge.
type DelayEntry struct {
	EdgeID       string
	Kind         audiobuf.Kind
	DelaySamples float64
	Input        audiobuf.BufferID
	Output       audiobuf.BufferID
}

func (DelayEntry) isEntry() {}

// SumEntry inserts a summing node combining multiple inputs into one output.
type SumEntry struct {
	Kind   audiobuf.Kind
	Inputs []audiobuf.BufferID
	Output audiobuf.BufferID
}

func (SumEntry) isEntry() {}

// AbstractSchedule is the compiler's input: an ordered entry list plus the
// buffer-count vector and endpoint node identities for this compile pass.
type AbstractSchedule struct {
	Entries []Entry

	NumAudioBuffers      int
	NumNoteBuffers       int
	NumAutomationBuffers int

	GraphInNodeID  NodeID
	GraphOutNodeID NodeID

	InChannels  int
	OutChannels int

	Version uint64
}
