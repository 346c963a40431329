// Package schedule implements the concrete, compiled side of the engine: an
// immutable list of tasks executed once per block by the process thread.
// Task is modeled as a capability interface, matching the engine's
// no-class-hierarchy plugin discipline — every task variant is a distinct
// concrete type implementing the same one-method contract.
package schedule

import (
	"github.com/resonantwave/engine/internal/pluginapi"
)

// Task is one scheduled unit of work within a block. Implementations read
// their declared input buffers and write their declared output buffers;
// the schedule compiler guarantees no two tasks in one schedule alias a
// buffer in a way that would race.
type Task interface {
	// Process executes this task's work for the current block. info is
	// shared, read-only, and identical for every task in the block.
	Process(info pluginapi.ProcInfo) error

	// Label identifies the task for diagnostics and logging.
	Label() string
}
