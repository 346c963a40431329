package schedule

import (
	"fmt"
	"sync/atomic"

	"github.com/resonantwave/engine/internal/pluginapi"
)

// ProcessorSchedule is a compiled snapshot of one block's worth of work: the
// ordered task list, the two endpoint tasks, the transport handle, and the
// plugins queued for deferred drop. A schedule is built by the compiler on
// the main goroutine and handed to the process goroutine by an atomic
// pointer swap. Once installed, the main goroutine never mutates it, only
// replaces it; the process goroutine clears its DropList and advances its
// steady-time counter as it runs blocks.
type ProcessorSchedule struct {
	Tasks     []Task
	GraphIn   *GraphInTask
	GraphOut  *GraphOutTask
	Transport Transport

	// DropList holds plugin processors that must be deactivated on the
	// process goroutine before this schedule's first block runs. Dropping
	// a plugin never blocks the main goroutine on its Deactivate; instead
	// the main goroutine queues it here and the process goroutine runs it
	// at the top of the next block.
	DropList []pluginapi.Processor

	MaxBlockSize int
	Version      uint64

	InChannels  int
	OutChannels int

	steadyTime int64
}

// ProcessInterleaved runs one device block through the schedule, splitting
// it into sub-blocks no larger than MaxBlockSize. audioIn/audioOut are
// interleaved sample slices sized frames*InChannels / frames*OutChannels
// respectively; audioIn may be empty when there is no device input
// (no-input-audio variant), in which case graph-in buffers are left as
// whatever the caller pre-populated (typically silence).
//
// onDrop, if non-nil, is called once per dropped processor after its
// Deactivate returns, so the caller can feed the event to logging/metrics
// without this package depending on either.
func (s *ProcessorSchedule) ProcessInterleaved(audioIn, audioOut []float32, onDrop func(err error)) error {
	for _, proc := range s.DropList {
		if proc == nil {
			continue
		}
		if err := proc.Deactivate(); onDrop != nil {
			onDrop(err)
		}
	}
	s.DropList = nil

	totalFrames := 0
	switch {
	case s.InChannels > 0 && len(audioIn) > 0:
		totalFrames = len(audioIn) / s.InChannels
	case s.OutChannels > 0:
		totalFrames = len(audioOut) / s.OutChannels
	}
	if totalFrames == 0 {
		return nil
	}

	inStride := s.InChannels
	outStride := s.OutChannels

	processed := 0
	for processed < totalFrames {
		frames := totalFrames - processed
		if frames > s.MaxBlockSize {
			frames = s.MaxBlockSize
		}

		if inStride > 0 && len(audioIn) > 0 {
			start := processed * inStride
			s.GraphIn.Deinterleave(audioIn[start:start+frames*inStride], frames)
		}

		info := pluginapi.ProcInfo{
			Frames:           frames,
			SteadyTimeFrames: s.steadyTime,
			ScheduleVersion:  s.Version,
		}
		if s.Transport != nil {
			info.Transport = s.Transport.Advance(frames)
		}
		s.steadyTime += int64(frames)

		for _, task := range s.Tasks {
			if err := task.Process(info); err != nil {
				return fmt.Errorf("schedule: task %s: %w", task.Label(), err)
			}
		}

		if outStride > 0 && len(audioOut) > 0 {
			start := processed * outStride
			s.GraphOut.Interleave(audioOut[start:start+frames*outStride], frames)
		}

		processed += frames
	}

	return nil
}

// AtomicSchedule is a lock-free single-slot hand-off of the current schedule
// between the main goroutine (writer) and the process goroutine (reader).
type AtomicSchedule struct {
	ptr atomic.Pointer[ProcessorSchedule]
}

// Store installs a new schedule, to be observed by the next Load no later
// than the process goroutine's next block boundary.
func (a *AtomicSchedule) Store(s *ProcessorSchedule) {
	a.ptr.Store(s)
}

// Load returns the currently installed schedule, or nil if none has been
// installed yet.
func (a *AtomicSchedule) Load() *ProcessorSchedule {
	return a.ptr.Load()
}
