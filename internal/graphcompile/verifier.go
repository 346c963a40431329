package graphcompile

import (
	"fmt"

	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/schedule"
)

// Verify checks a freshly compiled schedule for the race-freedom invariants
// the executor depends on: no buffer id repeated within one task, no plugin
// instance scheduled on two tasks, and every sum task carrying at least two
// inputs. All tasks in this engine execute serially today, but the check is
// written as "no id appears twice within the one parallel group" so it
// remains correct if a future executor parallelizes independent tasks.
func Verify(s *schedule.ProcessorSchedule) error {
	seenPlugins := make(map[pluginapi.PluginInstanceID]bool)

	for _, task := range s.Tasks {
		if err := verifyTaskBufferUniqueness(task); err != nil {
			return err
		}
		if pt, ok := task.(*schedule.PluginTask); ok {
			if seenPlugins[pt.Entry.ID] {
				return fmt.Errorf("graphcompile: plugin %d scheduled on more than one task", pt.Entry.ID)
			}
			seenPlugins[pt.Entry.ID] = true
		}
		sumInputs := -1
		switch t := task.(type) {
		case *schedule.AudioSumTask:
			sumInputs = len(t.Inputs)
		case *schedule.NoteSumTask:
			sumInputs = len(t.Inputs)
		case *schedule.AutomationSumTask:
			sumInputs = len(t.Inputs)
		}
		if sumInputs >= 0 && sumInputs < 2 {
			return fmt.Errorf("graphcompile: task %s: %w", task.Label(), ErrInsufficientSumInputs)
		}
	}

	return nil
}

// verifyTaskBufferUniqueness reports an error if a task's declared buffers
// contain a duplicate reference, which would mean two writes (or a write and
// a read) racing within what should be a single sequential step. Every task
// kind that carries more than one buffer reference is covered, not just the
// audio-only ones: a duplicated note or automation buffer, or the same
// channel buffer assigned twice on a graph endpoint, is exactly as unsafe as
// a duplicated audio buffer.
func verifyTaskBufferUniqueness(task schedule.Task) error {
	switch t := task.(type) {
	case *schedule.PluginTask:
		keys := audioPointers(t.AudioIn)
		keys = append(keys, audioPointers(t.AudioOut)...)
		keys = append(keys, optionalKey(t.NoteIn), optionalKey(t.NoteOut))
		keys = append(keys, optionalKey(t.AutomationIn), optionalKey(t.AutomationOut))
		return checkUnique(t.Label(), keys)

	case *schedule.UnloadedPluginTask:
		var keys []uintptrKey
		keys = append(keys, optionalKey(t.MainIn), optionalKey(t.MainOut))
		keys = append(keys, optionalKey(t.NoteIn), optionalKey(t.NoteOut))
		keys = append(keys, optionalKey(t.AutomationOutput))
		for _, b := range t.ClearOutputs {
			keys = append(keys, keyOf(b))
		}
		for _, b := range t.ClearNoteOutputs {
			keys = append(keys, keyOf(b))
		}
		return checkUnique(t.Label(), keys)

	case *schedule.AudioSumTask:
		keys := make([]uintptrKey, 0, len(t.Inputs)+1)
		for _, b := range t.Inputs {
			keys = append(keys, keyOf(b))
		}
		keys = append(keys, keyOf(t.Output))
		return checkUnique(t.Label(), keys)

	case *schedule.NoteSumTask:
		keys := make([]uintptrKey, 0, len(t.Inputs)+1)
		for _, b := range t.Inputs {
			keys = append(keys, keyOf(b))
		}
		keys = append(keys, keyOf(t.Output))
		return checkUnique(t.Label(), keys)

	case *schedule.AutomationSumTask:
		keys := make([]uintptrKey, 0, len(t.Inputs)+1)
		for _, b := range t.Inputs {
			keys = append(keys, keyOf(b))
		}
		keys = append(keys, keyOf(t.Output))
		return checkUnique(t.Label(), keys)

	case *schedule.AudioDelayCompTask:
		return checkUnique(t.Label(), []uintptrKey{keyOf(t.Input), keyOf(t.Output)})

	case *schedule.NoteDelayCompTask:
		return checkUnique(t.Label(), []uintptrKey{keyOf(t.Input), keyOf(t.Output)})

	case *schedule.AutomationDelayCompTask:
		return checkUnique(t.Label(), []uintptrKey{keyOf(t.Input), keyOf(t.Output)})

	case *schedule.GraphInTask:
		keys := make([]uintptrKey, 0, len(t.Channels))
		for _, b := range t.Channels {
			keys = append(keys, keyOf(b))
		}
		return checkUnique(t.Label(), keys)

	case *schedule.GraphOutTask:
		keys := make([]uintptrKey, 0, len(t.Channels))
		for _, b := range t.Channels {
			keys = append(keys, keyOf(b))
		}
		return checkUnique(t.Label(), keys)
	}
	return nil
}

// optionalKey returns keyOf(p), or nil if p itself is nil; checkUnique
// already treats a nil key as "no buffer in this role" and skips it.
func optionalKey[T any](p *T) uintptrKey {
	if p == nil {
		return nil
	}
	return keyOf(p)
}

type uintptrKey = any

func keyOf[T any](p *T) uintptrKey {
	return p
}

func audioPointers(samples [][]float32) []uintptrKey {
	keys := make([]uintptrKey, len(samples))
	for i, s := range samples {
		if len(s) == 0 {
			continue
		}
		keys[i] = &s[0]
	}
	return keys
}

func checkUnique(label string, keys []uintptrKey) error {
	seen := make(map[uintptrKey]bool, len(keys))
	for _, k := range keys {
		if k == nil {
			continue
		}
		if seen[k] {
			return fmt.Errorf("graphcompile: task %s references the same buffer twice", label)
		}
		seen[k] = true
	}
	return nil
}
