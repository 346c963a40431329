package schedule

import "github.com/resonantwave/engine/internal/pluginapi"

// Transport advances the opaque transport/tempo state by a number of
// frames, producing the snapshot every task in the block will observe.
// Tempo-map interpretation and automation smoothing are out-of-scope
// collaborators; the schedule only needs something that can tick forward.
type Transport interface {
	Advance(frames int) pluginapi.TransportInfo
}

// StaticTransport is the simplest Transport: a fixed state and tempo, frame
// position advancing monotonically. Useful standalone and in tests; a real
// host would supply a richer implementation wired to its tempo map.
type StaticTransport struct {
	State    pluginapi.TransportState
	TempoBPM float64
	position int64
}

func (t *StaticTransport) Advance(frames int) pluginapi.TransportInfo {
	info := pluginapi.TransportInfo{
		State:          t.State,
		PositionFrames: t.position,
		TempoBPM:       t.TempoBPM,
	}
	t.position += int64(frames)
	return info
}
