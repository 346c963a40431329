// Package engine wires together the ring buffers, the compiled schedule,
// the timer wheel, and the deferred reclaimer into the two realtime-facing
// entry points a host integrates against: the audio-callback handler and
// the process thread it hands blocks to.
package engine

import (
	"github.com/resonantwave/engine/internal/ring"
)

// AllocatedFramesPerChannel sizes every sample ring for at least three
// seconds of audio at the engine's highest supported sample rate.
const AllocatedFramesPerChannel = 192_000 * 3

// CopyOutTimeWindow is the fraction of one device block's period reserved
// for the audio callback's output copy, leaving headroom for scheduling
// jitter on the host side.
const CopyOutTimeWindow = 0.95

// Channels is the pair of SPSC rings (or ring + frame counter) connecting
// the audio callback goroutine to the process goroutine.
type Channels struct {
	// AudioToProcess is nil when the graph declares zero input channels;
	// NoInputCounter is used instead in that case.
	AudioToProcess *ring.AudioRing
	NoInputCounter *ring.FrameCounter

	ProcessToAudio *ring.AudioRing

	InChannels  int
	OutChannels int
}

// NewChannels constructs the channel pair sized for inChannels/outChannels
// at AllocatedFramesPerChannel frames each.
func NewChannels(inChannels, outChannels int) *Channels {
	c := &Channels{InChannels: inChannels, OutChannels: outChannels}
	if inChannels > 0 {
		c.AudioToProcess = ring.NewAudioRing(inChannels * AllocatedFramesPerChannel)
	} else {
		c.NoInputCounter = &ring.FrameCounter{}
	}
	c.ProcessToAudio = ring.NewAudioRing(outChannels * AllocatedFramesPerChannel)
	return c
}

// HasInputAudio reports whether this channel pair carries a real
// audio-to-process sample ring, as opposed to the no-input frame counter.
func (c *Channels) HasInputAudio() bool {
	return c.AudioToProcess != nil
}
