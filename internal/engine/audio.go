package engine

import (
	"time"

	"github.com/resonantwave/engine/internal/enginemetrics"
	"github.com/resonantwave/engine/internal/ring"
	"github.com/resonantwave/engine/internal/xlog"
)

// Sample is the constraint for device sample formats the callback handler
// can write directly.
type Sample interface {
	~float32 | ~int16
}

// AudioCallback is invoked by the host's audio driver once per device
// block. It never blocks longer than a bounded poll loop and never
// allocates once its scratch buffer has grown to the largest block size
// the host has requested so far.
type AudioCallback struct {
	channels   *Channels
	sampleRate float64

	poll time.Duration

	scratch []float32

	log     *xlog.RealtimeLogger
	metrics *enginemetrics.Collector
}

// NewAudioCallback constructs a callback handler bound to channels.
// maxBlockFrames pre-sizes the scratch buffer so the steady-state device
// block size never causes an allocation.
func NewAudioCallback(channels *Channels, sampleRate float64, profile string, maxBlockFrames int, metrics *enginemetrics.Collector) *AudioCallback {
	return &AudioCallback{
		channels:   channels,
		sampleRate: sampleRate,
		poll:       fineOrCoarsePoll(profile),
		scratch:    make([]float32, maxBlockFrames*channels.OutChannels),
		log:        xlog.NewRealtimeLogger("audio", realtimeLogQueueBytes),
		metrics:    metrics,
	}
}

// Close stops the callback's async log drain, flushing any queued lines.
// Call once the host has stopped invoking ProcessInterleavedOutput.
func (cb *AudioCallback) Close() {
	cb.log.Close()
}

func fineOrCoarsePoll(profile string) time.Duration {
	if profile == "coarse" {
		return 1500 * time.Microsecond
	}
	return 140 * time.Microsecond
}

func (cb *AudioCallback) scratchOf(n int) []float32 {
	if cap(cb.scratch) < n {
		cb.scratch = make([]float32, n)
	}
	return cb.scratch[:n]
}

// ProcessInterleavedOutput implements the audio-callback contract described
// in the component design: drain stale output, publish the input request
// (or zero-fill the placeholder input ring), poll for fresh output within a
// deadline, and zero-fill on underrun. Declared as a package-level generic
// function (rather than a method) because Go methods cannot carry their own
// type parameters.
func ProcessInterleavedOutput[T Sample](cb *AudioCallback, deviceChannels int, out []T) {
	clear := func() {
		var zero T
		for i := range out {
			out[i] = zero
		}
	}

	if deviceChannels == 0 || len(out) < cb.channels.OutChannels {
		clear()
		return
	}

	start := time.Now()
	totalFrames := len(out) / deviceChannels

	// Drain stale output left over from a previous block that underran.
	w := cb.channels.ProcessToAudio
	if stale := w.Readable(); stale > 0 {
		w.CommitRead(stale)
	}

	if cb.channels.HasInputAudio() {
		r := cb.channels.AudioToProcess
		if r.ConsumerAbandoned() {
			clear()
			return
		}
		n := totalFrames * cb.channels.InChannels
		if r.Writable() < n {
			cb.log.Errorf("audio-to-process ring exhausted")
			cb.metrics.RecordRingUnderrun("audio_to_process")
			clear()
			return
		}
		// Device input is not read here: the callback writes silence into
		// the audio-to-process ring every block.
		chunk := r.ReserveWrite(n)
		zeroFill(chunk)
		r.CommitWrite(n)
	} else {
		cb.channels.NoInputCounter.Add(totalFrames)
	}

	numOutSamples := totalFrames * cb.channels.OutChannels
	if numOutSamples == 0 {
		clear()
		return
	}

	maxProcTime := time.Duration(float64(totalFrames) / cb.sampleRate * CopyOutTimeWindow * float64(time.Second))

	for {
		if w.Readable() >= numOutSamples {
			readInterleaved(cb, w, numOutSamples, deviceChannels, cb.channels.OutChannels, out, totalFrames)
			return
		}
		if time.Since(start)+cb.poll >= maxProcTime {
			cb.log.Warnf("audio callback underrun: frames=%d", totalFrames)
			cb.metrics.RecordRingUnderrun("callback_deadline")
			clear()
			return
		}
		time.Sleep(cb.poll)
	}
}

func zeroFill(c ring.Chunk) {
	for i := range c.First {
		c.First[i] = 0
	}
	for i := range c.Second {
		c.Second[i] = 0
	}
}

func readInterleaved[T Sample](cb *AudioCallback, w *ring.AudioRing, n, deviceChannels, graphChannels int, out []T, frames int) {
	scratch := cb.scratchOf(n)
	chunk := w.ReserveRead(n)
	chunk.CopyTo(scratch)
	w.CommitRead(n)

	if deviceChannels == graphChannels {
		for i, s := range scratch {
			out[i] = T(s)
		}
		return
	}

	for ch := 0; ch < deviceChannels; ch++ {
		for f := 0; f < frames; f++ {
			idx := f*deviceChannels + ch
			if ch < graphChannels {
				out[idx] = T(scratch[f*graphChannels+ch])
			} else {
				out[idx] = 0
			}
		}
	}
}
