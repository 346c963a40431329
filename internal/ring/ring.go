// Package ring implements the lock-free single-producer/single-consumer
// sample ring buffers that bridge the audio-callback thread and the process
// thread. Neither side ever takes a lock or allocates once the ring is
// constructed: the writer reserves a chunk, copies into it, and commits;
// the reader does the mirror image. github.com/smallnest/ringbuffer (used
// elsewhere in this codebase for the realtime logger's line queue) is a
// byte ring guarded by a mutex, which is exactly the blocking behavior the
// audio path cannot tolerate, so this ring is hand-rolled over sync/atomic
// instead.
package ring

import (
	"sync/atomic"
)

// Chunk is a two-slice view into the ring's backing array, split at the
// wrap-around point. Second is empty when the requested span does not cross
// the end of the backing array.
type Chunk struct {
	First  []float32
	Second []float32
}

// Len returns the total number of samples spanned by the chunk.
func (c Chunk) Len() int {
	return len(c.First) + len(c.Second)
}

// CopyFrom copies src into the chunk's two slices in order, returning the
// number of samples copied (min(len(src), c.Len())).
func (c Chunk) CopyFrom(src []float32) int {
	n := copy(c.First, src)
	n += copy(c.Second, src[n:])
	return n
}

// CopyTo copies the chunk's two slices into dst in order, returning the
// number of samples copied.
func (c Chunk) CopyTo(dst []float32) int {
	n := copy(dst, c.First)
	n += copy(dst[n:], c.Second)
	return n
}

// AudioRing is a bounded SPSC ring of float32 samples. Capacity is fixed at
// construction; sized by the caller for at least three seconds of audio at
// the engine's maximum supported sample rate and channel count (see
// engine.AllocatedFramesPerChannel).
type AudioRing struct {
	buf  []float32
	cap  uint64 // power of two
	mask uint64

	head atomic.Uint64 // next write position; only the producer advances it
	tail atomic.Uint64 // next read position; only the consumer advances it

	producerDone atomic.Bool
	consumerDone atomic.Bool
}

// NewAudioRing constructs a ring able to hold at least capacityHint samples.
// The actual capacity is rounded up to the next power of two so indices can
// be masked instead of taken modulo.
func NewAudioRing(capacityHint int) *AudioRing {
	c := nextPowerOfTwo(uint64(capacityHint))
	return &AudioRing{
		buf:  make([]float32, c),
		cap:  c,
		mask: c - 1,
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// Capacity returns the ring's total capacity in samples.
func (r *AudioRing) Capacity() int {
	return int(r.cap)
}

// Readable returns the number of samples currently available to read.
func (r *AudioRing) Readable() int {
	return int(r.head.Load() - r.tail.Load())
}

// Writable returns the number of samples of free space currently available.
func (r *AudioRing) Writable() int {
	return int(r.cap) - r.Readable()
}

// ReserveWrite returns a chunk covering up to n samples of free space,
// possibly fewer if the ring does not have room. The caller must write into
// the returned slices and then call CommitWrite with however many samples it
// actually wrote.
func (r *AudioRing) ReserveWrite(n int) Chunk {
	avail := r.Writable()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return Chunk{}
	}
	start := r.head.Load() & r.mask
	return r.sliceChunk(start, uint64(n))
}

// CommitWrite advances the ring's head by n samples, publishing them to the
// reader. n must not exceed the length returned by the preceding
// ReserveWrite call.
func (r *AudioRing) CommitWrite(n int) {
	if n <= 0 {
		return
	}
	r.head.Add(uint64(n))
}

// ReserveRead returns a chunk covering up to n samples of readable data,
// possibly fewer if the ring holds less. The caller must read from the
// returned slices and then call CommitRead with however many it consumed.
func (r *AudioRing) ReserveRead(n int) Chunk {
	avail := r.Readable()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return Chunk{}
	}
	start := r.tail.Load() & r.mask
	return r.sliceChunk(start, uint64(n))
}

// CommitRead advances the ring's tail by n samples, reclaiming their space
// for the writer. n must not exceed the length returned by the preceding
// ReserveRead call.
func (r *AudioRing) CommitRead(n int) {
	if n <= 0 {
		return
	}
	r.tail.Add(uint64(n))
}

func (r *AudioRing) sliceChunk(start, n uint64) Chunk {
	end := start + n
	if end <= r.cap {
		return Chunk{First: r.buf[start:end]}
	}
	firstLen := r.cap - start
	return Chunk{
		First:  r.buf[start:r.cap],
		Second: r.buf[0 : n-firstLen],
	}
}

// CloseProducer marks the producer side abandoned. The consumer observes
// this via ProducerAbandoned once it has drained whatever remains readable.
func (r *AudioRing) CloseProducer() {
	r.producerDone.Store(true)
}

// CloseConsumer marks the consumer side abandoned.
func (r *AudioRing) CloseConsumer() {
	r.consumerDone.Store(true)
}

// ProducerAbandoned reports whether the producer has closed its side.
func (r *AudioRing) ProducerAbandoned() bool {
	return r.producerDone.Load()
}

// ConsumerAbandoned reports whether the consumer has closed its side.
func (r *AudioRing) ConsumerAbandoned() bool {
	return r.consumerDone.Load()
}

// FrameCounter is the "no input audio" fast path: instead of a full sample
// ring, the audio callback publishes how many frames of silence it wants and
// the process thread swaps-and-resets the counter each poll.
type FrameCounter struct {
	wanted atomic.Uint64
}

// Add accumulates n more wanted frames, called from the audio callback.
func (f *FrameCounter) Add(n int) {
	f.wanted.Add(uint64(n))
}

// SwapAndReset atomically reads the accumulated frame count and resets it to
// zero, called once per poll from the process thread.
func (f *FrameCounter) SwapAndReset() int {
	return int(f.wanted.Swap(0))
}
