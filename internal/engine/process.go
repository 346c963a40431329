package engine

import (
	"time"

	"github.com/resonantwave/engine/internal/engineconf"
	"github.com/resonantwave/engine/internal/enginemetrics"
	"github.com/resonantwave/engine/internal/schedule"
	"github.com/resonantwave/engine/internal/xlog"
)

// realtimeLogQueueBytes sizes the async log queue the process thread and
// audio callback drain from. A handful of KB comfortably holds the
// infrequent warnings the realtime path emits between drain ticks.
const realtimeLogQueueBytes = 4096

// pollInterval returns the nominal poll sleep for a given profile. Go's
// time.Sleep has coarse, Windows-class granularity on some platforms, so
// the engine carries both profiles as data rather than branching on
// runtime.GOOS inside the hot loop; the bootstrap picks one at construction
// time.
func pollInterval(profile engineconf.PollProfile) time.Duration {
	switch profile {
	case engineconf.PollProfileCoarse:
		return 1200 * time.Microsecond
	default:
		return 100 * time.Microsecond
	}
}

// ProcessThread pulls input from the audio-to-process channel, runs the
// currently installed schedule, and pushes output to the process-to-audio
// channel. It owns pre-allocated scratch buffers sized at construction so
// steady-state operation never allocates.
type ProcessThread struct {
	channels *Channels
	schedule *schedule.AtomicSchedule

	hardClip     bool
	poll         time.Duration
	maxBlockSize int

	scratchIn  []float32
	scratchOut []float32

	log     *xlog.RealtimeLogger
	metrics *enginemetrics.Collector
}

// NewProcessThread constructs a process thread bound to channels and the
// shared atomic schedule cell the main goroutine writes into.
func NewProcessThread(channels *Channels, sched *schedule.AtomicSchedule, maxBlockSize int, hardClip bool, profile engineconf.PollProfile, metrics *enginemetrics.Collector) *ProcessThread {
	return &ProcessThread{
		channels:     channels,
		schedule:     sched,
		hardClip:     hardClip,
		poll:         pollInterval(profile),
		maxBlockSize: maxBlockSize,
		scratchIn:    make([]float32, maxBlockSize*max(channels.InChannels, 1)),
		scratchOut:   make([]float32, maxBlockSize*channels.OutChannels),
		log:          xlog.NewRealtimeLogger("process", realtimeLogQueueBytes),
		metrics:      metrics,
	}
}

// Close stops the process thread's async log drain, flushing any queued
// lines. Call after Run has returned.
func (pt *ProcessThread) Close() {
	pt.log.Close()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run executes the process-thread loop until cancel is closed or either
// endpoint of the channel pair is abandoned. Run itself neither locks its
// OS thread nor requests realtime priority; Engine.Start runs it on an
// ordinary goroutine.
func (pt *ProcessThread) Run(cancel <-chan struct{}) {
	for {
		select {
		case <-cancel:
			pt.shutdown()
			return
		default:
		}

		frames, ok := pt.pollInput()
		if !ok {
			pt.shutdown()
			return
		}
		if frames == 0 {
			time.Sleep(pt.poll)
			continue
		}

		if fatal := pt.runBlock(frames); fatal {
			pt.shutdown()
			return
		}
	}
}

// pollInput reads however many frames are currently available on the
// audio-to-process side, returning ok=false if the peer has abandoned the
// channel.
func (pt *ProcessThread) pollInput() (frames int, ok bool) {
	if pt.channels.HasInputAudio() {
		r := pt.channels.AudioToProcess
		if r.ProducerAbandoned() && r.Readable() == 0 {
			return 0, false
		}
		n := r.Readable()
		if n == 0 {
			return 0, true
		}
		if n > len(pt.scratchIn) {
			n = len(pt.scratchIn)
		}
		chunk := r.ReserveRead(n)
		chunk.CopyTo(pt.scratchIn[:n])
		r.CommitRead(n)
		return n / pt.channels.InChannels, true
	}

	n := pt.channels.NoInputCounter.SwapAndReset()
	return n, true
}

// runBlock processes one block, returning fatal=true when the process goroutine
// must exit (process-to-audio ring exhaustion, per the engine's error
// taxonomy, is fatal to the audio session rather than recoverable per-block).
func (pt *ProcessThread) runBlock(frames int) (fatal bool) {
	start := time.Now()

	sched := pt.schedule.Load()
	if sched == nil {
		pt.metrics.RecordProcessBlockDropped("no_schedule")
		return false
	}

	outLen := frames * pt.channels.OutChannels
	inLen := frames * pt.channels.InChannels
	if inLen > len(pt.scratchIn) {
		inLen = len(pt.scratchIn)
	}
	out := pt.scratchOut[:outLen]
	for i := range out {
		out[i] = 0
	}

	err := sched.ProcessInterleaved(pt.scratchIn[:inLen], out, func(dropErr error) {
		if dropErr != nil {
			pt.log.Errorf("plugin deactivate failed on drop: %v", dropErr)
		}
	})
	if err != nil {
		pt.log.Errorf("schedule process failed: %v", err)
		pt.metrics.RecordProcessBlockDropped("process_error")
		return false
	}

	if pt.hardClip {
		for i, s := range out {
			switch {
			case s > 1.0:
				out[i] = 1.0
			case s < -1.0:
				out[i] = -1.0
			}
		}
	}

	w := pt.channels.ProcessToAudio
	if w.Writable() < outLen {
		pt.log.Errorf("process-to-audio ring exhausted: frames=%d", frames)
		pt.metrics.RecordRingUnderrun("process_to_audio")
		return true
	}
	chunk := w.ReserveWrite(outLen)
	chunk.CopyFrom(out)
	w.CommitWrite(outLen)

	pt.metrics.RecordProcessBlock(time.Since(start))
	pt.metrics.RecordRingFillLevel("process_to_audio", w.Readable()/max(pt.channels.OutChannels, 1))
	return false
}

func (pt *ProcessThread) shutdown() {
	sched := pt.schedule.Load()
	if sched == nil {
		return
	}
	// Run the schedule's drop list one last time so every plugin processor
	// is deactivated on this goroutine before it exits.
	_ = sched.ProcessInterleaved(nil, nil, func(err error) {
		if err != nil {
			pt.log.Errorf("plugin deactivate failed on shutdown: %v", err)
		}
	})
	pt.channels.ProcessToAudio.CloseProducer()
	if pt.channels.HasInputAudio() {
		pt.channels.AudioToProcess.CloseConsumer()
	}
}
