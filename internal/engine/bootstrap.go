package engine

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/resonantwave/engine/internal/engineconf"
	"github.com/resonantwave/engine/internal/enginemetrics"
	"github.com/resonantwave/engine/internal/graphcompile"
	"github.com/resonantwave/engine/internal/pluginapi"
	"github.com/resonantwave/engine/internal/reclaim"
	"github.com/resonantwave/engine/internal/schedule"
	"github.com/resonantwave/engine/internal/timerwheel"
	"github.com/resonantwave/engine/internal/xlog"
)

// Engine is the top-level handle a host application holds: the compiled
// schedule cell, the realtime channel pair, the process thread, the shared
// compile-time pools, and the ambient subsystems (timer wheel, deferred
// reclaimer, metrics).
type Engine struct {
	Settings *engineconf.Settings

	Channels   *Channels
	Schedule   *schedule.AtomicSchedule
	Process    *ProcessThread
	Callback   *AudioCallback
	Pools      *graphcompile.SharedPools
	Compiler   *graphcompile.Compiler
	TimerWheel *timerwheel.Wheel
	Reclaimer  *reclaim.Queue
	Metrics    *enginemetrics.Collector

	log    *slog.Logger
	cancel chan struct{}
	done   chan struct{}
}

// New constructs a fully wired Engine from settings, ready to have an
// initial schedule installed and Start called. reg may be nil to run with
// metrics disabled.
func New(settings *engineconf.Settings, inChannels, outChannels int, transport schedule.Transport, reg prometheus.Registerer) *Engine {
	metrics := enginemetrics.New(reg)
	log := xlog.ForSubsystem("engine")

	reclaimer := reclaim.NewQueue(func(r any) {
		log.Error("reclaim worker recovered from panic", "panic", r)
	})

	pools := graphcompile.NewSharedPoolsWithEventCapacity(settings.Engine.MaxBlockSize, settings.Engine.MaxEventsPerBlock, reclaimer)
	compiler := graphcompile.NewCompiler(pools, transport, metrics)

	channels := NewChannels(inChannels, outChannels)
	sched := &schedule.AtomicSchedule{}

	process := NewProcessThread(channels, sched, settings.Engine.MaxBlockSize, settings.Engine.HardClipOutputs, settings.Engine.PollProfile, metrics)
	callback := NewAudioCallback(channels, float64(settings.Engine.SampleRate), string(settings.Engine.PollProfile), settings.Engine.MaxBlockSize, metrics)

	wheel := timerwheel.New(
		time.Duration(settings.Timer.MainIdleIntervalMS)*time.Millisecond,
		time.Duration(settings.Timer.GarbageCollectIntervalMS)*time.Millisecond,
	)

	return &Engine{
		Settings:   settings,
		Channels:   channels,
		Schedule:   sched,
		Process:    process,
		Callback:   callback,
		Pools:      pools,
		Compiler:   compiler,
		TimerWheel: wheel,
		Reclaimer:  reclaimer,
		Metrics:    metrics,
		log:        log,
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// InstallSchedule compiles an abstract schedule and, on success, swaps it
// into the atomic schedule cell observed by the process thread. The
// previous schedule remains installed on failure, per the engine's
// error-handling policy for compile errors. dropList holds the processors
// of plugins removed from the graph since the last compile; their
// Deactivate runs on the process goroutine at the top of this schedule's
// first block.
func (e *Engine) InstallSchedule(abs *graphcompile.AbstractSchedule, dropList []pluginapi.Processor) (*schedule.ProcessorSchedule, error) {
	start := time.Now()

	concrete, err := e.Compiler.Compile(abs, dropList)
	e.Metrics.RecordCompile(err == nil, time.Since(start))
	if err != nil {
		e.log.Error("schedule compile failed", "error", err)
		return nil, err
	}

	e.Schedule.Store(concrete)
	e.Metrics.RecordScheduleSwap()
	return concrete, nil
}

// Start launches the process-thread goroutine. The caller is responsible
// for invoking ProcessInterleavedOutput from the host's audio driver
// callback and for periodically calling AdvanceTimers from its own main
// loop.
func (e *Engine) Start() {
	go func() {
		defer close(e.done)
		e.Process.Run(e.cancel)
	}()
}

// Stop signals the process thread to drain and exit, waits for it to do so,
// and then stops the deferred reclaimer.
func (e *Engine) Stop() {
	close(e.cancel)
	<-e.done
	e.Process.Close()
	e.Callback.Close()
	e.Reclaimer.Close()
}

// AdvanceTimers ticks the engine's timer wheel and returns the entries that
// fired, for the caller's main loop to act on (invoke plugin timer
// callbacks, run garbage collection bookkeeping, perform main-idle work).
func (e *Engine) AdvanceTimers() []timerwheel.Entry {
	var fired []timerwheel.Entry
	e.TimerWheel.Advance(&fired)
	return fired
}
