// Package xlog provides the engine's structured logging: one slog.Logger per
// subsystem, backed by a rotating file sink. The realtime-path variant
// (RealtimeLogger) never writes synchronously — it queues the formatted line
// into a lock-light ring buffer and a background goroutine drains it onto the
// rotating sink, so a warning logged from the process thread can never block
// on file I/O.
package xlog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.RWMutex
	base     *slog.Logger
	sink     *lumberjack.Logger
	initOnce sync.Once
	level    = new(slog.LevelVar)
)

// Options configures the rotating sink. Zero values fall back to sensible
// engine defaults (small files, short retention — this is a realtime audio
// process, not a log-archival service).
type Options struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// DefaultOptions gives small, short-retention rotation settings appropriate
// for a realtime audio process rather than a log-archival service.
func DefaultOptions() Options {
	return Options{
		Filename:   "logs/engine.log",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      slog.LevelInfo,
	}
}

// Init sets up the process-wide base logger. Safe to call multiple times;
// only the first call takes effect.
func Init(opts Options) {
	initOnce.Do(func() {
		level.Set(opts.Level)

		d := DefaultOptions()
		if opts.Filename == "" {
			opts.Filename = d.Filename
		}
		if opts.MaxSizeMB == 0 {
			opts.MaxSizeMB = d.MaxSizeMB
		}
		if opts.MaxBackups == 0 {
			opts.MaxBackups = d.MaxBackups
		}
		if opts.MaxAgeDays == 0 {
			opts.MaxAgeDays = d.MaxAgeDays
		}

		sink = &lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}

		handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})

		mu.Lock()
		base = slog.New(handler)
		mu.Unlock()
	})
}

// ForSubsystem returns a logger tagged with the given subsystem name,
// falling back to slog.Default() if Init hasn't run (tests, early bootstrap).
func ForSubsystem(name string) *slog.Logger {
	mu.RLock()
	logger := base
	mu.RUnlock()

	if logger == nil {
		return slog.Default().With("subsystem", name)
	}
	return logger.With("subsystem", name)
}

// SetLevel adjusts the minimum level for all loggers created via ForSubsystem.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Close flushes and closes the rotating sink, if one was opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		return sink.Close()
	}
	return nil
}

// RealtimeLogger buffers short log lines from a latency-sensitive goroutine
// (the process thread, the audio callback) and flushes them from its own
// background goroutine, so Warn/Error calls on the hot path never touch the
// file system directly.
type RealtimeLogger struct {
	logger *slog.Logger
	queue  *ringbuffer.RingBuffer
	stop   chan struct{}
	done   chan struct{}
}

// NewRealtimeLogger wraps a subsystem logger with a bounded async queue.
// queueBytes sizes the backing ring in bytes; a handful of KB comfortably
// holds the infrequent warnings the realtime path emits.
func NewRealtimeLogger(subsystem string, queueBytes int) *RealtimeLogger {
	rl := &RealtimeLogger{
		logger: ForSubsystem(subsystem),
		queue:  ringbuffer.New(queueBytes),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go rl.drain()
	return rl
}

// Warnf enqueues a warning without blocking. If the queue is full the line is
// dropped (realtime safety outranks log completeness); a dropped line is
// neither logged nor counted anywhere.
func (rl *RealtimeLogger) Warnf(format string, args ...any) {
	rl.enqueue(fmt.Sprintf(format, args...))
}

// Errorf enqueues a line prefixed "ERROR: " without blocking. Like every
// queued line, it is written to the sink at warn level when drained.
func (rl *RealtimeLogger) Errorf(format string, args ...any) {
	rl.enqueue(fmt.Sprintf("ERROR: "+format, args...))
}

func (rl *RealtimeLogger) enqueue(msg string) {
	line := []byte(msg + "\n")
	_, _ = rl.queue.TryWrite(line)
}

func (rl *RealtimeLogger) drain() {
	defer close(rl.done)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	buf := make([]byte, 4096)
	for {
		select {
		case <-rl.stop:
			rl.flushOnce(buf)
			return
		case <-ticker.C:
			rl.flushOnce(buf)
		}
	}
}

func (rl *RealtimeLogger) flushOnce(buf []byte) {
	for {
		n, err := rl.queue.TryRead(buf)
		if n == 0 || err != nil {
			return
		}
		rl.logger.Warn(string(buf[:n]))
	}
}

// Close stops the drain goroutine, flushing any remaining queued lines.
func (rl *RealtimeLogger) Close() {
	close(rl.stop)
	<-rl.done
}
