// Package reclaim runs deferred cleanup work on a background goroutine. A
// producer hands jobs to a Queue, which the worker drains at its own pace;
// in this engine the schedule compiler queues the bookkeeping for each
// delay-compensation cache entry it evicts. Plugin Deactivate calls do not
// go through this package: the process goroutine runs them itself from the
// schedule's drop list. Buffer and schedule memory
// itself needs no such queue — the garbage collector reclaims that once the
// last reference drops — this package exists only for the side-effecting
// cleanup the collector cannot do for us.
package reclaim

import (
	"sync"
)

// Job is a unit of deferred cleanup work. Jobs must not block for long; a
// slow job delays every job queued after it.
type Job func()

// Queue buffers jobs handed off from other goroutines (in this engine, the
// main goroutine during a schedule compile) and runs them from its own
// worker goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []Job
	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}

	onPanic func(recovered any)
}

// NewQueue starts a Queue and its worker goroutine. onPanic, if non-nil, is
// invoked when a job panics so the worker can keep running instead of taking
// the whole process down; if nil, panics propagate and kill the worker.
func NewQueue(onPanic func(recovered any)) *Queue {
	q := &Queue{
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
	go q.run()
	return q
}

// Push enqueues a job for later execution. Safe to call from any goroutine,
// including the process thread; Push itself never blocks on the job running.
func (q *Queue) Push(j Job) {
	q.mu.Lock()
	q.pending = append(q.pending, j)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// PushAll enqueues a batch of jobs as one unit, preserving their order
// relative to each other and to later Push calls.
func (q *Queue) PushAll(jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, jobs...)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			q.drainOnce()
			return
		case <-q.signal:
			q.drainOnce()
		}
	}
}

func (q *Queue) drainOnce() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.runJob(job)
	}
}

func (q *Queue) runJob(job Job) {
	if q.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				q.onPanic(r)
			}
		}()
	}
	job()
}

// Close stops the worker goroutine after it finishes draining whatever is
// currently pending. Jobs pushed after Close is called are not run.
func (q *Queue) Close() {
	close(q.stop)
	<-q.done
}

// Len reports the number of jobs currently queued, for diagnostics and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
