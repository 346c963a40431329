// Package timerwheel drives the engine's main-thread periodic callbacks:
// the main-idle tick, the garbage-collect tick, and any number of
// plugin-registered timers keyed by (pluginInstanceID, timerID). Some
// realtime audio hosts use a cascading hash wheel for this; no such
// structure exists among this codebase's dependencies, so this package
// reaches for the standard library's container/heap instead — a min-heap
// ordered by next-fire instant gives the same register/unregister/advance
// contract at the entry counts a plugin host actually registers (tens, not
// millions), where the asymptotic advantage of a true wheel does not matter.
package timerwheel

import (
	"container/heap"
	"time"

	"github.com/resonantwave/engine/internal/pluginapi"
)

// Key identifies one timer entry.
type Key struct {
	MainIdle       bool
	GarbageCollect bool
	PluginID       pluginapi.PluginInstanceID
	TimerID        uint64
}

var mainIdleKey = Key{MainIdle: true}
var garbageCollectKey = Key{GarbageCollect: true}

// Entry is a fired timer handed back to the caller by Advance.
type Entry struct {
	Key      Key
	Interval time.Duration
}

type heapEntry struct {
	Entry
	next  time.Time
	index int
}

type entryHeap []*heapEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].next.Before(h[j].next) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel schedules periodic callbacks for the main goroutine. Not safe for
// concurrent use — the main goroutine owns it exclusively.
type Wheel struct {
	h     entryHeap
	byKey map[Key]*heapEntry
	now   func() time.Time
}

// New constructs a Wheel with the two built-in periodic entries already
// scheduled. mainIdleInterval must be positive; garbageCollectInterval must
// be greater than or equal to it.
func New(mainIdleInterval, garbageCollectInterval time.Duration) *Wheel {
	return newWheel(mainIdleInterval, garbageCollectInterval, time.Now)
}

func newWheel(mainIdleInterval, garbageCollectInterval time.Duration, now func() time.Time) *Wheel {
	if mainIdleInterval <= 0 {
		panic("timerwheel: main idle interval must be positive")
	}
	if garbageCollectInterval < mainIdleInterval {
		panic("timerwheel: garbage collect interval must be >= main idle interval")
	}

	w := &Wheel{byKey: make(map[Key]*heapEntry), now: now}
	heap.Init(&w.h)

	start := now()
	w.insert(mainIdleKey, mainIdleInterval, start.Add(mainIdleInterval))
	w.insert(garbageCollectKey, garbageCollectInterval, start.Add(garbageCollectInterval))
	return w
}

func (w *Wheel) insert(key Key, interval time.Duration, next time.Time) {
	e := &heapEntry{Entry: Entry{Key: key, Interval: interval}, next: next}
	w.byKey[key] = e
	heap.Push(&w.h, e)
}

func (w *Wheel) removeKey(key Key) {
	e, ok := w.byKey[key]
	if !ok {
		return
	}
	delete(w.byKey, key)
	if e.index >= 0 && e.index < len(w.h) {
		heap.Remove(&w.h, e.index)
	}
}

// RegisterPluginTimer schedules (or reschedules) a periodic timer for a
// plugin. intervalMS must be > 0.
func (w *Wheel) RegisterPluginTimer(pluginID pluginapi.PluginInstanceID, timerID uint64, intervalMS uint32) {
	if intervalMS == 0 {
		panic("timerwheel: plugin timer interval must be positive")
	}
	key := Key{PluginID: pluginID, TimerID: timerID}
	w.removeKey(key)
	interval := time.Duration(intervalMS) * time.Millisecond
	w.insert(key, interval, w.now().Add(interval))
}

// UnregisterPluginTimer cancels one plugin timer, a no-op if absent.
func (w *Wheel) UnregisterPluginTimer(pluginID pluginapi.PluginInstanceID, timerID uint64) {
	w.removeKey(Key{PluginID: pluginID, TimerID: timerID})
}

// UnregisterAllTimersOnPlugin cancels every timer registered by one plugin
// instance, called when that instance is removed from the graph.
func (w *Wheel) UnregisterAllTimersOnPlugin(pluginID pluginapi.PluginInstanceID) {
	var toRemove []Key
	for key := range w.byKey {
		if key.PluginID == pluginID && !key.MainIdle && !key.GarbageCollect {
			toRemove = append(toRemove, key)
		}
	}
	for _, key := range toRemove {
		w.removeKey(key)
	}
}

// Advance fires every entry whose next instant has passed, once for each
// period that has elapsed since it last fired, reschedules each for its next
// period, and appends the fired entries to out (out is not cleared first,
// matching an accumulate-across-calls caller idiom).
func (w *Wheel) Advance(out *[]Entry) {
	now := w.now()
	for w.h.Len() > 0 && !w.h[0].next.After(now) {
		e := heap.Pop(&w.h).(*heapEntry)
		*out = append(*out, e.Entry)

		e.next = e.next.Add(e.Interval)
		e.index = -1
		heap.Push(&w.h, e)
	}
}

// NextFireIn reports how long until the soonest-scheduled entry fires, used
// by the main loop to size its sleep between Advance calls.
func (w *Wheel) NextFireIn() time.Duration {
	if w.h.Len() == 0 {
		return time.Second
	}
	d := w.h[0].next.Sub(w.now())
	if d < 0 {
		return 0
	}
	return d
}
