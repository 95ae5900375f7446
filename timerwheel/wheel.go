// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerwheel

import (
	"errors"
)

const (
	nearBits  = 8
	nearSize  = 1 << nearBits
	nearMask  = nearSize - 1
	levelBits = 6
	levelSize = 1 << levelBits
	levelMask = levelSize - 1
	numLevels = 4
)

// node levels, other than 0..numLevels-1
const (
	levelNear   int8 = -1
	levelFree   int8 = -2
	levelFiring int8 = -3
)

var (
	// ErrCapacity is returned by [Wheel.Schedule] when the arena cannot grow.
	ErrCapacity = errors.New("timerwheel: node capacity exhausted")

	// ErrClosed is returned by [Wheel.Schedule] after [Wheel.Close].
	ErrClosed = errors.New("timerwheel: wheel closed")

	// ErrNilFunc is returned by [Wheel.Schedule] if the callback is nil.
	ErrNilFunc = errors.New("timerwheel: nil callback")
)

type (
	// ID identifies a scheduled timer. The zero value is never issued.
	//
	// The low 32 bits are the arena index, the high 32 bits a sequence
	// number, issued monotonically (wrapping, skipping zero).
	ID uint64

	// Func is a timer callback. The returned [Result] decides whether the
	// timer is retired or rescheduled.
	Func func(id ID, data any) Result

	// Result is the outcome of a timer callback, see [Retire] and
	// [Reschedule].
	Result struct {
		delay uint32
		again bool
	}

	// Wheel is a hierarchical timing wheel. See the package documentation.
	Wheel struct {
		near  [nearSize]list
		tv    [numLevels][levelSize]list
		free  list
		nodes []node
		hooks *wheelHooks
		opts  *wheelOptions
		live  int
		seq   uint32
		tick  uint32
		// closed is set by Close
		closed bool
	}

	node struct {
		fn     Func
		data   any
		id     ID
		expire uint32
		prev   int32
		next   int32
		level  int8
		slot   uint8
		inUse  bool
	}

	// wheelHooks provides injection points for tests
	wheelHooks struct {
		afterCascade func(moved int)
	}
)

// Retire indicates the timer should not run again. Its node is recycled.
func Retire() Result { return Result{} }

// Reschedule indicates the timer should run again, after delay ticks,
// relative to the tick it fired on. The timer keeps its ID. A delay of 0 is
// treated as 1.
func Reschedule(delay uint32) Result { return Result{delay: delay, again: true} }

// Rescheduled returns the delay, and true, if x was built by [Reschedule].
func (x Result) Rescheduled() (uint32, bool) { return x.delay, x.again }

func (x ID) index() int32 { return int32(uint32(x)) }

// New initializes a Wheel at tick 0, allocating the first arena batch.
func New(opts ...Option) (*Wheel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	w := &Wheel{opts: cfg}
	for i := range w.near {
		w.near[i].init()
	}
	for level := range w.tv {
		for i := range w.tv[level] {
			w.tv[level][i].init()
		}
	}
	w.free.init()
	if err := w.grow(); err != nil {
		return nil, err
	}
	return w, nil
}

// Close releases the arena and all lists. Pending callbacks are NOT invoked.
// It is safe to call Close more than once, including from a callback.
func (w *Wheel) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.nodes = nil
	w.live = 0
	for i := range w.near {
		w.near[i].init()
	}
	for level := range w.tv {
		for i := range w.tv[level] {
			w.tv[level][i].init()
		}
	}
	w.free.init()
}

// Tick returns the current tick.
func (w *Wheel) Tick() uint32 { return w.tick }

// Len returns the number of live timers, including one that is currently
// executing.
func (w *Wheel) Len() int { return w.live }

// Capacity returns the arena size, i.e. the number of nodes allocated.
func (w *Wheel) Capacity() int { return len(w.nodes) }

// Schedule arranges for fn to be called with data once delay ticks have been
// advanced. A delay of 0 is treated as 1, since the slot for the current tick
// has already been processed.
func (w *Wheel) Schedule(delay uint32, fn Func, data any) (ID, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if fn == nil {
		return 0, ErrNilFunc
	}

	i, err := w.alloc()
	if err != nil {
		return 0, err
	}

	w.seq++
	if w.seq == 0 {
		w.seq = 1
	}

	n := &w.nodes[i]
	n.id = ID(uint64(w.seq)<<32 | uint64(uint32(i)))
	n.fn = fn
	n.data = data
	n.inUse = true
	n.expire = w.tick + clampDelay(delay)
	w.place(i)
	w.live++

	return n.id, nil
}

// Cancel removes the timer, returning true if it was live. Unknown, fired or
// already-cancelled ids are ignored.
//
// Cancelling a timer from within its own callback prevents any reschedule it
// returns.
func (w *Wheel) Cancel(id ID) bool {
	i, ok := w.lookup(id)
	if !ok {
		return false
	}
	n := &w.nodes[i]
	if n.level == levelFiring {
		// released by fire, once the callback returns
		n.inUse = false
		return true
	}
	w.remove(w.owner(n), i)
	w.release(i)
	return true
}

// Pending returns true if the timer is scheduled, and not currently executing.
func (w *Wheel) Pending(id ID) bool {
	i, ok := w.lookup(id)
	return ok && w.nodes[i].level != levelFiring
}

// Expiry returns the absolute tick the timer is due on.
func (w *Wheel) Expiry(id ID) (uint32, bool) {
	i, ok := w.lookup(id)
	if !ok || w.nodes[i].level == levelFiring {
		return 0, false
	}
	return w.nodes[i].expire, true
}

// Advance moves the wheel forward by one tick, cascading if the near ring
// wrapped, then calls every timer due on the new tick, in FIFO order.
// Returns the number of callbacks invoked.
func (w *Wheel) Advance() int {
	if w.closed {
		return 0
	}
	w.tick++
	if w.tick&nearMask == 0 {
		moved := w.cascade()
		if w.hooks != nil && w.hooks.afterCascade != nil {
			w.hooks.afterCascade(moved)
		}
	}
	return w.fire()
}

func (w *Wheel) lookup(id ID) (int32, bool) {
	i := id.index()
	if id == 0 || i < 0 || int(i) >= len(w.nodes) {
		return 0, false
	}
	n := &w.nodes[i]
	if !n.inUse || n.id != id {
		return 0, false
	}
	return i, true
}

// owner returns the list n is currently linked into.
func (w *Wheel) owner(n *node) *list {
	switch n.level {
	case levelNear:
		return &w.near[n.slot]
	case levelFree:
		return &w.free
	default:
		return &w.tv[n.level][n.slot]
	}
}

func (w *Wheel) alloc() (int32, error) {
	if w.free.empty() {
		if err := w.grow(); err != nil {
			return 0, err
		}
	}
	return w.popFront(&w.free), nil
}

func (w *Wheel) grow() error {
	size := len(w.nodes)
	if size >= w.opts.maxNodes {
		return ErrCapacity
	}
	batch := min(w.opts.batchSize, w.opts.maxNodes-size)
	w.nodes = append(w.nodes, make([]node, batch)...)
	for i := size; i < len(w.nodes); i++ {
		w.nodes[i].level = levelFree
		w.pushBack(&w.free, int32(i))
	}
	if w.opts.onGrow != nil {
		w.opts.onGrow(len(w.nodes))
	}
	return nil
}

func (w *Wheel) release(i int32) {
	n := &w.nodes[i]
	n.fn = nil
	n.data = nil
	n.inUse = false
	n.level = levelFree
	n.slot = 0
	w.pushBack(&w.free, i)
	w.live--
}

// place links node i into the ring for its expire, relative to the current
// tick.
func (w *Wheel) place(i int32) {
	n := &w.nodes[i]
	remaining := uint64(n.expire - w.tick)
	if remaining < nearSize {
		n.level = levelNear
		n.slot = uint8(n.expire & nearMask)
		w.pushBack(&w.near[n.slot], i)
		return
	}
	level := 0
	for level < numLevels-1 && remaining >= 1<<(nearBits+levelBits*(level+1)) {
		level++
	}
	n.level = int8(level)
	n.slot = uint8((n.expire >> (nearBits + levelBits*level)) & levelMask)
	w.pushBack(&w.tv[level][n.slot], i)
}

// cascade redistributes far slots after the near ring wraps, returning the
// number of nodes moved.
func (w *Wheel) cascade() (moved int) {
	for level := 0; level < numLevels; level++ {
		idx := (w.tick >> (nearBits + levelBits*level)) & levelMask
		for i := w.tv[level][idx].detach(); i != nilIndex; {
			next := w.nodes[i].next
			w.place(i)
			moved++
			i = next
		}
		if idx != 0 {
			break
		}
	}
	return
}

func (w *Wheel) fire() (fired int) {
	slot := &w.near[w.tick&nearMask]
	for !slot.empty() {
		i := w.popFront(slot)
		n := &w.nodes[i]
		n.level = levelFiring
		result := n.fn(n.id, n.data)
		fired++

		if w.closed {
			return
		}

		// the arena may have grown during the callback
		n = &w.nodes[i]
		if delay, again := result.Rescheduled(); again && n.inUse {
			n.expire = w.tick + clampDelay(delay)
			w.place(i)
			continue
		}
		w.release(i)
	}
	return
}

func clampDelay(delay uint32) uint32 {
	if delay == 0 {
		return 1
	}
	return delay
}
