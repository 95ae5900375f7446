// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-tickloop/timerwheel"
	"github.com/joeycumines/logiface"
)

// TimerFunc is a timer callback, see Loop.AddTimer.
type TimerFunc = timerwheel.Func

// Loop is a single-threaded reactor, multiplexing file events and timers.
//
// With the exception of Stop and Metrics, all methods must be called from
// the goroutine running the loop (e.g. from callbacks), or while it is not
// running.
type Loop struct {
	frameStart  time.Time
	backend     Backend
	wheel       *timerwheel.Wheel
	clock       *tickClock
	beforeSleep func(l *Loop)
	opts        *loopOptions
	logger      *logiface.Logger[logiface.Event]
	metrics     *loopMetrics
	pollErrors  *pollErrorReporter
	events      []fileEvent
	maxFD       int
	stop        atomic.Bool
	running     atomic.Bool
	processing  bool
	closed      bool
}

// New creates a Loop with a file-event table of setSize entries, i.e. fds
// 0 to setSize-1 may be registered without growing the table.
//
// Unless WithBackend is given, the backend is NewPlatformBackend.
func New(setSize int, opts ...LoopOption) (*Loop, error) {
	if setSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSetSize, setSize)
	}

	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	backend := cfg.backend
	if backend == nil {
		if backend, err = NewPlatformBackend(setSize); err != nil {
			return nil, err
		}
	} else if r, ok := backend.(Resizer); ok {
		if err := r.Resize(setSize); err != nil {
			return nil, fmt.Errorf("tickloop: resize backend to %d: %w", setSize, err)
		}
	}

	logger := cfg.logger
	wheel, err := timerwheel.New(append(cfg.wheelOptions, timerwheel.WithGrowHook(func(capacity int) {
		logger.Debug().
			Int("capacity", capacity).
			Log("tickloop: timer pool grown")
	}))...)
	if err != nil {
		if cfg.backend == nil {
			_ = backend.Close()
		}
		return nil, err
	}

	l := &Loop{
		backend:    backend,
		wheel:      wheel,
		clock:      newTickClock(cfg.clock, cfg.tickDuration),
		opts:       cfg,
		logger:     logger,
		pollErrors: newPollErrorReporter(logger, cfg.pollErrorLimit),
		events:     make([]fileEvent, setSize),
		maxFD:      -1,
	}
	l.frameStart = l.clock.start
	if cfg.metrics {
		l.metrics = newLoopMetrics()
	}

	return l, nil
}

// Close stops the loop, and releases the backend and timer wheel. Pending
// timers are discarded, without being called. Calling Close more than once
// is a no-op. It may be called from a callback, in which case the current
// cycle ends once that callback returns.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.stop.Store(true)
	l.wheel.Close()
	l.events = nil
	l.maxFD = -1
	return l.backend.Close()
}

// Stop requests that Run return, after the current cycle. It is safe to call
// from any goroutine.
func (l *Loop) Stop() { l.stop.Store(true) }

// Run processes events until Stop is called, returning nil, or ctx is done,
// returning ctx.Err(). The context is checked once per cycle, i.e. at least
// once every few ticks.
//
// Any pending Stop is cleared when Run starts.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed {
		return ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer l.running.Store(false)

	l.stop.Store(false)
	l.logger.Info().
		Str("backend", l.backend.Name()).
		Dur("tick", l.opts.tickDuration).
		Int("set_size", len(l.events)).
		Log("tickloop: loop started")

	var err error
	for !l.stop.Load() {
		if err = ctx.Err(); err != nil {
			break
		}
		if _, err = l.ProcessEvents(); err != nil {
			break
		}
	}

	l.logger.Info().
		Err(err).
		Int64("tick", int64(l.wheel.Tick())).
		Log("tickloop: loop stopped")

	return err
}

// ProcessEvents runs one dispatch cycle:
//
//  1. Advance the timer wheel by the whole ticks elapsed, running due timers.
//  2. Call the before-sleep hook, if any.
//  3. Poll the backend, waiting until the end of the current tick, or not at
//     all, if the cycle has run late. See WithCatchUpLimit.
//  4. Dispatch file events, in the order reported by the backend, calling
//     the read callback before the write callback, for each fd.
//
// Returns the number of callbacks invoked. A failed poll is logged, and
// skips step 4, but is not returned.
func (l *Loop) ProcessEvents() (int, error) {
	if l.closed {
		return 0, ErrLoopClosed
	}
	if l.processing {
		return 0, ErrReentrantProcess
	}
	l.processing = true
	defer func() { l.processing = false }()

	ticks, processed := l.advance()
	if l.closed {
		return processed, nil
	}

	if l.beforeSleep != nil {
		l.beforeSleep(l)
		if l.closed {
			return processed, nil
		}
	}

	now := l.clock.clock.Now()
	t1 := now.Sub(l.frameStart)
	timeout := budgetMillis(pollBudget(t1, l.opts.tickDuration, l.opts.catchUpLimit))
	fired, err := l.backend.Poll(timeout)
	l.frameStart = l.clock.clock.Now()
	l.metrics.recordCycle(ticks, t1)

	if err != nil {
		l.metrics.recordPollError()
		l.pollErrors.report(l.backend.Name(), timeout, err)
		return processed, nil
	}

	n := l.dispatch(fired)
	l.metrics.recordFileCallbacks(n)

	return processed + n, nil
}

// UpdateTime advances the timer wheel by the whole ticks elapsed since it
// was last updated, running any due timers, and returns the number of ticks.
// It is called by each cycle, and is a no-op from within a callback.
func (l *Loop) UpdateTime() uint32 {
	if l.closed || l.processing {
		return 0
	}
	l.processing = true
	defer func() { l.processing = false }()
	ticks, _ := l.advance()
	return ticks
}

func (l *Loop) advance() (ticks uint32, fired int) {
	ticks = l.clock.update(l.clock.clock.Now())
	for i := uint32(0); i < ticks && !l.closed; i++ {
		fired += l.wheel.Advance()
	}
	l.metrics.recordTimers(fired)
	return ticks, fired
}

func (l *Loop) dispatch(fired []FiredEvent) (n int) {
	for _, ev := range fired {
		fd, mask := ev.FD, ev.Mask

		fe := l.lookup(fd)
		if fe == nil {
			continue
		}

		if mask.Failed() && mask&interestMask == EventNone {
			mask |= EventError
			if fe.mask&EventRead != 0 {
				fe.rfn(l, fd, fe.data, mask)
				n++
			}
			// re-read, the callback may have changed the table
			if fe = l.lookup(fd); fe != nil && fe.mask&EventWrite != 0 {
				fe.wfn(l, fd, fe.data, mask)
				n++
			}
		} else {
			if mask&EventRead != 0 && fe.mask&EventRead != 0 {
				fe.rfn(l, fd, fe.data, mask)
				n++
			}
			if fe = l.lookup(fd); fe != nil && mask&EventWrite != 0 && fe.mask&EventWrite != 0 {
				fe.wfn(l, fd, fe.data, mask)
				n++
			}
		}

		if l.closed {
			break
		}
	}
	return n
}

// AddTimer schedules fn to be called with data after the given number of
// ticks, returning an id that may be passed to DeleteTimer. A delay of 0 is
// treated as 1. Errors include timerwheel.ErrCapacity, see WithMaxTimers.
func (l *Loop) AddTimer(ticks uint32, fn TimerFunc, data any) (timerwheel.ID, error) {
	if l.closed {
		return 0, ErrLoopClosed
	}
	return l.wheel.Schedule(ticks, fn, data)
}

// DeleteTimer cancels a timer, returning false if it was not pending (e.g.
// it has already fired, or the id is unknown). Deleting a timer from its own
// callback prevents any reschedule.
func (l *Loop) DeleteTimer(id timerwheel.ID) bool {
	if l.closed {
		return false
	}
	return l.wheel.Cancel(id)
}

// SetBeforeSleep sets a function to be called each cycle, immediately
// before the poll, e.g. to flush buffered writes. A nil fn removes it.
func (l *Loop) SetBeforeSleep(fn func(l *Loop)) { l.beforeSleep = fn }

// BackendName returns the name of the backend, e.g. "epoll".
func (l *Loop) BackendName() string { return l.backend.Name() }

// Tick returns the current tick of the timer wheel.
func (l *Loop) Tick() uint32 { return l.wheel.Tick() }

// TickDuration returns the length of one tick.
func (l *Loop) TickDuration() time.Duration { return l.opts.tickDuration }

// CurrentMs returns the milliseconds elapsed since the loop was created.
func (l *Loop) CurrentMs() int64 { return l.clock.currentMs(l.clock.clock.Now()) }

// Metrics returns a snapshot of the loop statistics, which are only
// collected if enabled by WithMetrics. Safe to call from any goroutine.
func (l *Loop) Metrics() Metrics { return l.metrics.snapshot() }
