// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"fmt"
	"math"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-tickloop/timerwheel"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultTickDuration is the length of one logical tick.
	DefaultTickDuration = 10 * time.Millisecond

	// DefaultCatchUpLimit is the number of ticks a single poll budget may
	// span, before the loop stops waiting and catches up instead.
	DefaultCatchUpLimit = 2

	// DefaultMaxSetSize bounds automatic growth of the file-event table.
	DefaultMaxSetSize = 1 << 24
)

// defaultPollErrorRates limits poll failure warnings, per category of error.
var defaultPollErrorRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	backend        Backend
	clock          Clock
	logger         *logiface.Logger[logiface.Event]
	pollErrorLimit *catrate.Limiter
	wheelOptions   []timerwheel.Option
	tickDuration   time.Duration
	catchUpLimit   int
	maxSetSize     int
	autoResize     bool
	metrics        bool
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithBackend sets the readiness backend. The Loop takes ownership, and will
// close it. Defaults to NewPlatformBackend.
func WithBackend(backend Backend) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.backend = backend
		return nil
	}}
}

// WithClock sets the source of wall time, which drives the tick rate.
func WithClock(clock Clock) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if clock == nil {
			return fmt.Errorf("tickloop: nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithTickDuration sets the length of one logical tick, which must be at
// least one millisecond. Defaults to DefaultTickDuration.
func WithTickDuration(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d < time.Millisecond {
			return fmt.Errorf("tickloop: invalid tick duration %s", d)
		}
		opts.tickDuration = d
		return nil
	}}
}

// WithCatchUpLimit sets the number of whole ticks the poll budget may top up
// to. A cycle that has already taken longer polls without waiting. The
// default of 2 allows a cycle that overran by less than one tick to borrow
// from the next.
func WithCatchUpLimit(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 1 {
			return fmt.Errorf("tickloop: invalid catch-up limit %d", n)
		}
		opts.catchUpLimit = n
		return nil
	}}
}

// WithAutoResize sets whether registering an fd beyond the set size grows
// the file-event table (up to the max set size), rather than failing with
// ErrFDOutOfRange. Enabled by default.
func WithAutoResize(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.autoResize = enabled
		return nil
	}}
}

// WithMaxSetSize bounds automatic growth of the file-event table.
func WithMaxSetSize(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 || n > math.MaxInt32 {
			return fmt.Errorf("%w: %d", ErrInvalidSetSize, n)
		}
		opts.maxSetSize = n
		return nil
	}}
}

// WithTimerBatchSize sets the number of timer nodes allocated whenever the
// pool is exhausted.
func WithTimerBatchSize(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.wheelOptions = append(opts.wheelOptions, timerwheel.WithBatchSize(n))
		return nil
	}}
}

// WithMaxTimers bounds the number of live timers. AddTimer fails with
// timerwheel.ErrCapacity once reached.
func WithMaxTimers(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.wheelOptions = append(opts.wheelOptions, timerwheel.WithMaxNodes(n))
		return nil
	}}
}

// WithLogger sets the structured logger. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithPollErrorRates sets the rate limits applied to poll failure warnings,
// per category of error, see catrate.NewLimiter. Failures beyond the limit
// are counted, and the count reported with the next warning. An empty map
// disables limiting.
func WithPollErrorRates(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) (err error) {
		if len(rates) == 0 {
			opts.pollErrorLimit = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tickloop: invalid poll error rates: %v", r)
			}
		}()
		opts.pollErrorLimit = catrate.NewLimiter(rates)
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		clock:        systemClock{},
		tickDuration: DefaultTickDuration,
		catchUpLimit: DefaultCatchUpLimit,
		maxSetSize:   DefaultMaxSetSize,
		autoResize:   true,
	}
	cfg.pollErrorLimit = catrate.NewLimiter(defaultPollErrorRates)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
