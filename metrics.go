// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of loop statistics, see
// Loop.Metrics and WithMetrics.
//
// Example:
//
//	loop, _ := New(1024, WithMetrics(true))
//	_ = loop.Run(ctx)
//	stats := loop.Metrics()
//	fmt.Printf("cycles: %d, P99 processing: %v\n",
//		stats.Cycles, stats.Processing.P99)
type Metrics struct {
	// Cycles is the number of completed dispatch cycles.
	Cycles uint64

	// Ticks is the number of ticks the timer wheel has advanced.
	Ticks uint64

	// CatchUpTicks counts ticks beyond the first, advanced within a single
	// cycle, i.e. ticks that were late.
	CatchUpTicks uint64

	// MaxTicksPerCycle is the largest number of ticks advanced in one cycle.
	MaxTicksPerCycle uint32

	// TimersFired is the number of timer callbacks invoked.
	TimersFired uint64

	// FileCallbacks is the number of file event callbacks invoked.
	FileCallbacks uint64

	// PollErrors is the number of failed polls.
	PollErrors uint64

	// Processing summarizes the time each cycle spent outside of the poll,
	// i.e. running timers and dispatching I/O.
	Processing ProcessingMetrics
}

// ProcessingMetrics is a streaming estimate of the distribution of
// per-cycle processing time.
type ProcessingMetrics struct {
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// loopMetrics accumulates statistics on the loop goroutine. The mutex only
// guards against concurrent snapshots.
type loopMetrics struct {
	mu        sync.Mutex
	counts    Metrics
	quantiles [3]*quantileSketch
	sum       time.Duration
	samples   int64
}

func newLoopMetrics() *loopMetrics {
	return &loopMetrics{
		quantiles: [3]*quantileSketch{
			newQuantileSketch(0.50),
			newQuantileSketch(0.90),
			newQuantileSketch(0.99),
		},
	}
}

func (x *loopMetrics) recordCycle(ticks uint32, processing time.Duration) {
	if x == nil {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.counts.Cycles++
	x.counts.Ticks += uint64(ticks)
	if ticks > 1 {
		x.counts.CatchUpTicks += uint64(ticks - 1)
	}
	x.counts.MaxTicksPerCycle = max(x.counts.MaxTicksPerCycle, ticks)
	for _, q := range x.quantiles {
		q.observe(float64(processing))
	}
	x.counts.Processing.Max = max(x.counts.Processing.Max, processing)
	x.sum += processing
	x.samples++
}

func (x *loopMetrics) recordTimers(n int) {
	if x == nil || n == 0 {
		return
	}
	x.mu.Lock()
	x.counts.TimersFired += uint64(n)
	x.mu.Unlock()
}

func (x *loopMetrics) recordFileCallbacks(n int) {
	if x == nil || n == 0 {
		return
	}
	x.mu.Lock()
	x.counts.FileCallbacks += uint64(n)
	x.mu.Unlock()
}

func (x *loopMetrics) recordPollError() {
	if x == nil {
		return
	}
	x.mu.Lock()
	x.counts.PollErrors++
	x.mu.Unlock()
}

func (x *loopMetrics) snapshot() Metrics {
	if x == nil {
		return Metrics{}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.counts
	s.Processing.P50 = time.Duration(x.quantiles[0].value())
	s.Processing.P90 = time.Duration(x.quantiles[1].value())
	s.Processing.P99 = time.Duration(x.quantiles[2].value())
	if x.samples != 0 {
		s.Processing.Mean = x.sum / time.Duration(x.samples)
	}
	return s
}
