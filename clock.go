// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"math"
	"time"
)

// Clock is the source of wall time for a Loop. Custom implementations are
// mostly useful for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// tickClock converts elapsed wall time into whole ticks.
//
// The anchor only ever moves by whole ticks, so the fractional remainder is
// carried into the next update, rather than lost.
type tickClock struct {
	clock  Clock
	start  time.Time
	anchor time.Time
	tick   time.Duration
}

func newTickClock(clock Clock, tick time.Duration) *tickClock {
	now := clock.Now()
	return &tickClock{
		clock:  clock,
		start:  now,
		anchor: now,
		tick:   tick,
	}
}

// update returns the number of whole ticks between the anchor and now,
// moving the anchor forward by that many ticks.
func (x *tickClock) update(now time.Time) uint32 {
	elapsed := now.Sub(x.anchor)
	if elapsed < 0 {
		// the clock went backwards, restart the count from now
		x.anchor = now
		return 0
	}
	n := elapsed / x.tick
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	x.anchor = x.anchor.Add(n * x.tick)
	return uint32(n)
}

// currentMs returns the milliseconds elapsed since the clock was created.
func (x *tickClock) currentMs(now time.Time) int64 {
	return now.Sub(x.start).Milliseconds()
}

// pollBudget calculates how long the next poll may wait, given t1, the time
// spent since the previous poll returned.
//
// The budget tops t1 up to the next whole tick, borrowing from up to limit
// ticks. Past that, the poll returns immediately, and the overrun is made up
// by advancing multiple ticks on the next cycle.
func pollBudget(t1, tick time.Duration, limit int) time.Duration {
	if t1 <= 0 {
		return tick
	}
	k := (t1 + tick - 1) / tick
	if k > time.Duration(limit) {
		return 0
	}
	return k*tick - t1
}

// budgetMillis rounds a poll budget up to whole milliseconds.
func budgetMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}
