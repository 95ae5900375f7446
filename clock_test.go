// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/joeycumines/go-tickloop/timerwheel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollBudget(t *testing.T) {
	const d = 10 * time.Millisecond
	for _, tc := range []struct {
		t1, want time.Duration
		limit    int
	}{
		{-time.Millisecond, d, 2},
		{0, d, 2},
		{time.Millisecond, 9 * time.Millisecond, 2},
		{d - 1, 1, 2},
		{d, 0, 2},
		{d + 1, d - 1, 2},
		{15 * time.Millisecond, 5 * time.Millisecond, 2},
		{2*d - 1, 1, 2},
		{2 * d, 0, 2},
		{2*d + 1, 0, 2},
		{time.Hour, 0, 2},
		{15 * time.Millisecond, 0, 1},
		{25 * time.Millisecond, 5 * time.Millisecond, 3},
		{35 * time.Millisecond, 0, 3},
	} {
		t.Run(fmt.Sprintf("%s/%d", tc.t1, tc.limit), func(t *testing.T) {
			assert.Equal(t, tc.want, pollBudget(tc.t1, d, tc.limit))
		})
	}
}

func TestBudgetMillis(t *testing.T) {
	assert.Equal(t, 0, budgetMillis(-1))
	assert.Equal(t, 0, budgetMillis(0))
	assert.Equal(t, 1, budgetMillis(1))
	assert.Equal(t, 1, budgetMillis(time.Millisecond))
	assert.Equal(t, 2, budgetMillis(time.Millisecond+1))
	assert.Equal(t, 10, budgetMillis(10*time.Millisecond))
}

func TestTickClock_update(t *testing.T) {
	clock := newFakeClock()
	c := newTickClock(clock, 10*time.Millisecond)
	start := clock.Now()

	assert.Equal(t, uint32(0), c.update(clock.Now()))

	clock.advance(25 * time.Millisecond)
	assert.Equal(t, uint32(2), c.update(clock.Now()))
	assert.Equal(t, start.Add(20*time.Millisecond), c.anchor)

	// the remainder is carried
	clock.advance(5 * time.Millisecond)
	assert.Equal(t, uint32(1), c.update(clock.Now()))
	assert.Equal(t, int64(30), c.currentMs(clock.Now()))

	// backwards jumps restart from the new time
	clock.advance(-time.Second)
	assert.Equal(t, uint32(0), c.update(clock.Now()))
	clock.advance(10 * time.Millisecond)
	assert.Equal(t, uint32(1), c.update(clock.Now()))
}

func TestTickClock_saturates(t *testing.T) {
	clock := newFakeClock()
	c := newTickClock(clock, time.Millisecond)
	clock.advance(time.Duration(1<<33) * time.Millisecond)
	assert.Equal(t, uint32(1<<32-1), c.update(clock.Now()))
}

// TestLoop_driftBound simulates a fixed processing cost each cycle, checking
// that the ticks advanced always match the elapsed time, and that the cycle
// length is the cost rounded up to a whole tick, or the cost itself, past
// the catch-up limit.
func TestLoop_driftBound(t *testing.T) {
	const (
		d      = 10 * time.Millisecond
		cycles = 1000
	)
	for _, tc := range []struct {
		name  string
		cost  time.Duration
		cycle time.Duration
	}{
		{`zero`, 0, d},
		{`half tick`, d / 2, d},
		{`one tick`, d, d},
		{`one and a half ticks`, d * 3 / 2, 2 * d},
		{`three ticks`, 3 * d, 3 * d},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, clock, _ := newTestLoop(t, 8, WithTickDuration(d))
			start := clock.Now()

			var fired int
			_, err := l.AddTimer(1, func(timerwheel.ID, any) timerwheel.Result {
				fired++
				return timerwheel.Reschedule(1)
			}, nil)
			require.NoError(t, err)
			l.SetBeforeSleep(func(*Loop) { clock.advance(tc.cost) })

			processN(t, l, cycles)

			elapsed := clock.Now().Sub(start)
			assert.Equal(t, tc.cycle*cycles, elapsed)

			// the last poll is not yet accounted for
			lag := int64(elapsed/d) - int64(l.Tick())
			assert.GreaterOrEqual(t, lag, int64(0))
			assert.LessOrEqual(t, lag, int64(tc.cycle/d))

			l.UpdateTime()
			assert.Equal(t, uint32(elapsed/d), l.Tick())
			assert.Equal(t, int(l.Tick()), fired)
		})
	}
}

func TestLoop_driftBoundIrregular(t *testing.T) {
	const d = 10 * time.Millisecond
	l, clock, _ := newTestLoop(t, 8, WithTickDuration(d), WithMetrics(true))
	start := clock.Now()
	r := rand.New(rand.NewPCG(1, 2))
	l.SetBeforeSleep(func(*Loop) {
		clock.advance(time.Duration(r.Int64N(int64(4 * d))))
	})

	for i := 0; i < 1000; i++ {
		_, err := l.ProcessEvents()
		require.NoError(t, err)
		elapsed := clock.Now().Sub(start)
		// within one cycle, which is at most 4 ticks of cost, plus a tick of
		// poll
		lag := int64(elapsed/d) - int64(l.Tick())
		require.GreaterOrEqual(t, lag, int64(0))
		require.LessOrEqual(t, lag, int64(5))
	}

	l.UpdateTime()
	assert.Equal(t, uint32(clock.Now().Sub(start)/d), l.Tick())
	assert.LessOrEqual(t, l.Metrics().MaxTicksPerCycle, uint32(6))
}
