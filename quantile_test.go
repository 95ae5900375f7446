// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuantileSketch_empty(t *testing.T) {
	assert.Equal(t, 0.0, newQuantileSketch(0.5).value())
}

func TestQuantileSketch_fewObservations(t *testing.T) {
	q := newQuantileSketch(0.5)
	q.observe(30)
	assert.Equal(t, 30.0, q.value())
	q.observe(10)
	q.observe(20)
	assert.Equal(t, 20.0, q.value())

	hi := newQuantileSketch(1)
	for _, v := range []float64{4, 1, 3} {
		hi.observe(v)
	}
	assert.Equal(t, 4.0, hi.value())
}

func TestQuantileSketch_clampsP(t *testing.T) {
	assert.Equal(t, 0.0, newQuantileSketch(-1).p)
	assert.Equal(t, 1.0, newQuantileSketch(2).p)
}

func TestQuantileSketch_uniform(t *testing.T) {
	const n = 10000
	r := rand.New(rand.NewPCG(3, 4))
	values := r.Perm(n)
	for _, tc := range []struct {
		p    float64
		want float64
	}{
		{0.5, 5000},
		{0.9, 9000},
		{0.99, 9900},
	} {
		q := newQuantileSketch(tc.p)
		for _, v := range values {
			q.observe(float64(v))
		}
		assert.InDelta(t, tc.want, q.value(), n*0.02, "p=%v", tc.p)
	}
}

func TestQuantileSketch_constant(t *testing.T) {
	q := newQuantileSketch(0.9)
	for i := 0; i < 100; i++ {
		q.observe(7)
	}
	assert.Equal(t, 7.0, q.value())
}

func TestLoopMetrics_nil(t *testing.T) {
	var m *loopMetrics
	m.recordCycle(1, time.Second)
	m.recordTimers(1)
	m.recordFileCallbacks(1)
	m.recordPollError()
	assert.Equal(t, Metrics{}, m.snapshot())
}

func TestLoopMetrics_snapshot(t *testing.T) {
	m := newLoopMetrics()
	for i := 1; i <= 100; i++ {
		m.recordCycle(1, time.Duration(i)*time.Millisecond)
	}
	m.recordCycle(4, 0)
	m.recordTimers(3)
	m.recordTimers(0)
	m.recordFileCallbacks(2)
	m.recordPollError()

	s := m.snapshot()
	assert.Equal(t, uint64(101), s.Cycles)
	assert.Equal(t, uint64(104), s.Ticks)
	assert.Equal(t, uint64(3), s.CatchUpTicks)
	assert.Equal(t, uint32(4), s.MaxTicksPerCycle)
	assert.Equal(t, uint64(3), s.TimersFired)
	assert.Equal(t, uint64(2), s.FileCallbacks)
	assert.Equal(t, uint64(1), s.PollErrors)
	assert.Equal(t, 100*time.Millisecond, s.Processing.Max)
	assert.Equal(t, 5050*time.Millisecond/101, s.Processing.Mean)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Processing.P50), float64(10*time.Millisecond))
	assert.InDelta(t, float64(90*time.Millisecond), float64(s.Processing.P90), float64(10*time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.Processing.P99), float64(10*time.Millisecond))
}
