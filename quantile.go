// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"slices"
)

// quantileSketch estimates a single quantile of a stream in constant space,
// using the P-Square algorithm (Jain and Chlamtac, 1985).
//
// Five markers track the minimum, p/2, p, (1+p)/2 and the maximum. Marker
// heights are adjusted using piecewise-parabolic interpolation, falling back
// to linear if the parabolic estimate would break monotonicity.
//
// Not safe for concurrent use.
type quantileSketch struct {
	height  [5]float64
	pos     [5]float64
	desired [5]float64
	step    [5]float64
	p       float64
	count   int
}

func newQuantileSketch(p float64) *quantileSketch {
	p = min(max(p, 0), 1)
	return &quantileSketch{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *quantileSketch) observe(v float64) {
	x.count++
	if x.count <= 5 {
		x.height[x.count-1] = v
		if x.count == 5 {
			slices.Sort(x.height[:])
			p := x.p
			x.pos = [5]float64{1, 2, 3, 4, 5}
			x.desired = [5]float64{1, 1 + 2*p, 1 + 4*p, 3 + 2*p, 5}
		}
		return
	}

	var k int
	switch {
	case v < x.height[0]:
		x.height[0] = v
	case v >= x.height[4]:
		x.height[4] = v
		k = 3
	default:
		for k < 3 && v >= x.height[k+1] {
			k++
		}
	}

	for i := k + 1; i < 5; i++ {
		x.pos[i]++
	}
	for i := range x.desired {
		x.desired[i] += x.step[i]
	}

	for i := 1; i < 4; i++ {
		d := x.desired[i] - x.pos[i]
		if !(d >= 1 && x.pos[i+1]-x.pos[i] > 1) && !(d <= -1 && x.pos[i-1]-x.pos[i] < -1) {
			continue
		}
		s := 1.0
		if d < 0 {
			s = -1
		}
		h := x.parabolic(i, s)
		if h <= x.height[i-1] || h >= x.height[i+1] {
			h = x.linear(i, s)
		}
		x.height[i] = h
		x.pos[i] += s
	}
}

func (x *quantileSketch) parabolic(i int, s float64) float64 {
	q, n := &x.height, &x.pos
	return q[i] + s/(n[i+1]-n[i-1])*
		((n[i]-n[i-1]+s)*(q[i+1]-q[i])/(n[i+1]-n[i])+
			(n[i+1]-n[i]-s)*(q[i]-q[i-1])/(n[i]-n[i-1]))
}

func (x *quantileSketch) linear(i int, s float64) float64 {
	j := i + int(s)
	return x.height[i] + s*(x.height[j]-x.height[i])/(x.pos[j]-x.pos[i])
}

// value returns the current estimate. Until five observations have been made,
// it is the nearest-rank value of those seen so far.
func (x *quantileSketch) value() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < 5:
		seen := slices.Clone(x.height[:x.count])
		slices.Sort(seen)
		return seen[int(float64(x.count-1)*x.p)]
	default:
		return x.height[2]
	}
}
