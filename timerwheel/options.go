// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerwheel

import (
	"fmt"
	"math"
)

const (
	// DefaultBatchSize is the number of nodes added to the arena each time it
	// grows.
	DefaultBatchSize = 256

	// DefaultMaxNodes is the default upper bound on the arena size.
	DefaultMaxNodes = 1 << 24

	// maxNodesLimit is imposed by the int32 arena indices.
	maxNodesLimit = math.MaxInt32
)

type wheelOptions struct {
	onGrow    func(capacity int)
	batchSize int
	maxNodes  int
}

// Option configures a Wheel instance.
type Option interface {
	applyWheel(*wheelOptions) error
}

type optionImpl struct {
	applyWheelFunc func(*wheelOptions) error
}

func (o *optionImpl) applyWheel(opts *wheelOptions) error {
	return o.applyWheelFunc(opts)
}

// WithBatchSize sets the number of nodes allocated each time the arena is
// exhausted. The initial arena is also one batch.
func WithBatchSize(n int) Option {
	return &optionImpl{func(opts *wheelOptions) error {
		if n <= 0 {
			return fmt.Errorf("timerwheel: invalid batch size %d", n)
		}
		opts.batchSize = n
		return nil
	}}
}

// WithMaxNodes bounds the arena, which is also the maximum number of live
// timers. Schedule returns [ErrCapacity] once the bound is reached.
func WithMaxNodes(n int) Option {
	return &optionImpl{func(opts *wheelOptions) error {
		if n <= 0 || n > maxNodesLimit {
			return fmt.Errorf("timerwheel: invalid max nodes %d", n)
		}
		opts.maxNodes = n
		return nil
	}}
}

// WithGrowHook registers a function called after each arena growth, with the
// new capacity. Intended for diagnostics.
func WithGrowHook(fn func(capacity int)) Option {
	return &optionImpl{func(opts *wheelOptions) error {
		opts.onGrow = fn
		return nil
	}}
}

func resolveOptions(opts []Option) (*wheelOptions, error) {
	cfg := &wheelOptions{
		batchSize: DefaultBatchSize,
		maxNodes:  DefaultMaxNodes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWheel(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.batchSize > cfg.maxNodes {
		cfg.batchSize = cfg.maxNodes
	}
	return cfg, nil
}
