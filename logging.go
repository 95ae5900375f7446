// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"errors"
	"syscall"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// pollErrorReporter logs poll failures, rate limited per category of error,
// so a persistently failing backend cannot flood the log at the tick rate.
type pollErrorReporter struct {
	logger     *logiface.Logger[logiface.Event]
	limiter    *catrate.Limiter
	suppressed map[any]uint64
}

func newPollErrorReporter(logger *logiface.Logger[logiface.Event], limiter *catrate.Limiter) *pollErrorReporter {
	return &pollErrorReporter{
		logger:     logger,
		limiter:    limiter,
		suppressed: make(map[any]uint64),
	}
}

func (x *pollErrorReporter) report(backend string, timeoutMs int, err error) {
	category := pollErrorCategory(err)
	if _, ok := x.limiter.Allow(category); !ok {
		x.suppressed[category]++
		return
	}
	suppressed := x.suppressed[category]
	delete(x.suppressed, category)
	x.logger.Warning().
		Err(err).
		Str("backend", backend).
		Int("timeout_ms", timeoutMs).
		Int64("suppressed", int64(suppressed)).
		Log("tickloop: poll failed, skipping i/o for this cycle")
}

// pollErrorCategory groups errors by errno where possible.
func pollErrorCategory(err error) any {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return err.Error()
}
