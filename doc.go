// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package tickloop provides a single-threaded reactor, multiplexing file
// descriptor readiness and timers measured in whole ticks.
//
// # Architecture
//
// A [Loop] owns a file-event table, indexed by fd, a [timerwheel.Wheel], and
// a readiness [Backend]. Each dispatch cycle ([Loop.ProcessEvents]) advances
// the wheel, calls the before-sleep hook, polls the backend, then dispatches
// the fired file events. [Loop.Run] repeats cycles until [Loop.Stop].
//
// # Platform Support
//
// [NewPlatformBackend] uses platform-native mechanisms:
//   - Linux: epoll
//   - macOS: kqueue
//
// [NewNullBackend] is portable, but only suitable for timers.
//
// # Timing
//
// Logical time advances in ticks of fixed length (see [WithTickDuration]).
// The number of ticks run each cycle is derived from wall time, carrying the
// fractional remainder forward, so the tick count never drifts from
// elapsed/tick by more than one. The poll waits only until the end of the
// current tick. A cycle that overruns by less than a tick borrows from the
// next, and a cycle that overruns further polls without waiting, the lost
// ticks being run together at the start of the next cycle.
//
// # Thread Safety
//
// A Loop is not safe for concurrent use. Callbacks run on the goroutine that
// called [Loop.Run] or [Loop.ProcessEvents], and may use any method,
// including deregistering the fd currently being dispatched.
// [Loop.Stop] and [Loop.Metrics] are safe to call from any goroutine.
package tickloop
