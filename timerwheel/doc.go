// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package timerwheel implements a hierarchical timing wheel, driven by an
// external tick source, with O(1) insertion and cancellation.
//
// # Layout
//
// Deadlines are absolute 32-bit tick counts, which wrap. The wheel splits the
// remaining delay of each timer over five rings:
//
//   - near: 256 slots, indexed by bits 0-7, holding timers due within the next
//     256 ticks
//   - level 0..3: 64 slots each, indexed by bits 8-13, 14-19, 20-25 and 26-31
//
// 8 + 4*6 = 32, so every representable deadline maps to exactly one
// (level, slot) pair relative to the current tick.
//
// Each time the near ring wraps, the far slot matching the new tick is
// redistributed ("cascaded") into lower rings, proceeding upward only while
// the computed index is zero. Timers cascaded into the current near slot fire
// in the same [Wheel.Advance] call.
//
// # Memory
//
// Nodes live in an arena that grows in batches (see [WithBatchSize]), and are
// recycled via a free list. Lists are intrusive, storing arena indices rather
// than pointers, so steady-state scheduling does not allocate. An [ID] embeds
// the arena index plus a sequence number, which makes stale ids inert.
//
// # Concurrency
//
// A Wheel is not safe for concurrent use. Callbacks run synchronously within
// [Wheel.Advance], and may call any method of the wheel, including
// [Wheel.Close].
package timerwheel
