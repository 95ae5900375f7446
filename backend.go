// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"strings"
	"time"
)

// Mask is a set of readiness conditions for a file descriptor.
//
// Only EventRead and EventWrite may be registered. EventError and
// EventHangup are reported by backends, and passed through to callbacks.
type Mask uint8

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead Mask = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup

	// EventNone is the empty mask.
	EventNone Mask = 0

	interestMask = EventRead | EventWrite
)

// Readable reports whether EventRead is set.
func (x Mask) Readable() bool { return x&EventRead != 0 }

// Writable reports whether EventWrite is set.
func (x Mask) Writable() bool { return x&EventWrite != 0 }

// Failed reports whether EventError or EventHangup is set.
func (x Mask) Failed() bool { return x&(EventError|EventHangup) != 0 }

func (x Mask) String() string {
	if x == EventNone {
		return "none"
	}
	var parts []string
	for _, v := range [...]struct {
		mask Mask
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventError, "error"},
		{EventHangup, "hangup"},
	} {
		if x&v.mask != 0 {
			parts = append(parts, v.name)
		}
	}
	return strings.Join(parts, "|")
}

// FiredEvent is a single readiness notification, reported by a Backend.
type FiredEvent struct {
	FD   int
	Mask Mask
}

// Backend is a readiness polling facility, e.g. epoll or kqueue.
//
// A Loop only ever calls its Backend from the goroutine running the loop.
type Backend interface {
	// Register installs or updates the interest for fd. The mask is the
	// complete interest, after arming.
	Register(fd int, mask Mask) error

	// Unregister reduces the interest for fd. The mask is the interest that
	// remains, after disarming. EventNone removes fd entirely.
	Unregister(fd int, mask Mask) error

	// Poll waits up to timeoutMs milliseconds (0 returns immediately) for
	// readiness. The returned slice is only valid until the next call.
	// An interrupted wait is not an error.
	Poll(timeoutMs int) ([]FiredEvent, error)

	// Name identifies the implementation, e.g. "epoll".
	Name() string

	// Close releases any OS resources.
	Close() error
}

// Resizer may be implemented by a Backend, which will be notified whenever
// the set size of the loop changes.
type Resizer interface {
	Resize(setSize int) error
}

type nullBackend struct {
	sleep func(time.Duration)
}

// NewNullBackend returns a Backend that never reports readiness, and simply
// sleeps for the duration of each poll. Suitable for loops that only run
// timers.
func NewNullBackend() Backend {
	return &nullBackend{sleep: time.Sleep}
}

func (*nullBackend) Register(int, Mask) error { return nil }

func (*nullBackend) Unregister(int, Mask) error { return nil }

func (x *nullBackend) Poll(timeoutMs int) ([]FiredEvent, error) {
	if timeoutMs > 0 {
		x.sleep(time.Duration(timeoutMs) * time.Millisecond)
	}
	return nil, nil
}

func (*nullBackend) Name() string { return "null" }

func (*nullBackend) Close() error { return nil }
