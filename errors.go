// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"errors"
)

// Standard errors.
var (
	// ErrFDOutOfRange is returned when a file descriptor is negative, or
	// exceeds the set size and the table may not grow to fit it.
	ErrFDOutOfRange = errors.New("tickloop: fd out of range")

	// ErrSetSizeTooSmall is returned by Loop.ResizeSetSize if a registered
	// file descriptor would not fit within the new size.
	ErrSetSizeTooSmall = errors.New("tickloop: set size too small for registered fds")

	// ErrInvalidSetSize is returned for a non-positive set size.
	ErrInvalidSetSize = errors.New("tickloop: invalid set size")

	// ErrInvalidMask is returned if a mask has neither EventRead nor EventWrite.
	ErrInvalidMask = errors.New("tickloop: mask must include EventRead or EventWrite")

	// ErrNilCallback is returned when registering a nil callback.
	ErrNilCallback = errors.New("tickloop: nil callback")

	// ErrLoopClosed is returned by operations attempted after Loop.Close.
	ErrLoopClosed = errors.New("tickloop: loop closed")

	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running, including from within one of its callbacks.
	ErrLoopAlreadyRunning = errors.New("tickloop: loop is already running")

	// ErrReentrantProcess is returned when ProcessEvents is called from
	// within a callback.
	ErrReentrantProcess = errors.New("tickloop: cannot process events from within a callback")

	// ErrBackendUnsupported is returned by NewPlatformBackend on platforms
	// without a native readiness backend.
	ErrBackendUnsupported = errors.New("tickloop: no readiness backend for this platform")
)
