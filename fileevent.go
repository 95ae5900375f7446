// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"fmt"
)

// FileFunc is a file event callback. The mask is the readiness reported by
// the backend, which may include EventError or EventHangup.
type FileFunc func(l *Loop, fd int, data any, mask Mask)

// fileEvent is an entry in the file-event table, indexed by fd.
type fileEvent struct {
	rfn  FileFunc
	wfn  FileFunc
	data any
	mask Mask
}

// CreateFileEvent arms fn for the EventRead and/or EventWrite conditions in
// mask, on fd. Conditions already armed for fd are kept, so read and write
// callbacks may be registered separately. The data is shared by both
// callbacks, and is replaced by each call.
//
// If fd does not fit within the set size, the table grows to fit it, unless
// disabled by WithAutoResize, or beyond WithMaxSetSize, in which case the
// error wraps ErrFDOutOfRange.
func (l *Loop) CreateFileEvent(fd int, mask Mask, fn FileFunc, data any) error {
	if l.closed {
		return ErrLoopClosed
	}
	mask &= interestMask
	if mask == EventNone {
		return ErrInvalidMask
	}
	if fn == nil {
		return ErrNilCallback
	}
	if err := l.ensureCapacity(fd); err != nil {
		return err
	}

	fe := &l.events[fd]
	combined := fe.mask | mask
	if err := l.backend.Register(fd, combined); err != nil {
		return fmt.Errorf("tickloop: register fd %d for %s: %w", fd, combined, err)
	}

	fe.mask = combined
	if mask&EventRead != 0 {
		fe.rfn = fn
	}
	if mask&EventWrite != 0 {
		fe.wfn = fn
	}
	fe.data = data
	l.maxFD = max(l.maxFD, fd)

	return nil
}

// DeleteFileEvent disarms the conditions in mask, for fd. Unknown fds, and
// conditions that are not armed, are ignored. Safe to call from any callback,
// including for the fd currently being dispatched.
func (l *Loop) DeleteFileEvent(fd int, mask Mask) {
	if l.closed || fd < 0 || fd >= len(l.events) {
		return
	}
	fe := &l.events[fd]
	mask &= fe.mask
	if mask == EventNone {
		return
	}

	remaining := fe.mask &^ mask
	if err := l.backend.Unregister(fd, remaining); err != nil {
		// the entry is disarmed regardless, the fd may already be closed
		l.logger.Warning().
			Err(err).
			Int("fd", fd).
			Str("mask", mask.String()).
			Log("tickloop: failed to unregister fd")
	}

	fe.mask = remaining
	if mask&EventRead != 0 {
		fe.rfn = nil
	}
	if mask&EventWrite != 0 {
		fe.wfn = nil
	}
	if remaining != EventNone {
		return
	}

	fe.data = nil
	if fd == l.maxFD {
		l.maxFD--
		for l.maxFD >= 0 && l.events[l.maxFD].mask == EventNone {
			l.maxFD--
		}
	}
}

// FileEvents returns the conditions armed for fd.
func (l *Loop) FileEvents(fd int) Mask {
	if fe := l.lookup(fd); fe != nil {
		return fe.mask
	}
	return EventNone
}

// SetSize returns the capacity of the file-event table.
func (l *Loop) SetSize() int { return len(l.events) }

// ResizeSetSize changes the capacity of the file-event table, preserving all
// entries. The error wraps ErrSetSizeTooSmall if a registered fd would not
// fit.
func (l *Loop) ResizeSetSize(n int) error {
	if l.closed {
		return ErrLoopClosed
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSetSize, n)
	}
	if n == len(l.events) {
		return nil
	}
	if l.maxFD >= n {
		return fmt.Errorf("%w: fd %d, set size %d", ErrSetSizeTooSmall, l.maxFD, n)
	}
	return l.resize(n)
}

// lookup returns the armed entry for fd, or nil.
func (l *Loop) lookup(fd int) *fileEvent {
	if fd < 0 || fd >= len(l.events) || l.events[fd].mask == EventNone {
		return nil
	}
	return &l.events[fd]
}

func (l *Loop) ensureCapacity(fd int) error {
	if fd < 0 {
		return fmt.Errorf("%w: fd %d", ErrFDOutOfRange, fd)
	}
	if fd < len(l.events) {
		return nil
	}
	if !l.opts.autoResize || fd >= l.opts.maxSetSize {
		return fmt.Errorf("%w: fd %d, set size %d", ErrFDOutOfRange, fd, len(l.events))
	}
	return l.resize(min(fd*2+1, l.opts.maxSetSize))
}

func (l *Loop) resize(n int) error {
	if r, ok := l.backend.(Resizer); ok {
		if err := r.Resize(n); err != nil {
			return fmt.Errorf("tickloop: resize backend to %d: %w", n, err)
		}
	}
	events := make([]fileEvent, n)
	copy(events, l.events[:min(n, len(l.events))])
	l.logger.Debug().
		Int("from", len(l.events)).
		Int("to", n).
		Log("tickloop: resized file event table")
	l.events = events
	return nil
}
