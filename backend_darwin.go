// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package tickloop

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// maxPollEvents bounds the event buffer, regardless of set size.
const maxPollEvents = 1024

// kqueueBackend implements Backend using kqueue (Darwin).
//
// Read and write readiness are separate filters, and so may be reported as
// separate kevents, which are merged into a single FiredEvent per fd.
type kqueueBackend struct {
	events  []unix.Kevent_t
	fired   []FiredEvent
	indexes map[int]int
	kq      int
}

// NewPlatformBackend returns the native readiness backend, kqueue on Darwin.
func NewPlatformBackend(setSize int) (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	b := &kqueueBackend{kq: kq, indexes: make(map[int]int)}
	_ = b.Resize(setSize)
	return b, nil
}

func (b *kqueueBackend) Resize(setSize int) error {
	// two filters per fd
	n := min(max(setSize, 1)*2, maxPollEvents)
	b.events = make([]unix.Kevent_t, n)
	b.fired = make([]FiredEvent, 0, n)
	return nil
}

func (b *kqueueBackend) Register(fd int, mask Mask) error {
	changes := maskToKevents(fd, mask, unix.EV_ADD|unix.EV_ENABLE)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return os.NewSyscallError("kevent", err)
	}
	return nil
}

func (b *kqueueBackend) Unregister(fd int, mask Mask) error {
	for _, change := range maskToKevents(fd, interestMask&^mask, unix.EV_DELETE) {
		// filters that were never added report ENOENT
		if _, err := unix.Kevent(b.kq, []unix.Kevent_t{change}, nil, nil); err != nil && !errors.Is(err, unix.ENOENT) {
			return os.NewSyscallError("kevent", err)
		}
	}
	return nil
}

func (b *kqueueBackend) Poll(timeoutMs int) ([]FiredEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(b.kq, nil, b.events, ts)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, os.NewSyscallError("kevent", err)
	}
	b.fired = b.fired[:0]
	clear(b.indexes)
	for i := 0; i < n; i++ {
		fd := int(b.events[i].Ident)
		mask := keventToMask(&b.events[i])
		if j, ok := b.indexes[fd]; ok {
			b.fired[j].Mask |= mask
			continue
		}
		b.indexes[fd] = len(b.fired)
		b.fired = append(b.fired, FiredEvent{FD: fd, Mask: mask})
	}
	return b.fired, nil
}

func (*kqueueBackend) Name() string { return "kqueue" }

func (b *kqueueBackend) Close() error {
	if b.kq < 0 {
		return nil
	}
	err := unix.Close(b.kq)
	b.kq = -1
	return err
}

func maskToKevents(fd int, mask Mask, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if mask&EventRead != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, int(flags))
		changes = append(changes, ev)
	}
	if mask&EventWrite != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, int(flags))
		changes = append(changes, ev)
	}
	return changes
}

func keventToMask(kev *unix.Kevent_t) Mask {
	var mask Mask
	switch kev.Filter {
	case unix.EVFILT_READ:
		mask |= EventRead
	case unix.EVFILT_WRITE:
		mask |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		mask |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		mask |= EventHangup
	}
	return mask
}
