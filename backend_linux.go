// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package tickloop

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// maxPollEvents bounds the event buffer, regardless of set size.
const maxPollEvents = 1024

// epollBackend implements Backend using epoll (Linux).
type epollBackend struct {
	events []unix.EpollEvent
	fired  []FiredEvent
	epfd   int
}

// NewPlatformBackend returns the native readiness backend, epoll on Linux.
func NewPlatformBackend(setSize int) (Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	b := &epollBackend{epfd: epfd}
	_ = b.Resize(setSize)
	return b, nil
}

func (b *epollBackend) Resize(setSize int) error {
	n := min(max(setSize, 1), maxPollEvents)
	b.events = make([]unix.EpollEvent, n)
	b.fired = make([]FiredEvent, 0, n)
	return nil
}

func (b *epollBackend) Register(fd int, mask Mask) error {
	ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	if errors.Is(err, unix.EEXIST) {
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (b *epollBackend) Unregister(fd int, mask Mask) error {
	var err error
	if mask&interestMask == EventNone {
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	} else {
		ev := unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (b *epollBackend) Poll(timeoutMs int) ([]FiredEvent, error) {
	n, err := unix.EpollWait(b.epfd, b.events, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, os.NewSyscallError("epoll_wait", err)
	}
	b.fired = b.fired[:0]
	for i := 0; i < n; i++ {
		b.fired = append(b.fired, FiredEvent{
			FD:   int(b.events[i].Fd),
			Mask: epollToMask(b.events[i].Events),
		})
	}
	return b.fired, nil
}

func (*epollBackend) Name() string { return "epoll" }

func (b *epollBackend) Close() error {
	if b.epfd < 0 {
		return nil
	}
	err := unix.Close(b.epfd)
	b.epfd = -1
	return err
}

func maskToEpoll(mask Mask) uint32 {
	var events uint32
	if mask&EventRead != 0 {
		events |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func epollToMask(events uint32) Mask {
	var mask Mask
	if events&unix.EPOLLIN != 0 {
		mask |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		mask |= EventWrite
	}
	if events&unix.EPOLLERR != 0 {
		mask |= EventError
	}
	if events&unix.EPOLLHUP != 0 {
		mask |= EventHangup
	}
	return mask
}
