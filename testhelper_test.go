// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeBackend is a scripted Backend. Each Poll advances the clock by the
// full timeout, then reports the next scripted batch, if any.
type fakeBackend struct {
	clock       *fakeClock
	registered  map[int]Mask
	batches     [][]FiredEvent
	pollErrs    []error
	timeouts    []int
	calls       []string
	sizes       []int
	registerErr error
	resizeErr   error
	closed      int
}

func newFakeBackend(clock *fakeClock) *fakeBackend {
	return &fakeBackend{clock: clock, registered: make(map[int]Mask)}
}

func (b *fakeBackend) Register(fd int, mask Mask) error {
	b.calls = append(b.calls, fmt.Sprintf("register %d %s", fd, mask))
	if b.registerErr != nil {
		return b.registerErr
	}
	b.registered[fd] = mask
	return nil
}

func (b *fakeBackend) Unregister(fd int, mask Mask) error {
	b.calls = append(b.calls, fmt.Sprintf("unregister %d %s", fd, mask))
	if mask == EventNone {
		delete(b.registered, fd)
	} else {
		b.registered[fd] = mask
	}
	return nil
}

func (b *fakeBackend) Poll(timeoutMs int) ([]FiredEvent, error) {
	b.calls = append(b.calls, "poll")
	b.timeouts = append(b.timeouts, timeoutMs)
	if b.clock != nil {
		b.clock.advance(time.Duration(timeoutMs) * time.Millisecond)
	}
	if len(b.pollErrs) != 0 {
		err := b.pollErrs[0]
		b.pollErrs = b.pollErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(b.batches) == 0 {
		return nil, nil
	}
	batch := b.batches[0]
	b.batches = b.batches[1:]
	return batch, nil
}

func (b *fakeBackend) Resize(setSize int) error {
	if b.resizeErr != nil {
		return b.resizeErr
	}
	b.sizes = append(b.sizes, setSize)
	return nil
}

func (*fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Close() error {
	b.closed++
	return nil
}

// newTestLoop builds a loop driven by a fake clock and backend.
func newTestLoop(t *testing.T, setSize int, opts ...LoopOption) (*Loop, *fakeClock, *fakeBackend) {
	t.Helper()
	clock := newFakeClock()
	backend := newFakeBackend(clock)
	l, err := New(setSize, append([]LoopOption{WithClock(clock), WithBackend(backend)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, clock, backend
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

func processN(t *testing.T, l *Loop, n int) (total int) {
	t.Helper()
	for i := 0; i < n; i++ {
		c, err := l.ProcessEvents()
		require.NoError(t, err)
		total += c
	}
	return
}
