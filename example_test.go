// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop_test

import (
	"context"
	"fmt"
	"time"

	tickloop "github.com/joeycumines/go-tickloop"
	"github.com/joeycumines/go-tickloop/timerwheel"
)

// Example_timers demonstrates one-shot and repeating timers, on a loop that
// has no file events.
func Example_timers() {
	loop, err := tickloop.New(
		16,
		tickloop.WithBackend(tickloop.NewNullBackend()),
		tickloop.WithTickDuration(time.Millisecond),
	)
	if err != nil {
		fmt.Printf("Failed to create loop: %v\n", err)
		return
	}
	defer loop.Close()

	var count int
	_, _ = loop.AddTimer(2, func(id timerwheel.ID, data any) timerwheel.Result {
		count++
		fmt.Printf("%s %d\n", data, count)
		if count == 3 {
			loop.Stop()
			return timerwheel.Retire()
		}
		return timerwheel.Reschedule(2)
	}, "repeat")

	_, _ = loop.AddTimer(1, func(id timerwheel.ID, data any) timerwheel.Result {
		fmt.Println(data)
		return timerwheel.Retire()
	}, "once")

	if err := loop.Run(context.Background()); err != nil {
		fmt.Printf("Run failed: %v\n", err)
	}

	// Output:
	// once
	// repeat 1
	// repeat 2
	// repeat 3
}

// ExampleLoop_SetBeforeSleep demonstrates the hook run before each poll,
// e.g. for flushing writes.
func ExampleLoop_SetBeforeSleep() {
	loop, err := tickloop.New(
		16,
		tickloop.WithBackend(tickloop.NewNullBackend()),
		tickloop.WithTickDuration(time.Millisecond),
	)
	if err != nil {
		fmt.Printf("Failed to create loop: %v\n", err)
		return
	}
	defer loop.Close()

	var cycles int
	loop.SetBeforeSleep(func(l *tickloop.Loop) {
		cycles++
		if cycles == 3 {
			l.Stop()
		}
	})

	_ = loop.Run(context.Background())
	fmt.Println("cycles:", cycles)

	// Output:
	// cycles: 3
}
