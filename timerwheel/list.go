// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerwheel

const nilIndex int32 = -1

// list is an intrusive doubly-linked list of arena indices, used for every
// ring slot, and the free list. The zero value is NOT an empty list, see init.
type list struct {
	head int32
	tail int32
}

func (x *list) init() {
	x.head, x.tail = nilIndex, nilIndex
}

func (x *list) empty() bool {
	return x.head == nilIndex
}

// pushBack links node i at the tail of l.
func (w *Wheel) pushBack(l *list, i int32) {
	n := &w.nodes[i]
	n.next = nilIndex
	n.prev = l.tail
	if l.tail == nilIndex {
		l.head = i
	} else {
		w.nodes[l.tail].next = i
	}
	l.tail = i
}

// remove unlinks node i, which must be a member of l.
func (w *Wheel) remove(l *list, i int32) {
	n := &w.nodes[i]
	if n.prev == nilIndex {
		l.head = n.next
	} else {
		w.nodes[n.prev].next = n.next
	}
	if n.next == nilIndex {
		l.tail = n.prev
	} else {
		w.nodes[n.next].prev = n.prev
	}
	n.prev, n.next = nilIndex, nilIndex
}

// popFront unlinks and returns the head of l, or nilIndex if l is empty.
func (w *Wheel) popFront(l *list) int32 {
	i := l.head
	if i != nilIndex {
		w.remove(l, i)
	}
	return i
}

// detach empties l, returning the former head. The returned chain remains
// linked via next, and is owned by the caller.
func (x *list) detach() (head int32) {
	head = x.head
	x.init()
	return
}
