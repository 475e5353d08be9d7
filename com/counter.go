package com

import "sync/atomic"

// Counter is an atomic, concurrency-safe uint64 counter that separately
// tracks an all-time total and the count accumulated since the last Reset,
// for periodic "N events in the last interval" logging.
type Counter struct {
	total   atomic.Uint64
	current atomic.Uint64
}

// Add increases both the current and total count by delta.
func (c *Counter) Add(delta uint64) {
	c.current.Add(delta)
	c.total.Add(delta)
}

// Val returns the count accumulated since the last Reset, without resetting it.
func (c *Counter) Val() uint64 {
	return c.current.Load()
}

// Total returns the all-time count, unaffected by Reset.
func (c *Counter) Total() uint64 {
	return c.total.Load()
}

// Reset returns the count accumulated since the last Reset and zeroes it.
func (c *Counter) Reset() uint64 {
	return c.current.Swap(0)
}
