// Package limiter provides the bounded-parallelism primitive the engine uses
// for every batch of filesystem and network I/O. No component fans out
// unbounded goroutines; they all schedule work through a Limiter.
package limiter

// Limiter caps the number of tasks executing at once. Tasks submitted while
// the limit is saturated wait in FIFO order; the queue itself is unbounded.
// A task's failure is its own business: it neither cancels nor delays other
// tasks. Cancellation and timeouts, if needed, belong inside the task.
type Limiter struct {
	slots chan struct{}
}

// New returns a Limiter allowing at most n concurrent tasks.
// n must be positive.
func New(n int) *Limiter {
	if n < 1 {
		panic("limiter: concurrency bound must be positive")
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Run blocks until a slot is free, then executes task and releases the slot,
// returning whatever the task returned. The slot is released even if the
// task panics.
func (l *Limiter) Run(task func() error) error {
	l.slots <- struct{}{}
	defer func() { <-l.slots }()
	return task()
}
