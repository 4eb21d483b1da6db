package transceiver

import "sync"

// busTask is one unit of raw I/O submitted to an Executor. The result
// channel carries the task's error back to the submitting goroutine.
type busTask struct {
	fn     func() error
	result chan error
}

// Executor serializes raw bus operations for one physical module on a
// single worker goroutine. Some platforms cannot interleave bus
// transactions, so everything touching the wire for a module must run
// on its executor when one exists.
//
// Submit is a synchronous hand-off: the calling goroutine blocks until
// the task has run on the worker. The worker and the caller are
// different goroutines; callers must not assume otherwise.
type Executor struct {
	tasks chan busTask

	done struct {
		ch   chan struct{}
		once sync.Once
	}
	wg sync.WaitGroup
}

// NewExecutor creates an executor and starts its worker goroutine.
func NewExecutor() *Executor {
	e := &Executor{
		tasks: make(chan busTask),
	}
	e.done.ch = make(chan struct{})

	e.wg.Add(1)
	go e.worker()

	return e
}

// worker runs submitted tasks in arrival order until Close.
func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.tasks:
			task.result <- task.fn()
		case <-e.done.ch:
			return
		}
	}
}

// Submit runs fn on the executor's worker goroutine and blocks until it
// completes, returning fn's error. Returns ErrExecutorClosed if the
// executor has been shut down.
func (e *Executor) Submit(fn func() error) error {
	task := busTask{fn: fn, result: make(chan error, 1)}

	select {
	case e.tasks <- task:
		return <-task.result
	case <-e.done.ch:
		return ErrExecutorClosed
	}
}

// Close stops the worker. Tasks already handed off complete; later
// Submit calls return ErrExecutorClosed. Close is idempotent.
func (e *Executor) Close() {
	e.done.once.Do(func() { close(e.done.ch) })
	e.wg.Wait()
}
