package console

import "fmt"

// Application is implemented by types started by RunApplication.
type Application interface {
	Run() *Task
}

// Task is the completion handle returned by Application.Run.
type Task struct {
	done chan struct{}
	err  error
}

// Go runs fn on its own goroutine. A panic in fn settles the task with an
// error.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	if fn == nil {
		close(t.done)
		return t
	}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		t.err = fn()
	}()
	return t
}

// Completed returns a task that has already succeeded.
func Completed() *Task {
	return Failed(nil)
}

// Failed returns a task that has already failed with err.
func Failed(err error) *Task {
	t := &Task{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Done is closed when the task settles. A nil task is settled.
func (t *Task) Done() <-chan struct{} {
	if t == nil {
		return closedChan
	}
	return t.done
}

// Wait blocks until the task settles and returns its error.
func (t *Task) Wait() error {
	if t == nil {
		return nil
	}
	<-t.done
	return t.err
}

// Err returns the task's error, or nil while it is still running.
func (t *Task) Err() error {
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()
