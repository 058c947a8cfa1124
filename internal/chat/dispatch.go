package chat

import "fmt"

type dispatchResult struct {
	value any
	err   error
}

// dispatcher serializes all controller work onto a single goroutine.
//
// The conversation core behaves like a single UI thread: message list,
// guard sets and flow state are only ever touched from this goroutine.
// Timer callbacks and network continuations are posted back onto the queue,
// which makes every check-then-add on a guard set atomic without locking.
type dispatcher struct {
	q chan func()
}

func newDispatcher(queueSize int) *dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &dispatcher{
		q: make(chan func(), queueSize),
	}
	go func() {
		for fn := range d.q {
			if fn != nil {
				fn()
			}
		}
	}()
	return d
}

// do enqueues fn without waiting for it to run.
func (d *dispatcher) do(fn func()) error {
	if d == nil {
		return fmt.Errorf("dispatcher not initialized")
	}
	if fn == nil {
		return nil
	}
	d.q <- fn
	return nil
}

// call runs fn on the dispatch goroutine and waits for its result.
func (d *dispatcher) call(fn func() (any, error)) (any, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher not initialized")
	}
	if fn == nil {
		return nil, nil
	}
	done := make(chan dispatchResult, 1)
	d.q <- func() {
		value, err := fn()
		done <- dispatchResult{value: value, err: err}
	}
	res := <-done
	return res.value, res.err
}

// barrier waits until every previously enqueued function has run.
func (d *dispatcher) barrier() {
	_, _ = d.call(func() (any, error) { return nil, nil })
}
