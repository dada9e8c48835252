package destar

import(
	"errors"
	"sync"
)

var ErrWorkerClosed = errors.New("worker is closed")

// A Worker runs regenerations off the caller's goroutine, for UIs that
// want to keep responding while the images rebuild. It holds at most one
// pending request: submitting while a regeneration is running replaces
// whatever was queued, so a burst of slider moves costs two regenerations,
// not one per move.
type Worker struct {
	s        *Session
	onDone   func(ParameterSet, error)

	mu       sync.Mutex
	cond    *sync.Cond
	pending *ParameterSet
	running *ParameterSet
	busy     bool
	closed   bool
	done     chan struct{}
}

// NewWorker starts the worker goroutine. onDone, if not nil, is called
// from that goroutine after each regeneration, before Wait returns.
func NewWorker(s *Session, onDone func(ParameterSet, error)) *Worker {
	w := &Worker{
		s:      s,
		onDone: onDone,
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit queues ps, replacing any request that has not started yet.
// It returns false once the worker is closed.
func (w *Worker)Submit(ps ParameterSet) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.queue(ps)
	return true
}

// Set changes one parameter, on top of the newest set the worker knows
// about: the queued one, else the running one, else the published one.
// Validation happens here, so a rejected value is returned straight away
// and nothing is queued.
func (w *Worker)Set(name string, v float64) error {
	if !w.s.Loaded() {
		return ErrNotLoaded
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}

	next, repaired, err := w.latest().With(name, v)
	if err != nil {
		return err
	}
	if len(repaired) > 0 {
		w.s.logger().Debugf("worker: %s=%v: repaired %v, now %s", name, v, repaired, next)
	}
	w.queue(next)
	return nil
}

// Latest is the parameter set the session will end up with once the
// worker goes idle.
func (w *Worker)Latest() ParameterSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest()
}

// latest and queue must be called with w.mu held.
func (w *Worker)latest() ParameterSet {
	if w.pending != nil {
		return *w.pending
	}
	if w.running != nil {
		return *w.running
	}
	return w.s.Params()
}

func (w *Worker)queue(ps ParameterSet) {
	if w.pending != nil {
		w.s.logger().Debugf("worker: dropping queued %s", *w.pending)
	}
	w.pending = &ps
	w.cond.Broadcast()
}

// Busy is true while a request is queued or running.
func (w *Worker)Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy || w.pending != nil
}

// Wait blocks until the worker is idle.
func (w *Worker)Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for (w.busy || w.pending != nil) && !w.closed {
		w.cond.Wait()
	}
}

// Close drops any queued request, waits for a running one to finish, and
// stops the goroutine.
func (w *Worker)Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.pending = nil
		w.cond.Broadcast()
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker)run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		for w.pending == nil && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			w.mu.Unlock()
			return
		}
		ps := *w.pending
		w.pending = nil
		w.running = &ps
		w.busy = true
		w.mu.Unlock()

		err := w.s.SetParameters(ps)
		if err != nil {
			w.s.logger().Warnf("worker: %s: %v", ps, err)
		}

		if w.onDone != nil {
			w.onDone(ps, err)
		}

		w.mu.Lock()
		w.running = nil
		w.busy = false
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}
