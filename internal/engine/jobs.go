package engine

import "sync"

type job struct {
	fn   func()
	tick bool
}

// Serializer is the process-alerts lock: a single worker draining a FIFO
// queue. Periodic ticks behave like a bounded queue of depth one (a new
// tick firing while one is already queued is dropped); every other
// operation queues unbounded so user one-shot work is never lost.
type Serializer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool
	done   chan struct{}
}

func NewSerializer() *Serializer {
	s := &Serializer{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *Serializer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		next.fn()
	}
}

// Enqueue appends an operation to the unbounded queue.
func (s *Serializer) Enqueue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, job{fn: fn})
	s.cond.Signal()
}

// EnqueueWait runs an operation on the worker and blocks until it
// finished. Used by API operations that must observe the result.
func (s *Serializer) EnqueueWait(fn func()) {
	doneCh := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, job{fn: func() {
		fn()
		close(doneCh)
	}})
	s.cond.Signal()
	s.mu.Unlock()
	<-doneCh
}

// TryTick enqueues a periodic tick unless one is already waiting.
// Returns false when the firing was dropped.
func (s *Serializer) TryTick(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for _, queued := range s.queue {
		if queued.tick {
			return false
		}
	}
	s.queue = append(s.queue, job{fn: fn, tick: true})
	s.cond.Signal()
	return true
}

// Close stops accepting work, drains the queue and waits for the worker.
func (s *Serializer) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}
