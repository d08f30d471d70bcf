package browser

import (
	gosync "sync"
)

// watchers fans page activity out to registered callbacks. Reasons are queued
// and delivered from one goroutine so callbacks never run on the driver's
// dispatch goroutine.
type watchers struct {
	mu     gosync.Mutex
	fns    map[int]func(string)
	next   int
	queue  chan string
	done   chan struct{}
	closed bool
}

func newWatchers(buffer int) *watchers {
	w := &watchers{
		fns:   make(map[int]func(string)),
		queue: make(chan string, buffer),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *watchers) add(fn func(string)) func() {
	w.mu.Lock()
	id := w.next
	w.next++
	w.fns[id] = fn
	w.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

// notify queues reason. Bursts beyond the buffer are dropped; observers
// debounce them anyway.
func (w *watchers) notify(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- reason:
	default:
	}
}

func (w *watchers) loop() {
	for {
		select {
		case <-w.done:
			return
		case reason := <-w.queue:
			w.mu.Lock()
			fns := make([]func(string), 0, len(w.fns))
			for _, fn := range w.fns {
				fns = append(fns, fn)
			}
			w.mu.Unlock()
			for _, fn := range fns {
				fn(reason)
			}
		}
	}
}

func (w *watchers) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
}
