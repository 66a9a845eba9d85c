package coordinator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// dispatcher runs posted tasks one at a time, in post order, on a single
// goroutine. Posting never blocks: the queue grows as needed.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
	log    zerolog.Logger
}

func newDispatcher(log zerolog.Logger, capacity int) *dispatcher {
	d := &dispatcher{
		queue: make([]func(), 0, capacity),
		done:  make(chan struct{}),
		log:   log,
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// post enqueues fn. After close, fn runs inline on the caller's goroutine so
// that exactly-once notifications are never dropped.
func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.safely("inline", fn)
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		d.safely("task", fn)
	}
}

// safely runs fn and logs a panic instead of letting listener code take the
// dispatch goroutine down with it.
func (d *dispatcher) safely(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("where", where).Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn()
}

// pending reports the number of queued tasks.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// drain waits until every task posted before the call has run.
// It must not be called from the dispatch goroutine.
func (d *dispatcher) drain(ctx context.Context) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		select {
		case <-d.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	marker := make(chan struct{})
	d.post(func() { close(marker) })
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting queued work, runs what is already queued and waits
// for the goroutine to exit.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	<-d.done
}
