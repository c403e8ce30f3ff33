package notification

import (
	"context"
	"sync"
	"time"

	"medcore/pkg/logger"
)

// AsyncDispatcher queues events and delivers them on worker goroutines.
// Dispatch never blocks: when the queue is full the event is dropped.
type AsyncDispatcher struct {
	sender  Sender
	queue   chan Event
	timeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsyncDispatcher starts workers goroutines reading a queue of queueSize.
func NewAsyncDispatcher(sender Sender, queueSize, workers int) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	d := &AsyncDispatcher{
		sender:  sender,
		queue:   make(chan Event, queueSize),
		timeout: 30 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Dispatch enqueues ev. It returns ErrQueueFull when the event was dropped
// and ErrDispatcherClosed after Close; the caller logs either.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sender.Send(ctx, ev); err != nil {
			logger.Error(ctx, "notification delivery failed",
				"event_type", ev.Type,
				"document_id", ev.DocumentID,
				"error", err,
			)
		}
		cancel()
	}
}
