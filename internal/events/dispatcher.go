package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Publish when the outbound queue is saturated.
var ErrQueueFull = errors.New("event queue full")

// ErrDispatcherClosed is returned by Publish after Close.
var ErrDispatcherClosed = errors.New("event dispatcher closed")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// AsyncDispatcher queues events and runs handlers on background workers.
// Publish never waits for handlers; the caller's request finishes first.
type AsyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	logger    *zap.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewAsyncDispatcher creates a dispatcher with a queue of the given size.
func NewAsyncDispatcher(queueSize int, logger *zap.Logger) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, queueSize),
		logger:    logger,
		closed:    make(chan struct{}),
	}
}

// Start launches workers that drain the queue until Close.
func (d *AsyncDispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *AsyncDispatcher) deliver(event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	// Handlers outlive the publishing request, so they get a fresh context.
	ctx := context.Background()
	for _, handler := range handlers {
		if err := d.safeCall(ctx, handler, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

func (d *AsyncDispatcher) safeCall(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("handler panicked")
			d.logger.Error("event handler panic", zap.Any("panic", r), zap.String("event_type", string(event.Type)))
		}
	}()
	return handler(ctx, event)
}

// Publish enqueues event without blocking.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	select {
	case <-d.closed:
		return ErrDispatcherClosed
	default:
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.closed:
		return ErrDispatcherClosed
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("dropping event, queue full", zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Subscribe registers a handler for the given event type.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Close stops accepting events and waits for queued ones to be handled or
// for ctx to end.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		close(d.closed)
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
