package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDispatcherFull is returned when the outbound buffer has no free slot.
var ErrDispatcherFull = errors.New("event dispatcher buffer full")

// ErrDispatcherStopped is returned for events offered after Stop.
var ErrDispatcherStopped = errors.New("event dispatcher stopped")

type sink interface {
	Publish(ctx context.Context, name string, event interface{}) error
}

type outbound struct {
	name    string
	event   interface{}
	attempt int
}

// DispatcherConfig configures the worker pool that delivers events.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher hands events to a sink on background workers so request
// handling never waits on the broker. Failed deliveries are retried up to
// MaxRetries times before being dropped.
type Dispatcher struct {
	sink       sink
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	queue   chan outbound
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatcher builds a dispatcher delivering to s.
func NewDispatcher(s sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:       s,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		queue:      make(chan outbound, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.started = true
	d.logger.Info("event dispatcher started", zap.Int("workers", d.workers))
}

// Publish queues an event for delivery. It never blocks.
func (d *Dispatcher) Publish(_ context.Context, name string, event interface{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- outbound{name: name, event: event}:
		return nil
	default:
		return ErrDispatcherFull
	}
}

// Stop refuses new events, lets the workers drain what is queued and waits
// for them. Pending retries are abandoned once ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()
	if !started {
		return
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	d.logger.Info("event dispatcher stopped")
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg outbound) {
	for {
		err := d.sink.Publish(d.ctx, msg.name, msg.event)
		if err == nil {
			return
		}
		msg.attempt++
		if msg.attempt > d.maxRetries {
			d.logger.Error("event dropped after retries", zap.String("event", msg.name), zap.Int("attempts", msg.attempt), zap.Error(err))
			return
		}
		d.logger.Warn("event delivery failed, retrying", zap.String("event", msg.name), zap.Int("attempt", msg.attempt), zap.Error(err))

		timer := time.NewTimer(d.retryDelay)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			d.logger.Warn("event abandoned on shutdown", zap.String("event", msg.name))
			return
		case <-timer.C:
		}
	}
}
