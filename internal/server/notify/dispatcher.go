package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 5 * time.Second

// Outcomes reported to a Recorder.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Recorder observes delivery outcomes, typically as metrics.
type Recorder interface {
	ObserveNotification(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveNotification(string) {}

// Dispatcher queues events and hands them to a Sink from one worker
// goroutine. Publish never blocks the caller; the queue is unbounded.
type Dispatcher struct {
	sink        Sink
	logger      logging.Logger
	recorder    Recorder
	sendTimeout time.Duration

	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
}

type Option func(*Dispatcher)

func WithSendTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.sendTimeout = d }
}

func WithRecorder(r Recorder) Option {
	return func(dp *Dispatcher) { dp.recorder = r }
}

func NewDispatcher(sink Sink, logger logging.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.Nop{}
	}
	d := &Dispatcher{
		sink:        sink,
		logger:      logger.With("module", "notify"),
		recorder:    nopRecorder{},
		sendTimeout: DefaultSendTimeout,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Publish enqueues ev. After the worker has stopped, events are dropped.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.recorder.ObserveNotification(OutcomeDropped)
		d.logger.Warn(context.Background(), "notification dropped after shutdown", "routing_key", ev.RoutingKey())
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events until ctx is done, then drains what is left
// with a fresh per-send timeout and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			d.flush(context.Background())
			return
		case <-d.wake:
			d.flush(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) flush(ctx context.Context) {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			d.send(ctx, ev)
		}
	}
}

func (d *Dispatcher) send(parent context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(parent, d.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.recorder.ObserveNotification(OutcomeFailed)
			d.logger.Error(ctx, "notification sink panicked", "routing_key", ev.RoutingKey(), "panic", r)
		}
	}()

	if err := d.sink.Send(ctx, ev); err != nil {
		d.recorder.ObserveNotification(OutcomeFailed)
		d.logger.Warn(ctx, "notification not delivered", "routing_key", ev.RoutingKey(), "error", err)
		return
	}
	d.recorder.ObserveNotification(OutcomeSent)
}
