package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/statekit/statekit/pkg/definition"
)

// Enqueuer is the task-dispatch collaborator background actions are handed
// to. Delivery is assumed at-least-once; the dispatcher never waits for
// completion.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any) error
}

// EnqueuerFunc adapts a function to the Enqueuer interface.
type EnqueuerFunc func(ctx context.Context, payload any) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, payload any) error { return f(ctx, payload) }

// Listener receives transition events. Listeners run synchronously in
// registration order; a failing listener does not stop the others.
type Listener interface {
	OnTransition(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev Event) error

func (f ListenerFunc) OnTransition(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher runs the post-transition protocol: synchronous action, then
// background enqueue, then listener broadcast, in that fixed order.
type Dispatcher struct {
	registry *Registry
	enqueuer Enqueuer
	log      *slog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEnqueuer sets the task-dispatch collaborator. Without one,
// transitions with a registered background action fail their enqueue step
// (reported, non-fatal).
func WithEnqueuer(e Enqueuer) Option {
	return func(d *Dispatcher) { d.enqueuer = e }
}

// WithLogger sets the logger used for enqueue and listener failures.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher creates a dispatcher over the given action registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddListener appends a listener to the broadcast list. Listeners are
// invoked in registration order. Register at process start.
func (d *Dispatcher) AddListener(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Result reports what the post-transition protocol did. EnqueueErr is
// non-nil when a registered background action could not be scheduled; the
// transition is still successful on that path.
type Result struct {
	Event      Event
	Enqueued   bool
	EnqueueErr error
}

// Dispatch executes the post-transition protocol for one committed
// transition. A synchronous action failure aborts the protocol and returns
// an *ActionError; the caller must not persist the entity. Listener
// failures are isolated per listener, aggregated and returned as a
// *ListenerError after all listeners have run; the transition stays
// applied.
func (d *Dispatcher) Dispatch(ctx context.Context, e Entity, tr *definition.Transition, source, actorID string, payload map[string]any) (Result, error) {
	ev := newEvent(e, tr, source, actorID, payload)
	res := Result{Event: ev}

	set, _ := d.registry.ActionSet(e.EntityType(), e.Variant())

	if action := set.Sync[tr.Trigger]; action != nil {
		if err := action(ctx, e, ev); err != nil {
			return res, &ActionError{Trigger: tr.Trigger, Err: err}
		}
	}

	if set.Background[tr.Trigger] != nil {
		res.Enqueued, res.EnqueueErr = d.enqueueBackground(ctx, ev)
		if res.EnqueueErr != nil {
			d.log.ErrorContext(ctx, "background action enqueue failed",
				slog.String("entity_type", ev.EntityType),
				slog.String("entity_id", ev.EntityID),
				slog.String("trigger", ev.Trigger),
				slog.Any("error", res.EnqueueErr))
		}
	}

	if err := d.broadcast(ctx, ev); err != nil {
		return res, err
	}
	return res, nil
}

func (d *Dispatcher) enqueueBackground(ctx context.Context, ev Event) (bool, error) {
	if d.enqueuer == nil {
		return false, &EnqueueError{Trigger: ev.Trigger, Err: fmt.Errorf("no enqueuer configured")}
	}
	task := TaskPayload{
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Trigger:    ev.Trigger,
		ActorID:    ev.ActorID,
		Payload:    ev.Payload,
	}
	if err := d.enqueuer.Enqueue(ctx, task); err != nil {
		return false, &EnqueueError{Trigger: ev.Trigger, Err: err}
	}
	return true, nil
}

func (d *Dispatcher) broadcast(ctx context.Context, ev Event) error {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := d.notify(ctx, l, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &ListenerError{Trigger: ev.Trigger, Errs: errs}
	}
	return nil
}

// notify isolates a single listener call, turning panics into errors so
// one misbehaving listener cannot stop the rest of the broadcast.
func (d *Dispatcher) notify(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.OnTransition(ctx, ev)
}
