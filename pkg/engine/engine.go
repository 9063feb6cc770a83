package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/statekit/statekit/pkg/definition"
	"github.com/statekit/statekit/pkg/dispatch"
	"github.com/statekit/statekit/pkg/guard"
)

// Attempt carries the caller-supplied inputs of one trigger call. It is
// ephemeral and never persisted.
type Attempt struct {
	// ActorID identifies the requesting party; empty for system calls.
	ActorID string
	// Payload is opaque to the engine and passed through to actions and
	// listeners. When ActorID is empty, an "actor_id" payload key is
	// lifted into the event.
	Payload map[string]any
	// BypassPermissions skips the permission guard for administrative and
	// system-initiated transitions. Declared conditions still run.
	BypassPermissions bool
}

// Result describes a successful trigger call. EnqueueErr is non-nil when a
// registered background action could not be scheduled; the transition is
// applied regardless and the entity should still be persisted.
type Result struct {
	Source     string
	Dest       string
	Trigger    string
	Event      dispatch.Event
	Enqueued   bool
	EnqueueErr error
}

// Condition is a registered guard implementation referenced by name from
// definition documents. Conditions must be side-effect-free.
type Condition func(ctx context.Context, e Entity, att Attempt) bool

// Engine executes lifecycle transitions. It holds no per-entity state: the
// machine for an entity exists only for the duration of one trigger call,
// built from the resolved definition and the entity's current state, which
// also makes re-entrant triggers from synchronous actions see the updated
// state naturally.
//
// The engine provides no mutual exclusion across concurrent triggers on
// the same entity instance; callers serialize those, typically through the
// persistence layer's row locking.
type Engine struct {
	store      *definition.Store
	guard      *guard.Guard
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger

	mu         sync.RWMutex
	conditions map[string]Condition
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Configuration failures log as errors;
// business-flow rejections never do.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithCondition registers a named guard condition at construction time.
func WithCondition(name string, c Condition) Option {
	return func(e *Engine) {
		e.conditions[name] = c
	}
}

// New creates an engine over the given definition store, permission guard
// and action dispatcher.
func New(store *definition.Store, g *guard.Guard, d *dispatch.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		guard:      g,
		dispatcher: d,
		log:        slog.Default(),
		conditions: make(map[string]Condition),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterCondition binds a guard implementation to the name definition
// documents reference it by. Registering a name twice is a wiring error.
func (e *Engine) RegisterCondition(name string, c Condition) error {
	if name == "" || c == nil {
		return fmt.Errorf("engine: condition name and implementation are required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.conditions[name]; exists {
		return fmt.Errorf("engine: condition %q already registered", name)
	}
	e.conditions[name] = c
	return nil
}

// Trigger executes the named transition on the entity.
//
// On success the entity's state is the transition destination, the
// post-transition protocol has run, and the caller persists the entity.
// Expected business-flow outcomes return *NoMatchingTransitionError or
// *TransitionRejectedError with the state untouched. A *dispatch.ActionError
// means the in-memory state was changed but the call failed; the caller
// must not persist. A *dispatch.ListenerError means the transition applied
// and should be persisted even though one or more listeners failed.
// Definition resolution errors are configuration failures, logged loudly.
func (e *Engine) Trigger(ctx context.Context, ent Entity, trigger string, att Attempt) (Result, error) {
	def, err := e.store.Resolve(ent.EntityType(), ent.Variant())
	if err != nil {
		e.log.ErrorContext(ctx, "definition resolution failed",
			slog.String("entity_type", ent.EntityType()),
			slog.String("variant", ent.Variant()),
			slog.Any("error", err))
		return Result{}, err
	}

	tr := def.Match(trigger, ent.State())
	if tr == nil {
		return Result{}, &NoMatchingTransitionError{EntityType: ent.EntityType(), State: ent.State(), Trigger: trigger}
	}

	if err := e.evaluateGuards(ctx, tr, ent, att); err != nil {
		return Result{}, err
	}

	source := ent.State()
	ent.SetState(tr.Dest)
	if rec, ok := ent.(LastTransitionRecorder); ok {
		rec.RecordLastTransition(strings.TrimRight(trigger, "_"))
	}

	dres, err := e.dispatcher.Dispatch(ctx, ent, tr, source, att.ActorID, att.Payload)
	res := Result{
		Source:     source,
		Dest:       tr.Dest,
		Trigger:    trigger,
		Event:      dres.Event,
		Enqueued:   dres.Enqueued,
		EnqueueErr: dres.EnqueueErr,
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// CanTrigger reports whether the trigger would be accepted right now,
// without mutating anything or running any action.
func (e *Engine) CanTrigger(ctx context.Context, ent Entity, trigger string, att Attempt) bool {
	def, err := e.store.Resolve(ent.EntityType(), ent.Variant())
	if err != nil {
		return false
	}
	tr := def.Match(trigger, ent.State())
	if tr == nil {
		return false
	}
	return e.evaluateGuards(ctx, tr, ent, att) == nil
}

// AvailableTransitions returns the triggers valid from the entity's
// current state whose full guard set, permission guard included, passes
// for the given attempt. One identity lookup serves all candidates.
func (e *Engine) AvailableTransitions(ctx context.Context, ent Entity, att Attempt) ([]string, error) {
	def, err := e.store.Resolve(ent.EntityType(), ent.Variant())
	if err != nil {
		return nil, err
	}

	chk := guard.NewCheck(att.ActorID, att.BypassPermissions)
	var out []string
	for _, trigger := range def.TriggersFrom(ent.State()) {
		tr := def.Match(trigger, ent.State())
		if err := e.checkTransition(ctx, tr, ent, att, chk); err == nil {
			out = append(out, trigger)
		} else if _, rejected := err.(*TransitionRejectedError); !rejected {
			return nil, err
		}
	}
	return out, nil
}

// evaluateGuards runs a fresh per-call check for one trigger invocation.
func (e *Engine) evaluateGuards(ctx context.Context, tr *definition.Transition, ent Entity, att Attempt) error {
	chk := guard.NewCheck(att.ActorID, att.BypassPermissions)
	return e.checkTransition(ctx, tr, ent, att, chk)
}

// checkTransition evaluates the conjunction of declared conditions with
// the permission guard appended as the implicit final guard.
func (e *Engine) checkTransition(ctx context.Context, tr *definition.Transition, ent Entity, att Attempt, chk *guard.Check) error {
	for _, name := range tr.Conditions {
		e.mu.RLock()
		cond, ok := e.conditions[name]
		e.mu.RUnlock()
		if !ok {
			err := &UnknownConditionError{EntityType: ent.EntityType(), Trigger: tr.Trigger, Condition: name}
			e.log.ErrorContext(ctx, "unregistered guard condition",
				slog.String("entity_type", ent.EntityType()),
				slog.String("trigger", tr.Trigger),
				slog.String("condition", name))
			return err
		}
		if !cond(ctx, ent, att) {
			return &TransitionRejectedError{
				Trigger: tr.Trigger,
				Reason:  fmt.Sprintf("condition %q failed", name),
			}
		}
	}

	ok, reason, err := e.guard.Allowed(ctx, tr, ent, chk)
	if err != nil {
		return err
	}
	if !ok {
		return &TransitionRejectedError{Trigger: tr.Trigger, Reason: reason, PermissionDenied: true}
	}
	return nil
}
