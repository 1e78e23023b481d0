package takarik

import (
	"context"
	"fmt"
)

// An Action identifies the mutating operation a callback run belongs to.
type Action int

// Lifecycle actions.
const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDestroy
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// A Phase is one slot of the callback ordering. Callbacks registered for a
// phase run in registration order when the lifecycle engine reaches it.
type Phase int

// Callback phases, in lifecycle order.
const (
	BeforeValidation Phase = iota
	AfterValidation
	BeforeSave
	BeforeCreate
	BeforeUpdate
	BeforeDestroy
	AfterCreate
	AfterUpdate
	AfterDestroy
	AfterSave
	AfterCommit
	AfterRollback
)

// A CallbackFunc is invoked with the record moving through the lifecycle.
// Returning an error aborts the operation; inside the transactional phases
// it triggers a rollback.
type CallbackFunc func(ctx context.Context, r *Record) error

// callback pairs a function with its run conditions.
type callback struct {
	fn     CallbackFunc
	ifs    []func(*Record) bool
	unless []func(*Record) bool
	on     map[Action]bool
}

// matches reports whether the callback should run for the given record and
// action. Unmet conditions skip the callback silently.
func (c *callback) matches(r *Record, action Action) bool {
	if c.on != nil && !c.on[action] {
		return false
	}
	for _, pred := range c.ifs {
		if !pred(r) {
			return false
		}
	}
	for _, pred := range c.unless {
		if pred(r) {
			return false
		}
	}
	return true
}

// A CallbackOption restricts when a registered callback runs.
type CallbackOption func(*callback)

// If adds a predicate that must hold for the callback to run.
func If(pred func(*Record) bool) CallbackOption {
	return func(c *callback) { c.ifs = append(c.ifs, pred) }
}

// Unless adds a predicate that must not hold for the callback to run.
func Unless(pred func(*Record) bool) CallbackOption {
	return func(c *callback) { c.unless = append(c.unless, pred) }
}

// On restricts the callback to a subset of lifecycle actions.
func On(actions ...Action) CallbackOption {
	return func(c *callback) {
		if c.on == nil {
			c.on = make(map[Action]bool, len(actions))
		}
		for _, a := range actions {
			c.on[a] = true
		}
	}
}

// Callback registers a lifecycle callback for an entity type. Callbacks of
// one phase run in registration order.
func (r *Registry) Callback(entity string, phase Phase, fn CallbackFunc, opts ...CallbackOption) {
	c := &callback{fn: fn}
	for _, opt := range opts {
		opt(c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.callbacks[entity] == nil {
		r.callbacks[entity] = make(map[Phase][]*callback)
	}
	r.callbacks[entity][phase] = append(r.callbacks[entity][phase], c)
}

// runCallbacks dispatches every matching callback of a phase, in
// registration order, stopping at the first error.
func (r *Registry) runCallbacks(ctx context.Context, rec *Record, phase Phase, action Action) error {
	r.mu.RLock()
	cbs := r.callbacks[rec.entity.Name][phase]
	r.mu.RUnlock()
	for _, c := range cbs {
		if !c.matches(rec, action) {
			continue
		}
		if err := c.fn(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
