// Package hooks implements the name-addressed, owner-scoped event bus that
// decouples behaviors, blocks, and external collaborators (tick sources,
// simulated test drivers) from one another. Handlers never execute side
// effects directly: they return actions for the caller to queue.
//
// Bus is generic over the action type it collects so this package carries no
// dependency on the block package — the block package instantiates
// Bus[block.Action] instead.
package hooks

import (
	"sort"
	"time"
)

// Event is dispatched synchronously; handlers inspect it and return actions.
type Event struct {
	Name      string
	Timestamp time.Time
	Data      any
}

// Handler reacts to a single dispatched Event by returning the actions it
// wants executed. Handlers must never execute side effects themselves.
type Handler[A any] func(event Event) []A

// Options configures a Register call.
type Options struct {
	// Scope is an implementation-defined grouping tag (e.g. "block",
	// "global"); the bus does not interpret it beyond bookkeeping.
	Scope string
	// Priority orders handler invocation within a dispatch: higher priority
	// runs first. Handlers with equal priority run in registration order.
	Priority int
}

// Bus dispatches named events to owner-scoped handlers in priority order,
// then registration order, and removes a block's handlers atomically when it
// pops.
type Bus[A any] interface {
	// Register adds handler under ownerKey and returns an Unsubscribe func.
	Register(eventName string, handler Handler[A], ownerKey string, opts Options) (unsubscribe func(), err error)
	// Dispatch runs every handler registered for event.Name, in priority
	// then registration order, concatenating their returned actions. A
	// handler panic is caught, logged via onFault, and does not abort
	// dispatch for the remaining handlers.
	Dispatch(event Event) []A
	// UnregisterByOwner removes every handler registered under ownerKey.
	UnregisterByOwner(ownerKey string)
}

type registration[A any] struct {
	ownerKey string
	opts     Options
	handler  Handler[A]
	seq      int
}

// bus is the in-process implementation of Bus.
type bus[A any] struct {
	byEvent map[string][]*registration[A]
	seq     int
	onFault func(eventName, ownerKey string, recovered any)
}

// NewBus constructs an in-process Bus. onFault, if non-nil, is called
// whenever a handler panics; the panic is always recovered regardless.
func NewBus[A any](onFault func(eventName, ownerKey string, recovered any)) Bus[A] {
	return &bus[A]{byEvent: make(map[string][]*registration[A]), onFault: onFault}
}

// Register adds handler under ownerKey for eventName.
func (b *bus[A]) Register(eventName string, handler Handler[A], ownerKey string, opts Options) (func(), error) {
	b.seq++
	reg := &registration[A]{ownerKey: ownerKey, opts: opts, handler: handler, seq: b.seq}
	b.byEvent[eventName] = append(b.byEvent[eventName], reg)
	return func() {
		regs := b.byEvent[eventName]
		for i, r := range regs {
			if r == reg {
				b.byEvent[eventName] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}, nil
}

// Dispatch runs every handler registered for event.Name in priority order,
// then registration order.
func (b *bus[A]) Dispatch(event Event) []A {
	regs := append([]*registration[A](nil), b.byEvent[event.Name]...)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].opts.Priority != regs[j].opts.Priority {
			return regs[i].opts.Priority > regs[j].opts.Priority
		}
		return regs[i].seq < regs[j].seq
	})

	var actions []A
	for _, reg := range regs {
		actions = append(actions, b.invoke(reg, event)...)
	}
	return actions
}

// invoke calls reg.handler, recovering and reporting any panic so a single
// faulty handler can never abort dispatch for the rest.
func (b *bus[A]) invoke(reg *registration[A], event Event) (out []A) {
	defer func() {
		if r := recover(); r != nil {
			if b.onFault != nil {
				b.onFault(event.Name, reg.ownerKey, r)
			}
			out = nil
		}
	}()
	return reg.handler(event)
}

// UnregisterByOwner removes every handler registered under ownerKey, across
// every event name, so a block's handlers vanish atomically when it pops.
func (b *bus[A]) UnregisterByOwner(ownerKey string) {
	for name, regs := range b.byEvent {
		filtered := regs[:0]
		for _, r := range regs {
			if r.ownerKey != ownerKey {
				filtered = append(filtered, r)
			}
		}
		b.byEvent[name] = filtered
	}
}
