// Package memory implements the engine's keyed, typed, owner-scoped value
// store: the mechanism behaviors use to hold durable per-block state and the
// mechanism parent blocks use to inject context (rep schemes, interval
// durations, round counters) into children discovered only at runtime.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runtime is the sentinel owner ID for memory allocated by the engine itself
// rather than by any block — it is always considered live.
const Runtime = "runtime"

// Visibility controls who may read a Ref's value.
type Visibility int

const (
	// Private refs are readable only by their owner.
	Private Visibility = iota
	// Public refs are readable by any block while the owner is live.
	Public
	// Inherited refs are readable by descendants of the owner on the live
	// stack, via an ancestor-walking Search.
	Inherited
)

// Ref is an opaque handle to a memory slot. It carries enough identity for
// Store.Get/Set to be O(1) and for visibility rules to be enforced without a
// second lookup.
type Ref struct {
	ID         string
	OwnerID    string
	Type       string
	Visibility Visibility
}

// Query filters a Search call. CallerID is the block performing the search;
// it is required when Visibility is Inherited, since ancestry is relative to
// the caller's position on the live stack, and a Private search matches only
// refs owned by CallerID. Public searches ignore it.
type Query struct {
	Type       string
	OwnerID    string
	Visibility Visibility
	CallerID   string
}

// LiveChecker answers liveness and ancestry questions the Store needs but
// does not itself track: whether a block is presently on the stack, and
// which ancestors (innermost first) a given block has. The stack/lifecycle
// driver implements this and injects it into the Store.
type LiveChecker interface {
	IsLive(ownerID string) bool
	Ancestors(ownerID string) []string
}

// SubscribeOptions configures a Subscribe call.
type SubscribeOptions struct {
	// Immediate fires the callback once with the current value at
	// registration time, before any subsequent Set.
	Immediate bool
	// Throttle coalesces consecutive notifications: at most one callback
	// invocation per window, carrying the latest value once the window
	// elapses. Zero means every Set notifies immediately.
	Throttle time.Duration
}

// Store is the memory component described in the spec: allocate, get, set,
// search, release, subscribe. Implementations must be safe for concurrent
// use even though the engine itself is single-threaded, matching the
// defensive style of the rest of the stack.
type Store interface {
	Allocate(ownerID, typ string, value any, visibility Visibility) (Ref, error)
	Get(ref Ref) (any, bool)
	Set(ref Ref, value any)
	Search(q Query) []Ref
	Release(ownerID string)
	Subscribe(ref Ref, callback func(value any), opts SubscribeOptions) (unsubscribe func())
}

type slot struct {
	ref   Ref
	value any
}

type subscription struct {
	ref      Ref
	callback func(value any)
	throttle time.Duration
	timer    *time.Timer
	pending  *any
}

// store is the in-process implementation of Store.
type store struct {
	mu      sync.Mutex
	checker LiveChecker
	slots   map[string]*slot            // ref.ID -> slot
	byOwner map[string]map[string]bool  // ownerID -> set of ref IDs
	subs    map[string][]*subscription  // ref.ID -> subscriptions, registration order
}

// NewStore constructs an in-process Store. checker is consulted on every
// Allocate to enforce that only live owners (or the Runtime sentinel) may
// allocate memory, and on every inherited Search to walk the caller's
// ancestors.
func NewStore(checker LiveChecker) Store {
	return &store{
		checker: checker,
		slots:   make(map[string]*slot),
		byOwner: make(map[string]map[string]bool),
		subs:    make(map[string][]*subscription),
	}
}

// Allocate creates a new typed slot owned by ownerID. It fails if ownerID is
// not a live block, except for the sentinel Runtime.
func (s *store) Allocate(ownerID, typ string, value any, visibility Visibility) (Ref, error) {
	if ownerID != Runtime && !s.checker.IsLive(ownerID) {
		return Ref{}, errors.New("memory: allocate on non-live owner " + ownerID)
	}
	ref := Ref{ID: uuid.NewString(), OwnerID: ownerID, Type: typ, Visibility: visibility}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[ref.ID] = &slot{ref: ref, value: value}
	owned, ok := s.byOwner[ownerID]
	if !ok {
		owned = make(map[string]bool)
		s.byOwner[ownerID] = owned
	}
	owned[ref.ID] = true
	return ref, nil
}

// Get returns the current value of ref, or (nil, false) if ref has been
// released (or never existed).
func (s *store) Get(ref Ref) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[ref.ID]
	if !ok {
		return nil, false
	}
	return sl.value, true
}

// Set updates ref's value and, after the value is committed, notifies
// subscribers in registration order.
func (s *store) Set(ref Ref, value any) {
	s.mu.Lock()
	sl, ok := s.slots[ref.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	sl.value = value
	subs := append([]*subscription(nil), s.subs[ref.ID]...)
	s.mu.Unlock()

	for _, sub := range subs {
		s.notify(sub, value)
	}
}

// Search returns refs matching q. When q.Visibility is Inherited, it walks
// ancestors of q.CallerID on the live stack, innermost first. For Public,
// it returns any live block's ref of the matching type. For Private, only
// the caller's own refs match.
func (s *store) Search(q Query) []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch q.Visibility {
	case Inherited:
		var out []Ref
		for _, ancestor := range s.checker.Ancestors(q.CallerID) {
			for refID := range s.byOwner[ancestor] {
				sl := s.slots[refID]
				if sl == nil || sl.ref.Visibility != Inherited {
					continue
				}
				if q.Type != "" && sl.ref.Type != q.Type {
					continue
				}
				out = append(out, sl.ref)
			}
		}
		return out
	case Private:
		var out []Ref
		for refID := range s.byOwner[q.CallerID] {
			sl := s.slots[refID]
			if sl == nil || sl.ref.Visibility != Private {
				continue
			}
			if q.Type != "" && sl.ref.Type != q.Type {
				continue
			}
			out = append(out, sl.ref)
		}
		return out
	default: // Public
		var out []Ref
		for _, sl := range s.slots {
			if sl.ref.Visibility != Public {
				continue
			}
			if q.Type != "" && sl.ref.Type != q.Type {
				continue
			}
			if q.OwnerID != "" && sl.ref.OwnerID != q.OwnerID {
				continue
			}
			if !s.checker.IsLive(sl.ref.OwnerID) && sl.ref.OwnerID != Runtime {
				continue
			}
			out = append(out, sl.ref)
		}
		return out
	}
}

// Release drops every ref owned by ownerID, making them unreachable. Any
// pending throttled timers for those refs are stopped.
func (s *store) Release(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for refID := range s.byOwner[ownerID] {
		delete(s.slots, refID)
		for _, sub := range s.subs[refID] {
			if sub.timer != nil {
				sub.timer.Stop()
			}
		}
		delete(s.subs, refID)
	}
	delete(s.byOwner, ownerID)
}

// Subscribe registers callback to run after every committed Set on ref.
// Callbacks must not panic; Subscribe itself does not guard against a
// panicking callback since it runs synchronously in Set's caller — engine
// code invoking behaviors is responsible for the catch-and-log discipline
// described in the spec's error handling section.
func (s *store) Subscribe(ref Ref, callback func(value any), opts SubscribeOptions) func() {
	sub := &subscription{ref: ref, callback: callback, throttle: opts.Throttle}

	s.mu.Lock()
	s.subs[ref.ID] = append(s.subs[ref.ID], sub)
	var immediateVal any
	var fireImmediate bool
	if opts.Immediate {
		if sl, ok := s.slots[ref.ID]; ok {
			immediateVal = sl.value
			fireImmediate = true
		}
	}
	s.mu.Unlock()

	if fireImmediate {
		callback(immediateVal)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[ref.ID]
		for i, cand := range subs {
			if cand == sub {
				s.subs[ref.ID] = append(subs[:i], subs[i+1:]...)
				if sub.timer != nil {
					sub.timer.Stop()
				}
				return
			}
		}
	}
}

// notify delivers value to sub, coalescing consecutive notifications inside
// sub.throttle into a single trailing callback invocation: the first Set in
// a window fires immediately (leading edge), further Sets within the window
// are coalesced and delivered once, trailing, when the window elapses.
func (s *store) notify(sub *subscription, value any) {
	if sub.throttle <= 0 {
		sub.callback(value)
		return
	}

	s.mu.Lock()
	if sub.timer != nil {
		v := value
		sub.pending = &v
		s.mu.Unlock()
		return
	}
	sub.timer = time.AfterFunc(sub.throttle, func() { s.fireTrailing(sub) })
	s.mu.Unlock()

	sub.callback(value)
}

// fireTrailing runs when a throttle window elapses. If a value arrived
// during the window it is delivered now and a fresh window opens to
// continue coalescing; otherwise the window simply closes.
func (s *store) fireTrailing(sub *subscription) {
	s.mu.Lock()
	pending := sub.pending
	sub.pending = nil
	if pending == nil {
		sub.timer = nil
		s.mu.Unlock()
		return
	}
	sub.timer = time.AfterFunc(sub.throttle, func() { s.fireTrailing(sub) })
	s.mu.Unlock()

	sub.callback(*pending)
}
