// Package block defines the engine's executable unit — the RuntimeBlock —
// along with the narrow interfaces (Runtime, Action, Behavior) that let the
// JIT compiler, the behaviors, and the stack/lifecycle driver interoperate
// without any of them depending on one another's concrete types.
//
// All composite block types in the spec (Timer, Rounds, Interval,
// TimeBoundRounds, Group, …) are the same concrete Block, parameterized by an
// ordered behavior list; BlockType exists only for logging, span typing, and
// tests. There is no class hierarchy.
package block

import (
	"context"
	"fmt"
	"time"

	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
	"github.com/fitscript/engine/telemetry"
)

// Key is a BlockKey: an opaque, globally unique identifier assigned at
// compile time. It is the identity used for spans, memory ownership, and
// event scoping.
type Key string

// Type tags the concrete role a Block plays, for logging, span typing, and
// tests only — it never drives dispatch.
type Type string

const (
	Root            Type = "root"
	Idle            Type = "idle"
	Done            Type = "done"
	Effort          Type = "effort"
	Timer           Type = "timer"
	Rounds          Type = "rounds"
	Interval        Type = "interval"
	TimeBoundRounds Type = "time_bound_rounds"
	Group           Type = "group"
)

// Options carries the caller-supplied clock/timestamps threaded through a
// lifecycle call. The same struct shape serves Mount, Next, and Unmount;
// unused fields are simply ignored by a given call site.
type Options struct {
	Clock        Clock
	StartTime    *time.Time
	CompletedAt  *time.Time
	ParentSpanID string
}

// Clock is the minimal time source a lifecycle call needs. block.Runtime
// satisfies it, and so does clock.Clock/clock.Snapshot.
type Clock interface {
	Now() time.Time
}

// Action is the only legal side-effect carrier. The queue never interprets
// Payload; it exists for logging and tests to inspect what was queued.
type Action struct {
	Type    string
	Payload any
	Do      func(rt Runtime)
}

// Runtime is the facade blocks, behaviors, and actions use to reach the
// engine: memory, the event bus, the statement lookup, and the stack
// mutators. pushBlock/popBlock are reachable only through actions (§6 of the
// spec), never called directly from a behavior.
type Runtime interface {
	Now() time.Time
	QueueActions(actions []Action)
	Dispatch(event hooks.Event) []Action
	GetStatementByID(id int64) (fragment.Statement, bool)
	Memory() memory.Store
	Logger() telemetry.Logger
	IssueKey() Key
	PushBlock(b *Block, opts Options) error
	PopBlock(opts Options)
	StackDepth() int
	EmitOutput(record OutputRecord)
}

// SpanStatus is the lifecycle state of an ExecutionSpan.
type SpanStatus string

const (
	SpanActive    SpanStatus = "active"
	SpanCompleted SpanStatus = "completed"
)

// ExecutionSpan is the output record §3/§4.9 describes: what ran, when, with
// what metrics. It is allocated active on mount and finalized on pop.
type ExecutionSpan struct {
	ID            string
	BlockID       Key
	ParentSpanID  string
	Type          Type
	Label         string
	StartTime     time.Time
	EndTime       time.Time
	Status        SpanStatus
	Metrics       map[string]any
	Fragments     []fragment.Fragment
	DebugMetadata map[string]any
	StackLevel    int
}

// OutputRecord is the completion record emitted to output subscribers as a
// block unmounts (§4.9).
type OutputRecord struct {
	OutputType        string
	TimeSpan          ExecutionSpan
	SourceBlockKey    Key
	SourceStatementID int64
	StackLevel        int
	Fragments         []fragment.Fragment
}

// Behavior is a marker interface: a pluggable lifecycle participant. Every
// behavior optionally implements one or more of Pusher, Nexter, Popper,
// EventHandler, Disposer, Completer, Spanner — Go's interface satisfaction
// stands in for the "optional hook" pattern described in the spec.
type Behavior any

// Pusher behaviors run when their block mounts.
type Pusher interface {
	OnPush(rt Runtime, b *Block, opts Options) []Action
}

// Nexter behaviors run on every `next` advance of their block.
type Nexter interface {
	OnNext(rt Runtime, b *Block, opts Options) []Action
}

// Popper behaviors run when their block unmounts.
type Popper interface {
	OnPop(rt Runtime, b *Block, opts Options) []Action
}

// EventHandler behaviors react to bus events addressed to their block.
type EventHandler interface {
	OnEvent(rt Runtime, b *Block, event hooks.Event) []Action
}

// Disposer behaviors release any non-memory resources when their block is
// disposed. Memory is released uniformly by the driver via context.Release;
// Disposer exists for anything else a behavior might hold.
type Disposer interface {
	OnDispose(rt Runtime, b *Block)
}

// Completer behaviors contribute to a block's derived IsComplete flag: if any
// behavior reports true, the block is complete. CompletionBehavior latches
// once true; TimerBehavior's flag is cleared again by its Restart (see the
// behavior package).
type Completer interface {
	IsComplete() bool
}

// Spanner behaviors expose the ExecutionSpan they are tracking for their
// block, so the driver can read it at pop time without needing to know the
// memory ref. HistoryBehavior is the only behavior that implements this.
type Spanner interface {
	CurrentSpan() (ExecutionSpan, bool)
}

// Context is a block's per-block memory scope: allocate/get/set/search bound
// to the block's own owner key, with release on pop. Parents and children
// never hold pointers to one another; every lookup goes through Context and
// the driver's stack.
type Context struct {
	rt    Runtime
	owner Key
}

// NewContext binds a Context to rt and owner. Behaviors receive the Context
// via their owning Block; they never construct one themselves.
func NewContext(rt Runtime, owner Key) *Context {
	return &Context{rt: rt, owner: owner}
}

// Allocate creates a new typed slot owned by this block.
func (c *Context) Allocate(typ string, value any, visibility memory.Visibility) (memory.Ref, error) {
	return c.rt.Memory().Allocate(string(c.owner), typ, value, visibility)
}

// Get returns the current value of ref.
func (c *Context) Get(ref memory.Ref) (any, bool) {
	return c.rt.Memory().Get(ref)
}

// Set updates ref's value.
func (c *Context) Set(ref memory.Ref, value any) {
	c.rt.Memory().Set(ref, value)
}

// Search runs a memory query with CallerID forced to this block's own key,
// so Inherited visibility resolves against this block's position on the
// live stack regardless of what the caller passed in q.CallerID.
func (c *Context) Search(q memory.Query) []memory.Ref {
	q.CallerID = string(c.owner)
	return c.rt.Memory().Search(q)
}

// Release drops every ref this block's context owns. Called exactly once,
// by the driver, after pop.
func (c *Context) Release() {
	c.rt.Memory().Release(string(c.owner))
}

// Block is the engine's single concrete executable unit.
type Block struct {
	Key             Key
	SourceIDs       []int64
	BlockType       Type
	Label           string
	Fragments       []fragment.Fragment
	Behaviors       []Behavior
	Context         *Context
	ExecutionTiming ExecutionTiming
}

// ExecutionTiming records when a block started and completed, stamped by the
// driver (§3).
type ExecutionTiming struct {
	StartTime   *time.Time
	CompletedAt *time.Time
}

// New constructs a Block. Compilation strategies call this after allocating
// whatever memory the block's behaviors need via ctx. fragments is the flat,
// ordered union of the fragments carried by the statements this block was
// compiled from — it is never mutated, only read by HistoryBehavior when it
// stamps an ExecutionSpan and by output subscribers.
func New(key Key, sourceIDs []int64, blockType Type, label string, fragments []fragment.Fragment, behaviors []Behavior, ctx *Context) *Block {
	return &Block{
		Key:       key,
		SourceIDs: sourceIDs,
		BlockType: blockType,
		Label:     label,
		Fragments: fragments,
		Behaviors: behaviors,
		Context:   ctx,
	}
}

// Mount runs OnPush on every behavior that implements Pusher, in declaration
// order, concatenating their actions.
func (b *Block) Mount(rt Runtime, opts Options) []Action {
	return b.dispatchHooks(rt, func(beh Behavior) []Action {
		if p, ok := beh.(Pusher); ok {
			return p.OnPush(rt, b, opts)
		}
		return nil
	})
}

// Next runs OnNext on every behavior that implements Nexter, in declaration
// order. Later behaviors may observe state earlier ones wrote this same
// call, since they share the block's Context.
func (b *Block) Next(rt Runtime, opts Options) []Action {
	return b.dispatchHooks(rt, func(beh Behavior) []Action {
		if n, ok := beh.(Nexter); ok {
			return n.OnNext(rt, b, opts)
		}
		return nil
	})
}

// Unmount runs OnPop on every behavior that implements Popper, in
// declaration order.
func (b *Block) Unmount(rt Runtime, opts Options) []Action {
	return b.dispatchHooks(rt, func(beh Behavior) []Action {
		if p, ok := beh.(Popper); ok {
			return p.OnPop(rt, b, opts)
		}
		return nil
	})
}

// HandleEvent runs OnEvent on every behavior that implements EventHandler.
func (b *Block) HandleEvent(rt Runtime, event hooks.Event) []Action {
	return b.dispatchHooks(rt, func(beh Behavior) []Action {
		if eh, ok := beh.(EventHandler); ok {
			return eh.OnEvent(rt, b, event)
		}
		return nil
	})
}

// Dispose runs OnDispose on every behavior that implements Disposer. Memory
// release is the driver's responsibility via Context.Release, called
// separately.
func (b *Block) Dispose(rt Runtime) {
	for _, beh := range b.Behaviors {
		b.callSafely(rt, func() {
			if d, ok := beh.(Disposer); ok {
				d.OnDispose(rt, b)
			}
		})
	}
}

// IsComplete reports whether any behavior's Completer has latched true. A
// block with no Completer behavior (e.g. a bare Group with no explicit
// completion behavior attached) is never complete on its own.
func (b *Block) IsComplete() bool {
	for _, beh := range b.Behaviors {
		if c, ok := beh.(Completer); ok && c.IsComplete() {
			return true
		}
	}
	return false
}

// CurrentSpan returns the ExecutionSpan the block's HistoryBehavior (if any)
// is tracking.
func (b *Block) CurrentSpan() (ExecutionSpan, bool) {
	for _, beh := range b.Behaviors {
		if s, ok := beh.(Spanner); ok {
			return s.CurrentSpan()
		}
	}
	return ExecutionSpan{}, false
}

// dispatchHooks concatenates the actions returned by fn across every
// behavior in declaration order, recovering and logging any panic so a
// faulty behavior never crashes the engine (§7 "Behavior fault").
func (b *Block) dispatchHooks(rt Runtime, fn func(Behavior) []Action) []Action {
	var actions []Action
	for _, beh := range b.Behaviors {
		b.callSafely(rt, func() {
			actions = append(actions, fn(beh)...)
		})
	}
	return actions
}

// callSafely recovers a panic from fn, logging it with block identity
// through rt.Logger (or silently if rt/Logger is unavailable, which only
// happens in narrow unit tests of Block in isolation).
func (b *Block) callSafely(rt Runtime, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if rt != nil && rt.Logger() != nil {
				rt.Logger().Error(context.Background(), "behavior fault",
					"block_key", b.Key, "block_type", b.BlockType, "recovered", fmt.Sprint(r))
			}
		}
	}()
	fn()
}
