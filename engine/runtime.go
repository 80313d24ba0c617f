// Package engine implements the stack & lifecycle driver: the single
// concrete block.Runtime that owns the stack, the FIFO action queue, the
// event bus, memory, and the clock, and that drives blocks through
// push → mount → (next)* → unmount → pop with frozen-clock semantics and a
// completion sweep.
package engine

import (
	"container/list"
	"context"
	"fmt"
	"time"

	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/clock"
	"github.com/fitscript/engine/compile"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
	"github.com/fitscript/engine/telemetry"
	"github.com/google/uuid"
)

const (
	maxStackDepth      = 10
	maxDrainIterations = 100
)

// ContractError reports a fatal contract violation: a nil block, a missing
// key, or a stack-depth overflow. The runtime
// aborts the current action; the stack is left unchanged.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("engine: contract violation in %s: %s", e.Op, e.Msg)
}

// OutputSubscriber receives a completion record every time a block pops.
type OutputSubscriber func(record block.OutputRecord)

type stackEntry struct {
	block  *block.Block
	spanID string
}

// Runtime is the stack & lifecycle driver, and the sole implementation of
// block.Runtime. It owns every process-wide singleton the spec names
// (stack, queue, bus, memory, clock) as a constructor-injected field —
// there are no package-scoped mutables. Construct one Runtime per workout.
type Runtime struct {
	stack    []stackEntry
	queue    *list.List
	draining bool

	bus    hooks.Bus[block.Action]
	mem    memory.Store
	clk    clock.Clock
	jit    *compile.JIT
	lookup fragment.Lookup

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	issued      map[block.Key]struct{}
	subs        []OutputSubscriber
	doneEmitted bool
}

// New constructs a Runtime over the given statement lookup. Any of
// logger/metrics/tracer may be nil, in which case the corresponding no-op
// implementation from the telemetry package is used.
func New(lookup fragment.Lookup, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *Runtime {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	rt := &Runtime{
		queue:   list.New(),
		clk:     clock.New(),
		jit:     compile.NewJIT(),
		lookup:  lookup,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		issued:  make(map[block.Key]struct{}),
	}
	rt.bus = hooks.NewBus[block.Action](func(eventName, ownerKey string, recovered any) {
		rt.logger.Error(context.Background(), "handler fault",
			"event", eventName, "owner", ownerKey, "recovered", fmt.Sprint(recovered))
	})
	rt.mem = memory.NewStore(rt)
	return rt
}

// Now returns the driver's current clock reading.
func (rt *Runtime) Now() time.Time { return rt.clk.Now() }

// QueueActions appends actions to the FIFO queue and starts draining if the
// executor is currently idle.
func (rt *Runtime) QueueActions(actions []block.Action) {
	for _, a := range actions {
		rt.queue.PushBack(a)
	}
	rt.drain()
}

// Dispatch runs every handler registered for event.Name through the event
// bus and returns the actions they produced, without queuing them — callers
// that want the actions executed must pass them to QueueActions themselves.
func (rt *Runtime) Dispatch(event hooks.Event) []block.Action {
	return rt.bus.Dispatch(event)
}

// GetStatementByID is the O(1) lookup the JIT and on-demand child
// compilation rely on.
func (rt *Runtime) GetStatementByID(id int64) (fragment.Statement, bool) {
	return rt.lookup.Get(id)
}

// Memory returns the runtime's memory store.
func (rt *Runtime) Memory() memory.Store { return rt.mem }

// Logger returns the runtime's structured logger.
func (rt *Runtime) Logger() telemetry.Logger { return rt.logger }

// IssueKey mints a new BlockKey and marks it live for memory-allocation
// purposes immediately — before the block it names has been pushed. This is
// what lets a compilation strategy allocate context memory (e.g. a copied
// rep target) for a block that does not yet exist on the stack; the key
// stays live until the block it is eventually attached to pops.
func (rt *Runtime) IssueKey() block.Key {
	key := block.Key(uuid.NewString())
	rt.issued[key] = struct{}{}
	return key
}

// StackDepth returns the number of blocks currently mounted.
func (rt *Runtime) StackDepth() int { return len(rt.stack) }

// EmitOutput notifies every registered output subscriber synchronously. A
// panicking subscriber is caught and logged; it never aborts the remaining
// subscribers.
func (rt *Runtime) EmitOutput(record block.OutputRecord) {
	for _, sub := range rt.subs {
		rt.callSubscriberSafely(sub, record)
	}
}

func (rt *Runtime) callSubscriberSafely(sub OutputSubscriber, record block.OutputRecord) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error(context.Background(), "output subscriber fault", "recovered", fmt.Sprint(r))
		}
	}()
	sub(record)
}

// SubscribeToOutput registers listener to receive every completion record
// and returns an unsubscribe function.
func (rt *Runtime) SubscribeToOutput(listener OutputSubscriber) func() {
	rt.subs = append(rt.subs, listener)
	idx := len(rt.subs) - 1
	return func() {
		if idx < 0 || idx >= len(rt.subs) {
			return
		}
		rt.subs = append(rt.subs[:idx], rt.subs[idx+1:]...)
	}
}

// IsLive satisfies memory.LiveChecker: a key is live from the moment it is
// issued until the block it names pops and its context is released.
func (rt *Runtime) IsLive(ownerID string) bool {
	_, ok := rt.issued[block.Key(ownerID)]
	return ok
}

// Ancestors satisfies memory.LiveChecker. When callerID is mounted, its
// ancestors are the entries beneath it on the stack, innermost first. When
// callerID is not found — the common case of a block compiling its own
// context before it has been pushed — every currently mounted block is
// treated as an ancestor, topmost first, since that is the stack the new
// block will be pushed onto next.
func (rt *Runtime) Ancestors(callerID string) []string {
	for i := len(rt.stack) - 1; i >= 0; i-- {
		if string(rt.stack[i].block.Key) == callerID {
			out := make([]string, 0, i)
			for j := i - 1; j >= 0; j-- {
				out = append(out, string(rt.stack[j].block.Key))
			}
			return out
		}
	}
	out := make([]string, 0, len(rt.stack))
	for j := len(rt.stack) - 1; j >= 0; j-- {
		out = append(out, string(rt.stack[j].block.Key))
	}
	return out
}

// Handle injects an external event (§6: user-originated "next", a tick
// source's "tick", or a simulated "timer:complete" in scripted test runs)
// into the runtime. It dispatches the event through the bus to every
// behavior registered under a live block, queues the actions those handlers
// return, and lets the queue drain (including the completion sweep) before
// returning.
func (rt *Runtime) Handle(event hooks.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = rt.Now()
	}
	actions := rt.bus.Dispatch(event)
	rt.QueueActions(actions)
}

// Start builds the RootBlock over the top-level statement groups and pushes
// it, kicking off compilation of the first child on demand. top is the
// ordered list of top-level child groups (each an ordered statement-ID
// list), mirroring the shape of Statement.Children one level up — the
// workout itself has no enclosing statement.
func (rt *Runtime) Start(top [][]int64) error {
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)
	loop := behavior.NewLoopCoordinatorBehavior(top, behavior.Fixed)
	loop.TotalRounds = 1
	loop.Push = rt.jit.PushChild()
	history := behavior.NewHistoryBehavior(nil)
	root := block.New(key, nil, block.Root, "workout", nil, []block.Behavior{history, loop}, ctx)
	return rt.PushBlock(root, block.Options{})
}

// pushDone pushes the terminal DoneBlock, emitting END_WORKOUT on mount.
func (rt *Runtime) pushDone(opts block.Options) {
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)
	done := block.New(key, nil, block.Done, "done", nil, []block.Behavior{behavior.NewDoneBehavior()}, ctx)
	_ = rt.PushBlock(done, opts)
}

// PushBlock validates b, stamps its start time from the resolved clock,
// opens a "block.push" trace span that ends when PushBlock returns, stamps
// the parent's ExecutionSpan id into the mount options, pushes it onto
// the stack, registers its event-handler behaviors atomically under its own
// key, dispatches stack:push, and mounts it — queuing the actions mount
// returns. It is reachable only through an Action's Do (§6), never called
// directly by a behavior.
func (rt *Runtime) PushBlock(b *block.Block, opts block.Options) error {
	if b == nil {
		err := &ContractError{Op: "pushBlock", Msg: "block is nil"}
		rt.logger.Warn(context.Background(), "contract violation", "op", "pushBlock", "err", err.Error())
		return err
	}
	if b.Key == "" {
		err := &ContractError{Op: "pushBlock", Msg: "block key is missing"}
		rt.logger.Warn(context.Background(), "contract violation", "op", "pushBlock", "err", err.Error())
		return err
	}
	if len(rt.stack) >= maxStackDepth {
		err := &ContractError{Op: "pushBlock", Msg: fmt.Sprintf("stack depth %d exceeds max %d", len(rt.stack), maxStackDepth)}
		rt.logger.Warn(context.Background(), "contract violation", "op", "pushBlock", "err", err.Error())
		return err
	}

	ctx := context.Background()
	clk := opts.Clock
	if clk == nil {
		clk = rt.clk
	}
	start := clk.Now()
	if opts.StartTime != nil {
		start = *opts.StartTime
	}
	b.ExecutionTiming.StartTime = &start

	tctx, span := rt.tracer.Start(ctx, "block.push")
	defer span.End()

	opts.ParentSpanID = rt.parentSpanID()
	opts.StartTime = &start

	rt.stack = append(rt.stack, stackEntry{block: b})
	rt.registerHandlers(b)

	rt.bus.Dispatch(hooks.Event{Name: "stack:push", Timestamp: start, Data: rt.stackSnapshot()})

	actions := b.Mount(rt, opts)
	rt.metrics.IncCounter("engine.block.push", 1, "block_type", string(b.BlockType))
	rt.logger.Debug(tctx, "block pushed", "block_key", b.Key, "block_type", b.BlockType, "stack_depth", len(rt.stack))

	rt.QueueActions(actions)
	return nil
}

// PopBlock pops the top-of-stack block: it constructs the SnapshotClock
// threaded through unmount, parent.next, and any child push they produce,
// stamps completedAt, runs unmount actions *synchronously* (the one
// exception to the queue-only rule, guaranteeing the child is fully torn
// down before its parent observes its absence), pops the stack, dispatches
// stack:pop, disposes the block, releases its memory and handlers, advances
// the parent, and finally emits the completion record for this pop.
func (rt *Runtime) PopBlock(opts block.Options) {
	if len(rt.stack) == 0 {
		return
	}

	stackLevelBeforePop := len(rt.stack) - 1
	entry := rt.stack[stackLevelBeforePop]
	b := entry.block

	clk := opts.Clock
	if clk == nil {
		clk = rt.clk
	}
	snap := clock.At(clk)
	if opts.CompletedAt != nil {
		snap = clock.NewSnapshot(*opts.CompletedAt)
	}
	completedAt := snap.Now()
	b.ExecutionTiming.CompletedAt = &completedAt

	unmountOpts := opts
	unmountOpts.Clock = snap
	unmountOpts.CompletedAt = &completedAt
	unmountActions := b.Unmount(rt, unmountOpts)

	rt.stack = rt.stack[:stackLevelBeforePop]
	rt.bus.Dispatch(hooks.Event{Name: "stack:pop", Timestamp: completedAt, Data: rt.stackSnapshot()})

	rt.metrics.IncCounter("engine.block.pop", 1, "block_type", string(b.BlockType))
	rt.logger.Debug(context.Background(), "block popped", "block_key", b.Key, "block_type", b.BlockType, "stack_level", stackLevelBeforePop)

	// Unmount actions run inline, bypassing the main queue: this is the
	// single exception described in §4.8, and it is what guarantees a
	// child is fully torn down before its parent's next() observes its
	// absence.
	for _, a := range unmountActions {
		rt.runActionSafely(a)
	}

	b.Dispose(rt)
	b.Context.Release()
	rt.bus.UnregisterByOwner(string(b.Key))
	delete(rt.issued, b.Key)

	span, hasSpan := b.CurrentSpan()
	if hasSpan {
		span.StackLevel = stackLevelBeforePop
	}

	if len(rt.stack) > 0 {
		parent := rt.stack[len(rt.stack)-1].block
		nextOpts := block.Options{Clock: snap, StartTime: &completedAt, CompletedAt: &completedAt}
		actions := parent.Next(rt, nextOpts)
		rt.QueueActions(actions)
	}

	if hasSpan {
		rt.EmitOutput(block.OutputRecord{
			OutputType:        "completion",
			TimeSpan:          span,
			SourceBlockKey:    b.Key,
			SourceStatementID: primarySourceID(b),
			StackLevel:        stackLevelBeforePop,
			Fragments:         b.Fragments,
		})
	}
}

// parentSpanID returns the ExecutionSpan id of the block currently on top
// of the stack (the soon-to-be parent of whatever is pushed next), or "" if
// the stack is empty.
func (rt *Runtime) parentSpanID() string {
	if len(rt.stack) == 0 {
		return ""
	}
	if span, ok := rt.stack[len(rt.stack)-1].block.CurrentSpan(); ok {
		return span.ID
	}
	return ""
}

// stackSnapshot returns the current stack's block keys, topmost first, for
// stack:push/stack:pop event payloads.
func (rt *Runtime) stackSnapshot() []block.Key {
	out := make([]block.Key, 0, len(rt.stack))
	for i := len(rt.stack) - 1; i >= 0; i-- {
		out = append(out, rt.stack[i].block.Key)
	}
	return out
}

func primarySourceID(b *block.Block) int64 {
	if len(b.SourceIDs) == 0 {
		return 0
	}
	return b.SourceIDs[0]
}

// wireEventNames is the stable wire event vocabulary (§6) a block's
// EventHandler behaviors may care about. Each is registered individually
// because the bus addresses handlers by a single event name; a behavior's
// own OnEvent still inspects event.Name and ignores whatever it does not
// care about, exactly as TimerBehavior/SoundBehavior/LoopCoordinatorBehavior
// do.
var wireEventNames = []string{
	"tick", "next", "stack:push", "stack:pop",
	"timer:tick", "timer:complete", "block:complete",
	"rounds:changed", "interval:complete", "sound:play",
}

// registerHandlers registers every EventHandler behavior on b with the bus
// under b.Key, across the full wire vocabulary and in declaration order, so
// the block's handlers vanish atomically (UnregisterByOwner) when it pops.
func (rt *Runtime) registerHandlers(b *block.Block) {
	for _, beh := range b.Behaviors {
		eh, ok := beh.(block.EventHandler)
		if !ok {
			continue
		}
		bb := b
		handler := func(event hooks.Event) []block.Action {
			return eh.OnEvent(rt, bb, event)
		}
		for _, name := range wireEventNames {
			_, _ = rt.bus.Register(name, handler, string(b.Key), hooks.Options{})
		}
	}
}

// drain processes the FIFO action queue until empty, then runs the
// completion sweep; if the sweep queues more actions it drains again. A
// reentrant call (the executor already draining) returns immediately — the
// outer loop continues. A hard iteration cap aborts a runaway action graph
// with a logged error, leaving the runtime usable for the next Handle call.
func (rt *Runtime) drain() {
	if rt.draining {
		return
	}
	rt.draining = true
	defer func() { rt.draining = false }()

	iterations := 0
	for {
		for rt.queue.Len() > 0 {
			iterations++
			if iterations > maxDrainIterations {
				rt.logger.Error(context.Background(), "action queue exceeded iteration cap, aborting", "cap", maxDrainIterations)
				rt.queue.Init()
				return
			}
			front := rt.queue.Front()
			rt.queue.Remove(front)
			a := front.Value.(block.Action)
			rt.runActionSafely(a)
		}
		if !rt.sweep() {
			return
		}
	}
}

// sweep pops the top-of-stack block repeatedly while it reports complete,
// queuing whatever actions each pop produces (via parent.next) before
// sweeping again. Returns true if it queued any further actions for drain
// to process.
func (rt *Runtime) sweep() bool {
	before := rt.queue.Len()
	for len(rt.stack) > 0 {
		top := rt.stack[len(rt.stack)-1].block
		if !top.IsComplete() {
			break
		}
		rt.PopBlock(block.Options{})
		if len(rt.stack) == 0 && !rt.doneEmitted {
			rt.doneEmitted = true
			rt.pushDone(block.Options{})
		}
	}
	return rt.queue.Len() > before
}

// runActionSafely executes a single action, recovering and logging any
// panic so a faulty action never aborts the drain loop for the rest of the
// queue (§7 "Behavior fault" extends to actions the behavior queued).
func (rt *Runtime) runActionSafely(a block.Action) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error(context.Background(), "action fault", "action_type", a.Type, "recovered", fmt.Sprint(r))
		}
	}()
	if a.Do != nil {
		a.Do(rt)
	}
}

// Dispose terminates the runtime, force-popping every block on the stack
// (deepest-last, i.e. LIFO from the top) and releasing all resources. This
// is how an external "stop" is modeled: there is no cancel token (§5); the
// caller simply disposes the runtime.
func (rt *Runtime) Dispose() {
	for len(rt.stack) > 0 {
		rt.PopBlock(block.Options{})
	}
	rt.queue.Init()
}
