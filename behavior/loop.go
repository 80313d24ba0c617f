package behavior

import (
	"time"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
)

// LoopType selects a LoopCoordinatorBehavior's completion predicate and
// round-advance semantics.
type LoopType string

const (
	Fixed     LoopType = "FIXED"
	RepScheme LoopType = "REP_SCHEME"
	TimeBound LoopType = "TIME_BOUND"
	Interval  LoopType = "INTERVAL"
)

// RoundSpan records one round's window, and (for REP_SCHEME) its rep target.
type RoundSpan struct {
	Round int
	Reps  *int
	Start time.Time
	Stop  *time.Time
}

// CompileAndPushChild compiles the statements at a child position and pushes
// the result. Compilation strategies set this field to a closure over the
// JIT and the owning runtime's PushBlock, keeping this package free of any
// dependency on the compile package (which itself depends on behavior to
// build behavior lists).
type CompileAndPushChild func(rt block.Runtime, statementIDs []int64, opts block.Options)

// LoopCoordinatorBehavior advances a single integer index across repeated
// child positions and derives position/round/completion from it. It is the
// behavior every structured workout (Rounds, Interval, TimeBoundRounds)
// shares.
type LoopCoordinatorBehavior struct {
	ChildGroups        [][]int64
	LoopType           LoopType
	TotalRounds        int
	RepScheme          []int
	IntervalDurationMs int64
	OnRoundStart       func(rt block.Runtime, roundIndex int)
	// Timer is consulted for TIME_BOUND completion and for INTERVAL's
	// wait-for-timer gate. Nil for FIXED/REP_SCHEME loops.
	Timer *TimerBehavior
	Push  CompileAndPushChild

	indexRef, waitingRef, roundRef, repRef memory.Ref
	hasRoundRef, hasRepRef                 bool
	complete                               bool
}

// NewLoopCoordinatorBehavior constructs a LoopCoordinatorBehavior over the
// given ordered child positions.
func NewLoopCoordinatorBehavior(childGroups [][]int64, loopType LoopType) *LoopCoordinatorBehavior {
	return &LoopCoordinatorBehavior{ChildGroups: childGroups, LoopType: loopType}
}

// OnPush allocates the coordinator's durable state and delegates to OnNext,
// as the first round is just the first advance.
func (l *LoopCoordinatorBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	idxRef, err := b.Context.Allocate("loop.index", -1, memory.Private)
	if err != nil {
		return nil
	}
	waitRef, err := b.Context.Allocate("loop.waiting", false, memory.Private)
	if err != nil {
		return nil
	}
	l.indexRef, l.waitingRef = idxRef, waitRef
	return l.OnNext(rt, b, opts)
}

// OnNext is the single advance operation described in the spec: gate on
// INTERVAL's wait-for-timer flag, bump the index, check completion, open a
// new round on a position-0 wraparound, and queue the next child push.
func (l *LoopCoordinatorBehavior) OnNext(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	n := len(l.ChildGroups)
	if n == 0 {
		l.complete = true
		return nil
	}

	// The interval gate only blocks an advance past the round already in
	// progress — the very first advance (idx still unset, index(b) < 0) is
	// what pushes round 0 and must go through even though the timer started
	// running during this same mount.
	if l.LoopType == Interval && l.Timer != nil && l.index(b) >= 0 && l.Timer.IsRunning(b) && !l.Timer.IsComplete() {
		b.Context.Set(l.waitingRef, true)
		return nil
	}
	b.Context.Set(l.waitingRef, false)

	idx := l.index(b) + 1
	b.Context.Set(l.indexRef, idx)

	l.complete = l.evalComplete(b, idx, n)
	if l.complete {
		return nil
	}

	position := idx % n
	rounds := idx / n

	var actions []block.Action
	now := rt.Now()
	if opts.StartTime != nil {
		now = *opts.StartTime
	}
	if position == 0 {
		l.closeRoundSpan(b, now)
		var reps *int
		if l.LoopType == RepScheme && len(l.RepScheme) > 0 {
			r := l.RepScheme[rounds%len(l.RepScheme)]
			reps = &r
		}
		l.openRoundSpan(b, rounds, reps, now)
		if l.OnRoundStart != nil {
			l.OnRoundStart(rt, rounds)
		}
	}

	group := l.ChildGroups[position]
	childOpts := opts
	childOpts.StartTime = &now
	actions = append(actions, block.Action{
		Type:    "CompileAndPushChild",
		Payload: group,
		Do: func(rt block.Runtime) {
			if l.Push != nil {
				l.Push(rt, group, childOpts)
			}
		},
	})
	return actions
}

// OnEvent re-advances once this block's own timer reports complete, clearing
// the wait-for-interval gate set by an earlier OnNext.
func (l *LoopCoordinatorBehavior) OnEvent(rt block.Runtime, b *block.Block, event hooks.Event) []block.Action {
	if event.Name != "timer:complete" || !l.waiting(b) {
		return nil
	}
	data, ok := event.Data.(TimerCompleteData)
	if !ok || data.BlockID != b.Key {
		return nil
	}
	b.Context.Set(l.waitingRef, false)
	return l.OnNext(rt, b, block.Options{})
}

func (l *LoopCoordinatorBehavior) waiting(b *block.Block) bool {
	v, ok := b.Context.Get(l.waitingRef)
	if !ok {
		return false
	}
	w, _ := v.(bool)
	return w
}

// IsComplete reports the coordinator's last-evaluated completion state.
func (l *LoopCoordinatorBehavior) IsComplete() bool { return l.complete }

// Position returns index mod |childGroups|, per the spec's derived state.
func (l *LoopCoordinatorBehavior) Position(b *block.Block) int {
	n := len(l.ChildGroups)
	if n == 0 {
		return 0
	}
	idx := l.index(b)
	if idx < 0 {
		return 0
	}
	return idx % n
}

// Rounds returns floor(index / |childGroups|), per the spec's derived state.
// It satisfies the RoundSource interface IntervalTimerRestartBehavior uses.
func (l *LoopCoordinatorBehavior) Rounds(b *block.Block) int {
	n := len(l.ChildGroups)
	if n == 0 {
		return 0
	}
	idx := l.index(b)
	if idx < 0 {
		return 0
	}
	return idx / n
}

// GetRepsForCurrentRound returns the current round's rep target for a
// REP_SCHEME loop, or (0, false) otherwise.
func (l *LoopCoordinatorBehavior) GetRepsForCurrentRound(b *block.Block) (int, bool) {
	if l.LoopType != RepScheme || len(l.RepScheme) == 0 {
		return 0, false
	}
	rounds := l.Rounds(b)
	return l.RepScheme[rounds%len(l.RepScheme)], true
}

func (l *LoopCoordinatorBehavior) evalComplete(b *block.Block, idx, n int) bool {
	switch l.LoopType {
	case TimeBound:
		return l.Timer != nil && l.Timer.IsComplete()
	default:
		rounds := idx / n
		return rounds >= l.TotalRounds
	}
}

func (l *LoopCoordinatorBehavior) index(b *block.Block) int {
	v, ok := b.Context.Get(l.indexRef)
	if !ok {
		return -1
	}
	idx, _ := v.(int)
	return idx
}

func (l *LoopCoordinatorBehavior) closeRoundSpan(b *block.Block, at time.Time) {
	if !l.hasRoundRef {
		return
	}
	v, ok := b.Context.Get(l.roundRef)
	if !ok {
		return
	}
	rs, _ := v.(RoundSpan)
	stop := at
	rs.Stop = &stop
	b.Context.Set(l.roundRef, rs)
}

func (l *LoopCoordinatorBehavior) openRoundSpan(b *block.Block, round int, reps *int, at time.Time) {
	rs := RoundSpan{Round: round, Reps: reps, Start: at}
	if !l.hasRoundRef {
		ref, err := b.Context.Allocate("round.span", rs, memory.Private)
		if err == nil {
			l.roundRef, l.hasRoundRef = ref, true
		}
	} else {
		b.Context.Set(l.roundRef, rs)
	}

	if l.LoopType == RepScheme && reps != nil {
		if !l.hasRepRef {
			ref, err := b.Context.Allocate("metric.reps", *reps, memory.Inherited)
			if err == nil {
				l.repRef, l.hasRepRef = ref, true
			}
		} else {
			b.Context.Set(l.repRef, *reps)
		}
	}
}
