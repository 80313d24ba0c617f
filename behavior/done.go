package behavior

import "github.com/fitscript/engine/block"

// DoneBehavior is attached to the terminal DoneBlock. On mount it emits the
// workout's END_WORKOUT completion record directly — DoneBlock carries no
// HistoryBehavior of its own since there is nothing further to time.
type DoneBehavior struct{}

// NewDoneBehavior constructs a DoneBehavior.
func NewDoneBehavior() *DoneBehavior {
	return &DoneBehavior{}
}

// OnPush queues the END_WORKOUT output record. The stack level and
// timestamp are captured now, at mount time, rather than read back inside
// Do — by the time a queued action runs, the sweep may already have popped
// DoneBlock itself, and rt.StackDepth() would no longer reflect the depth
// this block actually occupied.
func (d *DoneBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	now := rt.Now()
	if opts.StartTime != nil {
		now = *opts.StartTime
	}
	stackLevel := rt.StackDepth() - 1
	span := block.ExecutionSpan{
		ID:         string(b.Key) + ":end",
		BlockID:    b.Key,
		Type:       block.Done,
		Label:      b.Label,
		StartTime:  now,
		EndTime:    now,
		Status:     block.SpanCompleted,
		StackLevel: stackLevel,
	}
	return []block.Action{{
		Type: "EndWorkout",
		Do: func(rt block.Runtime) {
			rt.EmitOutput(block.OutputRecord{
				OutputType:     "END_WORKOUT",
				SourceBlockKey: b.Key,
				StackLevel:     stackLevel,
				TimeSpan:       span,
			})
		},
	}}
}

// IsComplete latches true immediately: DoneBlock has nothing further to do
// and the sweep should pop it on the very next pass.
func (d *DoneBehavior) IsComplete() bool { return true }
