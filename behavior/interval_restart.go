package behavior

import (
	"github.com/fitscript/engine/block"
)

// RoundSource exposes a loop coordinator's current round count.
// LoopCoordinatorBehavior.Rounds satisfies this.
type RoundSource interface {
	Rounds(b *block.Block) int
}

// IntervalTimerRestartBehavior watches a round-source behavior on the same
// block and restarts Timer whenever the round count advances — the
// mechanism that turns a countdown timer into an EMOM clock. It is a
// separate behavior from LoopCoordinatorBehavior so the restart trigger can
// be composed independently of loop-advance logic, and must be declared
// after both the source and the timer in a block's behavior list.
type IntervalTimerRestartBehavior struct {
	Source RoundSource
	Timer  *TimerBehavior
	Sound  *SoundBehavior

	lastRounds int
	seen       bool
}

// NewIntervalTimerRestartBehavior constructs an IntervalTimerRestartBehavior.
// sound, if non-nil, has its cues reset alongside every restart.
func NewIntervalTimerRestartBehavior(source RoundSource, timer *TimerBehavior, sound *SoundBehavior) *IntervalTimerRestartBehavior {
	return &IntervalTimerRestartBehavior{Source: source, Timer: timer, Sound: sound, lastRounds: -1}
}

// OnNext restarts the timer when the watched round count changes from the
// previously observed value. The first observation only records a baseline.
func (i *IntervalTimerRestartBehavior) OnNext(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	if i.Source == nil || i.Timer == nil {
		return nil
	}
	rounds := i.Source.Rounds(b)
	seenBefore, last := i.seen, i.lastRounds
	i.seen, i.lastRounds = true, rounds

	if !seenBefore || rounds == last {
		return nil
	}

	now := rt.Now()
	if opts.StartTime != nil {
		now = *opts.StartTime
	}
	i.Timer.Restart(b, now)
	if i.Sound != nil {
		i.Sound.Reset(b)
	}
	return nil
}
