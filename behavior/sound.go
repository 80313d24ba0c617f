package behavior

import (
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
)

// Cue is one configured threshold-triggered sound.
type Cue struct {
	ID          string
	ThresholdMs int64
	Sound       string
	Volume      float64
}

type soundState struct {
	Triggered map[string]bool
}

// SoundBehavior watches its block's own timer:tick events and queues a
// PlaySoundAction the first time each configured cue's threshold is
// crossed. Triggered cues are tracked in sound.state memory so a crash in a
// single PlaySoundAction.Do never causes the cue to re-fire.
type SoundBehavior struct {
	Direction  fragment.Direction
	DurationMs *int64
	Cues       []Cue

	stateRef memory.Ref
	hasRef   bool
}

// NewSoundBehavior constructs a SoundBehavior.
func NewSoundBehavior(direction fragment.Direction, durationMs *int64, cues []Cue) *SoundBehavior {
	return &SoundBehavior{Direction: direction, DurationMs: durationMs, Cues: cues}
}

// OnPush allocates the cue-triggered-state slot.
func (s *SoundBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	ref, err := b.Context.Allocate("sound.state", soundState{Triggered: map[string]bool{}}, memory.Private)
	if err != nil {
		return nil
	}
	s.stateRef, s.hasRef = ref, true
	return nil
}

// OnEvent checks every not-yet-triggered cue against the tick's
// elapsed/remaining time and queues a PlaySoundAction for each newly
// crossed threshold.
func (s *SoundBehavior) OnEvent(rt block.Runtime, b *block.Block, event hooks.Event) []block.Action {
	if event.Name != "timer:tick" || !s.hasRef {
		return nil
	}
	data, ok := event.Data.(TimerTickData)
	if !ok || data.BlockID != b.Key {
		return nil
	}

	state := s.state(b)
	var actions []block.Action
	for _, cue := range s.Cues {
		if state.Triggered[cue.ID] {
			continue
		}
		var crossed bool
		if s.Direction == fragment.Down {
			crossed = data.RemainingMs <= cue.ThresholdMs
		} else {
			crossed = data.ElapsedMs >= cue.ThresholdMs
		}
		if !crossed {
			continue
		}
		state.Triggered[cue.ID] = true
		fired := cue
		actions = append(actions, block.Action{
			Type:    "PlaySoundAction",
			Payload: fired,
			Do: func(rt block.Runtime) {
				rt.Dispatch(hooks.Event{Name: "sound:play", Timestamp: rt.Now(), Data: map[string]any{
					"sound": fired.Sound, "volume": fired.Volume, "cueId": fired.ID,
				}})
			},
		})
	}
	b.Context.Set(s.stateRef, state)
	return actions
}

// Reset un-triggers every cue, used when a loop restarts the timer.
func (s *SoundBehavior) Reset(b *block.Block) {
	if !s.hasRef {
		return
	}
	b.Context.Set(s.stateRef, soundState{Triggered: map[string]bool{}})
}

func (s *SoundBehavior) state(b *block.Block) soundState {
	v, ok := b.Context.Get(s.stateRef)
	if !ok {
		return soundState{Triggered: map[string]bool{}}
	}
	st, _ := v.(soundState)
	if st.Triggered == nil {
		st.Triggered = map[string]bool{}
	}
	return st
}
