package behavior

import (
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/hooks"
)

// CompletionBehavior evaluates a predicate on the configured hook(s) and/or
// trigger events, latching done on first true and emitting block:complete.
// Reentry after done is idempotent: the predicate is never re-evaluated.
type CompletionBehavior struct {
	Predicate     func(b *block.Block) bool
	TriggerEvents []string
	CheckOnPush   bool
	CheckOnNext   bool

	done bool
}

// NewCompletionBehavior constructs a CompletionBehavior.
func NewCompletionBehavior(predicate func(b *block.Block) bool, triggerEvents []string, checkOnPush, checkOnNext bool) *CompletionBehavior {
	return &CompletionBehavior{Predicate: predicate, TriggerEvents: triggerEvents, CheckOnPush: checkOnPush, CheckOnNext: checkOnNext}
}

// OnPush evaluates the predicate if configured to check on push.
func (c *CompletionBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	if !c.CheckOnPush {
		return nil
	}
	return c.evaluate(b)
}

// OnNext evaluates the predicate if configured to check on next.
func (c *CompletionBehavior) OnNext(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	if !c.CheckOnNext {
		return nil
	}
	return c.evaluate(b)
}

// OnEvent evaluates the predicate when event.Name matches one of
// TriggerEvents — this is how the user-originated "next" event completes an
// EffortBlock with no inherited rep target.
func (c *CompletionBehavior) OnEvent(rt block.Runtime, b *block.Block, event hooks.Event) []block.Action {
	for _, name := range c.TriggerEvents {
		if name == event.Name {
			return c.evaluate(b)
		}
	}
	return nil
}

// IsComplete reports the latched completion flag.
func (c *CompletionBehavior) IsComplete() bool { return c.done }

func (c *CompletionBehavior) evaluate(b *block.Block) []block.Action {
	if c.done || c.Predicate == nil || !c.Predicate(b) {
		return nil
	}
	c.done = true
	key := b.Key
	return []block.Action{{
		Type:    "block:complete",
		Payload: key,
		Do: func(rt block.Runtime) {
			rt.Dispatch(hooks.Event{Name: "block:complete", Timestamp: rt.Now(), Data: key})
		},
	}}
}
