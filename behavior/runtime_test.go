package behavior

import (
	"time"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
	"github.com/fitscript/engine/telemetry"
)

// fakeRuntime is a minimal block.Runtime used to exercise behaviors without
// the full stack/lifecycle driver. Dispatch re-enters the bus synchronously,
// the same shape the real Runtime's Dispatch has, so behaviors that
// dispatch an event from inside an action's Do (TimerBehavior, SoundBehavior,
// CompletionBehavior) can be exercised end to end.
type fakeRuntime struct {
	now    time.Time
	mem    memory.Store
	bus    hooks.Bus[block.Action]
	logger telemetry.Logger
	depth  int
}

func newFakeRuntime() *fakeRuntime {
	rt := &fakeRuntime{now: time.Now(), logger: telemetry.NewNoopLogger()}
	rt.mem = memory.NewStore(rt)
	rt.bus = hooks.NewBus[block.Action](nil)
	return rt
}

func (f *fakeRuntime) Now() time.Time { return f.now }

func (f *fakeRuntime) QueueActions(actions []block.Action) {
	for _, a := range actions {
		if a.Do != nil {
			a.Do(f)
		}
	}
}

func (f *fakeRuntime) Dispatch(event hooks.Event) []block.Action { return f.bus.Dispatch(event) }

func (f *fakeRuntime) GetStatementByID(id int64) (fragment.Statement, bool) {
	return fragment.Statement{}, false
}

func (f *fakeRuntime) Memory() memory.Store     { return f.mem }
func (f *fakeRuntime) Logger() telemetry.Logger { return f.logger }
func (f *fakeRuntime) IssueKey() block.Key      { return block.Key("issued") }
func (f *fakeRuntime) PushBlock(b *block.Block, opts block.Options) error { return nil }
func (f *fakeRuntime) PopBlock(opts block.Options)                       {}
func (f *fakeRuntime) StackDepth() int                                   { return f.depth }
func (f *fakeRuntime) EmitOutput(record block.OutputRecord)              {}

func (f *fakeRuntime) IsLive(ownerID string) bool        { return true }
func (f *fakeRuntime) Ancestors(ownerID string) []string { return nil }

func newTestBlock(rt *fakeRuntime, key block.Key, behaviors ...block.Behavior) *block.Block {
	return block.New(key, nil, block.Effort, "test", nil, behaviors, block.NewContext(rt, key))
}

func registerEventHandlers(rt *fakeRuntime, b *block.Block, names ...string) {
	for _, beh := range b.Behaviors {
		eh, ok := beh.(block.EventHandler)
		if !ok {
			continue
		}
		bb := b
		for _, name := range names {
			_, _ = rt.bus.Register(name, func(event hooks.Event) []block.Action {
				return eh.OnEvent(rt, bb, event)
			}, string(b.Key), hooks.Options{})
		}
	}
}
