package compile

import (
	"fmt"
	"time"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
	"github.com/fitscript/engine/telemetry"
)

// fakeRuntime is a minimal block.Runtime used to exercise compile strategies
// without the full stack/lifecycle driver. IssueKey hands out sequential
// keys; PushBlock just records what was pushed, since PushChild closures are
// exercised directly rather than through a real stack.
type fakeRuntime struct {
	now    time.Time
	lookup fragment.Lookup
	mem    memory.Store
	bus    hooks.Bus[block.Action]
	logger telemetry.Logger
	seq    int
	pushed []*block.Block

	ancestorsOf map[string][]string
}

func newFakeRuntime(statements ...fragment.Statement) *fakeRuntime {
	rt := &fakeRuntime{now: time.Now(), lookup: fragment.NewLookup(statements), logger: telemetry.NewNoopLogger()}
	rt.mem = memory.NewStore(rt)
	rt.bus = hooks.NewBus[block.Action](nil)
	return rt
}

func (f *fakeRuntime) Now() time.Time                  { return f.now }
func (f *fakeRuntime) QueueActions(actions []block.Action) {
	for _, a := range actions {
		if a.Do != nil {
			a.Do(f)
		}
	}
}
func (f *fakeRuntime) Dispatch(event hooks.Event) []block.Action { return f.bus.Dispatch(event) }
func (f *fakeRuntime) GetStatementByID(id int64) (fragment.Statement, bool) {
	return f.lookup.Get(id)
}
func (f *fakeRuntime) Memory() memory.Store     { return f.mem }
func (f *fakeRuntime) Logger() telemetry.Logger { return f.logger }
func (f *fakeRuntime) IssueKey() block.Key {
	f.seq++
	return block.Key(fmt.Sprintf("block-%d", f.seq))
}
func (f *fakeRuntime) PushBlock(b *block.Block, opts block.Options) error {
	f.pushed = append(f.pushed, b)
	return nil
}
func (f *fakeRuntime) PopBlock(opts block.Options)      {}
func (f *fakeRuntime) StackDepth() int                  { return len(f.pushed) }
func (f *fakeRuntime) EmitOutput(record block.OutputRecord) {}

func (f *fakeRuntime) IsLive(ownerID string) bool { return true }
func (f *fakeRuntime) Ancestors(ownerID string) []string {
	return f.ancestorsOf[ownerID]
}

func effortStatement(id int64, label string) fragment.Statement {
	return fragment.Statement{ID: id, Fragments: []fragment.Fragment{{Kind: fragment.Effort, Value: label}}}
}

func ms(v int64) *int64 { return &v }
