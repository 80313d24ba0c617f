package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
	"github.com/fitscript/engine/telemetry"
)

// fakeRuntime is a minimal block.Runtime sufficient to exercise Block and
// Context in isolation, without the stack/lifecycle driver.
type fakeRuntime struct {
	now    time.Time
	mem    memory.Store
	logger telemetry.Logger
	issued int
	depth  int
}

func newFakeRuntime() *fakeRuntime {
	rt := &fakeRuntime{now: time.Now(), logger: telemetry.NewNoopLogger()}
	rt.mem = memory.NewStore(rt)
	return rt
}

func (f *fakeRuntime) Now() time.Time                                     { return f.now }
func (f *fakeRuntime) QueueActions(actions []Action)                      {}
func (f *fakeRuntime) Dispatch(event hooks.Event) []Action                { return nil }
func (f *fakeRuntime) GetStatementByID(id int64) (fragment.Statement, bool) {
	return fragment.Statement{}, false
}
func (f *fakeRuntime) Memory() memory.Store      { return f.mem }
func (f *fakeRuntime) Logger() telemetry.Logger  { return f.logger }
func (f *fakeRuntime) IssueKey() Key {
	f.issued++
	return Key("key")
}
func (f *fakeRuntime) PushBlock(b *Block, opts Options) error { return nil }
func (f *fakeRuntime) PopBlock(opts Options)                 {}
func (f *fakeRuntime) StackDepth() int                        { return f.depth }
func (f *fakeRuntime) EmitOutput(record OutputRecord)         {}

func (f *fakeRuntime) IsLive(ownerID string) bool        { return ownerID == "block-1" }
func (f *fakeRuntime) Ancestors(ownerID string) []string { return nil }

type recordingBehavior struct {
	calls []string
}

func (r *recordingBehavior) OnPush(rt Runtime, b *Block, opts Options) []Action {
	r.calls = append(r.calls, "push")
	return []Action{{Type: "push-action"}}
}

func (r *recordingBehavior) OnNext(rt Runtime, b *Block, opts Options) []Action {
	r.calls = append(r.calls, "next")
	return []Action{{Type: "next-action"}}
}

func (r *recordingBehavior) OnPop(rt Runtime, b *Block, opts Options) []Action {
	r.calls = append(r.calls, "pop")
	return []Action{{Type: "pop-action"}}
}

func (r *recordingBehavior) OnDispose(rt Runtime, b *Block) {
	r.calls = append(r.calls, "dispose")
}

type completerBehavior struct {
	complete bool
}

func (c *completerBehavior) IsComplete() bool { return c.complete }

type panicBehavior struct{}

func (panicBehavior) OnPush(rt Runtime, b *Block, opts Options) []Action {
	panic("behavior exploded")
}

func TestBlockMountNextUnmountDispatchInDeclarationOrder(t *testing.T) {
	rt := newFakeRuntime()
	rb := &recordingBehavior{}
	b := New("block-1", nil, Effort, "push-ups", nil, []Behavior{rb}, NewContext(rt, "block-1"))

	actions := b.Mount(rt, Options{})
	require.Equal(t, []Action{{Type: "push-action"}}, actions)

	actions = b.Next(rt, Options{})
	require.Equal(t, []Action{{Type: "next-action"}}, actions)

	actions = b.Unmount(rt, Options{})
	require.Equal(t, []Action{{Type: "pop-action"}}, actions)

	b.Dispose(rt)
	require.Equal(t, []string{"push", "next", "pop", "dispose"}, rb.calls)
}

func TestBlockIsCompleteIfAnyBehaviorLatchesTrue(t *testing.T) {
	rt := newFakeRuntime()
	b := New("block-1", nil, Effort, "", nil, []Behavior{&completerBehavior{complete: false}}, NewContext(rt, "block-1"))
	require.False(t, b.IsComplete())

	b2 := New("block-1", nil, Effort, "", nil, []Behavior{&completerBehavior{complete: true}}, NewContext(rt, "block-1"))
	require.True(t, b2.IsComplete())
}

func TestBlockWithNoCompleterIsNeverComplete(t *testing.T) {
	rt := newFakeRuntime()
	b := New("block-1", nil, Group, "", nil, []Behavior{&recordingBehavior{}}, NewContext(rt, "block-1"))
	require.False(t, b.IsComplete())
}

func TestBlockCurrentSpanFromSpannerBehavior(t *testing.T) {
	rt := newFakeRuntime()
	span := ExecutionSpan{ID: "span-1", BlockID: "block-1"}
	b := New("block-1", nil, Effort, "", nil, []Behavior{&fakeSpanner{span: span, has: true}}, NewContext(rt, "block-1"))

	got, ok := b.CurrentSpan()
	require.True(t, ok)
	require.Equal(t, span, got)
}

type fakeSpanner struct {
	span ExecutionSpan
	has  bool
}

func (f *fakeSpanner) CurrentSpan() (ExecutionSpan, bool) { return f.span, f.has }

func TestBlockMountRecoversBehaviorPanic(t *testing.T) {
	rt := newFakeRuntime()
	b := New("block-1", nil, Effort, "", nil, []Behavior{panicBehavior{}, &recordingBehavior{}}, NewContext(rt, "block-1"))

	require.NotPanics(t, func() {
		actions := b.Mount(rt, Options{})
		require.Equal(t, []Action{{Type: "push-action"}}, actions)
	})
}

func TestContextAllocateGetSetRelease(t *testing.T) {
	rt := newFakeRuntime()
	ctx := NewContext(rt, "block-1")

	ref, err := ctx.Allocate("loop.index", -1, memory.Private)
	require.NoError(t, err)

	v, ok := ctx.Get(ref)
	require.True(t, ok)
	require.Equal(t, -1, v)

	ctx.Set(ref, 0)
	v, ok = ctx.Get(ref)
	require.True(t, ok)
	require.Equal(t, 0, v)

	ctx.Release()
	_, ok = ctx.Get(ref)
	require.False(t, ok)
}

func TestContextSearchForcesOwnCallerID(t *testing.T) {
	rt := newFakeRuntime()
	ctx := NewContext(rt, "block-1")
	ref, err := ctx.Allocate("metric.reps", 12, memory.Private)
	require.NoError(t, err)

	refs := ctx.Search(memory.Query{Type: "metric.reps", Visibility: memory.Private, CallerID: "someone-else"})
	require.Equal(t, []memory.Ref{ref}, refs)
}
