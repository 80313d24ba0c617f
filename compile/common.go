package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/fragment"
)

// primary returns the lead statement of a compiled group — the one whose
// fragments and hints drive strategy selection. JIT.Compile hands a strategy
// exactly one statement; a position bundling several statements goes to
// compileBundledPosition instead, which is the only multi-statement caller.
func primary(statements []fragment.Statement) fragment.Statement {
	return statements[0]
}

func statementIDs(statements []fragment.Statement) []int64 {
	ids := make([]int64, len(statements))
	for i, st := range statements {
		ids[i] = st.ID
	}
	return ids
}

// fragments flattens the Fragments carried by statements, in order, into the
// set a compiled Block reports on its ExecutionSpan.
func fragments(statements []fragment.Statement) []fragment.Fragment {
	var out []fragment.Fragment
	for _, st := range statements {
		out = append(out, st.Fragments...)
	}
	return out
}

func label(st fragment.Statement) string {
	if f, ok := st.FragmentOfKind(fragment.Text); ok {
		if s, ok2 := f.Value.(string); ok2 {
			return s
		}
	}
	if f, ok := st.FragmentOfKind(fragment.Effort); ok {
		if s, ok2 := f.Value.(string); ok2 {
			return s
		}
	}
	return ""
}

func hasAmrapAction(st fragment.Statement) bool {
	for _, f := range st.Fragments {
		if f.Kind == fragment.Action {
			if s, ok := f.Value.(string); ok && s == "amrap" {
				return true
			}
		}
	}
	return false
}

type timerInfo struct {
	durationMs *int64
	direction  fragment.Direction
	present    bool
}

func timer(st fragment.Statement) timerInfo {
	f, ok := st.FragmentOfKind(fragment.Timer)
	if !ok {
		return timerInfo{}
	}
	dir := f.Direction
	if dir == "" {
		dir = fragment.Up
	}
	info := timerInfo{direction: dir, present: true}
	switch v := f.Value.(type) {
	case int64:
		d := v
		info.durationMs = &d
	case int:
		d := int64(v)
		info.durationMs = &d
	}
	return info
}

type roundsInfo struct {
	total    int
	scheme   []int
	isScheme bool
	present  bool
}

func rounds(st fragment.Statement) roundsInfo {
	f, ok := st.FragmentOfKind(fragment.Rounds)
	if !ok {
		return roundsInfo{}
	}
	switch v := f.Value.(type) {
	case int:
		return roundsInfo{total: v, present: true}
	case []int:
		return roundsInfo{total: len(v), scheme: v, isScheme: true, present: true}
	}
	return roundsInfo{}
}

// defaultCues is the standard countdown beep pattern attached to every
// countdown timer: a pair of short beeps at 3s and 2s remaining, a long beep
// at 1s remaining.
func defaultCues() []behavior.Cue {
	return []behavior.Cue{
		{ID: "cue-3", ThresholdMs: 3000, Sound: "beep-short", Volume: 1},
		{ID: "cue-2", ThresholdMs: 2000, Sound: "beep-short", Volume: 1},
		{ID: "cue-1", ThresholdMs: 1000, Sound: "beep-long", Volume: 1},
	}
}
