// Package scenario loads a YAML-encoded statement tree and a scripted
// sequence of drive events (ticks and user "next" actions) for the
// cmd/workout-run CLI and for fixture-driven scenario tests. It is the
// only place in the module that parses a statement tree from a serialized
// form; the engine itself never reads YAML.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fitscript/engine/fragment"
)

// Document is the top-level shape of a scenario file: the flat statement
// table, the root's ordered child groups, and the scripted drive sequence.
type Document struct {
	Statements []statementDoc `yaml:"statements"`
	Top        [][]int64      `yaml:"top"`
	Drive      []driveDoc     `yaml:"drive"`
}

type statementDoc struct {
	ID        int64         `yaml:"id"`
	Fragments []fragmentDoc `yaml:"fragments"`
	Children  [][]int64     `yaml:"children"`
	Hints     []string      `yaml:"hints"`
}

type fragmentDoc struct {
	Kind      string `yaml:"kind"`
	Value     any    `yaml:"value"`
	Direction string `yaml:"direction"`
}

type driveDoc struct {
	AtMs int64  `yaml:"at_ms"`
	Type string `yaml:"type"`
}

// DriveEvent is one scripted input the CLI replays against the engine, in
// elapsed milliseconds since the workout started.
type DriveEvent struct {
	AtMs int64
	Type string
}

// Load reads and parses a YAML scenario file, returning the statement
// Lookup the engine drives against, the root's ordered child groups, and
// the scripted drive sequence.
func Load(path string) (fragment.Lookup, [][]int64, []DriveEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fragment.Lookup{}, nil, nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fragment.Lookup{}, nil, nil, fmt.Errorf("scenario: parse %s: %w", path, err)
	}

	statements := make([]fragment.Statement, 0, len(doc.Statements))
	for _, sd := range doc.Statements {
		frags := make([]fragment.Fragment, 0, len(sd.Fragments))
		for _, fd := range sd.Fragments {
			f, err := toFragment(fd)
			if err != nil {
				return fragment.Lookup{}, nil, nil, fmt.Errorf("scenario: statement %d: %w", sd.ID, err)
			}
			frags = append(frags, f)
		}
		hints := make([]fragment.Hint, 0, len(sd.Hints))
		for _, h := range sd.Hints {
			hints = append(hints, fragment.Hint(h))
		}
		statements = append(statements, fragment.Statement{
			ID:        sd.ID,
			Fragments: frags,
			Children:  sd.Children,
			Hints:     fragment.NewHintSet(hints...),
		})
	}

	drive := make([]DriveEvent, 0, len(doc.Drive))
	for _, dd := range doc.Drive {
		drive = append(drive, DriveEvent{AtMs: dd.AtMs, Type: dd.Type})
	}

	return fragment.NewLookup(statements), doc.Top, drive, nil
}

func toFragment(fd fragmentDoc) (fragment.Fragment, error) {
	kind := fragment.Kind(fd.Kind)
	dir := fragment.Direction(fd.Direction)

	switch kind {
	case fragment.Timer:
		ms, err := toInt64(fd.Value)
		if err != nil {
			return fragment.Fragment{}, fmt.Errorf("timer fragment: %w", err)
		}
		if dir == "" {
			dir = fragment.Up
		}
		return fragment.Fragment{Kind: kind, Value: ms, Direction: dir}, nil

	case fragment.Rounds:
		if list, ok := fd.Value.([]any); ok {
			scheme := make([]int, len(list))
			for i, item := range list {
				n, err := toInt(item)
				if err != nil {
					return fragment.Fragment{}, fmt.Errorf("rounds scheme: %w", err)
				}
				scheme[i] = n
			}
			return fragment.Fragment{Kind: kind, Value: scheme}, nil
		}
		n, err := toInt(fd.Value)
		if err != nil {
			return fragment.Fragment{}, fmt.Errorf("rounds fragment: %w", err)
		}
		return fragment.Fragment{Kind: kind, Value: n}, nil

	case fragment.Effort, fragment.Text, fragment.Action:
		s, ok := fd.Value.(string)
		if !ok {
			return fragment.Fragment{}, fmt.Errorf("%s fragment: expected string value, got %T", fd.Kind, fd.Value)
		}
		return fragment.Fragment{Kind: kind, Value: s}, nil

	case fragment.Reps, fragment.Distance, fragment.Resistance:
		n, err := toInt(fd.Value)
		if err != nil {
			return fragment.Fragment{}, fmt.Errorf("%s fragment: %w", fd.Kind, err)
		}
		return fragment.Fragment{Kind: kind, Value: n}, nil

	default:
		return fragment.Fragment{}, fmt.Errorf("unknown fragment kind %q", fd.Kind)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	n, err := toInt(v)
	return int64(n), err
}
