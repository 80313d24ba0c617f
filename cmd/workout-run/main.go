// Command workout-run loads a YAML-encoded statement tree and a scripted
// sequence of tick/next drive events, replays them against the execution
// engine, and prints the emitted completion timeline as JSON lines. It is
// the module's only executable surface: a manual-exercise and
// scenario-replay tool, not a production workout player.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/engine"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/scenario"
	"github.com/fitscript/engine/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "workout-run:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file     string
		tickMs   int64
		maxTicks int
	)

	cmd := &cobra.Command{
		Use:   "workout-run",
		Short: "Replay a scripted workout statement tree against the execution engine",
		Long: "workout-run loads a YAML statement tree plus a scripted sequence of tick and\n" +
			"next events, drives them through the JIT compiler and lifecycle driver, and\n" +
			"prints the emitted completion timeline as newline-delimited JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(file, tickMs, maxTicks)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the YAML scenario file (required)")
	cmd.Flags().Int64Var(&tickMs, "tick-ms", 1000, "simulated tick interval in milliseconds, auto-filled between scripted drive events")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 7200, "safety cap on simulated ticks, guarding against a scenario with no terminating drive event")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func run(file string, tickMs int64, maxTicks int) error {
	lookup, top, drive, err := scenario.Load(file)
	if err != nil {
		return err
	}

	rt := engine.New(lookup, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())
	enc := json.NewEncoder(os.Stdout)
	unsubscribe := rt.SubscribeToOutput(func(record block.OutputRecord) {
		_ = enc.Encode(record)
	})
	defer unsubscribe()

	if err := rt.Start(top); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	driveRuntime(rt, drive, tickMs, maxTicks)
	rt.Dispose()
	return nil
}

// driveRuntime replays the scripted drive sequence, auto-filling simulated
// ticks at tickMs spacing up to each scripted event's elapsed time. ticks are
// capped at maxTicks so a scenario missing a terminating drive event cannot
// wedge the CLI in an infinite fill loop.
func driveRuntime(rt *engine.Runtime, drive []scenario.DriveEvent, tickMs int64, maxTicks int) {
	start := time.Now()
	var elapsed int64
	ticks := 0

	for _, ev := range drive {
		for tickMs > 0 && elapsed+tickMs <= ev.AtMs && ticks < maxTicks {
			elapsed += tickMs
			ticks++
			rt.Handle(hooks.Event{Name: "tick", Timestamp: start.Add(time.Duration(elapsed) * time.Millisecond)})
		}
		elapsed = ev.AtMs
		rt.Handle(hooks.Event{Name: ev.Type, Timestamp: start.Add(time.Duration(elapsed) * time.Millisecond)})
	}
}
