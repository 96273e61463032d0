// Command cairo-run executes a compiled Cairo program artifact to
// completion and writes its relocated trace and memory artifacts.
//
// Usage:
//
//	cairo-run run program.json --layout small --trace-file trace.bin --memory-file memory.bin
//	cairo-run trace-only program.json --proof-mode --trace-file trace.bin
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/program"
	"github.com/sarchlab/cairo-vm-go/runner"
	"github.com/sarchlab/cairo-vm-go/trace"
)

var (
	layout      string
	proofMode   bool
	entrypoint  uint64
	maxSteps    int64
	traceFile   string
	memoryFile  string
	printOutput bool
	verbose     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cairo-run",
		Short: "Run a compiled Cairo program to completion",
	}
	root.PersistentFlags().StringVar(&layout, "layout", string(builtins.LayoutPlain),
		"builtin layout: plain, small, dex, perpetual_with_bitwise, bitwise, recursive, all")
	root.PersistentFlags().BoolVar(&proofMode, "proof-mode", false,
		"record the full (pc, ap, fp) trace needed for the trace artifact")
	root.PersistentFlags().Uint64Var(&entrypoint, "entrypoint", 0,
		"program-counter offset to start execution at")
	root.PersistentFlags().Int64Var(&maxSteps, "max-steps", 0,
		"abort with an error after this many steps (0 = unbounded)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"raise logging to trace level and log per-builtin usage after the run")

	root.AddCommand(newRunCmd(), newTraceOnlyCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <program.json>",
		Short: "Execute a program and emit both artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(args[0], true, true)
		},
	}
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "relocated trace output path (skipped if empty)")
	cmd.Flags().StringVar(&memoryFile, "memory-file", "", "relocated memory output path (skipped if empty)")
	cmd.Flags().BoolVar(&printOutput, "print-output", true, "print the output builtin's segment to stdout")
	return cmd
}

func newTraceOnlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace-only <program.json>",
		Short: "Execute a program and emit only the relocated trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proofMode = true
			return execute(args[0], true, false)
		},
	}
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "relocated trace output path (skipped if empty)")
	return cmd
}

func execute(path string, wantTrace, wantMemory bool) error {
	log := newLogger()

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cairo-run: reading %s: %w", path, err)
	}
	prog, err := program.Load(raw)
	if err != nil {
		return fmt.Errorf("cairo-run: %w", err)
	}

	r, err := runner.NewCairoRunner(prog, builtins.Layout(layout),
		runner.WithEntrypoint(entrypoint),
		runner.WithMaxSteps(maxSteps),
		runner.WithLogger(log),
		proofModeOption(),
	)
	if err != nil {
		return fmt.Errorf("cairo-run: %w", err)
	}

	result, err := r.Execute()
	if err != nil {
		return fmt.Errorf("cairo-run: %w", err)
	}
	log.WithField("steps", r.Step()).Info("execution finished")
	if verbose {
		res := r.Resources()
		for name, used := range res.BuiltinUsage {
			log.WithFields(logrus.Fields{"builtin": name, "used_instances": used}).Trace("builtin usage")
		}
	}

	if wantTrace && traceFile != "" {
		if err := writeArtifact(traceFile, func(f *os.File) error {
			return trace.EncodeTrace(f, result.Trace)
		}); err != nil {
			return err
		}
	}
	if wantMemory && memoryFile != "" {
		if err := writeArtifact(memoryFile, func(f *os.File) error {
			return trace.EncodeMemory(f, result.Memory)
		}); err != nil {
			return err
		}
	}
	if printOutput {
		if err := r.WriteOutput(os.Stdout); err != nil {
			return fmt.Errorf("cairo-run: %w", err)
		}
	}
	return nil
}

func proofModeOption() runner.Option {
	if proofMode {
		return runner.WithProofMode()
	}
	return func(*runner.CairoRunner) {}
}

func writeArtifact(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cairo-run: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		return fmt.Errorf("cairo-run: writing %s: %w", path, err)
	}
	return nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.TraceLevel)
	}
	return log
}
