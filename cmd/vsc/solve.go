package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/vsc"
	"github.com/benbjohnson/vsc/bitblast"
	"github.com/benbjohnson/vsc/parse"
	"github.com/benbjohnson/vsc/z3"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// SolveCommand represents a command for solving a model file.
type SolveCommand struct {
	Stdout io.Writer
}

// NewSolveCommand returns a new instance of SolveCommand.
func NewSolveCommand() *SolveCommand {
	return &SolveCommand{Stdout: os.Stdout}
}

// Run executes the "solve" subcommand.
func (cmd *SolveCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("vsc-solve", flag.ContinueOnError)
	seed := fs.String("seed", "0", "random seed")
	backendName := fs.String("backend", "bitblast", "solver backend")
	n := fs.Int("n", 1, "number of solutions")
	verbose := fs.Bool("v", false, "verbose")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("model file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many model files specified")
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = l.Sync() }()
		logger = l
	}

	backend, err := newBackend(*backendName)
	if err != nil {
		return err
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	model, err := parse.LoadModel(f)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}

	if file, ok := cmd.Stdout.(*os.File); !ok || !isatty.IsTerminal(file.Fd()) {
		color.NoColor = true
	}

	solver := vsc.NewCompoundSolver(backend)
	solver.Logger = logger

	rs := vsc.NewRandState(*seed)
	for i := 0; i < *n; i++ {
		if err := solver.Solve(ctx, rs, model.Fields, model.Constraints, vsc.RandomizeDeclRand|vsc.Randomize); err != nil {
			return err
		}

		if *n > 1 {
			fmt.Fprintln(cmd.Stdout, color.New(color.Faint).Sprintf("# solution %d", i+1))
		}
		cmd.printFields(model.Fields)
	}

	logger.Debug("[solve] done",
		zap.Int("solve_sets", solver.Stats.SolveSetN),
		zap.Int("unconstrained", solver.Stats.UnconstrainedN),
		zap.Duration("elapsed", solver.Stats.SolveTime),
	)
	return nil
}

func (cmd *SolveCommand) printFields(fields []*vsc.Field) {
	for _, top := range fields {
		top.Walk(func(f *vsc.Field) bool {
			if f.Kind == vsc.FieldVector {
				fmt.Fprintf(cmd.Stdout, "%s = %s\n", color.CyanString(f.Size.FullName()), color.YellowString("%d", f.Len()))
			}
			if f.Kind != vsc.FieldScalar || f.IsVectorSize() {
				return true
			}

			value := fmt.Sprint(f.Value.Bits)
			if f.Signed {
				value = fmt.Sprint(f.Value.Int64())
			}
			fmt.Fprintf(cmd.Stdout, "%s = %s\n", color.CyanString(f.FullName()), color.YellowString("%s", value))
			return true
		})
	}
}

func newBackend(name string) (vsc.Backend, error) {
	switch name {
	case "bitblast":
		return bitblast.NewBackend(), nil
	case "z3":
		return z3.NewBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", name)
	}
}

func (cmd *SolveCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: vsc solve [arguments] MODEL

Arguments:

	-seed SEED
	    Seed string of the random state. Defaults to "0".

	-backend NAME
	    Solver backend, "bitblast" or "z3". Defaults to "bitblast".

	-n COUNT
	    Number of solutions to print.

	-v
	    Enable verbose logging.
`[1:])
}
