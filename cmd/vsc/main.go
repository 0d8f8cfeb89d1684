package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	if err == flag.ErrHelp {
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches args to a subcommand. An interrupt cancels ctx, which
// aborts a solve between solve-sets.
func run(ctx context.Context, args []string) error {
	var name string
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	switch name {
	case "", "-h", "--help":
		usage()
		return flag.ErrHelp
	case "help":
		return help(args)
	case "solve":
		return NewSolveCommand().Run(ctx, args)
	default:
		return fmt.Errorf(`vsc %s: unknown command`, name)
	}
}

// help prints the usage of the named command, or the general usage.
func help(args []string) error {
	if len(args) == 0 {
		usage()
		return flag.ErrHelp
	}

	switch args[0] {
	case "solve":
		NewSolveCommand().usage()
		return flag.ErrHelp
	default:
		return fmt.Errorf(`vsc help %s: unknown command`, args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Vsc assigns random values to the fields of a model so that every
constraint of the model holds.

Usage:

	vsc <command> [arguments]

The commands are:

	solve       solve a YAML model and print one or more solutions
	help        print help for a command

A model lists fields and the constraints over them:

	fields:
	  - {name: a, width: 8, rand: true}
	  - {name: v, rand: true, vector: {width: 8}}
	constraints:
	  - "a < 10"
	  - "v.size == a"
	  - foreach: "v"
	    body: ["v[i] != 0"]
	  - soft: "a == 3"

Run 'vsc help solve' for the solve flags.
`[1:])
}
