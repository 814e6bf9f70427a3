// Command solchc model-checks contract functions. It reads a function's
// control-flow graph from a YAML fixture, discharges every assertion against
// the solver, and prints the resulting diagnostics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/checker"
	"github.com/kimroniny/solidity/internal/diag"
	"github.com/kimroniny/solidity/internal/solver"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: solchc <command> [options]\n")
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  check <file>    Verify the assertions of a function graph\n")
		fmt.Fprintf(os.Stderr, "  dump <file>     Print a function graph in readable form\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "check":
		runCheck(args)
	case "dump":
		runDump(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	solverPath := fs.String("solver", "", "path to the z3 binary (overrides config)")
	bounds := fs.String("bounds", "", "array bounds policy: nondet, assert or assume (overrides config)")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: solchc check [options] <file>\n")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfgc := checker.DefaultConfig()
	if *configPath != "" {
		var err error
		cfgc, err = checker.LoadConfig(*configPath)
		if err != nil {
			fatal(err)
		}
	}
	if *solverPath != "" {
		cfgc.Solver = *solverPath
	}
	if *bounds != "" {
		cfgc.Bounds = *bounds
	}
	if err := cfgc.Validate(); err != nil {
		fatal(err)
	}

	fn, err := loadFunction(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	z3, err := solver.NewZ3(cfgc.Solver)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := checker.New(cfgc, z3, log).CheckFunction(ctx, fn)
	if err != nil {
		fatal(err)
	}

	if err := diag.NewFormatter(os.Stdout).FormatAll(report.Diagnostics); err != nil {
		fatal(err)
	}

	if report.Refuted > 0 || report.Unknown > 0 || report.Unsupported > 0 {
		os.Exit(1)
	}
}

func runDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: solchc dump <file>\n")
		os.Exit(1)
	}

	fn, err := loadFunction(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	fmt.Println(fn.PrettyPrint())

	rpo := cfg.ReversePostorder(fn)
	labels := make([]string, len(rpo))
	for i, b := range rpo {
		labels[i] = b.Label
	}
	fmt.Printf("\nreverse postorder: %s\n", strings.Join(labels, " "))
	for _, e := range cfg.BackEdges(fn) {
		fmt.Printf("back edge: %s -> %s\n", e[0].Label, e[1].Label)
	}
}

func loadFunction(path string) (*cfg.Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fn, err := cfg.DecodeFunction(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fn, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "solchc: %v\n", err)
	os.Exit(1)
}
