package solver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kimroniny/solidity/internal/smt"
)

// Z3 drives the z3 binary as a subprocess: SMT-LIB 2 text on stdin, verdict
// and model on stdout. Each query is a fresh process, so queries are
// stateless and safe to run concurrently.
type Z3 struct {
	path string
}

// NewZ3 locates the z3 binary. An empty path means "z3" on PATH.
func NewZ3(path string) (*Z3, error) {
	if path == "" {
		path = "z3"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("solver: z3 binary not found: %w", err)
	}
	return &Z3{path: resolved}, nil
}

func (z *Z3) Name() string { return "z3" }

// Check runs one query. The budget becomes z3's soft timeout; the process is
// additionally killed at twice the budget, in which case the verdict is
// Unknown rather than an error.
func (z *Z3) Check(ctx context.Context, constraints []smt.Term, budget time.Duration) (Result, error) {
	args := []string{"-in", "-smt2"}
	if budget > 0 {
		ms := budget.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		args = append(args, fmt.Sprintf("-t:%d", ms))

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*budget)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, z.path, args...)
	cmd.Stdin = strings.NewReader(queryScript(constraints))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Result{Verdict: Unknown}, nil
	}

	res, err := parseOutput(stdout.String())
	if err != nil {
		if runErr != nil {
			return Result{}, fmt.Errorf("solver: z3 failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return Result{}, err
	}
	return res, nil
}

// queryScript extends the assertion script with a value query for every
// scalar constant. On unsat z3 answers the query with an error s-expression,
// which parseOutput ignores.
func queryScript(constraints []smt.Term) string {
	var b strings.Builder
	b.WriteString(smt.WriteScript(constraints))

	scalars := smt.ScalarVars(constraints...)
	if len(scalars) == 0 {
		return b.String()
	}
	names := make([]string, len(scalars))
	for i, v := range scalars {
		names[i] = v.Name
	}
	fmt.Fprintf(&b, "(get-value (%s))\n", strings.Join(names, " "))
	return b.String()
}

func parseOutput(out string) (Result, error) {
	rest := out
	var verdict string
	for verdict == "" {
		line, tail, found := strings.Cut(rest, "\n")
		switch strings.TrimSpace(line) {
		case "sat", "unsat", "unknown", "timeout":
			verdict = strings.TrimSpace(line)
		case "":
		default:
			// Diagnostics like (error ...) before the verdict.
		}
		rest = tail
		if !found && verdict == "" {
			return Result{}, fmt.Errorf("solver: no verdict in output: %q", out)
		}
	}

	switch verdict {
	case "unsat":
		return Result{Verdict: Unsat}, nil
	case "unknown", "timeout":
		return Result{Verdict: Unknown}, nil
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Result{Verdict: Sat, Model: Model{}}, nil
	}
	model, err := ParseValues(rest)
	if err != nil {
		return Result{}, fmt.Errorf("solver: sat but model unreadable: %w", err)
	}
	return Result{Verdict: Sat, Model: model}, nil
}
