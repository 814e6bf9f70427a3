// Package checker orchestrates a verification run: encode the function,
// dispatch every verification condition to the solver, and assemble the
// outcome into diagnostics with counterexample traces.
package checker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimroniny/solidity/internal/cex"
	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/diag"
	"github.com/kimroniny/solidity/internal/encoder"
	"github.com/kimroniny/solidity/internal/solver"
)

// Outcome classifies one verification condition after checking.
type Outcome int

const (
	// Proved: the negated condition is unsatisfiable on this path.
	Proved Outcome = iota
	// Refuted: a concrete counterexample exists.
	Refuted
	// Unknown: the solver gave no answer within its budget, or the run
	// was canceled before this condition was checked.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Proved:
		return "proved"
	case Refuted:
		return "refuted"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Messages are part of the external contract and must match byte for byte.
const (
	msgViolation   = "CHC: Assertion violation happens here."
	msgMightFail   = "CHC: Assertion violation might happen here."
	msgOutOfBounds = "CHC: Out of bounds access happens here."
	msgOOBMight    = "CHC: Out of bounds access might happen here."
)

// VCResult is the outcome of one verification condition.
type VCResult struct {
	VC      *encoder.VC
	Outcome Outcome
}

// Report is the result of checking one function. Diagnostics cover refuted
// and unknown conditions plus unsupported constructs; proved conditions are
// silent.
type Report struct {
	Function    string
	Results     []VCResult
	Diagnostics []diag.Diagnostic

	Proved      int
	Refuted     int
	Unknown     int
	Unsupported int
}

// Checker drives verification of functions against a solver backend.
type Checker struct {
	cfg Config
	sol solver.Solver
	log *slog.Logger
}

// New creates a checker. A nil logger disables logging.
func New(cfg Config, sol solver.Solver, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{cfg: cfg, sol: sol, log: log}
}

// CheckFunction verifies every assertion in the function. Independent VCs
// run concurrently up to the configured job limit. Cancellation between VCs
// leaves already-finished results valid; conditions not yet checked report
// as Unknown.
func (c *Checker) CheckFunction(ctx context.Context, fn *cfg.Function) (*Report, error) {
	bounds, err := c.cfg.boundsPolicy()
	if err != nil {
		return nil, err
	}

	enc, err := encoder.Encode(fn, encoder.Options{Bounds: bounds, MaxUnroll: c.cfg.MaxUnroll})
	if err != nil {
		return nil, err
	}

	report := &Report{Function: fn.Name}

	for _, f := range enc.Findings {
		report.Unsupported++
		report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
			Stage:    diag.StageEncoder,
			Severity: diag.SeverityWarning,
			Code:     f.Code,
			Message:  f.Message,
			Span:     f.Span,
		})
	}

	results := make([]VCResult, len(enc.VCs))
	details := make([]string, len(enc.VCs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Jobs)
	for i := range enc.VCs {
		i := i
		vc := &enc.VCs[i]
		g.Go(func() error {
			results[i] = VCResult{VC: vc, Outcome: Unknown}
			if gctx.Err() != nil {
				return nil
			}

			c.log.Debug("checking verification condition",
				"function", fn.Name, "vc", vc.ID, "point", vc.Point.String())

			res, err := solver.CheckWithRetry(gctx, c.sol, vc.Constraints(), time.Duration(c.cfg.Timeout))
			if err != nil {
				c.log.Warn("solver failed, downgrading to unknown",
					"function", fn.Name, "vc", vc.ID, "error", err)
				return nil
			}

			switch res.Verdict {
			case solver.Unsat:
				results[i].Outcome = Proved
			case solver.Sat:
				trace, err := cex.Extract(enc.Function, enc.Entry, vc, res.Model)
				if err != nil {
					c.log.Warn("counterexample extraction failed, downgrading to unknown",
						"function", fn.Name, "vc", vc.ID, "error", err)
					return nil
				}
				results[i].Outcome = Refuted
				details[i] = cex.Render(trace)
			case solver.Unknown:
				// Already the default.
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range results {
		r := results[i]
		report.Results = append(report.Results, r)
		switch r.Outcome {
		case Proved:
			report.Proved++
		case Refuted:
			report.Refuted++
			report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
				Stage:    diag.StageChecker,
				Severity: diag.SeverityWarning,
				Code:     refutedCode(r.VC.Kind),
				Message:  refutedMessage(r.VC.Kind),
				Span:     r.VC.Span,
				Detail:   details[i],
			})
		case Unknown:
			report.Unknown++
			report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
				Stage:    diag.StageChecker,
				Severity: diag.SeverityWarning,
				Code:     diag.CodeAssertionMightFail,
				Message:  unknownMessage(r.VC.Kind),
				Span:     r.VC.Span,
			})
		}
	}

	c.log.Info("function checked",
		"function", fn.Name,
		"proved", report.Proved,
		"refuted", report.Refuted,
		"unknown", report.Unknown,
		"unsupported", report.Unsupported)

	return report, nil
}

func refutedCode(kind encoder.Kind) diag.Code {
	if kind == encoder.KindBounds {
		return diag.CodeOutOfBoundsAccess
	}
	return diag.CodeAssertionViolation
}

func refutedMessage(kind encoder.Kind) string {
	if kind == encoder.KindBounds {
		return msgOutOfBounds
	}
	return msgViolation
}

func unknownMessage(kind encoder.Kind) string {
	if kind == encoder.KindBounds {
		return msgOOBMight
	}
	return msgMightFail
}
