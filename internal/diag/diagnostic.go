package diag

import "fmt"

// Stage identifies which verification phase produced the diagnostic.
type Stage string

const (
	StageEncoder Stage = "encoder"
	StageSolver  Stage = "solver"
	StageChecker Stage = "checker"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is a stable numeric identifier for a diagnostic. The numbers are part
// of the external contract: downstream tooling matches on them, so a number
// must never be reused for a different meaning.
type Code int

const (
	// CodeAssertionViolation is emitted when a verification condition is
	// refuted and a concrete counterexample exists.
	CodeAssertionViolation Code = 6328

	// CodeAssertionMightFail is emitted when the solver could neither prove
	// nor disprove a verification condition (timeout, resource limit,
	// "unknown").
	CodeAssertionMightFail Code = 7812

	// CodeOutOfBoundsAccess is emitted when a bounds verification condition
	// is refuted (only under the bounds-check policy).
	CodeOutOfBoundsAccess Code = 6368

	// CodeUnsupportedConstruct is emitted once per construct outside the
	// modeled subset, e.g. a loop beyond the unrolling limit.
	CodeUnsupportedConstruct Code = 8182
)

// Span represents a location in source code. Start and End are byte offsets
// into the original source; Line and Column are 1-based when known.
type Span struct {
	Filename string
	Line     int
	Column   int
	Start    int
	End      int
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsValid returns true if the span has usable location information.
func (s Span) IsValid() bool {
	return s.End > s.Start || (s.Line > 0 && s.Column > 0)
}

// Diagnostic is a verification diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Code     Code
	Message  string
	Span     Span
	// Detail holds the pre-rendered body shown below the header, e.g. a
	// counterexample block. It is already canonicalized by its producer and
	// is emitted verbatim.
	Detail string
}

// WithDetail returns a new diagnostic with the given detail body.
func (d Diagnostic) WithDetail(detail string) Diagnostic {
	d.Detail = detail
	return d
}
