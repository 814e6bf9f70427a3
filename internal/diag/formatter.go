package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Formatter renders diagnostics as plain text. The output is part of the
// external contract consumed by existing tooling, so it must be byte-stable:
// same diagnostics in, same bytes out.
type Formatter struct {
	w io.Writer
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// Format writes a single diagnostic.
//
// Header shape: `Warning 6328: (120-133): CHC: Assertion violation happens here.`
// followed by the verbatim detail block, if any.
func (f *Formatter) Format(d Diagnostic) error {
	if err := f.printHeader(d); err != nil {
		return err
	}
	if d.Detail != "" {
		if _, err := io.WriteString(f.w, d.Detail); err != nil {
			return err
		}
		if !strings.HasSuffix(d.Detail, "\n") {
			if _, err := io.WriteString(f.w, "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatAll writes diagnostics in a canonical order: by source start offset,
// then by code, separated by a blank line.
func (f *Formatter) FormatAll(diags []Diagnostic) error {
	sorted := make([]Diagnostic, len(diags))
	copy(sorted, diags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Code < sorted[j].Code
	})

	for i, d := range sorted {
		if i > 0 {
			if _, err := io.WriteString(f.w, "\n"); err != nil {
				return err
			}
		}
		if err := f.Format(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) printHeader(d Diagnostic) error {
	severity := d.Severity
	if severity == "" {
		severity = SeverityWarning
	}
	label := strings.ToUpper(string(severity[0])) + string(severity[1:])

	var err error
	if d.Span.End > d.Span.Start {
		_, err = fmt.Fprintf(f.w, "%s %d: (%d-%d): %s\n", label, d.Code, d.Span.Start, d.Span.End, d.Message)
	} else {
		_, err = fmt.Fprintf(f.w, "%s %d: %s\n", label, d.Code, d.Message)
	}
	return err
}
