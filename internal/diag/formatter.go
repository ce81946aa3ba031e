package diag

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Formatter renders diagnostics as `severity[CODE]: message` blocks.
type Formatter struct {
	// Color wraps the severity in ANSI escapes.
	Color bool
}

// NewFormatter creates a new diagnostic formatter.
func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Format writes d to w.
func (f *Formatter) Format(w io.Writer, d Diagnostic) {
	fmt.Fprint(w, f.header(d))
	fmt.Fprintln(w)
	if d.Span.IsValid() {
		fmt.Fprintf(w, "  --> %s\n", d.Span.String())
	}
	for _, note := range d.Notes {
		fmt.Fprintf(w, "  = note: %s\n", note)
	}
	if d.Help != "" {
		fmt.Fprintf(w, "help: %s\n", d.Help)
	}
}

// Log writes d through logger as a single line.
func (f *Formatter) Log(logger *log.Logger, d Diagnostic) {
	var b strings.Builder
	b.WriteString(f.header(d))
	if d.Span.IsValid() {
		b.WriteString(" at ")
		b.WriteString(d.Span.String())
	}
	for _, note := range d.Notes {
		b.WriteString("; ")
		b.WriteString(note)
	}
	logger.Print(b.String())
}

func (f *Formatter) header(d Diagnostic) string {
	severity := string(d.Severity)
	if severity == "" {
		severity = "error"
	}
	if f.Color {
		switch d.Severity {
		case SeverityWarning:
			severity = ansiYellow + severity + ansiReset
		case SeverityNote:
			severity = ansiCyan + severity + ansiReset
		default:
			severity = ansiRed + severity + ansiReset
		}
	}
	if d.Code != "" {
		return fmt.Sprintf("%s[%s]: %s", severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", severity, d.Message)
}
