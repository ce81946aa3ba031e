package diag

import "fmt"

// Stage identifies which pipeline phase produced the diagnostic.
type Stage string

const (
	StageContainer   Stage = "container"
	StageDeobfuscate Stage = "deobfuscate"
	StagePickle      Stage = "pickle"
	StageVersion     Stage = "version"
	StageBuild       Stage = "build"
	StageReconstruct Stage = "reconstruct"
	StageEmit        Stage = "emit"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Code is a stable identifier for a diagnostic.
type Code string

const (
	// Fatal for the file.
	CodeFormatMismatch     Code = "FORMAT_MISMATCH"
	CodeUnsupportedVersion Code = "UNSUPPORTED_VERSION"
	CodeIntegrity          Code = "INTEGRITY"

	// Also fatal. The stream is well formed but uses a pickle feature that
	// scripts never need.
	CodeUnsupportedPickleFeature Code = "UNSUPPORTED_PICKLE_FEATURE"

	// Recoverable, the file is still produced.
	CodeUnresolvedObfuscation     Code = "UNRESOLVED_OBFUSCATION"
	CodeSchemaMismatch            Code = "SCHEMA_MISMATCH"
	CodeUnrecognizedControlFlow   Code = "UNRECOGNIZED_CONTROL_FLOW"
	CodeObfuscationRepaired       Code = "OBFUSCATION_REPAIRED"
	CodeContainerSlotOrder        Code = "CONTAINER_SLOT_ORDER"
	CodeUnknownConstruct          Code = "UNKNOWN_CONSTRUCT"
	CodeTranslationMissing        Code = "TRANSLATION_MISSING"
	CodeInitOffsetCompat          Code = "INIT_OFFSET_COMPAT"
	CodeResyncedUnknownOpcode     Code = "RESYNCED_UNKNOWN_OPCODE"
	CodeImplicitInitPriorityShift Code = "IMPLICIT_INIT_PRIORITY_SHIFT"
)

// Fatal reports whether diagnostics with this code abort the file.
func (c Code) Fatal() bool {
	switch c {
	case CodeFormatMismatch, CodeUnsupportedVersion, CodeIntegrity, CodeUnsupportedPickleFeature:
		return true
	}
	return false
}

// Span locates a diagnostic either in the decompiled script (Line) or in the
// compiled container (Offset). Zero values mean "unknown".
type Span struct {
	Filename string
	Line     int
	Offset   int
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	switch {
	case s.Filename != "" && s.Line > 0:
		return fmt.Sprintf("%s:%d", s.Filename, s.Line)
	case s.Filename != "" && s.Offset > 0:
		return fmt.Sprintf("%s@%#x", s.Filename, s.Offset)
	case s.Filename != "":
		return s.Filename
	case s.Line > 0:
		return fmt.Sprintf("line %d", s.Line)
	case s.Offset > 0:
		return fmt.Sprintf("offset %#x", s.Offset)
	}
	return ""
}

// IsValid returns true if the span has any location information.
func (s Span) IsValid() bool {
	return s.Filename != "" || s.Line > 0 || s.Offset > 0
}

// Diagnostic is a decompiler diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Code     Code
	Message  string
	Span     Span
	Notes    []string
	Help     string
}

// New builds a diagnostic with severity derived from the code.
func New(stage Stage, code Code, format string, args ...any) Diagnostic {
	sev := SeverityWarning
	switch {
	case code.Fatal():
		sev = SeverityError
	case code == CodeUnrecognizedControlFlow, code == CodeObfuscationRepaired,
		code == CodeImplicitInitPriorityShift, code == CodeInitOffsetCompat,
		code == CodeContainerSlotOrder:
		sev = SeverityNote
	}
	return Diagnostic{
		Stage:    stage,
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithSpan returns a new diagnostic located at span.
func (d Diagnostic) WithSpan(span Span) Diagnostic {
	d.Span = span
	return d
}

// WithNote adds a note to the diagnostic.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// WithHelp adds help text to the diagnostic.
func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

// WithSeverity overrides the code-derived severity.
func (d Diagnostic) WithSeverity(sev Severity) Diagnostic {
	d.Severity = sev
	return d
}

// String renders the one-line header form, `severity[CODE]: message`.
func (d Diagnostic) String() string {
	severity := string(d.Severity)
	if severity == "" {
		severity = "error"
	}
	var head string
	if d.Code != "" {
		head = fmt.Sprintf("%s[%s]: %s", severity, d.Code, d.Message)
	} else {
		head = fmt.Sprintf("%s: %s", severity, d.Message)
	}
	if d.Span.IsValid() {
		head += " (" + d.Span.String() + ")"
	}
	return head
}
