package diag

import (
	"fmt"
	"sort"
)

// Reporter collects diagnostics while a single file moves through the pipeline.
type Reporter struct {
	filename    string
	diagnostics []Diagnostic
}

// NewReporter creates a reporter whose diagnostics default to filename.
func NewReporter(filename string) *Reporter {
	return &Reporter{
		filename:    filename,
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add records d, filling in the reporter's filename when d has none.
func (r *Reporter) Add(d Diagnostic) {
	if r == nil {
		return
	}
	if d.Span.Filename == "" {
		d.Span.Filename = r.filename
	}
	r.diagnostics = append(r.diagnostics, d)
}

// Report builds and records a diagnostic at line.
func (r *Reporter) Report(stage Stage, code Code, line int, format string, args ...any) {
	r.Add(New(stage, code, format, args...).WithSpan(Span{Line: line}))
}

// Warning records a warning regardless of the code's default severity.
func (r *Reporter) Warning(stage Stage, code Code, line int, format string, args ...any) {
	r.Add(New(stage, code, format, args...).WithSpan(Span{Line: line}).WithSeverity(SeverityWarning))
}

// Note records an informational diagnostic.
func (r *Reporter) Note(stage Stage, code Code, line int, format string, args ...any) {
	r.Add(New(stage, code, format, args...).WithSpan(Span{Line: line}).WithSeverity(SeverityNote))
}

// Merge appends every diagnostic of ds.
func (r *Reporter) Merge(ds []Diagnostic) {
	for _, d := range ds {
		r.Add(d)
	}
}

// Diagnostics returns all collected diagnostics, sorted by stage order then line.
func (r *Reporter) Diagnostics() []Diagnostic {
	if r == nil {
		return nil
	}
	sorted := make([]Diagnostic, len(r.diagnostics))
	copy(sorted, r.diagnostics)

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := stageRank(sorted[i].Stage), stageRank(sorted[j].Stage)
		if si != sj {
			return si < sj
		}
		return sorted[i].Span.Line < sorted[j].Span.Line
	})

	return sorted
}

// Count returns how many diagnostics have the given code.
func (r *Reporter) Count(code Code) int {
	n := 0
	for _, d := range r.diagnostics {
		if d.Code == code {
			n++
		}
	}
	return n
}

// HasErrors returns true if any error-severity diagnostics have been reported.
func (r *Reporter) HasErrors() bool {
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Incomplete reports whether the output may be missing content, i.e. an
// obfuscation pattern was left unresolved or a record fell back to an unknown
// construct.
func (r *Reporter) Incomplete() bool {
	return r.Count(CodeUnresolvedObfuscation) > 0 || r.Count(CodeSchemaMismatch) > 0
}

func (r *Reporter) String() string {
	return fmt.Sprintf("%s: %d diagnostics", r.filename, len(r.diagnostics))
}

var stageOrder = []Stage{
	StageContainer, StageDeobfuscate, StagePickle, StageVersion,
	StageBuild, StageReconstruct, StageEmit,
}

func stageRank(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return len(stageOrder)
}
