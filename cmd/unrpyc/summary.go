package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// colorEnabled reports whether w is a terminal that should get ANSI colour.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type summary struct {
	total             int
	ok                int
	skipped           int
	badHeader         int
	unsupported       int
	errors            int
	incomplete        int
	translationErrors int
}

func summarize(results []*fileResult, translationErrors int) summary {
	s := summary{total: len(results), translationErrors: translationErrors}
	for _, r := range results {
		switch r.State {
		case stateOK:
			s.ok++
			if r.Incomplete {
				s.incomplete++
			}
		case stateSkip:
			s.skipped++
		case stateBadHeader:
			s.badHeader++
		case stateUnsupported:
			s.unsupported++
		default:
			s.errors++
		}
	}
	return s
}

// failed decides the exit status.
func (s summary) failed() bool {
	return s.badHeader+s.unsupported+s.errors > 0
}

func (s summary) print(w io.Writer, color bool) {
	paint := func(code, text string) string {
		if !color {
			return text
		}
		return code + text + ansiReset
	}
	rule := strings.Repeat("-", 55)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "unrpyc %s results summary:\n", version)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Processed %s.\n", plural(s.total, "file"))
	fmt.Fprintln(w, paint(ansiGreen, fmt.Sprintf("> %s successfully decompiled.", plural(s.ok, "file"))))

	if s.incomplete > 0 {
		fmt.Fprintln(w, paint(ansiYellow, fmt.Sprintf("> %s may be incomplete because of unresolved obfuscation or unknown constructs.", plural(s.incomplete, "file"))))
	}
	if s.badHeader > 0 {
		fmt.Fprintln(w, paint(ansiRed, fmt.Sprintf("> %s did not have the correct header, these were ignored.", plural(s.badHeader, "file"))))
	}
	if s.unsupported > 0 {
		fmt.Fprintln(w, paint(ansiRed, fmt.Sprintf("> %s were compiled by an unsupported Ren'Py version.", plural(s.unsupported, "file"))))
	}
	if s.errors > 0 {
		fmt.Fprintln(w, paint(ansiRed, fmt.Sprintf("> %s failed to decompile due to errors.", plural(s.errors, "file"))))
	}
	if s.skipped > 0 {
		fmt.Fprintln(w, paint(ansiYellow, fmt.Sprintf("> %s were skipped as the output file already existed.", plural(s.skipped, "file"))))
	}
	if s.translationErrors > 0 {
		fmt.Fprintln(w, paint(ansiRed, fmt.Sprintf("> %s failed translation extraction.", plural(s.translationErrors, "file"))))
	}

	if s.skipped > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "To overwrite existing files instead of skipping them, use the --clobber flag.")
	}
	if s.badHeader > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "To try to bypass modifications to the file header, use the --try-harder flag.")
	}
	if s.errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors were encountered during decompilation. Check the log for more information.")
		fmt.Fprintln(w, "When making a bug report, please include this entire log.")
	}
}
