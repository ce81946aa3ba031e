// Package pysrc splits embedded Python source into logical lines so the
// emitter can re-indent it without breaking strings or bracketed expressions.
package pysrc

import "strings"

// scanner walks Python source one rune at a time, tracking bracket depth.
type scanner struct {
	input []rune
	pos   int // index of the current rune
	depth int // open brackets
}

func newScanner(src string) *scanner {
	return &scanner{input: []rune(src)}
}

func (s *scanner) eof() bool { return s.pos >= len(s.input) }

func (s *scanner) ch() rune {
	if s.eof() {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) peekAt(off int) rune {
	if s.pos+off >= len(s.input) {
		return 0
	}
	return s.input[s.pos+off]
}

// Lines splits src into logical lines. A newline ends a logical line unless
// it sits inside brackets, inside a string, or right after a backslash. The
// newline itself is not part of the line; blank lines come back as "".
func Lines(src string) []string {
	s := newScanner(src)
	var lines []string
	start := 0
	for !s.eof() {
		c := s.ch()
		switch {
		case c == '\n':
			if s.depth == 0 && (s.pos == 0 || s.input[s.pos-1] != '\\') {
				lines = append(lines, string(s.input[start:s.pos]))
				s.pos++
				start = s.pos
				continue
			}
			s.pos++
		case c == '(' || c == '[' || c == '{':
			s.depth++
			s.pos++
		case c == ')' || c == ']' || c == '}':
			if s.depth > 0 {
				s.depth--
			}
			s.pos++
		case c == '#':
			s.skipComment()
		case s.atString():
			s.skipString()
		default:
			s.pos++
		}
	}
	return append(lines, string(s.input[start:]))
}

func (s *scanner) skipComment() {
	for !s.eof() && s.ch() != '\n' {
		s.pos++
	}
}

// atString reports whether a string literal, with an optional prefix such
// as r, b, u, f or a two letter combination, starts at the current rune.
func (s *scanner) atString() bool {
	return s.prefixLen() >= 0
}

// prefixLen returns the length of the string prefix at pos, or -1 when no
// string literal starts here.
func (s *scanner) prefixLen() int {
	if s.pos > 0 && isWordRune(s.input[s.pos-1]) {
		return -1
	}
	for n := 0; n <= 2; n++ {
		c := s.peekAt(n)
		if c == '"' || c == '\'' {
			return n
		}
		if !strings.ContainsRune("rRbBuUfF", c) {
			return -1
		}
	}
	return -1
}

// skipString consumes a string literal, single or triple quoted. An
// unterminated literal runs to the end of input.
func (s *scanner) skipString() {
	s.pos += s.prefixLen()
	quote := s.ch()
	triple := s.peekAt(1) == quote && s.peekAt(2) == quote
	if triple {
		s.pos += 3
	} else {
		s.pos++
	}
	for !s.eof() {
		c := s.ch()
		switch {
		case c == '\\':
			s.pos += 2
		case c == quote && !triple:
			s.pos++
			return
		case c == quote && s.peekAt(1) == quote && s.peekAt(2) == quote:
			s.pos += 3
			return
		case c == '\n' && !triple:
			// An unterminated single quoted string ends at the line break.
			return
		default:
			s.pos++
		}
	}
	if s.pos > len(s.input) {
		s.pos = len(s.input)
	}
}

func isWordRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 0x7f
}
