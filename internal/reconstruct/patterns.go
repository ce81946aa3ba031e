package reconstruct

import "github.com/jiang0681/unrpyc/internal/ast"

func synthJump(s ast.Stmt) (string, bool) {
	if j, ok := s.(*ast.Jump); ok && j.Synthetic {
		return j.Target, true
	}
	return "", false
}

func isSynthLabel(s ast.Stmt, name string) bool {
	l, ok := s.(*ast.Label)
	return ok && l.Synthetic && l.Name == name
}

// findLabel returns the index of the synthetic label name in stmts at or after
// from, or -1.
func findLabel(stmts []ast.Stmt, from int, name string) int {
	for k := from; k < len(stmts); k++ {
		if isSynthLabel(stmts[k], name) {
			return k
		}
	}
	return -1
}

// foldWhile recognizes
//
//	Label(T) LoopHeader(cond, X) body Jump(T) Label(X)
func (r *reconstructor) foldWhile(stmts []ast.Stmt, i int, top *ast.Label, h *ast.LoopHeader) (ast.Stmt, int, bool) {
	for j := i + 2; j+1 < len(stmts); j++ {
		t, ok := synthJump(stmts[j])
		if !ok || t != top.Name || !isSynthLabel(stmts[j+1], h.Target) {
			continue
		}
		if r.refs[top.Name] != 1 || r.refs[h.Target] != 1 {
			r.unrecognized(h, "loop at line %d: labels %q/%q are referenced from outside the loop",
				h.Line, top.Name, h.Target)
			return nil, 0, false
		}
		return &ast.While{
			Location: h.Location,
			Cond:     h.Cond,
			Block:    r.block(stmts[i+2 : j]),
		}, j + 2, true
	}
	r.unrecognized(h, "loop at line %d: no jump back to %q followed by %q", h.Line, top.Name, h.Target)
	return nil, 0, false
}

// foldIf recognizes
//
//	CondHeader(c1, L1) body1 Jump(E) Label(L1)
//	CondHeader(c2, L2) body2 Jump(E) Label(L2)
//	else-body Label(E)
//
// where the last arm may instead jump straight to Label(E).
func (r *reconstructor) foldIf(stmts []ast.Stmt, i int) (ast.Stmt, int, bool) {
	first := stmts[i].(*ast.CondHeader)
	var (
		arms       []ast.IfArm
		armLabels  []string
		elseBody   []ast.Stmt
		end        string
		jumps      int
		headerEnds bool
		next       int
	)
	fail := func(format string, args ...any) (ast.Stmt, int, bool) {
		r.unrecognized(first, "conditional at line %d: "+format, append([]any{first.Line}, args...)...)
		return nil, 0, false
	}

	pos := i
	for {
		h := stmts[pos].(*ast.CondHeader)
		k := findLabel(stmts, pos+1, h.Target)
		if k < 0 {
			return fail("label %q is not in the same block", h.Target)
		}
		body := stmts[pos+1 : k]

		if n := len(body); n > 0 {
			if t, ok := synthJump(body[n-1]); ok && t != h.Target && (end == "" || t == end) {
				end = t
				jumps++
				arms = append(arms, ast.IfArm{Cond: h.Cond, Block: body[:n-1]})
				armLabels = append(armLabels, h.Target)
				pos = k + 1
				if pos < len(stmts) {
					if _, ok := stmts[pos].(*ast.CondHeader); ok {
						continue
					}
				}
				m := findLabel(stmts, pos, end)
				if m < 0 {
					return fail("end label %q is not in the same block", end)
				}
				elseBody = stmts[pos:m]
				next = m + 1
				break
			}
		}

		// The last arm falls through to the end label.
		if end != "" && h.Target != end {
			return fail("arm at line %d skips to %q instead of %q", h.Line, h.Target, end)
		}
		end = h.Target
		headerEnds = true
		arms = append(arms, ast.IfArm{Cond: h.Cond, Block: body})
		next = k + 1
		break
	}

	for _, l := range armLabels {
		if r.refs[l] != 1 {
			return fail("label %q is referenced from outside the conditional", l)
		}
	}
	want := jumps
	if headerEnds {
		want++
	}
	if r.refs[end] != want {
		return fail("end label %q is referenced from outside the conditional", end)
	}

	n := &ast.If{Location: first.Location}
	for _, a := range arms {
		n.Arms = append(n.Arms, ast.IfArm{Cond: a.Cond, Block: r.block(a.Block)})
	}
	if len(elseBody) > 0 {
		n.Else = r.block(elseBody)
	}
	return n, next, true
}

// foldMenu recognizes a lowered menu followed by its choice bodies:
//
//	Menu Label(t1) body1 Jump(E) Label(t2) body2 [Jump(E)] Label(E)
func (r *reconstructor) foldMenu(stmts []ast.Stmt, i int, m *ast.Menu) (ast.Stmt, int, bool) {
	fail := func(format string, args ...any) (ast.Stmt, int, bool) {
		r.unrecognized(m, "menu at line %d: "+format, append([]any{m.Line}, args...)...)
		return nil, 0, false
	}

	var targets []*ast.MenuChoice
	for _, c := range m.Choices {
		if !c.IsCaption {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		m.Lowered = false
		return m, i + 1, true
	}

	bodies := make([][]ast.Stmt, len(targets))
	end := ""
	jumps := 0
	pos := i + 1
	for idx, c := range targets {
		if pos >= len(stmts) || !isSynthLabel(stmts[pos], c.Target) {
			return fail("body of choice %q does not follow", c.Caption)
		}
		start := pos + 1

		switch {
		case idx+1 < len(targets):
			stop := findLabel(stmts, start, targets[idx+1].Target)
			if stop < 0 {
				return fail("body of choice %q does not follow", targets[idx+1].Caption)
			}
			body := stmts[start:stop]
			if len(body) == 0 {
				return fail("choice %q falls through", c.Caption)
			}
			t, ok := synthJump(body[len(body)-1])
			if !ok || (end != "" && t != end) {
				return fail("choice %q does not leave the menu", c.Caption)
			}
			end = t
			jumps++
			bodies[idx] = body[:len(body)-1]
			pos = stop

		case end != "":
			stop := findLabel(stmts, start, end)
			if stop < 0 {
				return fail("end label %q is not in the same block", end)
			}
			body := stmts[start:stop]
			if n := len(body); n > 0 {
				if t, ok := synthJump(body[n-1]); ok && t == end {
					jumps++
					body = body[:n-1]
				}
			}
			bodies[idx] = body
			pos = stop + 1

		default:
			// A single choice: its body ends at the first jump onto the label
			// right behind it.
			for q := start; q+1 < len(stmts); q++ {
				if t, ok := synthJump(stmts[q]); ok && isSynthLabel(stmts[q+1], t) {
					end = t
					jumps = 1
					bodies[idx] = stmts[start:q]
					pos = q + 2
					break
				}
			}
			if end == "" {
				return fail("choice %q does not leave the menu", c.Caption)
			}
		}
	}

	for _, c := range targets {
		if r.refs[c.Target] != 1 {
			return fail("label %q is referenced from outside the menu", c.Target)
		}
	}
	if r.refs[end] != jumps {
		return fail("end label %q is referenced from outside the menu", end)
	}

	for idx, c := range targets {
		c.Block = r.block(bodies[idx])
		c.Target = ""
	}
	m.Lowered = false
	return m, pos, true
}

// foldTranslate groups a lowered translation header with the statements up to
// its EndTranslate. A nested translation block only loses the end marker.
func (r *reconstructor) foldTranslate(stmts []ast.Stmt, i int, n *ast.TranslationBlock) (ast.Stmt, int, bool) {
	if !n.Lowered {
		n.Block = r.block(n.Block)
		if i+1 < len(stmts) {
			if _, ok := stmts[i+1].(*ast.EndTranslate); ok {
				return n, i + 2, true
			}
		}
		return n, i + 1, true
	}
	for k := i + 1; k < len(stmts); k++ {
		if _, ok := stmts[k].(*ast.EndTranslate); ok {
			n.Block = r.block(stmts[i+1 : k])
			n.Lowered = false
			return n, k + 1, true
		}
	}
	r.unrecognized(n, "translation %q at line %d has no end marker", n.Identifier, n.Line)
	return nil, 0, false
}
