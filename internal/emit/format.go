package emit

import (
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
)

// escapeString escapes s for a double quoted menu caption or translation
// string.
func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return r.Replace(s)
}

// encodeSay quotes dialogue. A space following another space is escaped,
// since the engine collapses runs of whitespace in dialogue.
func encodeSay(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	prev := rune(0)
	for _, c := range s {
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '"':
			b.WriteString(`\"`)
		case c == ' ' && prev == ' ':
			b.WriteString(`\ `)
		default:
			b.WriteRune(c)
		}
		prev = c
	}
	b.WriteByte('"')
	return b.String()
}

// formatParams renders a parameter list, inserting the "/" and "*" markers
// Python needs between parameter kinds.
func formatParams(ps *ast.Params) string {
	if ps == nil {
		return ""
	}
	var parts []string
	posOnly, starred := false, false
	for _, p := range ps.List {
		if posOnly && p.Kind != ast.PositionalOnly {
			parts = append(parts, "/")
			posOnly = false
		}
		switch p.Kind {
		case ast.PositionalOnly:
			posOnly = true
			parts = append(parts, formatParam(p))
		case ast.VarPositional:
			starred = true
			parts = append(parts, "*"+p.Name)
		case ast.KeywordOnly:
			if !starred {
				parts = append(parts, "*")
				starred = true
			}
			parts = append(parts, formatParam(p))
		case ast.VarKeyword:
			parts = append(parts, "**"+p.Name)
		default:
			parts = append(parts, formatParam(p))
		}
	}
	if posOnly {
		parts = append(parts, "/")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatParam(p ast.Param) string {
	if p.HasDefault {
		return p.Name + "=" + p.Default
	}
	return p.Name
}

func formatArgs(as *ast.Args) string {
	if as == nil {
		return ""
	}
	parts := make([]string, 0, len(as.List))
	for _, a := range as.List {
		switch {
		case a.Name != "":
			parts = append(parts, a.Name+"="+a.Value)
		case a.Star == 1:
			parts = append(parts, "*"+a.Value)
		case a.Star == 2:
			parts = append(parts, "**"+a.Value)
		default:
			parts = append(parts, a.Value)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// joinWords joins the non-empty words with spaces, with a leading space when
// lead is set. It also reports whether a following word needs a separating
// space.
func joinWords(lead bool, words ...string) (string, bool) {
	kept := words[:0:0]
	for _, w := range words {
		if w != "" {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return "", lead
	}
	s := strings.Join(kept, " ")
	if lead {
		s = " " + s
	}
	return s, !strings.HasSuffix(s, " ")
}

// storePrefix returns "name." for a named store, or "" for the default one.
func storePrefix(store string) string {
	if store == "" || store == "store" {
		return ""
	}
	return strings.TrimPrefix(store, "store.") + "."
}
