package pickletest

// DefaultFile is the filename stamped on nodes built by Node.
const DefaultFile = "game/script.rpy"

// Node builds a renpy.ast statement at line with the given attributes.
func Node(class string, line int, attrs ...KV) *Obj {
	o := &Obj{Module: "renpy.ast", Name: class}
	o.Set("filename", DefaultFile)
	o.Set("linenumber", line)
	for _, kv := range attrs {
		o.Set(kv.K.(string), kv.V)
	}
	return o
}

// Lowered builds a low-level control-flow record.
func Lowered(class string, line int, attrs ...KV) *Obj {
	o := Node(class, line, attrs...)
	o.Module = "renpy.lowered"
	return o
}

// Expr builds a renpy.ast.PyExpr the way the engine pickles it.
func Expr(src string, line int) *Obj {
	return &Obj{Module: "renpy.ast", Name: "PyExpr", Args: []any{src, DefaultFile, line}}
}

// Code builds a renpy.ast.PyCode with a 4-tuple state.
func Code(src string, line int) *Obj {
	return &Obj{
		Module: "renpy.ast",
		Name:   "PyCode",
		State:  Tuple{1, src, Tuple{DefaultFile, line}, "exec"},
	}
}

// Script pickles the (data, statements) pair stored in slot 1.
func Script(data Dict, stmts ...any) []byte {
	if data == nil {
		data = Dict{{"version", 5003000}, {"key", "unlocked"}}
	}
	return Dumps(Tuple{data, List(stmts)})
}

// File pickles stmts and wraps them into a container.
func File(stmts ...any) []byte {
	return Container(Script(nil, stmts...))
}

// SL builds a renpy.sl2.slast record. Screen language nodes carry a
// (filename, line) location tuple instead of separate attributes.
func SL(class string, line int, attrs ...KV) *Obj {
	o := &Obj{Module: "renpy.sl2.slast", Name: class}
	o.Set("location", Tuple{DefaultFile, line})
	for _, kv := range attrs {
		o.Set(kv.K.(string), kv.V)
	}
	return o
}
