// Package build maps normalized pickle records onto script AST nodes.
//
// Each record is built on its own: a record whose layout does not match the
// schema becomes an ast.Unknown with a diagnostic, and the rest of the file
// is unaffected.
package build

import (
	"fmt"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/schema"
)

// Result is the outcome of building one record: always a node, plus a
// diagnostic when the node is a fallback.
type Result struct {
	Node ast.Stmt
	Diag *diag.Diagnostic
}

type constructor func(r *record) ast.Stmt

// constructors is total over the statement kinds of every schema table. It is
// filled in init because block constructors recurse through Builder.Record.
var constructors map[schema.Kind]constructor

func init() {
	constructors = map[schema.Kind]constructor{
		schema.Label:           buildLabel,
		schema.Jump:            buildJump,
		schema.Call:            buildCall,
		schema.Return:          buildReturn,
		schema.Pass:            buildPass,
		schema.If:              buildIf,
		schema.While:           buildWhile,
		schema.Say:             buildSay,
		schema.Menu:            buildMenu,
		schema.UserStatement:   buildUserStatement,
		schema.Translate:       buildTranslate,
		schema.EndTranslate:    buildEndTranslate,
		schema.TranslateString: buildTranslateString,
		schema.TranslateBlock:  buildTranslateBlock,
		schema.TranslateEarly:  buildTranslateBlock,
		schema.Python:          buildPython,
		schema.EarlyPython:     buildPython,
		schema.Define:          buildDefine,
		schema.Default:         buildDefault,
		schema.Init:            buildInit,
		schema.Show:            buildShow,
		schema.Scene:           buildScene,
		schema.Hide:            buildHide,
		schema.With:            buildWith,
		schema.Image:           buildImage,
		schema.Transform:       buildTransform,
		schema.Style:           buildStyle,
		schema.ShowLayer:       buildShowLayer,
		schema.Camera:          buildCamera,
		schema.RPY:             buildRPY,
		schema.Screen:          buildScreen,
		schema.Testcase:        buildTestcase,

		schema.LoweredLabel:     buildLoweredLabel,
		schema.LoweredJump:      buildLoweredJump,
		schema.CondJump:         buildCondJump,
		schema.LoopJump:         buildLoopJump,
		schema.LoweredMenu:      buildLoweredMenu,
		schema.LoweredTranslate: buildLoweredTranslate,
	}
}

// Supports reports whether k has a constructor.
func Supports(k schema.Kind) bool {
	_, ok := constructors[k]
	return ok
}

// Builder turns the statement records of one file into nodes.
type Builder struct {
	schema *schema.Schema
	memo   *pickle.Memo
	rep    *diag.Reporter
}

// New returns a builder. memo may be nil, in which case locations carry no
// reference ids.
func New(s *schema.Schema, memo *pickle.Memo, rep *diag.Reporter) *Builder {
	return &Builder{schema: s, memo: memo, rep: rep}
}

// Script builds the top level statement list.
func (b *Builder) Script(filename string, stmts []pickle.Value) *ast.Script {
	return &ast.Script{Filename: filename, Stmts: b.Block(stmts)}
}

// Block builds every record of a block, reporting fallbacks.
func (b *Builder) Block(records []pickle.Value) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(records))
	for _, v := range records {
		res := b.Record(v)
		if res.Diag != nil && b.rep != nil {
			b.rep.Add(*res.Diag)
		}
		out = append(out, res.Node)
	}
	return out
}

// Record builds a single statement record.
func (b *Builder) Record(v pickle.Value) Result {
	o, ok := v.(*pickle.Object)
	if !ok {
		return b.unknown(ast.Location{Ref: ast.NoRef}, fmt.Sprintf("%T", v), v,
			diag.CodeUnknownConstruct, "statement is a %T, not a record", v)
	}
	r := &record{b: b, o: o}
	loc := r.location()
	tag := o.Class.String()

	if o.Opaque {
		return b.unknown(loc, tag, v, diag.CodeUnknownConstruct, "unknown record %s", tag)
	}
	kind, ok := b.schema.Table.KindOf(o.Class)
	if !ok || !kind.IsStatement() {
		return b.unknown(loc, tag, v, diag.CodeUnknownConstruct, "%s is not a statement", tag)
	}
	ctor, ok := constructors[kind]
	if !ok {
		return b.unknown(loc, tag, v, diag.CodeUnknownConstruct, "no constructor for %s", kind)
	}

	r.kind = kind
	r.loc = loc
	node := ctor(r)
	if r.err != nil {
		return b.unknown(loc, tag, v, diag.CodeSchemaMismatch, "%s: %v", tag, r.err)
	}
	return Result{Node: node}
}

func (b *Builder) unknown(loc ast.Location, tag string, raw pickle.Value, code diag.Code, format string, args ...any) Result {
	d := diag.New(diag.StageBuild, code, format, args...).WithSpan(diag.Span{Line: loc.Line})
	return Result{
		Node: &ast.Unknown{Location: loc, Tag: tag, Reason: d.Message, Raw: raw},
		Diag: &d,
	}
}
