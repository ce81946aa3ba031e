// Package emit prints a reconstructed script as Ren'Py source.
//
// The printer tries to put every statement on the line it came from by
// inserting blank lines, so error messages from the engine keep pointing at
// the right place in the decompiled file.
package emit

import (
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/translate"
)

// Trailer is appended to every emitted file.
const Trailer = "# Decompiled by unrpyc: https://github.com/CensoredUsername/unrpyc"

// Options controls the printer.
type Options struct {
	// Indentation is one level of indentation. Empty means four spaces.
	Indentation string
	// Translator replaces menu captions with their translation.
	Translator *translate.Translator
	// UnknownComments prints unknown constructs as "# unrpyc:" comments.
	UnknownComments bool
	// InitOffset enables "init offset" inference. Callers resolve it against
	// the script version first.
	InitOffset bool
	// Displayables names user defined screen displayables by class name.
	Displayables map[string]Displayable
}

// DefaultOptions returns the options the command line uses by default.
func DefaultOptions() Options {
	return Options{Indentation: "    ", UnknownComments: true}
}

// Text prints s and returns the source.
func Text(s *ast.Script, opts Options) string {
	if opts.Indentation == "" {
		opts.Indentation = "    "
	}
	p := &printer{
		opts:       opts,
		out:        &strings.Builder{},
		line:       1,
		skipIndent: true,
	}
	if opts.InitOffset {
		p.setBestInitOffset(s.Stmts)
	}
	p.printNodes(s.Stmts, 0)
	p.write("\n" + Trailer + "\n")
	return p.out.String()
}

// Emit prints s and returns its lines.
func Emit(s *ast.Script, opts Options) []string {
	return strings.Split(strings.TrimSuffix(Text(s, opts), "\n"), "\n")
}

type frame struct {
	block []ast.Stmt
	index int
}

type printer struct {
	opts Options
	out  *strings.Builder

	line       int
	level      int
	skipIndent bool
	frames     []frame
	// queue holds actions waiting for a gap of blank lines. An action
	// returning true stays queued.
	queue []func(line int) bool

	pairedWith      string
	pairedUsed      bool
	sayInsideMenu   *ast.Say
	labelInsideMenu *ast.Label
	inInit          bool
	missingInit     bool
	initOffset      int
	mostBehind      int
	lastBehind      int
}

// write appends s, keeping the line count.
func (p *printer) write(s string) {
	p.line += strings.Count(s, "\n")
	p.skipIndent = false
	p.out.WriteString(s)
}

// indent starts a new line at the current level.
func (p *printer) indent() {
	if !p.skipIndent {
		p.write("\n" + strings.Repeat(p.opts.Indentation, p.level))
	}
}

func (p *printer) writeLines(lines []string) {
	for _, l := range lines {
		if l == "" {
			p.write("\n")
			continue
		}
		p.indent()
		p.write(l)
	}
}

// advanceToLine pads the output so the next indent lands on line.
func (p *printer) advanceToLine(line int) {
	behind := p.line - line
	if !p.skipIndent {
		behind++
	}
	p.lastBehind = max(behind, 0)
	p.mostBehind = max(p.lastBehind, p.mostBehind)

	var keep []func(int) bool
	for _, f := range p.queue {
		if f(line) {
			keep = append(keep, f)
		}
	}
	p.queue = keep

	if p.line < line {
		// The empty write still clears skipIndent.
		p.write(strings.Repeat("\n", line-p.line-1))
	}
}

func (p *printer) whenBlankLine(f func(line int) bool) {
	p.queue = append(p.queue, f)
}

func (p *printer) block() []ast.Stmt { return p.frames[len(p.frames)-1].block }

func (p *printer) index() int { return p.frames[len(p.frames)-1].index }

// parent is the statement owning the current block, or nil at top level.
func (p *printer) parent() ast.Stmt {
	if len(p.frames) < 2 {
		return nil
	}
	f := p.frames[len(p.frames)-2]
	return f.block[f.index]
}

// sibling returns the statement off positions away in the current block.
func (p *printer) sibling(off int) ast.Stmt {
	i := p.index() + off
	if b := p.block(); i >= 0 && i < len(b) {
		return b[i]
	}
	return nil
}

func (p *printer) printNodes(stmts []ast.Stmt, extraIndent int) {
	p.level += extraIndent
	p.frames = append(p.frames, frame{block: stmts})
	for i, s := range stmts {
		p.frames[len(p.frames)-1].index = i
		p.printNode(s)
	}
	p.frames = p.frames[:len(p.frames)-1]
	p.level -= extraIndent
}

func (p *printer) printNode(s ast.Stmt) {
	switch s.(type) {
	case *ast.TranslateString, *ast.With, *ast.Label, *ast.Pass, *ast.Return:
		// These advance themselves.
	default:
		p.advanceToLine(s.Loc().Line)
	}

	switch n := s.(type) {
	case *ast.Label:
		p.printLabel(n)
	case *ast.Jump:
		p.printJump(n)
	case *ast.Call:
		p.printCall(n)
	case *ast.Return:
		p.printReturn(n)
	case *ast.Pass:
		p.printPass(n)
	case *ast.If:
		p.printIf(n)
	case *ast.While:
		p.printWhile(n)
	case *ast.CondHeader:
		p.printHeader(n.Cond, n.Target)
	case *ast.LoopHeader:
		p.printHeader(n.Cond, n.Target)
	case *ast.Menu:
		p.printMenu(n)
	case *ast.Say:
		p.printSay(n, false)
	case *ast.UserStatement:
		p.printUserStatement(n)
	case *ast.TranslationBlock:
		p.printTranslate(n)
	case *ast.EndTranslate:
	case *ast.TranslateString:
		p.printTranslateString(n)
	case *ast.TranslateLanguageBlock:
		p.printTranslateLanguageBlock(n)
	case *ast.Python:
		p.printPython(n)
	case *ast.Define:
		p.printDefine(n)
	case *ast.Default:
		p.printDefault(n)
	case *ast.Init:
		p.printInit(n)
	case *ast.Show:
		p.printShow(n)
	case *ast.Scene:
		p.printScene(n)
	case *ast.Hide:
		p.printHide(n)
	case *ast.With:
		p.printWith(n)
	case *ast.Image:
		p.printImage(n)
	case *ast.Transform:
		p.printTransform(n)
	case *ast.Style:
		p.printStyle(n)
	case *ast.ShowLayer:
		p.printShowLayer(n)
	case *ast.Camera:
		p.printCamera(n)
	case *ast.RPY:
		p.indent()
		p.write("rpy python " + n.Rest)
	case *ast.Screen:
		p.printScreen(n)
	case *ast.Testcase:
		p.requireInit()
		p.comment("testcase " + n.Label + " is not decompiled")
	case *ast.Unknown:
		p.printUnknown(n)
	}
}

// comment prints a marker for something the decompiler cannot reproduce. On
// a line already opened by "init N " the marker follows a pass so the line
// still parses.
func (p *printer) comment(text string) {
	if p.skipIndent {
		p.write("pass  # unrpyc: " + text)
		return
	}
	p.indent()
	p.write("# unrpyc: " + text)
}

func (p *printer) printUnknown(n *ast.Unknown) {
	if !p.opts.UnknownComments {
		if p.skipIndent {
			p.write("pass")
		}
		return
	}
	text := "unknown construct " + n.Tag
	if n.Reason != "" {
		text += ": " + n.Reason
	}
	p.comment(text)
}

// snapshot is the printer state saved before a speculative print.
type snapshot struct {
	out             *strings.Builder
	skipIndent      bool
	line            int
	level           int
	frames          []frame
	queue           []func(int) bool
	pairedWith      string
	pairedUsed      bool
	sayInsideMenu   *ast.Say
	labelInsideMenu *ast.Label
	inInit          bool
	missingInit     bool
	mostBehind      int
	lastBehind      int
}

// save starts buffering output so it can be committed or rolled back.
func (p *printer) save() snapshot {
	s := snapshot{
		out:             p.out,
		skipIndent:      p.skipIndent,
		line:            p.line,
		level:           p.level,
		frames:          append([]frame(nil), p.frames...),
		queue:           p.queue,
		pairedWith:      p.pairedWith,
		pairedUsed:      p.pairedUsed,
		sayInsideMenu:   p.sayInsideMenu,
		labelInsideMenu: p.labelInsideMenu,
		inInit:          p.inInit,
		missingInit:     p.missingInit,
		mostBehind:      p.mostBehind,
		lastBehind:      p.lastBehind,
	}
	p.out = &strings.Builder{}
	return s
}

func (p *printer) commit(s snapshot) {
	s.out.WriteString(p.out.String())
	p.out = s.out
}

func (p *printer) rollback(s snapshot) {
	p.out = s.out
	p.skipIndent = s.skipIndent
	p.line = s.line
	p.level = s.level
	p.frames = s.frames
	p.queue = s.queue
	p.pairedWith = s.pairedWith
	p.pairedUsed = s.pairedUsed
	p.sayInsideMenu = s.sayInsideMenu
	p.labelInsideMenu = s.labelInsideMenu
	p.inInit = s.inInit
	p.missingInit = s.missingInit
	p.mostBehind = s.mostBehind
	p.lastBehind = s.lastBehind
}
