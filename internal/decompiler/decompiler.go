// Package decompiler drives one compiled script through every stage, from raw
// container bytes to source text or a dump.
package decompiler

import (
	"io"
	"log"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/build"
	"github.com/jiang0681/unrpyc/internal/deobf"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/dump"
	"github.com/jiang0681/unrpyc/internal/emit"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/reconstruct"
	"github.com/jiang0681/unrpyc/internal/schema"
	"github.com/jiang0681/unrpyc/internal/translate"
)

// Options configures a single run. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Mode deobf.Mode
	// Preprocessor overrides the one built from Mode. It may be shared
	// between workers.
	Preprocessor *deobf.Preprocessor

	// Dump prints the syntax tree instead of source.
	Dump       bool
	Comparable bool
	NoPyExpr   bool

	// InitOffset allows init offset inference on scripts older than the
	// version threshold. Newer scripts always get it.
	InitOffset      bool
	UnknownComments bool
	Indentation     string

	// Language keeps only this translation language and substitutes the
	// blocks and strings collected in Translator.
	Language   string
	Translator *translate.Translator

	// Displayables names user defined screen displayables by class name.
	Displayables map[string]emit.Displayable

	// Logger receives progress lines and every diagnostic. Nil discards.
	Logger *log.Logger
	Color  bool
}

// DefaultOptions mirrors the command line defaults.
func DefaultOptions() Options {
	return Options{
		Mode:            deobf.ModeDefault,
		InitOffset:      true,
		UnknownComments: true,
		Indentation:     "    ",
	}
}

// Loaded is a script after reconstruction, before printing.
type Loaded struct {
	Script   *ast.Script
	Schema   *schema.Schema
	Findings []deobf.Finding
	Reporter *diag.Reporter
}

// Output is the printed result of one file.
type Output struct {
	Text        string
	Schema      *schema.Schema
	Diagnostics []diag.Diagnostic
	// Incomplete is set when obfuscation was left unresolved or records fell
	// back to unknown constructs.
	Incomplete bool
}

type run struct {
	opts     Options
	filename string
	rep      *diag.Reporter
	logger   *log.Logger
}

func newRun(filename string, opts Options) *run {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &run{opts: opts, filename: filename, rep: diag.NewReporter(filename), logger: logger}
}

// Decompile turns the raw bytes of filename into source text, or a dump when
// opts.Dump is set. Fatal problems come back as *diag.Error.
func Decompile(raw []byte, filename string, opts Options) (*Output, error) {
	r := newRun(filename, opts)
	loaded, err := r.load(raw, reconstruct.Options{Language: opts.Language, Translator: opts.Translator})
	if err != nil {
		r.flush()
		return nil, err
	}

	out := &Output{Schema: loaded.Schema}
	if opts.Dump {
		out.Text = dump.Script(loaded.Script, dump.Options{
			Comparable:  opts.Comparable,
			NoPyExpr:    opts.NoPyExpr,
			Indentation: opts.Indentation,
		})
	} else {
		infer := loaded.Schema.InitOffsetInference(opts.InitOffset)
		if loaded.Schema.Compat() && !opts.InitOffset {
			r.rep.Note(diag.StageEmit, diag.CodeInitOffsetCompat, 0,
				"init offset inference disabled for Ren'Py %s", loaded.Schema.Version)
		}
		out.Text = emit.Text(loaded.Script, emit.Options{
			Indentation:     opts.Indentation,
			Translator:      opts.Translator,
			UnknownComments: opts.UnknownComments,
			InitOffset:      infer,
			Displayables:    opts.Displayables,
		})
		r.noteGuessedDisplayables(loaded.Script)
	}
	out.Diagnostics = r.rep.Diagnostics()
	out.Incomplete = r.rep.Incomplete()
	r.flush()
	return out, nil
}

// LoadScript runs every stage up to and including reconstruction, without a
// translation filter. The translation pass uses it to collect translators.
func LoadScript(raw []byte, filename string, opts Options) (*Loaded, error) {
	r := newRun(filename, opts)
	loaded, err := r.load(raw, reconstruct.Options{})
	r.flush()
	return loaded, err
}

// Translations loads filename and collects its blocks and strings of language.
func Translations(raw []byte, filename, language string, opts Options) (*translate.Translator, error) {
	loaded, err := LoadScript(raw, filename, opts)
	if err != nil {
		return nil, err
	}
	return translate.Collect(loaded.Script, language), nil
}

func (r *run) load(raw []byte, ropts reconstruct.Options) (*Loaded, error) {
	p := r.opts.Preprocessor
	if p == nil {
		p = deobf.New(r.opts.Mode)
	}
	r.logger.Printf("decompiling %s (%s)", r.filename, p.Mode())

	ex, err := p.Extract(raw)
	if err != nil {
		return nil, err
	}
	findings := append([]deobf.Finding(nil), ex.Findings...)
	for _, f := range ex.Findings {
		r.rep.Add(f.Diagnostic())
	}
	if ex.Strategy != "slot" {
		r.logger.Printf("recovered script stream with %s", ex.Strategy)
	}

	// The class registry depends on the pickle flavour, which is known
	// before the stream is loaded.
	family := schema.FamilyRenPy8
	if pickle.DetectPython2(ex.Stream) {
		family = schema.FamilyRenPy7
	}
	res, err := pickle.Load(ex.Stream,
		pickle.WithRegistry(schema.TableFor(family).Registry()),
		pickle.WithResync(p.Resync()))
	if err != nil {
		return nil, err
	}
	for _, off := range res.Resynced {
		r.rep.Add(diag.New(diag.StagePickle, diag.CodeResyncedUnknownOpcode,
			"skipped unknown opcode").WithSpan(diag.Span{Offset: off}))
	}

	s, err := schema.Detect(schema.HeaderOf(ex.Kind, res))
	if err != nil {
		return nil, err
	}
	r.logger.Printf("%s: Ren'Py %s (%s), pickle protocol %d", r.filename, s.Version, s.Family, res.Protocol)

	stmts, err := schema.Statements(res.Root)
	if err != nil {
		return nil, err
	}
	fixed := p.FixRecords(stmts)
	findings = append(findings, fixed...)
	for _, f := range fixed {
		r.rep.Add(f.Diagnostic())
	}
	s.Normalize(stmts, r.rep)

	script := build.New(s, res.Memo, r.rep).Script(r.filename, stmts)
	if err := reconstruct.Script(script, ropts, r.rep); err != nil {
		return nil, err
	}
	return &Loaded{Script: script, Schema: s, Findings: findings, Reporter: r.rep}, nil
}

// flush writes every collected diagnostic through the logger.
func (r *run) flush() {
	f := diag.NewFormatter(r.opts.Color)
	for _, d := range r.rep.Diagnostics() {
		f.Log(r.logger, d)
	}
}

// noteGuessedDisplayables reports user defined displayables whose statement
// name had to be guessed from their style, once per class.
func (r *run) noteGuessedDisplayables(s *ast.Script) {
	seen := make(map[string]bool)
	ast.WalkBlock(s.Stmts, func(n ast.Node) bool {
		screen, ok := n.(*ast.Screen)
		if !ok {
			return true
		}
		ast.WalkSL(screen.Body.Children, func(sn ast.SLNode) {
			d, ok := sn.(*ast.SLDisplayable)
			if !ok || d.Displayable == nil || seen[d.Displayable.String()] {
				return
			}
			if guess, known := emit.ResolveDisplayable(d.Displayable, d.Style, r.opts.Displayables); !known {
				seen[d.Displayable.String()] = true
				r.rep.Note(diag.StageEmit, diag.CodeUnknownConstruct, d.Line,
					"user defined displayable %s printed as %q; use --register-sl-displayable if the name is wrong",
					d.Displayable, guess.Name)
			}
		})
		return true
	})
}
