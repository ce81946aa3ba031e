package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/datawire/dlib/derror"
	"golang.org/x/sync/errgroup"

	"github.com/jiang0681/unrpyc/internal/decompiler"
	"github.com/jiang0681/unrpyc/internal/deobf"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/rpyc"
	"github.com/jiang0681/unrpyc/internal/translate"
)

// state is the outcome of one file.
type state string

const (
	stateOK          state = "ok"
	stateSkip        state = "skip"
	stateBadHeader   state = "bad_header"
	stateUnsupported state = "unsupported"
	stateError       state = "error"
)

// fileResult is what a worker reports back. The log is printed by the main
// goroutine once every worker is done, in worklist order.
type fileResult struct {
	Path       string
	Out        string
	State      state
	Err        error
	Incomplete bool

	translator *translate.Translator
	log        bytes.Buffer
	logger     *log.Logger
}

func newResult(path string) *fileResult {
	r := &fileResult{Path: path, State: stateError}
	r.logger = log.New(&r.log, "", 0)
	return r
}

type batch struct {
	opts   *options
	stdout io.Writer
	pre    *deobf.Preprocessor
	format *diag.Formatter

	translator        *translate.Translator
	translationErrors int
}

func newBatch(opts *options, stdout io.Writer) *batch {
	mode := deobf.ModeDefault
	if opts.TryHarder {
		mode = deobf.ModeTryHarder
	}
	return &batch{
		opts:   opts,
		stdout: stdout,
		pre:    deobf.New(mode),
		format: diag.NewFormatter(opts.Color),
	}
}

func (b *batch) decompilerOptions(logger *log.Logger) decompiler.Options {
	return decompiler.Options{
		Mode:            b.pre.Mode(),
		Preprocessor:    b.pre,
		Dump:            b.opts.Dump,
		Comparable:      b.opts.Comparable,
		NoPyExpr:        b.opts.NoPyExpr,
		InitOffset:      b.opts.InitOffset,
		UnknownComments: b.opts.UnknownComments,
		Indentation:     b.opts.Indentation,
		Language:        b.opts.Translate,
		Translator:      b.translator,
		Displayables:    b.opts.Displayables,
		Logger:          logger,
		Color:           b.opts.Color,
	}
}

// run processes the worklist, with a translation pass first when a target
// language is set.
func (b *batch) run(items []workItem) []*fileResult {
	if b.opts.Translate != "" {
		fmt.Fprintln(b.stdout, "Step 1: analyzing files for translations.")
		results := b.each(items, b.collect)
		fmt.Fprintln(b.stdout, "Compiling extracted translations.")
		b.translator = translate.New(b.opts.Translate)
		for _, r := range results {
			if r.State != stateOK {
				b.translationErrors++
			}
			if r.translator != nil {
				b.translator.Merge(r.translator)
			}
		}
		fmt.Fprintln(b.stdout, "Step 2: decompiling.")
	}
	return b.each(items, b.decompile)
}

// each runs work over items with at most opts.Processes workers.
func (b *batch) each(items []workItem, work func(workItem, *fileResult)) []*fileResult {
	results := make([]*fileResult, len(items))
	var g errgroup.Group
	g.SetLimit(b.opts.Processes)
	for i, item := range items {
		item := item
		res := newResult(item.Path)
		results[i] = res
		g.Go(func() error {
			defer func() {
				if perr := derror.PanicToError(recover()); perr != nil {
					res.State, res.Err = stateError, perr
					res.logger.Printf("Error while processing %s: %+v", item.Path, perr)
				}
			}()
			work(item, res)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.log.Len() > 0 {
			b.stdout.Write(res.log.Bytes())
			fmt.Fprintln(b.stdout)
		}
	}
	return results
}

func (b *batch) collect(item workItem, res *fileResult) {
	res.logger.Printf("Extracting translations from %s...", item.Path)
	raw, err := os.ReadFile(item.Path)
	if err != nil {
		b.fail(res, err)
		return
	}
	tr, err := decompiler.Translations(raw, item.Path, b.opts.Translate, b.decompilerOptions(res.logger))
	if err != nil {
		b.fail(res, err)
		return
	}
	res.translator = tr
	res.State = stateOK
}

func (b *batch) decompile(item workItem, res *fileResult) {
	out, err := rpyc.SourceExt(item.Path, b.opts.Dump)
	if err != nil {
		b.fail(res, err)
		return
	}
	res.Out = out
	if !b.opts.Clobber && exists(out) {
		res.logger.Printf("Skipping %s. %s already exists.", item.Path, out)
		res.State = stateSkip
		return
	}

	res.logger.Printf("Decompiling %s to %s...", item.Path, out)
	raw, err := os.ReadFile(item.Path)
	if err != nil {
		b.fail(res, err)
		return
	}
	dec, err := decompiler.Decompile(raw, item.Path, b.decompilerOptions(res.logger))
	if err != nil {
		b.fail(res, err)
		return
	}
	if err := writeOutput(out, dec.Text); err != nil {
		b.fail(res, err)
		return
	}
	res.Incomplete = dec.Incomplete
	if dec.Incomplete {
		res.logger.Printf("Output of %s may be incomplete.", item.Path)
	}
	res.State = stateOK
}

// fail classifies err and logs it.
func (b *batch) fail(res *fileResult, err error) {
	res.Err = err
	switch diag.CodeOf(err) {
	case diag.CodeFormatMismatch:
		res.State = stateBadHeader
	case diag.CodeUnsupportedVersion:
		res.State = stateUnsupported
	default:
		res.State = stateError
	}

	var de *diag.Error
	if errors.As(err, &de) {
		res.logger.Printf("Error while processing %s:", res.Path)
		b.format.Format(&res.log, de.Diagnostic)
		if de.Err != nil {
			res.logger.Printf("  = cause: %v", de.Err)
		}
		return
	}
	res.logger.Printf("Error while processing %s: %v", res.Path, err)
}
