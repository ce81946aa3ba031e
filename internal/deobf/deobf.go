// Package deobf neutralizes known obfuscation of compiled scripts before and
// during deserialization. Every strategy is a catalog entry; new ones are
// added with Register without touching the pipeline.
package deobf

import (
	"fmt"
	"strings"

	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/rpyc"
)

// Mode selects how much effort the preprocessor spends.
type Mode int

const (
	// ModeDefault only pattern-matches the fixed catalog.
	ModeDefault Mode = iota
	// ModeTryHarder also runs speculative, slower strategies.
	ModeTryHarder
)

func (m Mode) String() string {
	if m == ModeTryHarder {
		return "try-harder"
	}
	return "default"
}

// Level is where in the input a signature operates.
type Level int

const (
	// LevelContainer sees the raw file bytes.
	LevelContainer Level = iota
	// LevelStream sees the decompressed pickle stream.
	LevelStream
)

func (l Level) String() string {
	if l == LevelStream {
		return "stream"
	}
	return "container"
}

// Tier decides in which modes a catalog entry runs.
type Tier int

const (
	TierDefault Tier = iota
	TierTryHarder
)

// Finding records one matched pattern.
type Finding struct {
	Signature string
	Level     Level
	Detail    string
	Offset    int
	// Resolved is false when the pattern was recognized as tampering but
	// could not be undone. The data passes through unchanged in that case.
	Resolved bool
}

// Diagnostic converts f for the reporter.
func (f Finding) Diagnostic() diag.Diagnostic {
	code := diag.CodeObfuscationRepaired
	switch {
	case f.Signature == "slot-order" && f.Resolved:
		code = diag.CodeContainerSlotOrder
	case !f.Resolved:
		code = diag.CodeUnresolvedObfuscation
	}
	d := diag.New(diag.StageDeobfuscate, code, "%s: %s", f.Signature, f.Detail)
	if f.Offset > 0 {
		d = d.WithSpan(diag.Span{Offset: f.Offset})
	}
	if !f.Resolved {
		d = d.WithHelp("output may be incomplete")
	}
	return d
}

// Signature is a byte level catalog entry. Apply returns the data to pass on
// and, when it matched, a finding. A signature that does not match returns
// data unchanged and no findings.
type Signature interface {
	Name() string
	Level() Level
	Tier() Tier
	Apply(data []byte) ([]byte, []Finding)
}

// RecordFixer repairs tampered fields in the materialized statement graph.
type RecordFixer interface {
	Name() string
	Tier() Tier
	Fix(stmts []pickle.Value, mode Mode) []Finding
}

var (
	catalog []Signature
	fixers  []RecordFixer
)

// Register appends sig to the global catalog.
func Register(sig Signature) {
	catalog = append(catalog, sig)
}

// RegisterFixer appends f to the global record fixer list.
func RegisterFixer(f RecordFixer) {
	fixers = append(fixers, f)
}

func init() {
	Register(slotOrder{})
	Register(slotLength{})
	Register(decoyGlobal{})
	Register(trailingData{})
	RegisterFixer(lineNumbers{})
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithSignatures replaces the byte level catalog.
func WithSignatures(sigs ...Signature) Option {
	return func(p *Preprocessor) { p.sigs = sigs }
}

// WithFixers replaces the record fixers.
func WithFixers(fs ...RecordFixer) Option {
	return func(p *Preprocessor) { p.fixers = fs }
}

// Preprocessor runs the catalog over one file at a time. It holds no per-file
// state and may be shared between workers.
type Preprocessor struct {
	mode   Mode
	sigs   []Signature
	fixers []RecordFixer
}

// New returns a preprocessor over the registered catalog.
func New(mode Mode, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		mode:   mode,
		sigs:   append([]Signature(nil), catalog...),
		fixers: append([]RecordFixer(nil), fixers...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the configured mode.
func (p *Preprocessor) Mode() Mode { return p.mode }

func (p *Preprocessor) enabled(t Tier) bool {
	return t == TierDefault || p.mode == ModeTryHarder
}

// Result is the cleaned input of one file.
type Result struct {
	// Container is the (possibly rebuilt) container. For clean input in
	// default mode it is the input itself.
	Container []byte
	Kind      rpyc.Kind
	// Stream is the decompressed, cleaned pickle stream.
	Stream   []byte
	Findings []Finding
	// Strategy names the extraction path that produced Stream.
	Strategy string
}

// Unresolved reports whether any finding could not be undone.
func (r *Result) Unresolved() bool {
	for _, f := range r.Findings {
		if !f.Resolved {
			return true
		}
	}
	return false
}

// Clean applies the container level signatures only. Clean input in default
// mode comes back byte-identical.
func (p *Preprocessor) Clean(raw []byte) ([]byte, []Finding) {
	return p.apply(LevelContainer, raw)
}

// CleanStream applies the stream level signatures only.
func (p *Preprocessor) CleanStream(stream []byte) ([]byte, []Finding) {
	return p.apply(LevelStream, stream)
}

func (p *Preprocessor) apply(level Level, data []byte) ([]byte, []Finding) {
	var all []Finding
	for _, sig := range p.sigs {
		if sig.Level() != level || !p.enabled(sig.Tier()) {
			continue
		}
		var fs []Finding
		data, fs = sig.Apply(data)
		all = append(all, fs...)
	}
	return data, all
}

// Extract turns raw file bytes into a clean pickle stream.
func (p *Preprocessor) Extract(raw []byte) (*Result, error) {
	res := &Result{}
	cleaned, fs := p.Clean(raw)
	res.Findings = append(res.Findings, fs...)

	stream, kind, err := payload(cleaned)
	if err == nil {
		res.Container, res.Kind, res.Strategy = cleaned, kind, "slot"
		if p.mode == ModeTryHarder && !LooksLikePickle(stream) {
			if peeled, layers, ok := Peel(stream); ok {
				stream = peeled
				res.Findings = append(res.Findings, Finding{
					Signature: "layers", Level: LevelStream, Resolved: true,
					Detail: fmt.Sprintf("peeled %s", strings.Join(layers, ", ")),
				})
			}
		}
	} else {
		if p.mode != ModeTryHarder {
			e := diag.Wrap(diag.StageDeobfuscate, diag.CodeFormatMismatch, err,
				"not a recognizable compiled script")
			e.Help = "the header may have been altered, retry with --try-harder"
			return nil, e
		}
		var ok bool
		stream, res.Strategy, fs, ok = p.scan(raw)
		res.Findings = append(res.Findings, fs...)
		if !ok {
			return nil, diag.Wrap(diag.StageDeobfuscate, diag.CodeFormatMismatch, err,
				"no extraction strategy recovered a script stream")
		}
		res.Container = rpyc.Build(map[uint32][]byte{rpyc.SlotAST: rpyc.Deflate(stream)})
		res.Kind = rpyc.KindRPC2
	}

	stream, fs = p.CleanStream(stream)
	res.Findings = append(res.Findings, fs...)
	res.Stream = stream
	return res, nil
}

// FixRecords runs the record fixers over the loaded statements.
func (p *Preprocessor) FixRecords(stmts []pickle.Value) []Finding {
	var all []Finding
	for _, f := range p.fixers {
		if !p.enabled(f.Tier()) {
			continue
		}
		all = append(all, f.Fix(stmts, p.mode)...)
	}
	return all
}

// Resync reports whether the deserializer should skip unknown opcodes.
func (p *Preprocessor) Resync() bool {
	return p.mode == ModeTryHarder
}

func payload(data []byte) ([]byte, rpyc.Kind, error) {
	c, err := rpyc.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	stream, err := c.Payload()
	if err != nil {
		return nil, c.Kind, err
	}
	return stream, c.Kind, nil
}

// scan runs the try-harder extraction strategies in order and returns the
// first stream that parses as a pickle.
func (p *Preprocessor) scan(raw []byte) ([]byte, string, []Finding, bool) {
	var findings []Finding
	for _, ex := range extractors {
		candidates := ex.extract(raw)
		for _, cand := range candidates {
			stream := cand
			var layers []string
			if !LooksLikePickle(stream) {
				var ok bool
				stream, layers, ok = Peel(cand)
				if !ok {
					continue
				}
			}
			detail := ex.name + " recovered slot 1"
			if len(layers) > 0 {
				detail += "; peeled " + strings.Join(layers, ", ")
			}
			findings = append(findings, Finding{
				Signature: ex.name, Level: LevelContainer, Detail: detail, Resolved: true,
			})
			return stream, ex.name, findings, true
		}
	}
	return nil, "", findings, false
}

// LooksLikePickle reports whether data scans cleanly up to a STOP opcode.
func LooksLikePickle(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	ops, err := pickle.Scan(data)
	if err != nil || len(ops) == 0 {
		return false
	}
	return ops[len(ops)-1].Name() == "STOP"
}
