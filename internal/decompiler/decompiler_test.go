package decompiler_test

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/decompiler"
	"github.com/jiang0681/unrpyc/internal/deobf"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/emit"
	pt "github.com/jiang0681/unrpyc/internal/pickle/pickletest"
	"github.com/jiang0681/unrpyc/internal/schema"
)

func kv(k string, v any) pt.KV { return pt.KV{K: k, V: v} }

func startLabel(body ...any) *pt.Obj {
	return pt.Node("Label", 1, kv("name", "start"), kv("block", pt.List(body)))
}

func say(who, what string, line int) *pt.Obj {
	return pt.Node("Say", line, kv("who", who), kv("what", what))
}

func TestDecompileDialogue(t *testing.T) {
	raw := pt.File(startLabel(say("e", "Hello", 2)))

	out, err := decompiler.Decompile(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "label start:\n    e \"Hello\"\n"), "got:\n%s", out.Text)
	assert.True(t, strings.HasSuffix(out.Text, emit.Trailer+"\n"))
	assert.False(t, out.Incomplete)
	assert.Equal(t, schema.FamilyRenPy8, out.Schema.Family)
}

func TestDecompileFoldsLoweredConditional(t *testing.T) {
	raw := pt.File(startLabel(
		pt.Lowered("CondJump", 2, kv("condition", pt.Expr("x", 2)), kv("target", "_end")),
		say("", "big", 3),
		pt.Lowered("Label", 4, kv("name", "_end")),
	))

	out, err := decompiler.Decompile(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out.Text, "label start:\n    if x:\n        \"big\"\n")
	assert.NotContains(t, out.Text, "_end")
}

func TestDecompileIsDeterministic(t *testing.T) {
	raw := pt.File(startLabel(say("e", "one", 2), say("e", "two", 4)))
	opts := decompiler.DefaultOptions()

	first, err := decompiler.Decompile(raw, "game/script.rpyc", opts)
	require.NoError(t, err)
	second, err := decompiler.Decompile(raw, "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

func TestDumpMode(t *testing.T) {
	raw := pt.File(startLabel(say("e", "Hello", 2)))
	opts := decompiler.DefaultOptions()
	opts.Dump = true
	opts.Comparable = true

	out, err := decompiler.Decompile(raw, "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "<Label ")
	assert.Contains(t, out.Text, ".name = 'start'")
	assert.Contains(t, out.Text, ".filename = 'script.rpy'")
	assert.NotContains(t, out.Text, emit.Trailer)
}

func TestBadHeaderIsFatal(t *testing.T) {
	_, err := decompiler.Decompile([]byte("definitely not a script"), "x.rpyc", decompiler.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrFormatMismatch), "got %v", err)
}

func TestDanglingSyntheticJumpIsIntegrityError(t *testing.T) {
	raw := pt.File(startLabel(
		pt.Lowered("CondJump", 2, kv("condition", pt.Expr("x", 2)), kv("target", "_gone")),
	))

	_, err := decompiler.Decompile(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, diag.CodeIntegrity, diag.CodeOf(err))
}

func TestSourceJumpToOtherFileIsNotChecked(t *testing.T) {
	raw := pt.File(startLabel(pt.Node("Jump", 2, kv("target", "chapter2"), kv("expression", false))))

	out, err := decompiler.Decompile(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out.Text, "label start:\n    jump chapter2\n")
}

func TestTrailingDataMarksOutputIncomplete(t *testing.T) {
	stream := append(pt.Script(nil, startLabel(say("e", "Hello", 2))), "junk"...)

	out, err := decompiler.Decompile(pt.Container(stream), "game/script.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, out.Incomplete)
	assert.Contains(t, out.Text, "label start:")
}

func TestTryHarderRecoversMovedHeader(t *testing.T) {
	raw := pt.File(startLabel(say("e", "Hello", 2)))
	copy(raw, "XXXXXXXXXX")

	_, err := decompiler.Decompile(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.Error(t, err)

	opts := decompiler.DefaultOptions()
	opts.Mode = deobf.ModeTryHarder
	out, err := decompiler.Decompile(raw, "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.Contains(t, out.Text, `e "Hello"`)
}

func TestDiagnosticsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	stream := append(pt.Script(nil, pt.Node("Pass", 1)), "junk"...)
	opts := decompiler.DefaultOptions()
	opts.Logger = log.New(&buf, "", 0)

	_, err := decompiler.Decompile(pt.Container(stream), "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "decompiling game/script.rpyc")
	assert.Contains(t, buf.String(), "["+string(diag.CodeUnresolvedObfuscation)+"]")
}

func translationFile(language, what string) []byte {
	return pt.File(pt.Node("Translate", 1,
		kv("identifier", "start_1"),
		kv("language", language),
		kv("block", pt.List{say("e", what, 1)}),
	))
}

func TestTranslationPassSubstitutesDialogue(t *testing.T) {
	opts := decompiler.DefaultOptions()
	tr, err := decompiler.Translations(translationFile("french", "Bonjour"), "game/tl/french/script.rpyc", "french", opts)
	require.NoError(t, err)
	blocks, _ := tr.Len()
	require.Equal(t, 1, blocks)

	opts.Language = "french"
	opts.Translator = tr
	out, err := decompiler.Decompile(translationFile("", "Hello"), "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "translate french start_1:")
	assert.Contains(t, out.Text, `e "Bonjour"`)
	assert.NotContains(t, out.Text, "Hello")
}

func TestLoadScriptReturnsReconstructedTree(t *testing.T) {
	raw := pt.File(startLabel(say("e", "Hello", 2)))
	loaded, err := decompiler.LoadScript(raw, "game/script.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, loaded.Script.Stmts, 1)
	l, ok := loaded.Script.Stmts[0].(*ast.Label)
	require.True(t, ok)
	assert.Equal(t, "start", l.Name)
	assert.Empty(t, loaded.Findings)
}

func py2File(version int, stmts ...any) []byte {
	data := pt.Dict{{K: "version", V: version}, {K: "key", V: pt.Py2Str("unlocked")}}
	return pt.Container(pt.Script(data, stmts...))
}

func initDefines() []any {
	define := func(name string, line int) *pt.Obj {
		return pt.Node("Init", line, kv("priority", 5), kv("block", pt.List{
			pt.Node("Define", line, kv("varname", name), kv("code", pt.Code("1", line))),
		}))
	}
	return []any{define("a", 1), define("b", 2), define("c", 3)}
}

func TestUnsupportedVersionIsFatal(t *testing.T) {
	_, err := decompiler.Decompile(py2File(6099014, pt.Node("Pass", 1)), "old.rpyc", decompiler.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, diag.ErrUnsupportedVersion), "got %v", err)
}

func TestInitOffsetFlagIgnoredAtThreshold(t *testing.T) {
	raw := py2File(7004000, initDefines()...)
	with := decompiler.DefaultOptions()
	without := decompiler.DefaultOptions()
	without.InitOffset = false

	a, err := decompiler.Decompile(raw, "game/script.rpyc", with)
	require.NoError(t, err)
	b, err := decompiler.Decompile(raw, "game/script.rpyc", without)
	require.NoError(t, err)
	assert.Equal(t, schema.FamilyRenPy7, a.Schema.Family)
	assert.Equal(t, a.Text, b.Text)
	for _, d := range b.Diagnostics {
		assert.NotEqual(t, diag.CodeInitOffsetCompat, d.Code)
	}
}

func TestInitOffsetFlagBelowThreshold(t *testing.T) {
	opts := decompiler.DefaultOptions()
	opts.InitOffset = false

	out, err := decompiler.Decompile(py2File(7003005, initDefines()...), "game/script.rpyc", opts)
	require.NoError(t, err)
	assert.True(t, out.Schema.Compat())
	assert.NotContains(t, out.Text, "init offset")

	var noted bool
	for _, d := range out.Diagnostics {
		noted = noted || d.Code == diag.CodeInitOffsetCompat
	}
	assert.True(t, noted, "expected a note about the disabled inference")
}

func screenFile(style string) []byte {
	bar := pt.SL("SLDisplayable", 2,
		kv("displayable", pt.Global{Module: "store", Name: "MyBar"}),
		kv("style", style),
		kv("positional", pt.List{pt.Expr("value", 2)}),
		kv("keyword", pt.List{}),
		kv("children", pt.List{}),
	)
	screen := pt.Node("Screen", 1, kv("screen", pt.SL("SLScreen", 1,
		kv("name", "hud"),
		kv("keyword", pt.List{}),
		kv("children", pt.List{bar}),
	)))
	return pt.File(pt.Node("Init", 1, kv("priority", -500), kv("block", pt.List{screen})))
}

func TestDecompileScreen(t *testing.T) {
	out, err := decompiler.Decompile(screenFile("mybar"), "game/screens.rpyc", decompiler.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "screen hud:\n    mybar value\n"), "got:\n%s", out.Text)
	assert.False(t, out.Incomplete)

	var notes []diag.Diagnostic
	for _, d := range out.Diagnostics {
		if d.Code == diag.CodeUnknownConstruct {
			notes = append(notes, d)
		}
	}
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "store.MyBar")
	assert.Contains(t, notes[0].Message, "--register-sl-displayable")
}

func TestRegisteredDisplayableName(t *testing.T) {
	opts := decompiler.DefaultOptions()
	opts.Displayables = map[string]emit.Displayable{"MyBar": {Name: "fancybar", Children: 0}}

	out, err := decompiler.Decompile(screenFile("mybar"), "game/screens.rpyc", opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "screen hud:\n    fancybar value\n"), "got:\n%s", out.Text)
	for _, d := range out.Diagnostics {
		assert.NotEqual(t, diag.CodeUnknownConstruct, d.Code, d.Message)
	}
}
