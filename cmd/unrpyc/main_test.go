package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiang0681/unrpyc/internal/emit"
	pt "github.com/jiang0681/unrpyc/internal/pickle/pickletest"
)

func kv(k string, v any) pt.KV { return pt.KV{K: k, V: v} }

func sampleScript(what string) []byte {
	say := pt.Node("Say", 2, kv("who", "e"), kv("what", what))
	return pt.File(pt.Node("Label", 1, kv("name", "start"), kv("block", pt.List{say})))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String() + stderr.String()
}

func TestDecompileDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game", "script.rpyc"), sampleScript("Hello"))
	writeFile(t, filepath.Join(dir, "game", "notes.txt"), []byte("ignored"))

	code, out := runCLI(t, "-p", "1", dir)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Found 1 file to process")
	assert.Contains(t, out, "> 1 file successfully decompiled.")
	assert.Contains(t, readFile(t, filepath.Join(dir, "game", "script.rpy")), "label start:\n    e \"Hello\"\n")
}

func TestExistingOutputIsSkippedWithoutClobber(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "script.rpyc")
	out := filepath.Join(dir, "script.rpy")
	writeFile(t, in, sampleScript("Hello"))
	writeFile(t, out, []byte("keep me"))

	code, log := runCLI(t, in)
	require.Equal(t, 0, code, log)
	assert.Contains(t, log, "were skipped")
	assert.Equal(t, "keep me", readFile(t, out))

	code, log = runCLI(t, "--clobber", in)
	require.Equal(t, 0, code, log)
	assert.Contains(t, readFile(t, out), "label start:")
}

func TestBadHeaderFailsWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.rpyc")
	writeFile(t, in, []byte("definitely not a script"))

	code, log := runCLI(t, in)
	assert.Equal(t, 1, code)
	assert.Contains(t, log, "did not have the correct header")
	assert.Contains(t, log, "--try-harder")
	_, err := os.Stat(filepath.Join(dir, "broken.rpy"))
	assert.True(t, os.IsNotExist(err), "a failed file must not create output")
}

func TestFailedFileKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.rpyc")
	out := filepath.Join(dir, "broken.rpy")
	writeFile(t, in, []byte("definitely not a script"))
	writeFile(t, out, []byte("previous good output"))

	code, _ := runCLI(t, "-c", in)
	assert.Equal(t, 1, code)
	assert.Equal(t, "previous good output", readFile(t, out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files may be left behind")
}

func TestDumpWritesText(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "script.rpymc")
	writeFile(t, in, sampleScript("Hello"))

	code, log := runCLI(t, "-d", "--comparable", in)
	require.Equal(t, 0, code, log)
	dump := readFile(t, filepath.Join(dir, "script.txt"))
	assert.Contains(t, dump, "<Label ")
	assert.Contains(t, dump, ".what = 'Hello'")
}

func TestTranslatePass(t *testing.T) {
	dir := t.TempDir()
	translation := func(language, what string) []byte {
		say := pt.Node("Say", 1, kv("who", "e"), kv("what", what))
		return pt.File(pt.Node("Translate", 1,
			kv("identifier", "start_1"), kv("language", language), kv("block", pt.List{say})))
	}
	writeFile(t, filepath.Join(dir, "game", "script.rpyc"), translation("", "Hello"))
	writeFile(t, filepath.Join(dir, "game", "tl", "french", "script.rpyc"), translation("french", "Bonjour"))

	code, log := runCLI(t, "-t", "french", dir)
	require.Equal(t, 0, code, log)
	assert.Contains(t, log, "Step 1")
	assert.Contains(t, log, "Step 2")
	src := readFile(t, filepath.Join(dir, "game", "script.rpy"))
	assert.Contains(t, src, "translate french start_1:")
	assert.Contains(t, src, "Bonjour")
}

func TestIncompatibleFlags(t *testing.T) {
	code, log := runCLI(t, "--comparable", "x.rpyc")
	assert.Equal(t, 2, code)
	assert.Contains(t, log, "require --dump")

	code, log = runCLI(t, "--dump", "-t", "french", "x.rpyc")
	assert.Equal(t, 2, code)
	assert.Contains(t, log, "cannot be used together")
}

func TestVersion(t *testing.T) {
	code, out := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "unrpyc "+version)
}

func TestConfigFileAndFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "unrpyc.yml")
	writeFile(t, cfg, []byte("processes: 3\nclobber: true\nindentation: 2\nunknown_comments: false\n"))

	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"--config", cfg, "-p", "1", "x.rpyc"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Processes, "flags override the file")
	assert.True(t, opts.Clobber)
	assert.Equal(t, "  ", opts.Indentation)
	assert.False(t, opts.UnknownComments)
	assert.True(t, opts.InitOffset)
}

func TestConfigRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "unrpyc.yml")
	writeFile(t, cfg, []byte("clobber: true\nworkers: 4\n"))

	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--config", cfg, "x.rpyc"}, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestMissingExplicitConfigIsAnError(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yml"), "x.rpyc"}, &stderr)
	assert.Error(t, err)
}

func TestDiscoverLargestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "small.rpyc"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "large.rpyc"), bytes.Repeat([]byte("a"), 100))
	writeFile(t, filepath.Join(dir, "sub", "module.rpymc"), bytes.Repeat([]byte("a"), 10))
	writeFile(t, filepath.Join(dir, "sub", "script.rpy"), bytes.Repeat([]byte("a"), 1000))

	var stdout bytes.Buffer
	items, err := discover([]string{dir, filepath.Join(dir, "small.rpyc")}, defaultExtensions, &stdout)
	require.NoError(t, err)
	require.Len(t, items, 3, "duplicates and sources are left out")
	assert.Equal(t, "large.rpyc", filepath.Base(items[0].Path))
	assert.Equal(t, "module.rpymc", filepath.Base(items[1].Path))
	assert.Equal(t, "small.rpyc", filepath.Base(items[2].Path))
}

func TestSummaryFailureStates(t *testing.T) {
	results := []*fileResult{
		{State: stateOK}, {State: stateSkip}, {State: stateUnsupported},
	}
	s := summarize(results, 0)
	assert.True(t, s.failed())

	var buf bytes.Buffer
	s.print(&buf, false)
	assert.Contains(t, buf.String(), "unsupported Ren'Py version")
	assert.NotContains(t, buf.String(), "\033[")

	assert.False(t, summarize([]*fileResult{{State: stateOK}, {State: stateSkip}}, 0).failed())
}

func TestRegisterDisplayable(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "unrpyc.yml")
	writeFile(t, cfg, []byte("sl_displayables:\n  - MyBar=bar-0\n  - MyGrid=grid2\n"))

	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"--config", cfg, "--register-sl-displayable", "MyBar=fancybar-1", "x.rpyc"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, emit.Displayable{Name: "fancybar", Children: 1}, opts.Displayables["MyBar"], "flags override the file")
	assert.Equal(t, emit.Displayable{Name: "grid2", Children: emit.ChildrenMany}, opts.Displayables["MyGrid"])

	_, err = parseArgs([]string{"--register-sl-displayable", "fancybar", "x.rpyc"}, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--register-sl-displayable")

	writeFile(t, cfg, []byte("sl_displayables: [MyBar=bar-3]\n"))
	_, err = parseArgs([]string{"--config", cfg, "x.rpyc"}, &stderr)
	assert.Error(t, err)
}
