package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jiang0681/unrpyc/internal/emit"
)

const version = "v2.0.2"

// options is the resolved configuration of one invocation.
type options struct {
	Paths           []string
	Clobber         bool
	TryHarder       bool
	Processes       int
	Dump            bool
	Comparable      bool
	NoPyExpr        bool
	InitOffset      bool
	UnknownComments bool
	Translate       string
	Indentation     string
	Extensions      []string
	Color           bool
	// Displayables names user defined screen displayables by class name.
	Displayables map[string]emit.Displayable

	displayableArgs []string
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func defaultProcesses() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if errors.Is(err, errVersion) {
		fmt.Fprintf(stdout, "unrpyc %s\n", version)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "unrpyc: %v\n", err)
		return 2
	}
	opts.Color = colorEnabled(stdout)

	worklist, err := discover(opts.Paths, opts.Extensions, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "unrpyc: %v\n", err)
		return 1
	}
	if len(worklist) == 0 {
		fmt.Fprintln(stdout, "No script files to decompile found.")
		return 0
	}
	if opts.Processes > len(worklist) {
		opts.Processes = len(worklist)
	}
	fmt.Fprintf(stdout, "Found %s to process. Performing decompilation using %s.\n",
		plural(len(worklist), "file"), plural(opts.Processes, "worker"))

	b := newBatch(opts, stdout)
	results := b.run(worklist)
	s := summarize(results, b.translationErrors)
	s.print(stdout, opts.Color)
	if s.failed() {
		return 1
	}
	return 0
}

var errVersion = errors.New("version requested")

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("unrpyc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: unrpyc [options] <file or directory>...\n")
		fmt.Fprintf(stderr, "\nDecompiles .rpyc and .rpymc files. Directories are searched recursively.\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		clobber, tryHarder, dump, comparable, noPyExpr bool
		noInitOffset, noUnknownComments, showVersion   bool
		processes                                      int
		translate, configPath                          string
		displayables                                   stringList
	)
	fs.BoolVar(&clobber, "clobber", false, "overwrite existing output files")
	fs.BoolVar(&clobber, "c", false, "shorthand for --clobber")
	fs.BoolVar(&tryHarder, "try-harder", false, "work around common obfuscation methods (slower)")
	fs.IntVar(&processes, "processes", defaultProcesses(), "number of parallel workers")
	fs.IntVar(&processes, "p", defaultProcesses(), "shorthand for --processes")
	fs.BoolVar(&dump, "dump", false, "pretty print the syntax tree instead of decompiling")
	fs.BoolVar(&dump, "d", false, "shorthand for --dump")
	fs.BoolVar(&comparable, "comparable", false, "dump only: suppress attributes that differ between identical scripts")
	fs.BoolVar(&noPyExpr, "no-pyexpr", false, "dump only: print expressions as plain strings")
	fs.BoolVar(&noInitOffset, "no-init-offset", false, "do not infer init offset statements for scripts older than Ren'Py 7.4")
	fs.BoolVar(&noUnknownComments, "no-unknown-comments", false, "omit comments for constructs that cannot be decompiled")
	fs.StringVar(&translate, "translate", "", "substitute dialogue with the translations for `language`")
	fs.StringVar(&translate, "t", "", "shorthand for --translate")
	fs.StringVar(&configPath, "config", "", "read defaults from a YAML `file` (default unrpyc.yml when present)")
	fs.Var(&displayables, "register-sl-displayable",
		"name a user defined screen displayable as `class=name[-children]`, children being 0, 1 or many (repeatable)")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showVersion {
		return nil, errVersion
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := &options{
		Processes:       defaultProcesses(),
		InitOffset:      true,
		UnknownComments: true,
		Indentation:     "    ",
		Extensions:      defaultExtensions,
	}
	cfg, err := findConfig(configPath, set["config"])
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		cfg.apply(opts)
	}

	if set["clobber"] || set["c"] {
		opts.Clobber = clobber
	}
	if set["try-harder"] {
		opts.TryHarder = tryHarder
	}
	if set["processes"] || set["p"] {
		opts.Processes = processes
	}
	if set["dump"] || set["d"] {
		opts.Dump = dump
	}
	if set["translate"] || set["t"] {
		opts.Translate = translate
	}
	if set["no-init-offset"] {
		opts.InitOffset = !noInitOffset
	}
	if set["no-unknown-comments"] {
		opts.UnknownComments = !noUnknownComments
	}
	opts.Comparable = comparable
	opts.NoPyExpr = noPyExpr
	opts.Paths = fs.Args()

	opts.displayableArgs = append(opts.displayableArgs, displayables...)
	for _, arg := range opts.displayableArgs {
		class, d, err := emit.ParseDisplayable(arg)
		if err != nil {
			return nil, fmt.Errorf("--register-sl-displayable: %w", err)
		}
		if opts.Displayables == nil {
			opts.Displayables = make(map[string]emit.Displayable)
		}
		opts.Displayables[class] = d
	}

	if len(opts.Paths) == 0 {
		fs.Usage()
		return nil, errors.New("no input paths")
	}
	if (opts.Comparable || opts.NoPyExpr) && !opts.Dump {
		return nil, errors.New("options --comparable and --no-pyexpr require --dump")
	}
	if opts.Dump && opts.Translate != "" {
		return nil, errors.New("options --translate and --dump cannot be used together")
	}
	if opts.Processes < 1 {
		return nil, fmt.Errorf("--processes must be at least 1, got %d", opts.Processes)
	}
	return opts, nil
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
