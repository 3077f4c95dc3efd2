package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/woxQAQ/snapc/internal/compiler"
	"github.com/woxQAQ/snapc/internal/config"
	"github.com/woxQAQ/snapc/internal/wasm"
	"github.com/woxQAQ/snapc/pkg/protocol"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

// options holds parsed command-line flags. set records which flags were
// given explicitly so they can override configuration.
type options struct {
	configPath  string
	logLevel    string
	output      string
	module      string
	compiler    string
	strict      bool
	eval        bool
	list        bool
	showVersion bool
	input       string

	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("snapc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.output, "output", "", "Snapshot output path (default from config, snapshot.out)")
	fs.StringVar(&opts.output, "o", "", "Shorthand for -output")
	fs.StringVar(&opts.module, "module", "", "Compiler .wasm file")
	fs.StringVar(&opts.compiler, "compiler", "", "Compiler package name")
	fs.BoolVar(&opts.strict, "strict", false, "Compile in strict mode")
	fs.BoolVar(&opts.eval, "eval", false, "Compile for eval scope instead of global scope")
	fs.BoolVar(&opts.list, "list", false, "List installed compiler packages and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: snapc [flags] <input-file>\n       snapc [-config file] -list\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if name == "o" {
			name = "output"
		}
		opts.set[name] = true
	})

	if opts.showVersion || (opts.list && fs.NArg() == 0) {
		return opts, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errUsage
	}
	opts.input = fs.Arg(0)

	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "snapc %s (commit %s, built %s)\n", version, commit, date)
		return exitOK
	}

	// Load configuration
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "snapc: failed to load configuration: %v\n", err)
		return exitError
	}
	applyFlags(cfg, opts)

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "snapc: %v\n", err)
		return exitUsage
	}
	defer logger.Sync()

	logger.Debug("Starting snapc",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	if opts.list {
		err = listCompilers(context.Background(), cfg, stdout, logger)
	} else {
		err = compileFile(context.Background(), cfg, opts, stdout, stderr, logger)
	}
	if err != nil {
		fmt.Fprintf(stderr, "snapc: %v\n", err)
		return exitError
	}
	return exitOK
}

// applyFlags lets explicit flags override configuration.
func applyFlags(cfg *config.Config, opts *options) {
	if opts.set["log-level"] {
		cfg.LogLevel = opts.logLevel
	}
	if opts.set["output"] {
		cfg.Output.Path = opts.output
	}
	if opts.set["module"] {
		cfg.Compiler.Module = opts.module
	}
	if opts.set["compiler"] {
		cfg.Compiler.Name = opts.compiler
	}
	if opts.set["strict"] {
		cfg.Compile.Strict = opts.strict
	}
	if opts.set["eval"] {
		cfg.Compile.Global = !opts.eval
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func compileFile(ctx context.Context, cfg *config.Config, opts *options, stdout, stderr io.Writer, logger *zap.Logger) (err error) {
	source, err := os.ReadFile(opts.input)
	if err != nil {
		return err
	}

	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	manager.SetGuestOutput(stdout, stderr)
	defer func() {
		if shutdownErr := manager.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	handle, err := openCompiler(ctx, cfg, manager)
	if err != nil {
		return err
	}
	defer handle.Close(ctx)

	compileOpts := protocol.CompileOptions{
		IsForGlobal: cfg.Compile.Global,
		IsStrict:    cfg.Compile.Strict,
	}
	snapshot, err := handle.CompileBytes(ctx, source, compileOpts, cfg.Output.Path)
	if err != nil {
		return err
	}

	logger.Info("Snapshot written",
		zap.String("input", opts.input),
		zap.String("output", cfg.Output.Path),
		zap.Int("size_bytes", len(snapshot)),
		zap.String("compiler", handle.Identity()),
	)
	return nil
}

func newManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*compiler.Manager, error) {
	runtime, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
	})
	if err != nil {
		return nil, err
	}
	return compiler.NewManager(cfg, runtime, wasm.NewHostFunctions(logger), logger), nil
}

// listCompilers prints the packages found under the configured paths.
func listCompilers(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *zap.Logger) (err error) {
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := manager.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	if err := manager.LoadAll(ctx); err != nil {
		return err
	}

	pkgs := manager.Registry().List()
	if len(pkgs) == 0 {
		fmt.Fprintf(stdout, "no compilers installed in %v\n", cfg.Compiler.Paths)
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tMODULE\tDESCRIPTION")
	for _, pkg := range pkgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", pkg.Name(), pkg.Version(), pkg.Manifest.WasmPath(), pkg.Manifest.Description)
	}
	return w.Flush()
}

// openCompiler opens the configured module file, or a compiler package by
// name. With no name and exactly one package installed, that one is used.
func openCompiler(ctx context.Context, cfg *config.Config, manager *compiler.Manager) (*compiler.Handle, error) {
	if cfg.Compiler.Module != "" {
		return manager.OpenFile(ctx, cfg.Compiler.Module)
	}

	if err := manager.LoadAll(ctx); err != nil {
		return nil, err
	}

	name := cfg.Compiler.Name
	if name == "" {
		names := manager.Registry().Names()
		if len(names) != 1 {
			return nil, fmt.Errorf("no compiler selected: use -module or -compiler (installed: %v)", names)
		}
		name = names[0]
	}
	return manager.Open(ctx, name)
}
