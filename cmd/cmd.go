package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/thiagokokada/git-filegraph/internal/buildinfo"
	"github.com/thiagokokada/git-filegraph/internal/config"
	"github.com/thiagokokada/git-filegraph/internal/dot"
	"github.com/thiagokokada/git-filegraph/internal/history"
	"github.com/thiagokokada/git-filegraph/internal/raster"
)

const name = "git-filegraph"

// Process exit codes.
const (
	ExitOK = iota
	ExitNoCommits
	ExitUsage
	ExitHistoryUnavailable
	ExitRasterizationFailed
	ExitOutputWrite
	ExitDanglingParents
)

var (
	errNoCommits       = errors.New("no commits found")
	errOutputWrite     = errors.New("write output")
	errDanglingParents = errors.New("graph references parents outside the history")
)

func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

type flagValues struct {
	repoPath     string
	fileName     string
	outputPath   string
	graphvizPath string
	configPath   string
	backend      string
	jobs         int
	font         string
	color        string
	mode         string
	strict       bool
	watch        bool
	verbose      bool
	version      bool
}

func newFlagSet(v *flagValues, output io.Writer) *flag.FlagSet {
	defaults := config.Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&v.repoPath, "repo_path", "", "path to the git repository (required)")
	fs.StringVar(&v.fileName, "file_name", "", "file whose history is drawn, relative to the repository root (required)")
	fs.StringVar(&v.outputPath, "output_path", "", "also write the Graphviz source to this file")
	fs.StringVar(&v.graphvizPath, "graphviz_path", "", "Graphviz dot binary used to render a PNG next to --output_path")
	fs.StringVar(&v.configPath, "config", "", "YAML config file (default: "+config.FileName+" in the repository)")
	fs.StringVar(&v.backend, "backend", defaults.Backend, "history backend: exec, log, or native")
	fs.IntVar(&v.jobs, "jobs", defaults.Jobs, "number of commits fetched concurrently")
	fs.StringVar(&v.font, "font", defaults.Font, "font name for nodes and edges")
	fs.StringVar(&v.color, "color", defaults.Color, "highlight the printed graph: auto, always, or never")
	fs.StringVar(&v.mode, "mode", defaults.Mode, "color mode: auto, light, or dark")
	fs.BoolVar(&v.strict, "strict", false, "fail when a parent commit is missing from the history")
	fs.BoolVar(&v.watch, "watch", false, "re-render whenever the repository changes")
	fs.BoolVar(&v.verbose, "verbose", false, "enable verbose logging")
	fs.BoolVar(&v.version, "version", false, "print version information and exit")
	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var v flagValues
	fs := newFlagSet(&v, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	if v.version {
		printVersion(stdout)
		return ExitOK
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "%s: unexpected arguments: %s\n", name, strings.Join(fs.Args(), " "))
		fs.Usage()
		return ExitUsage
	}

	cfg, err := resolveConfig(fs, &v)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return ExitUsage
	}
	setupLogging(stderr, cfg.Verbose)
	slog.Debug("configuration",
		slog.String("repo", cfg.RepoPath),
		slog.String("file", cfg.FileName),
		slog.String("backend", cfg.Backend),
		slog.Int("jobs", cfg.Jobs),
	)

	p, err := newPipeline(ctx, cfg, stdout, stderr)
	if err != nil {
		return report(stderr, err)
	}
	res, err := p.generate(ctx)
	if err != nil {
		if errors.Is(err, errNoCommits) {
			fmt.Fprintf(stdout, "No commits found for file %s.\n", cfg.FileName)
			return ExitNoCommits
		}
		return report(stderr, err)
	}
	p.print(res.text)
	err = p.save(ctx, res.text)
	code := report(stderr, err)
	if code != ExitOK && code != ExitRasterizationFailed {
		return code
	}
	if cfg.Watch {
		if err := p.watch(ctx, res.text); err != nil {
			return report(stderr, err)
		}
	}
	return code
}

// printVersion reports the build and the git binary used by the exec and log
// backends.
func printVersion(w io.Writer) {
	fmt.Fprintln(w, name, buildinfo.Read())
	gitVersion, err := history.GitVersion()
	if err != nil {
		gitVersion = "git not available"
	}
	fmt.Fprintf(w, "%s (requires git >= %s)\n", gitVersion, history.MinGitVersion())
}

// resolveConfig layers defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func resolveConfig(fs *flag.FlagSet, v *flagValues) (config.Config, error) {
	cfg := config.Default()
	switch {
	case v.configPath != "":
		if err := config.LoadFile(&cfg, v.configPath, true); err != nil {
			return cfg, err
		}
	case v.repoPath != "":
		if err := config.LoadFile(&cfg, config.RepoFile(v.repoPath), false); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "repo_path":
			cfg.RepoPath = v.repoPath
		case "file_name":
			cfg.FileName = v.fileName
		case "output_path":
			cfg.OutputPath = v.outputPath
		case "graphviz_path":
			cfg.GraphvizPath = v.graphvizPath
		case "backend":
			cfg.Backend = v.backend
		case "jobs":
			cfg.Jobs = v.jobs
		case "font":
			cfg.Font = v.font
		case "color":
			cfg.Color = v.color
		case "mode":
			cfg.Mode = v.mode
		case "strict":
			cfg.Strict = v.strict
		case "watch":
			cfg.Watch = v.watch
		case "verbose":
			cfg.Verbose = v.verbose
		}
	})
	return cfg, cfg.Validate()
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// useColor reports whether DOT printed to w should be highlighted.
func useColor(setting string, w io.Writer) bool {
	switch strings.ToLower(setting) {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func themeFromMode(mode string) dot.Theme {
	t, err := dot.ThemeFromString(mode)
	if err != nil {
		return dot.ThemeAuto
	}
	return t
}

// report prints err and maps it to an exit code.
func report(stderr io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(stderr, "%s: %v\n", name, err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errNoCommits):
		return ExitNoCommits
	case errors.Is(err, config.ErrInvalid):
		return ExitUsage
	case errors.Is(err, errDanglingParents):
		return ExitDanglingParents
	case errors.Is(err, raster.ErrRasterizationFailed):
		return ExitRasterizationFailed
	case errors.Is(err, errOutputWrite):
		return ExitOutputWrite
	case errors.Is(err, history.ErrHistoryUnavailable):
		return ExitHistoryUnavailable
	default:
		// Cancellation and anything else raised while walking history.
		return ExitHistoryUnavailable
	}
}
