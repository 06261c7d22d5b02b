package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/thiagokokada/git-filegraph/internal/config"
	"github.com/thiagokokada/git-filegraph/internal/dot"
	"github.com/thiagokokada/git-filegraph/internal/graph"
	"github.com/thiagokokada/git-filegraph/internal/history"
	"github.com/thiagokokada/git-filegraph/internal/raster"
	"github.com/thiagokokada/git-filegraph/internal/watch"
)

// pipeline runs list -> build -> render and delivers the result.
type pipeline struct {
	cfg    config.Config
	src    history.Source
	stdout io.Writer
	stderr io.Writer
	color  bool
	theme  dot.Theme
}

type rendered struct {
	graph *graph.Graph
	text  string
}

func newPipeline(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (*pipeline, error) {
	kind, err := history.ParseKind(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	src, err := history.Open(ctx, kind, cfg.RepoPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("history source opened",
		slog.String("backend", kind.String()),
		slog.String("root", src.RepoPath()),
	)
	return &pipeline{
		cfg:    cfg,
		src:    src,
		stdout: stdout,
		stderr: stderr,
		color:  useColor(cfg.Color, stdout),
		theme:  themeFromMode(cfg.Mode),
	}, nil
}

func (p *pipeline) generate(ctx context.Context) (rendered, error) {
	ids, err := p.src.ListCommitsTouching(ctx, p.cfg.FileName)
	if err != nil {
		return rendered{}, err
	}
	if len(ids) == 0 {
		return rendered{}, fmt.Errorf("%w for file %s", errNoCommits, p.cfg.FileName)
	}
	g, err := graph.NewBuilder(p.src, graph.WithJobs(p.cfg.Jobs)).Build(ctx, ids)
	if err != nil {
		return rendered{}, err
	}
	if err := checkDangling(g, p.cfg.Strict); err != nil {
		return rendered{}, err
	}
	return rendered{
		graph: g,
		text:  dot.Render(g, dot.Options{FontName: p.cfg.Font}),
	}, nil
}

// checkDangling logs edges whose parent is not in g and, in strict mode,
// turns them into an error.
func checkDangling(g *graph.Graph, strict bool) error {
	dangling := g.Dangling()
	if len(dangling) == 0 {
		return nil
	}
	first := dangling[0]
	slog.Warn("graph references commits outside the history",
		slog.Int("edges", len(dangling)),
		slog.String("parent", first.Parent),
		slog.String("child", first.Child),
	)
	if !strict {
		return nil
	}
	return fmt.Errorf("%w: %d edge(s), first %s -> %s",
		errDanglingParents, len(dangling), first.Parent, first.Child)
}

func (p *pipeline) print(text string) {
	if p.color {
		err := dot.Highlight(p.stdout, text, p.theme)
		if err == nil {
			return
		}
		slog.Debug("highlight failed, printing plain text", slog.Any("error", err))
	}
	fmt.Fprint(p.stdout, text)
}

// save writes the DOT file and rasterizes it when configured. A rasterization
// failure is returned after the DOT file is already on disk.
func (p *pipeline) save(ctx context.Context, text string) error {
	if p.cfg.OutputPath != "" {
		if err := os.WriteFile(p.cfg.OutputPath, []byte(text), 0o644); err != nil {
			return fmt.Errorf("%w: %w", errOutputWrite, err)
		}
		slog.Debug("wrote graphviz file",
			slog.String("path", p.cfg.OutputPath),
			slog.String("size", humanize.Bytes(uint64(len(text)))),
		)
		fmt.Fprintf(p.stdout, "Graphviz file saved to %s\n", p.cfg.OutputPath)
	}
	if p.cfg.GraphvizPath == "" {
		return nil
	}
	if p.cfg.OutputPath == "" {
		fmt.Fprintln(p.stdout, "An output path (--output_path) is required to generate the graph image.")
		return nil
	}
	png, err := raster.Rasterize(ctx, p.cfg.GraphvizPath, p.cfg.OutputPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.stdout, "Graph image saved to %s\n", png)
	return nil
}

// watch re-renders on every repository change until ctx is done, printing a
// diff against the previous render.
func (p *pipeline) watch(ctx context.Context, last string) error {
	w, err := watch.New(p.src.RepoPath(), watch.DefaultDelay)
	if err != nil {
		return fmt.Errorf("watch repository: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Error("watcher close", slog.Any("error", err))
		}
	}()
	fmt.Fprintf(p.stderr, "Watching %s for changes, press Ctrl+C to stop.\n", p.src.RepoPath())

	diffName := "graph.dot"
	if p.cfg.OutputPath != "" {
		diffName = filepath.Base(p.cfg.OutputPath)
	}
	return w.Run(ctx, func(ctx context.Context) error {
		start := time.Now()
		res, err := p.generate(ctx)
		if errors.Is(err, errNoCommits) {
			slog.Info("file has no history yet", slog.String("file", p.cfg.FileName))
			return nil
		}
		if err != nil {
			return err
		}
		diff, err := watch.Diff(diffName, last, res.text)
		if err != nil {
			return fmt.Errorf("diff renders: %w", err)
		}
		if diff == "" {
			slog.Debug("graph unchanged")
			return nil
		}
		last = res.text
		p.printDiff(diff)
		if err := p.save(ctx, res.text); err != nil {
			return err
		}
		fmt.Fprintf(p.stderr, "Re-rendered %d commits (%s) in %s\n",
			res.graph.Len(),
			humanize.Bytes(uint64(len(res.text))),
			time.Since(start).Round(time.Millisecond),
		)
		return nil
	})
}

func (p *pipeline) printDiff(diff string) {
	if p.color {
		if err := dot.HighlightDiff(p.stdout, diff, p.theme); err == nil {
			return
		}
	}
	fmt.Fprint(p.stdout, diff)
}
