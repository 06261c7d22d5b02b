package graph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/git-filegraph/internal/history"
)

// Fetcher resolves a commit id into its message and parents.
type Fetcher interface {
	FetchCommit(ctx context.Context, hash string) (history.Commit, error)
}

// Builder expands seed commits into their full ancestry.
type Builder struct {
	src  Fetcher
	jobs int
}

type Option func(*Builder)

// WithJobs allows up to n commit fetches in flight. Values below 2 keep the
// builder sequential.
func WithJobs(n int) Option {
	return func(b *Builder) {
		b.jobs = n
	}
}

func NewBuilder(src Fetcher, opts ...Option) *Builder {
	b := &Builder{src: src, jobs: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build walks parent links breadth-first from seeds until every reachable
// commit has been fetched exactly once. Duplicate seeds are allowed; the first
// occurrence wins. Nodes are inserted in traversal order. The first fetch error
// aborts the build and no graph is returned.
func (b *Builder) Build(ctx context.Context, seeds []string) (*Graph, error) {
	if b.jobs > 1 {
		return b.buildFrontiers(ctx, seeds)
	}
	g := New()
	visited := make(map[string]struct{}, len(seeds))
	queue := append([]string(nil), seeds...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := visited[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		visited[id] = struct{}{}
		commit, err := b.src.FetchCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("expand commit %s: %w", id, err)
		}
		g.add(Node{ID: id, Message: commit.Message, Parents: commit.ParentHashes})
		// Parents are queued even when already seen; dequeue is the only dedup point.
		queue = append(queue, commit.ParentHashes...)
	}
	slog.Debug("graph built", slog.Int("nodes", g.Len()), slog.Int("seeds", len(seeds)))
	return g, nil
}

// buildFrontiers expands one BFS level at a time. This goroutine alone owns the
// visited set and the graph; workers only fill their slot in results. Levels
// are inserted in queue order, so the result matches the sequential walk.
func (b *Builder) buildFrontiers(ctx context.Context, seeds []string) (*Graph, error) {
	g := New()
	visited := make(map[string]struct{}, len(seeds))
	frontier := seeds
	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := make([]string, 0, len(frontier))
		for _, id := range frontier {
			if _, ok := visited[id]; ok {
				continue
			}
			visited[id] = struct{}{}
			batch = append(batch, id)
		}
		slog.Debug("expanding frontier",
			slog.Int("depth", depth),
			slog.Int("queued", len(frontier)),
			slog.Int("fetch", len(batch)),
		)

		results := make([]history.Commit, len(batch))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(b.jobs)
		for i, id := range batch {
			eg.Go(func() error {
				commit, err := b.src.FetchCommit(egCtx, id)
				if err != nil {
					return fmt.Errorf("expand commit %s: %w", id, err)
				}
				results[i] = commit
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for i, id := range batch {
			commit := results[i]
			g.add(Node{ID: id, Message: commit.Message, Parents: commit.ParentHashes})
			next = append(next, commit.ParentHashes...)
		}
		frontier = next
	}
	slog.Debug("graph built",
		slog.Int("nodes", g.Len()),
		slog.Int("seeds", len(seeds)),
		slog.Int("jobs", b.jobs),
	)
	return g, nil
}
