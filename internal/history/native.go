package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// nativeSource reads history in-process with go-git. The repository handle is
// not safe for concurrent iteration, so every call holds mu.
type nativeSource struct {
	mu   sync.Mutex
	repo *gitlib.Repository
	path string
}

func OpenNative(repoPath string) (Source, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, unavailable("open repository", err)
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, unavailable("open repository", err)
	}
	root := abs
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	slog.Debug("opened repository", slog.String("backend", KindNative.String()), slog.String("root", root))
	return &nativeSource{repo: repo, path: root}, nil
}

func (s *nativeSource) RepoPath() string {
	return s.path
}

func (s *nativeSource) ListCommitsTouching(ctx context.Context, fileName string) ([]string, error) {
	pathspec, err := relativePathspec(s.path, fileName)
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, unavailable("list commits", fmt.Errorf("resolve HEAD: %w", err))
	}
	hashes, err := newPathWalk(s.repo, pathspec).run(ctx, head.Hash())
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	slog.Debug("listed commits", slog.String("file", pathspec), slog.Int("count", len(hashes)))
	return hashes, nil
}

func (s *nativeSource) FetchCommit(ctx context.Context, hash string) (Commit, error) {
	hash, err := checkRevision(hash)
	if err != nil {
		return Commit{}, unavailable("fetch commit", err)
	}
	if err := ctx.Err(); err != nil {
		return Commit{}, unavailable("fetch commit "+hash, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Commit{}, unavailable("fetch commit "+hash, err)
	}
	commit, err := s.repo.CommitObject(*id)
	if err != nil {
		return Commit{}, unavailable("fetch commit "+hash, err)
	}
	return commitFromObject(commit), nil
}

func commitFromObject(c *object.Commit) Commit {
	var parents []string
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return Commit{
		Hash:         c.Hash.String(),
		ParentHashes: parents,
		Message:      trimMessage(c.Message),
	}
}
