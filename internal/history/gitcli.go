package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

type gitCLI struct {
	path string
}

// OpenCLI returns a Source that runs one git process per request.
func OpenCLI(ctx context.Context, repoPath string) (Source, error) {
	return openCLI(ctx, repoPath)
}

func openCLI(ctx context.Context, repoPath string) (*gitCLI, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, unavailable("open repository", err)
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, unavailable("open repository", err)
	}
	tmp := &gitCLI{path: abs}
	root, err := tmp.runGitCommand(ctx, []string{"rev-parse", "--show-toplevel"}, false, "git rev-parse")
	if err != nil {
		return nil, unavailable("open repository", err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, unavailable("open repository", errors.New("git rev-parse returned empty root"))
	}
	slog.Debug("opened repository", slog.String("backend", KindExec.String()), slog.String("root", root))
	return &gitCLI{path: root}, nil
}

func (g *gitCLI) RepoPath() string {
	if g == nil {
		return ""
	}
	return g.path
}

func (g *gitCLI) ListCommitsTouching(ctx context.Context, fileName string) ([]string, error) {
	pathspec, err := relativePathspec(g.path, fileName)
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	ok, err := g.hasHead(ctx)
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	if !ok {
		// Unborn branch: nothing was ever committed.
		return nil, nil
	}
	out, err := g.runGitCommand(ctx, []string{
		"--no-pager",
		"log",
		"--no-color",
		"--encoding=UTF-8",
		"--pretty=tformat:%H",
		"--",
		pathspec,
	}, false, "git log")
	if err != nil {
		return nil, unavailable("list commits", err)
	}
	hashes := strings.Fields(out)
	slog.Debug("listed commits", slog.String("file", pathspec), slog.Int("count", len(hashes)))
	return hashes, nil
}

func (g *gitCLI) FetchCommit(ctx context.Context, hash string) (Commit, error) {
	hash, err := checkRevision(hash)
	if err != nil {
		return Commit{}, unavailable("fetch commit", err)
	}
	out, err := g.runGitCommand(ctx, []string{
		"--no-pager",
		"log",
		"-1",
		"--no-color",
		"--no-decorate",
		"--encoding=UTF-8",
		"--pretty=tformat:%H%n%P%n%B",
		hash,
		"--",
	}, false, "git log")
	if err != nil {
		return Commit{}, unavailable("fetch commit "+hash, err)
	}
	parts := strings.SplitN(out, "\n", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return Commit{}, unavailable("fetch commit "+hash, fmt.Errorf("unexpected git log output: %q", out))
	}
	commit := Commit{
		Hash:         strings.TrimSpace(parts[0]),
		ParentHashes: splitParents(parts[1]),
	}
	if len(parts) == 3 {
		commit.Message = trimMessage(parts[2])
	}
	return commit, nil
}

func (g *gitCLI) hasHead(ctx context.Context) (bool, error) {
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *gitCLI) runGitCommand(ctx context.Context, args []string, allowExit1 bool, label string) (string, error) {
	if g == nil || g.path == "" {
		return "", fmt.Errorf("repository root not set")
	}
	cmdArgs := append([]string{"-C", g.path}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			// rev-parse -q --verify signals a missing ref via exit code 1
		} else {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("%s: %v: %s", label, err, strings.TrimSpace(stderr.String()))
			}
			return "", fmt.Errorf("%s: %w", label, err)
		}
	}
	return stdout.String(), nil
}

// checkRevision keeps ids from being parsed as git options.
func checkRevision(hash string) (string, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return "", errors.New("commit not specified")
	}
	if strings.HasPrefix(hash, "-") {
		return "", fmt.Errorf("invalid commit id %q", hash)
	}
	return hash, nil
}

// relativePathspec turns fileName into a path relative to root. Relative names
// are taken as already relative to the repository root.
func relativePathspec(root, fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", errors.New("file not specified")
	}
	if !filepath.IsAbs(fileName) {
		return filepath.ToSlash(filepath.Clean(fileName)), nil
	}
	rel, err := filepath.Rel(root, fileName)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", fileName, root)
	}
	return filepath.ToSlash(rel), nil
}
