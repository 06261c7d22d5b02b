package history

import (
	"context"
	"fmt"
	"strings"
)

// Commit is the slice of commit data the graph needs: the full message and the
// ordered parent ids.
type Commit struct {
	Hash         string
	ParentHashes []string
	Message      string
}

// Source abstracts access to a file's revision history.
//
// The default implementations shell out to the git executable, but the
// interface allows alternative implementations (e.g. pure-Go) without changing
// callers.
type Source interface {
	RepoPath() string
	// ListCommitsTouching returns the ids of commits that modified fileName,
	// newest first. A file without history yields an empty slice.
	ListCommitsTouching(ctx context.Context, fileName string) ([]string, error)
	FetchCommit(ctx context.Context, hash string) (Commit, error)
}

// Kind selects a Source implementation.
type Kind string

const (
	// KindExec spawns one git process per request.
	KindExec Kind = "exec"
	// KindLog streams the ancestry of a commit with a single git log and serves
	// later requests from memory.
	KindLog Kind = "log"
	// KindNative reads the repository with go-git.
	KindNative Kind = "native"
)

const DefaultKind = KindLog

func (k Kind) String() string {
	return string(k)
}

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindExec, KindLog, KindNative:
		return k, nil
	case "":
		return DefaultKind, nil
	default:
		return "", fmt.Errorf("unknown history backend %q (want exec, log or native)", raw)
	}
}

// Open returns a Source of the given kind rooted at the repository containing
// repoPath.
func Open(ctx context.Context, kind Kind, repoPath string) (Source, error) {
	switch kind {
	case KindExec:
		return OpenCLI(ctx, repoPath)
	case KindLog, "":
		cli, err := openCLI(ctx, repoPath)
		if err != nil {
			return nil, err
		}
		return NewLogSource(cli), nil
	case KindNative:
		return OpenNative(repoPath)
	default:
		return nil, fmt.Errorf("unknown history backend %q", kind)
	}
}

// trimMessage mirrors what `git log --pretty=%B` prints once surrounding
// whitespace is dropped.
func trimMessage(msg string) string {
	return strings.TrimSpace(msg)
}

func splitParents(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
