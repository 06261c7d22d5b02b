package history

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// NUL-delimited records; commit messages cannot contain NUL.
const logRecordFormat = "%H%n%P%n%B%x00"

// LogSource serves FetchCommit from a single streamed `git log` per cache miss
// instead of one process per commit. Listing is delegated to the wrapped CLI
// source.
type LogSource struct {
	cli *gitCLI

	mu      sync.Mutex
	cache   map[string]Commit
	streams int
}

func NewLogSource(cli *gitCLI) *LogSource {
	return &LogSource{cli: cli, cache: make(map[string]Commit)}
}

func (s *LogSource) RepoPath() string {
	return s.cli.RepoPath()
}

func (s *LogSource) ListCommitsTouching(ctx context.Context, fileName string) ([]string, error) {
	return s.cli.ListCommitsTouching(ctx, fileName)
}

func (s *LogSource) FetchCommit(ctx context.Context, hash string) (Commit, error) {
	hash, err := checkRevision(hash)
	if err != nil {
		return Commit{}, unavailable("fetch commit", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if commit, ok := s.cache[hash]; ok {
		return commit, nil
	}
	first, err := s.loadLocked(ctx, hash)
	if err != nil {
		return Commit{}, unavailable("fetch commit "+hash, err)
	}
	if commit, ok := s.cache[hash]; ok {
		return commit, nil
	}
	// hash was an abbreviation or a ref name; the stream starts at the commit itself.
	s.cache[hash] = first
	return first, nil
}

// Streams reports how many git log processes were started so far.
func (s *LogSource) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams
}

// loadLocked caches every commit reachable from hash that is not cached yet and
// returns the first record.
func (s *LogSource) loadLocked(ctx context.Context, hash string) (Commit, error) {
	stream, err := startGitLogStream(ctx, s.cli.path, hash)
	if err != nil {
		return Commit{}, err
	}
	s.streams++
	var first Commit
	count := 0
	for {
		commit, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			_ = stream.Close()
			return Commit{}, err
		}
		if count == 0 {
			first = commit
		}
		count++
		if _, ok := s.cache[commit.Hash]; !ok {
			s.cache[commit.Hash] = commit
		}
	}
	if err := stream.Close(); err != nil {
		return Commit{}, err
	}
	if count == 0 {
		return Commit{}, fmt.Errorf("git log returned no commits for %s", hash)
	}
	slog.Debug("streamed commits", slog.String("from", hash), slog.Int("count", count))
	return first, nil
}

type gitLogStream struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	r      *bufio.Reader

	waitOnce sync.Once
	waitErr  error
}

func startGitLogStream(ctx context.Context, repoPath string, fromHash string) (*gitLogStream, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(
		ctx,
		"git",
		"--no-pager",
		"-C",
		repoPath,
		"log",
		"--no-color",
		"--no-decorate",
		"--no-patch",
		"--encoding=UTF-8",
		// tformat keeps git from adding an extra newline after each record.
		"--pretty=tformat:"+logRecordFormat,
		fromHash,
		"--",
	)
	stream := &gitLogStream{cancel: cancel, cmd: cmd}
	cmd.Stderr = &stream.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("git log stdout: %w", err)
	}
	stream.stdout = stdout
	stream.r = bufio.NewReader(stdout)
	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdout.Close()
		if stream.stderr.Len() > 0 {
			return nil, fmt.Errorf("git log start: %v: %s", err, strings.TrimSpace(stream.stderr.String()))
		}
		return nil, fmt.Errorf("git log start: %w", err)
	}
	return stream, nil
}

func (s *gitLogStream) Next() (Commit, error) {
	for {
		rec, err := s.r.ReadBytes(0)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if waitErr := s.wait(); waitErr != nil {
					return Commit{}, waitErr
				}
				return Commit{}, io.EOF
			}
			return Commit{}, err
		}
		rec = bytes.TrimSuffix(rec, []byte{0})
		// git separates tformat records with a newline, so every record after
		// the first starts with one.
		rec = bytes.TrimLeft(rec, "\r\n")
		if len(rec) == 0 {
			continue
		}
		return parseGitLogRecord(rec)
	}
}

func (s *gitLogStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	return s.wait()
}

func (s *gitLogStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	if s.waitErr == nil {
		return nil
	}
	if s.stderr.Len() > 0 {
		return fmt.Errorf("git log: %v: %s", s.waitErr, strings.TrimSpace(s.stderr.String()))
	}
	return fmt.Errorf("git log: %w", s.waitErr)
}

// parseGitLogRecord splits one logRecordFormat record: hash line, parents line,
// then the raw message.
func parseGitLogRecord(rec []byte) (Commit, error) {
	parts := strings.SplitN(string(rec), "\n", 3)
	if len(parts) < 2 {
		return Commit{}, fmt.Errorf("unexpected git log record: got %d lines", len(parts))
	}
	hash := strings.TrimSpace(parts[0])
	if hash == "" {
		return Commit{}, fmt.Errorf("missing commit hash")
	}
	commit := Commit{
		Hash:         hash,
		ParentHashes: splitParents(parts[1]),
	}
	if len(parts) == 3 {
		commit.Message = trimMessage(parts[2])
	}
	return commit, nil
}
