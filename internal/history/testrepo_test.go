package history

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

type testRepo struct {
	t     *testing.T
	dir   string
	clock int
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	r := &testRepo{t: t, dir: t.TempDir()}
	r.git("init", "-q")
	r.git("symbolic-ref", "HEAD", "refs/heads/main")
	return r
}

func (r *testRepo) git(args ...string) string {
	r.t.Helper()
	r.clock++
	// Distinct, increasing timestamps keep git log ordering deterministic.
	date := fmt.Sprintf("2024-01-01T00:%02d:%02dZ", r.clock/60, r.clock%60)
	cmd := exec.Command("git", append([]string{"-C", r.dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"HOME="+r.dir,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Alice",
		"GIT_AUTHOR_EMAIL=alice@example.com",
		"GIT_COMMITTER_NAME=Alice",
		"GIT_COMMITTER_EMAIL=alice@example.com",
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// commitFile writes content to name, commits it with msg and returns the new hash.
func (r *testRepo) commitFile(name, content, msg string) string {
	r.t.Helper()
	path := filepath.Join(r.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", name, err)
	}
	r.git("add", "--", name)
	r.git("commit", "-q", "--no-gpg-sign", "-m", msg)
	return r.git("rev-parse", "HEAD")
}

func (r *testRepo) emptyCommit(msg string) string {
	r.t.Helper()
	r.git("commit", "-q", "--no-gpg-sign", "--allow-empty", "-m", msg)
	return r.git("rev-parse", "HEAD")
}
