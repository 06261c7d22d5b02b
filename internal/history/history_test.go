package history

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
)

var allKinds = []Kind{KindExec, KindLog, KindNative}

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "", want: DefaultKind},
		{in: "exec", want: KindExec},
		{in: " LOG ", want: KindLog},
		{in: "native", want: KindNative},
		{in: "svn", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseKind(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKind(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListAndFetch_TwoCommits(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	older := repo.commitFile("test_file.txt", "one\n", "Added test_file.txt")
	repo.commitFile("other.txt", "x\n", "Unrelated change")
	newer := repo.commitFile("test_file.txt", "two\n", "Изменен test_file.txt")

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			src, err := Open(context.Background(), kind, repo.dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got, err := src.ListCommitsTouching(context.Background(), "test_file.txt")
			if err != nil {
				t.Fatalf("ListCommitsTouching: %v", err)
			}
			if !slices.Equal(got, []string{newer, older}) {
				t.Fatalf("ListCommitsTouching = %v, want %v", got, []string{newer, older})
			}

			commit, err := src.FetchCommit(context.Background(), older)
			if err != nil {
				t.Fatalf("FetchCommit(older): %v", err)
			}
			if commit.Message != "Added test_file.txt" {
				t.Fatalf("older message = %q", commit.Message)
			}
			if len(commit.ParentHashes) != 0 {
				t.Fatalf("root commit parents = %v, want none", commit.ParentHashes)
			}

			commit, err = src.FetchCommit(context.Background(), newer)
			if err != nil {
				t.Fatalf("FetchCommit(newer): %v", err)
			}
			if commit.Hash != newer || commit.Message != "Изменен test_file.txt" {
				t.Fatalf("newer commit = %+v", commit)
			}
			if len(commit.ParentHashes) != 1 {
				t.Fatalf("newer parents = %v, want exactly one", commit.ParentHashes)
			}
		})
	}
}

func TestListCommitsTouching_NoHistory(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	repo.commitFile("tracked.txt", "x\n", "initial")

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			src, err := Open(context.Background(), kind, repo.dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got, err := src.ListCommitsTouching(context.Background(), "missing.txt")
			if err != nil {
				t.Fatalf("ListCommitsTouching: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected no commits, got %v", got)
			}
		})
	}
}

func TestListCommitsTouching_UnbornBranch(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	for _, kind := range allKinds {
		src, err := Open(context.Background(), kind, repo.dir)
		if err != nil {
			t.Fatalf("%s: Open: %v", kind, err)
		}
		got, err := src.ListCommitsTouching(context.Background(), "a.txt")
		if err != nil {
			t.Fatalf("%s: ListCommitsTouching: %v", kind, err)
		}
		if len(got) != 0 {
			t.Fatalf("%s: expected no commits, got %v", kind, got)
		}
	}
}

func TestListCommitsTouching_AbsolutePath(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	want := repo.commitFile("dir/a.txt", "x\n", "add a")

	src, err := Open(context.Background(), KindExec, repo.dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := src.ListCommitsTouching(context.Background(), filepath.Join(src.RepoPath(), "dir", "a.txt"))
	if err != nil {
		t.Fatalf("ListCommitsTouching: %v", err)
	}
	if !slices.Equal(got, []string{want}) {
		t.Fatalf("ListCommitsTouching = %v, want [%s]", got, want)
	}
}

func TestListCommitsTouching_MergeHistory(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	base := repo.commitFile("f.txt", "base\n", "base")
	repo.git("checkout", "-q", "-b", "feature")
	side := repo.commitFile("f.txt", "side\n", "side edits f")
	repo.git("checkout", "-q", "main")
	repo.commitFile("other.txt", "other\n", "main other")
	repo.git("merge", "-q", "--no-ff", "--no-gpg-sign", "-m", "merge feature", "feature")
	// A second merge where the file only changes on the first-parent side.
	repo.git("checkout", "-q", "-b", "docs")
	repo.commitFile("docs.txt", "docs\n", "docs only")
	repo.git("checkout", "-q", "main")
	tip := repo.commitFile("f.txt", "tip\n", "main edits f")
	repo.git("merge", "-q", "--no-ff", "--no-gpg-sign", "-m", "merge docs", "docs")

	want := []string{tip, side, base}
	listings := make(map[Kind][]string, len(allKinds))
	for _, kind := range allKinds {
		src, err := Open(context.Background(), kind, repo.dir)
		if err != nil {
			t.Fatalf("Open(%s): %v", kind, err)
		}
		got, err := src.ListCommitsTouching(context.Background(), "f.txt")
		if err != nil {
			t.Fatalf("ListCommitsTouching(%s): %v", kind, err)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("%s listing = %v, want %v", kind, got, want)
		}
		listings[kind] = got
	}
	if !slices.Equal(listings[KindNative], listings[KindExec]) {
		t.Fatalf("native listing %v differs from git %v", listings[KindNative], listings[KindExec])
	}

	// other.txt only changed on the first-parent side of the first merge.
	for _, kind := range allKinds {
		src, err := Open(context.Background(), kind, repo.dir)
		if err != nil {
			t.Fatalf("Open(%s): %v", kind, err)
		}
		got, err := src.ListCommitsTouching(context.Background(), "other.txt")
		if err != nil {
			t.Fatalf("ListCommitsTouching(%s): %v", kind, err)
		}
		if len(got) != 1 {
			t.Fatalf("%s other.txt listing = %v, want a single commit", kind, got)
		}
	}
}

func TestFetchCommit_MergeParents(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	base := repo.commitFile("f.txt", "base\n", "base")
	repo.git("checkout", "-q", "-b", "feature")
	side := repo.commitFile("side.txt", "side\n", "side")
	repo.git("checkout", "-q", "main")
	mainTip := repo.commitFile("f.txt", "main\n", "main work")
	repo.git("merge", "-q", "--no-ff", "--no-gpg-sign", "-m", "Merge \"feature\"\n\nwith a body", "feature")
	merge := repo.git("rev-parse", "HEAD")

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			src, err := Open(context.Background(), kind, repo.dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			commit, err := src.FetchCommit(context.Background(), merge)
			if err != nil {
				t.Fatalf("FetchCommit: %v", err)
			}
			if !slices.Equal(commit.ParentHashes, []string{mainTip, side}) {
				t.Fatalf("parents = %v, want [%s %s]", commit.ParentHashes, mainTip, side)
			}
			if commit.Message != "Merge \"feature\"\n\nwith a body" {
				t.Fatalf("message = %q", commit.Message)
			}
			baseCommit, err := src.FetchCommit(context.Background(), base)
			if err != nil {
				t.Fatalf("FetchCommit(base): %v", err)
			}
			if baseCommit.Message != "base" {
				t.Fatalf("base message = %q", baseCommit.Message)
			}
		})
	}
}

func TestFetchCommit_UnknownCommit(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	repo.commitFile("a.txt", "x\n", "initial")

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			src, err := Open(context.Background(), kind, repo.dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			for _, id := range []string{"0123456789abcdef0123456789abcdef01234567", "--output=/tmp/x", ""} {
				_, err := src.FetchCommit(context.Background(), id)
				if err == nil {
					t.Fatalf("FetchCommit(%q) expected error", id)
				}
				if !IsUnavailable(err) {
					t.Fatalf("FetchCommit(%q) error %v is not ErrHistoryUnavailable", id, err)
				}
			}
		})
	}
}

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()

	newTestRepo(t) // skips without git
	dir := t.TempDir()
	for _, kind := range allKinds {
		_, err := Open(context.Background(), kind, dir)
		if err == nil {
			t.Fatalf("%s: expected error for %s", kind, dir)
		}
		if !errors.Is(err, ErrHistoryUnavailable) {
			t.Fatalf("%s: error %v is not ErrHistoryUnavailable", kind, err)
		}
		var herr *Error
		if !errors.As(err, &herr) || herr.Op != "open repository" {
			t.Fatalf("%s: unexpected error %#v", kind, err)
		}
	}
}

func TestLogSource_StreamsOncePerAncestry(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	var hashes []string
	for i := range 5 {
		hashes = append(hashes, repo.commitFile("f.txt", string(rune('a'+i)), "commit "+string(rune('a'+i))))
	}

	cli, err := openCLI(context.Background(), repo.dir)
	if err != nil {
		t.Fatalf("openCLI: %v", err)
	}
	src := NewLogSource(cli)
	for i := len(hashes) - 1; i >= 0; i-- {
		commit, err := src.FetchCommit(context.Background(), hashes[i])
		if err != nil {
			t.Fatalf("FetchCommit: %v", err)
		}
		if commit.Hash != hashes[i] {
			t.Fatalf("hash = %s, want %s", commit.Hash, hashes[i])
		}
	}
	if got := src.Streams(); got != 1 {
		t.Fatalf("streams = %d, want 1", got)
	}

	short := hashes[2][:7]
	commit, err := src.FetchCommit(context.Background(), short)
	if err != nil {
		t.Fatalf("FetchCommit(short): %v", err)
	}
	if commit.Hash != hashes[2] {
		t.Fatalf("short hash resolved to %s, want %s", commit.Hash, hashes[2])
	}
}
