package history

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// pathEntry is what a commit's tree holds at the walked path.
type pathEntry struct {
	present bool
	hash    plumbing.Hash
	mode    filemode.FileMode
}

// pathWalk lists the commits that changed one path with git's default history
// simplification: a commit is shown when its entry differs from every parent;
// at a merge that matches some parent only that parent is followed. Commits
// are visited newest committer date first.
type pathWalk struct {
	repo    *gitlib.Repository
	path    string
	entries map[plumbing.Hash]pathEntry
}

func newPathWalk(repo *gitlib.Repository, path string) *pathWalk {
	return &pathWalk{repo: repo, path: path, entries: map[plumbing.Hash]pathEntry{}}
}

func (w *pathWalk) run(ctx context.Context, from plumbing.Hash) ([]string, error) {
	start, err := w.repo.CommitObject(from)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", from, err)
	}
	queue := &commitQueue{}
	seen := map[plumbing.Hash]struct{}{from: {}}
	queue.push(start)

	var hashes []string
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := queue.pop()
		entry, err := w.entry(c)
		if err != nil {
			return nil, err
		}
		parents, err := w.parents(c)
		if err != nil {
			return nil, err
		}

		follow := parents
		changed := true
		for _, p := range parents {
			pe, err := w.entry(p)
			if err != nil {
				return nil, err
			}
			if pe == entry {
				// Same content as this parent: the change, if any, came
				// through it.
				follow = []*object.Commit{p}
				changed = false
				break
			}
		}
		if len(parents) == 0 {
			changed = entry.present
		}
		if changed {
			hashes = append(hashes, c.Hash.String())
		}
		for _, p := range follow {
			if _, ok := seen[p.Hash]; ok {
				continue
			}
			seen[p.Hash] = struct{}{}
			queue.push(p)
		}
	}
	return hashes, nil
}

// parents loads the parent commits of c. Parents missing from the object
// store (shallow clone boundaries) are skipped.
func (w *pathWalk) parents(c *object.Commit) ([]*object.Commit, error) {
	out := make([]*object.Commit, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		p, err := w.repo.CommitObject(h)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				continue
			}
			return nil, fmt.Errorf("read commit %s: %w", h, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (w *pathWalk) entry(c *object.Commit) (pathEntry, error) {
	if e, ok := w.entries[c.Hash]; ok {
		return e, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return pathEntry{}, fmt.Errorf("read tree of %s: %w", c.Hash, err)
	}
	var e pathEntry
	te, err := tree.FindEntry(w.path)
	switch {
	case err == nil:
		e = pathEntry{present: true, hash: te.Hash, mode: te.Mode}
	case errors.Is(err, object.ErrEntryNotFound), errors.Is(err, object.ErrDirectoryNotFound):
	default:
		return pathEntry{}, fmt.Errorf("find %s in %s: %w", w.path, c.Hash, err)
	}
	w.entries[c.Hash] = e
	return e, nil
}

// commitQueue pops the commit with the newest committer date; ties keep
// insertion order.
type commitQueue struct {
	items []queuedCommit
	seq   int
}

type queuedCommit struct {
	commit *object.Commit
	seq    int
}

func (q *commitQueue) push(c *object.Commit) {
	q.seq++
	heap.Push(q, queuedCommit{commit: c, seq: q.seq})
}

func (q *commitQueue) pop() *object.Commit {
	return heap.Pop(q).(queuedCommit).commit
}

func (q *commitQueue) Len() int { return len(q.items) }

func (q *commitQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if !a.commit.Committer.When.Equal(b.commit.Committer.When) {
		return a.commit.Committer.When.After(b.commit.Committer.When)
	}
	return a.seq < b.seq
}

func (q *commitQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *commitQueue) Push(x any) { q.items = append(q.items, x.(queuedCommit)) }

func (q *commitQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}
