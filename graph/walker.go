// Package graph implements commit-graph operations: BFS traversal,
// merge-base (two-way and octopus), ancestry queries, and fork-point.
//
// Modeled on modules/zeta/object/commit_walker_bfs.go (queue-of-*Commit
// BFS iterator, ForEach/Next/Close shape, seen/seenExternal dedup maps),
// generalized to take a CommitLoader instead of that package's concrete
// *Commit.b backend field so graph stays independent of the store
// package.
package graph

import (
	"context"
	"io"

	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// CommitLoader resolves a commit by id, the only capability graph needs
// from an object store.
type CommitLoader interface {
	ReadCommit(oid plumbing.Hash) (*object.Commit, error)
}

// Node pairs a commit with its own id (object.Commit does not carry its
// own hash).
type Node struct {
	Hash   plumbing.Hash
	Commit *object.Commit
}

// BFSIterator walks the commit graph breadth-first from a start commit,
// visiting each commit once.
type BFSIterator struct {
	loader       CommitLoader
	seen         map[plumbing.Hash]bool
	seenExternal map[plumbing.Hash]bool
	queue        []Node
}

// NewBFSIterator starts a BFS from start, treating any hash in ignore as
// already visited and any hash in seenExternal as belonging to another
// iterator's already-walked set (used by merge-base to avoid re-walking
// shared ancestry).
func NewBFSIterator(loader CommitLoader, start Node, ignore []plumbing.Hash, seenExternal map[plumbing.Hash]bool) *BFSIterator {
	seen := make(map[plumbing.Hash]bool, len(ignore))
	for _, h := range ignore {
		seen[h] = true
	}
	return &BFSIterator{
		loader:       loader,
		seen:         seen,
		seenExternal: seenExternal,
		queue:        []Node{start},
	}
}

func (w *BFSIterator) enqueue(h plumbing.Hash) error {
	if w.seen[h] || w.seenExternal[h] {
		return nil
	}
	c, err := w.loader.ReadCommit(h)
	if err != nil {
		if plumbing.IsNoSuchObject(err) {
			return nil
		}
		return err
	}
	w.queue = append(w.queue, Node{Hash: h, Commit: c})
	return nil
}

// Next returns the next commit in BFS order, io.EOF when exhausted.
func (w *BFSIterator) Next(ctx context.Context) (Node, error) {
	for {
		select {
		case <-ctx.Done():
			return Node{}, ctx.Err()
		default:
		}
		if len(w.queue) == 0 {
			return Node{}, io.EOF
		}
		n := w.queue[0]
		w.queue = w.queue[1:]
		if w.seen[n.Hash] || w.seenExternal[n.Hash] {
			continue
		}
		w.seen[n.Hash] = true
		for _, p := range n.Commit.Parents {
			if err := w.enqueue(p); err != nil {
				return Node{}, err
			}
		}
		return n, nil
	}
}

// ForEach visits every reachable commit in BFS order until cb returns an
// error or plumbing.ErrStop.
func (w *BFSIterator) ForEach(ctx context.Context, cb func(Node) error) error {
	for {
		n, err := w.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(n); err != nil {
			if err == plumbing.ErrStop {
				return nil
			}
			return err
		}
	}
}

// Ancestors returns the full set of commit ids reachable from start
// (inclusive).
func Ancestors(ctx context.Context, loader CommitLoader, start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	c, err := loader.ReadCommit(start)
	if err != nil {
		return nil, err
	}
	seen := map[plumbing.Hash]bool{}
	it := NewBFSIterator(loader, Node{Hash: start, Commit: c}, nil, nil)
	err = it.ForEach(ctx, func(n Node) error {
		seen[n.Hash] = true
		return nil
	})
	return seen, err
}

// IsAncestor reports whether ancestor is reachable from descendant
// (including descendant == ancestor).
func IsAncestor(ctx context.Context, loader CommitLoader, ancestor, descendant plumbing.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	c, err := loader.ReadCommit(descendant)
	if err != nil {
		return false, err
	}
	found := false
	it := NewBFSIterator(loader, Node{Hash: descendant, Commit: c}, nil, nil)
	err = it.ForEach(ctx, func(n Node) error {
		if n.Hash == ancestor {
			found = true
			return plumbing.ErrStop
		}
		return nil
	})
	return found, err
}
