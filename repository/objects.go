package repository

import (
	"context"
	"fmt"

	"github.com/dot-do/gitcore/graph"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/pack"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// kindOf maps an object.Type to the pack ObjectKind wire tag.
func kindOf(t object.Type) pack.ObjectKind {
	switch t {
	case object.CommitObject:
		return pack.KindCommit
	case object.TreeObject:
		return pack.KindTree
	case object.BlobObject:
		return pack.KindBlob
	case object.TagObject:
		return pack.KindTag
	default:
		return 0
	}
}

// CollectObjects gathers every object upload-pack must send to a client
// that has haves and wants wants: every commit reachable from wants but
// not from haves, plus the full tree/blob closure of each such commit.
//
// Commit-level reachability is computed exactly via graph.Ancestors;
// tree/blob inclusion is a safe superset rather than a minimal diff
// against the haves' trees (this engine does not maintain a
// path-addressed reverse index over tree shape), deduplicated globally
// so no object is written to the pack twice.
func (r *Repository) CollectObjects(ctx context.Context, wants, haves []plumbing.Hash) ([]pack.ObjectToPack, error) {
	excluded := map[plumbing.Hash]bool{}
	for _, h := range haves {
		anc, err := graph.Ancestors(ctx, r.Objects, h)
		if err != nil {
			return nil, fmt.Errorf("repository: walk haves: %w", err)
		}
		for oid := range anc {
			excluded[oid] = true
		}
		excluded[h] = true
	}

	var missing []plumbing.Hash
	seenCommit := map[plumbing.Hash]bool{}
	for _, w := range wants {
		anc, err := graph.Ancestors(ctx, r.Objects, w)
		if err != nil {
			return nil, fmt.Errorf("repository: walk wants: %w", err)
		}
		anc[w] = true
		for oid := range anc {
			if excluded[oid] || seenCommit[oid] {
				continue
			}
			seenCommit[oid] = true
			missing = append(missing, oid)
		}
	}

	visited := map[plumbing.Hash]bool{}
	var out []pack.ObjectToPack
	for _, cid := range missing {
		commit, err := r.Objects.ReadCommit(cid)
		if err != nil {
			return nil, err
		}
		raw, err := commit.Serialize()
		if err != nil {
			return nil, err
		}
		out = append(out, pack.ObjectToPack{SHA: cid, Kind: pack.KindCommit, Content: raw})
		if err := r.walkTree(commit.Tree, visited, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) walkTree(oid plumbing.Hash, visited map[plumbing.Hash]bool, out *[]pack.ObjectToPack) error {
	if oid.IsZero() || visited[oid] {
		return nil
	}
	visited[oid] = true
	tree, err := r.Objects.ReadTree(oid)
	if err != nil {
		return err
	}
	raw, err := tree.Serialize()
	if err != nil {
		return err
	}
	*out = append(*out, pack.ObjectToPack{SHA: oid, Kind: pack.KindTree, Content: raw})
	for _, entry := range tree.Entries {
		if visited[entry.Hash] {
			continue
		}
		if entry.Mode.IsDir() {
			if err := r.walkTree(entry.Hash, visited, out); err != nil {
				return err
			}
			continue
		}
		visited[entry.Hash] = true
		blob, err := r.Objects.ReadBlob(entry.Hash)
		if err != nil {
			return err
		}
		braw, err := blob.Serialize()
		if err != nil {
			return err
		}
		*out = append(*out, pack.ObjectToPack{SHA: entry.Hash, Kind: pack.KindBlob, Content: braw})
	}
	return nil
}
