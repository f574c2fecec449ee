package graph

import (
	"context"
	"sort"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// MergeBase finds every best common ancestor of a and b: commits
// reachable from both that are not themselves ancestors of another
// common ancestor (the same "best common ancestor" set git merge-base
// reports, including the multiple-candidate case for criss-cross
// merges).
func MergeBase(ctx context.Context, loader CommitLoader, a, b plumbing.Hash) ([]plumbing.Hash, error) {
	ancA, err := Ancestors(ctx, loader, a)
	if err != nil {
		return nil, err
	}
	ancB, err := Ancestors(ctx, loader, b)
	if err != nil {
		return nil, err
	}

	var common []plumbing.Hash
	for h := range ancA {
		if ancB[h] {
			common = append(common, h)
		}
	}
	if len(common) == 0 {
		return nil, nil
	}

	// Reduce to the maximal elements: drop any candidate that is itself
	// an ancestor of another candidate.
	best := make([]plumbing.Hash, 0, len(common))
	for _, c := range common {
		dominated := false
		for _, other := range common {
			if c == other {
				continue
			}
			isAnc, err := IsAncestor(ctx, loader, c, other)
			if err != nil {
				return nil, err
			}
			if isAnc {
				dominated = true
				break
			}
		}
		if !dominated {
			best = append(best, c)
		}
	}
	sort.Slice(best, func(i, j int) bool { return best[i].String() < best[j].String() })
	return best, nil
}

// OctopusMergeBase extends MergeBase across more than two tips, folding
// pairwise merge-bases left to right as `git merge-base --octopus` does.
func OctopusMergeBase(ctx context.Context, loader CommitLoader, tips []plumbing.Hash) ([]plumbing.Hash, error) {
	if len(tips) == 0 {
		return nil, nil
	}
	bases := []plumbing.Hash{tips[0]}
	for _, tip := range tips[1:] {
		var next []plumbing.Hash
		for _, base := range bases {
			result, err := MergeBase(ctx, loader, base, tip)
			if err != nil {
				return nil, err
			}
			next = append(next, result...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		bases = dedupHashes(next)
	}
	return bases, nil
}

func dedupHashes(hs []plumbing.Hash) []plumbing.Hash {
	seen := make(map[plumbing.Hash]bool, len(hs))
	out := make([]plumbing.Hash, 0, len(hs))
	for _, h := range hs {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// ReflogEntry is one recorded move of a reference: its value before and
// after the move.
type ReflogEntry struct {
	Old plumbing.Hash
	New plumbing.Hash
}

// ReflogSource reads a reference's recorded move history, newest entry
// first — satisfied by refs.Store.Log.
type ReflogSource interface {
	Log(name string) ([]ReflogEntry, error)
}

// ForkPoint finds the commit where branchTip's history diverged from
// baseRef, mirroring `git merge-base --fork-point`: it walks baseRef's
// reflog newest-first and returns the first recorded value that is
// still an ancestor of branchTip. This can differ from a plain
// merge-base when baseRef has since been rewound, rebased, or
// force-pushed past the commit branchTip actually forked from — the
// reflog remembers where baseRef used to point even though baseTip no
// longer does. Falls back to a plain merge-base against baseTip when no
// logged entry matches (e.g. a fresh or expired reflog), the same
// fallback real fork-point resolution uses when log history doesn't
// reach far enough back.
func ForkPoint(ctx context.Context, loader CommitLoader, log ReflogSource, baseRef string, baseTip, branchTip plumbing.Hash) (plumbing.Hash, error) {
	entries, err := log.Log(baseRef)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	for _, e := range entries {
		for _, candidate := range []plumbing.Hash{e.New, e.Old} {
			if candidate.IsZero() {
				continue
			}
			ok, err := IsAncestor(ctx, loader, candidate, branchTip)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if ok {
				return candidate, nil
			}
		}
	}

	bases, err := MergeBase(ctx, loader, baseTip, branchTip)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(bases) == 0 {
		return plumbing.ZeroHash, nil
	}
	if len(bases) == 1 {
		return bases[0], nil
	}
	// Several criss-cross bases: the fork point is whichever is not an
	// ancestor of any other base candidate, i.e. the most derived one.
	for _, candidate := range bases {
		isAncestorOfAnother := false
		for _, other := range bases {
			if candidate == other {
				continue
			}
			ok, err := IsAncestor(ctx, loader, candidate, other)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if ok {
				isAncestorOfAnother = true
				break
			}
		}
		if !isAncestorOfAnother {
			return candidate, nil
		}
	}
	return bases[0], nil
}
