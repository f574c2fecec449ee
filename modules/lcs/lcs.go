// Package lcs implements longest-common-subsequence line matching, the
// basis for three-way text merge.
//
// Modeled on utils/lcs/lcs.go (Hunt's algorithm, originally written over
// []rune for a throwaway CLI demo), generified here to work over any
// comparable element so it can diff lines ([]string) directly instead of
// requiring callers to flatten text to runes first.
package lcs

// candidate is one node of the chain Hunt's algorithm builds while
// scanning buffer1; walking .chain from the final candidate backwards
// yields the matched-index pairs of the longest common subsequence.
type candidate struct {
	i, j  int
	chain *candidate
}

// Match is one aligned pair of indices belonging to the LCS of a and b.
type Match struct {
	A, B int
}

// LCS returns the longest common subsequence of a and b as a list of
// index pairs, in ascending order.
func LCS[E comparable](a, b []E) []Match {
	positions := make(map[any][]int)
	for j, item := range b {
		positions[item] = append(positions[item], j)
	}

	null := &candidate{i: -1, j: -1}
	candidates := []*candidate{null}

	for i, item := range a {
		indices := positions[item]
		r := 0
		c := candidates[0]

		for _, j := range indices {
			s := r
			for ; s < len(candidates); s++ {
				if candidates[s].j < j && (s == len(candidates)-1 || candidates[s+1].j > j) {
					break
				}
			}
			if s < len(candidates) {
				next := &candidate{i: i, j: j, chain: candidates[s]}
				if r == len(candidates) {
					candidates = append(candidates, c)
				} else {
					candidates[r] = c
				}
				r = s + 1
				c = next
				if r == len(candidates) {
					break
				}
			}
		}
		if r < len(candidates) {
			candidates[r] = c
		} else {
			candidates = append(candidates, c)
		}
	}

	tail := candidates[len(candidates)-1]
	var matches []Match
	for n := tail; n != null && n != nil; n = n.chain {
		matches = append(matches, Match{A: n.i, B: n.j})
	}
	for l, r := 0, len(matches)-1; l < r; l, r = l+1, r-1 {
		matches[l], matches[r] = matches[r], matches[l]
	}
	return matches
}

// Change is one replace/insert/delete hunk: Del elements of a starting at
// P1 are replaced by Ins elements of b starting at P2.
type Change struct {
	P1, Del int
	P2, Ins int
}

// Diff aligns a against b via their LCS and returns the minimal set of
// Change hunks transforming a into b.
func Diff[E comparable](a, b []E) []Change {
	matches := LCS(a, b)
	var changes []Change
	ai, bi := 0, 0
	flush := func(aEnd, bEnd int) {
		if aEnd > ai || bEnd > bi {
			changes = append(changes, Change{P1: ai, Del: aEnd - ai, P2: bi, Ins: bEnd - bi})
		}
		ai, bi = aEnd, bEnd
	}
	for _, m := range matches {
		flush(m.A, m.B)
		ai, bi = m.A+1, m.B+1
	}
	flush(len(a), len(b))
	return changes
}
