// Package merge implements three-way text merge: a diff3-style index
// merge over the ours/base/theirs line slices, followed by conflict-
// marker rendering.
//
// Modeled on modules/diferenco/merge.go (itself a Go port of
// node-diff3/Synchrotron), adapted to drive line diffs through
// modules/lcs instead of diferenco's Myers/Histogram engines, and scoped
// to the single "minified" conflict style this engine needs rather than
// diferenco's three selectable styles.
package merge

import (
	"slices"
	"sort"
	"strings"

	"github.com/dot-do/gitcore/modules/lcs"
)

// Conflict marker text, per §4.7.
const (
	Sep1 = "<<<<<<<"
	Sep2 = "======="
	Sep3 = ">>>>>>>"
)

// hunk mirrors one entry from either diff against the merge base: P1 is
// the base-relative start, side marks which diff it came from (0=ours,
// 2=theirs), Del is the base span length, P2/Ins describe the
// replacement span on the changed side.
type hunk [5]int

type hunkList []*hunk

func (h hunkList) Len() int           { return len(h) }
func (h hunkList) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h hunkList) Less(i, j int) bool { return h[i][0] < h[j][0] }

// indexMerge computes diff3-style merge decisions for o (base), a
// (ours), b (theirs): each returned record is either
//   - {side, p, len}: copy len lines from side (0=ours,1=base,2=theirs)
//     starting at p, or
//   - {-1, aLhs, aLen, oLhs, oLen, bLhs, bLen}: a real conflict region.
func indexMerge[E comparable](o, a, b []E) [][]int {
	m1 := lcs.Diff(o, a)
	m2 := lcs.Diff(o, b)

	var hunks []*hunk
	for _, c := range m1 {
		hunks = append(hunks, &hunk{c.P1, 0, c.Del, c.P2, c.Ins})
	}
	for _, c := range m2 {
		hunks = append(hunks, &hunk{c.P1, 2, c.Del, c.P2, c.Ins})
	}
	sort.Sort(hunkList(hunks))

	var result [][]int
	commonOffset := 0
	copyCommon := func(target int) {
		if target > commonOffset {
			result = append(result, []int{1, commonOffset, target - commonOffset})
			commonOffset = target
		}
	}

	for idx := 0; idx < len(hunks); idx++ {
		first := idx
		h := hunks[idx]
		lhs := h[0]
		rhs := lhs + h[2]
		for idx < len(hunks)-1 {
			next := hunks[idx+1]
			if next[0] > rhs {
				break
			}
			if next[0]+next[2] > rhs {
				rhs = next[0] + next[2]
			}
			idx++
		}

		copyCommon(lhs)
		if first == idx {
			if h[4] > 0 {
				result = append(result, []int{h[1], h[3], h[4]})
			}
		} else {
			regions := [][]int{{len(a), -1, len(o), -1}, nil, {len(b), -1, len(o), -1}}
			for i := first; i <= idx; i++ {
				hh := hunks[i]
				side := hh[1]
				r := regions[side]
				oLhs, oRhs := hh[0], hh[0]+hh[2]
				abLhs, abRhs := hh[3], hh[3]+hh[4]
				r[0] = min(abLhs, r[0])
				r[1] = max(abRhs, r[1])
				r[2] = min(oLhs, r[2])
				r[3] = max(oRhs, r[3])
			}
			aLhs := regions[0][0] + (lhs - regions[0][2])
			aRhs := regions[0][1] + (rhs - regions[0][3])
			bLhs := regions[2][0] + (lhs - regions[2][2])
			bRhs := regions[2][1] + (rhs - regions[2][3])
			result = append(result, []int{-1, aLhs, aRhs - aLhs, lhs, rhs - lhs, bLhs, bRhs - bLhs})
		}
		commonOffset = rhs
	}
	copyCommon(len(o))
	return result
}

// Conflict is one region where ours and theirs both diverged from base
// in incompatible ways.
type Conflict struct {
	Ours, Base, Theirs []string
}

// Block is one segment of a merge result: exactly one of Lines or
// Conflict is set.
type Block struct {
	Lines    []string
	Conflict *Conflict
}

// Merge runs the diff3 algorithm over ours/base/theirs and returns the
// ordered sequence of clean and conflicting blocks.
func Merge(base, ours, theirs []string) []Block {
	indices := indexMerge(base, ours, theirs)
	files := [][]string{ours, base, theirs}

	var blocks []Block
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			blocks = append(blocks, Block{Lines: pending})
			pending = nil
		}
	}

	for _, rec := range indices {
		side := rec[0]
		if side == -1 {
			oursPart, theirsPart := ours[rec[1]:rec[1]+rec[2]], theirs[rec[5]:rec[5]+rec[6]]
			if slices.Equal(oursPart, theirsPart) {
				// Both sides made the same change: collapse to one copy.
				pending = append(pending, oursPart...)
				continue
			}
			flush()
			blocks = append(blocks, Block{Conflict: &Conflict{
				Ours:   append([]string(nil), oursPart...),
				Base:   append([]string(nil), base[rec[3]:rec[3]+rec[4]]...),
				Theirs: append([]string(nil), theirsPart...),
			}})
			continue
		}
		pending = append(pending, files[side][rec[1]:rec[1]+rec[2]]...)
	}
	flush()
	return blocks
}

// HasConflict reports whether any block in blocks is a conflict.
func HasConflict(blocks []Block) bool {
	for _, b := range blocks {
		if b.Conflict != nil {
			return true
		}
	}
	return false
}

// Render flattens blocks to text, wrapping each conflict in
// "<<<<<<< ours" / "=======" / ">>>>>>> theirs" markers labeled with
// oursLabel/theirsLabel (§4.7's conflict-marker format). Base content is
// not shown, matching the engine's default (non-diff3) conflict style.
func Render(blocks []Block, oursLabel, theirsLabel string) string {
	var buf strings.Builder
	for _, b := range blocks {
		if b.Conflict == nil {
			for _, l := range b.Lines {
				buf.WriteString(l)
				buf.WriteByte('\n')
			}
			continue
		}
		buf.WriteString(Sep1)
		if oursLabel != "" {
			buf.WriteByte(' ')
			buf.WriteString(oursLabel)
		}
		buf.WriteByte('\n')
		for _, l := range b.Conflict.Ours {
			buf.WriteString(l)
			buf.WriteByte('\n')
		}
		buf.WriteString(Sep2)
		buf.WriteByte('\n')
		for _, l := range b.Conflict.Theirs {
			buf.WriteString(l)
			buf.WriteByte('\n')
		}
		buf.WriteString(Sep3)
		if theirsLabel != "" {
			buf.WriteByte(' ')
			buf.WriteString(theirsLabel)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// SplitLines splits text into lines, preserving line content without
// trailing '\n'. A trailing newline does not produce a spurious empty
// final element.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	trimmed := strings.HasSuffix(text, "\n")
	if trimmed {
		text = text[:len(text)-1]
	}
	return strings.Split(text, "\n")
}
