// Package similarity scores pairs of normalized names and builds the
// pairwise similarity matrix a resolution run clusters over.
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// MaxScore is the similarity of two identical names
const MaxScore = 100.0

// ScoreFunc scores two normalized names in [0, 100]
type ScoreFunc func(a, b string) float64

// Score returns the similarity of two normalized names in [0, 100].
//
// Single-letter initials are first aligned with the other name's token at the
// same position when that token starts with the same letter, so "j berg" and
// "jan berg" compare as the same name. The remaining pair is scored with
// PartialRatio.
func Score(a, b string) float64 {
	if a == b {
		return MaxScore
	}

	a, b = expandInitials(a, b)
	if a == b {
		return MaxScore
	}

	return PartialRatio(a, b)
}

// PartialRatio returns the best edit-distance ratio of the shorter string
// against any equally long window of the longer one. Windows clipped at
// either end of the longer string are also considered.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)

	switch {
	case len(ra) == 0 && len(rb) == 0:
		return MaxScore
	case len(ra) == 0 || len(rb) == 0:
		return 0
	case len(ra) == len(rb):
		return max(bestWindow(ra, rb), bestWindow(rb, ra))
	case len(ra) > len(rb):
		return bestWindow(rb, ra)
	default:
		return bestWindow(ra, rb)
	}
}

// bestWindow scores short against every window of long. len(short) <= len(long).
func bestWindow(short, long []rune) float64 {
	m, n := len(short), len(long)
	s := string(short)
	best := 0.0

	consider := func(w []rune) bool {
		r := ratio(s, len(short), string(w), len(w))
		if r > best {
			best = r
		}
		return best == MaxScore
	}

	for k := 0; k+m <= n; k++ {
		if consider(long[k : k+m]) {
			return best
		}
	}
	for k := 1; k < m; k++ {
		if consider(long[:k]) || consider(long[n-k:]) {
			return best
		}
	}

	return best
}

func ratio(a string, la int, b string, lb int) float64 {
	longest := max(la, lb)
	if longest == 0 {
		return MaxScore
	}
	d := levenshtein.ComputeDistance(a, b)
	return MaxScore * (1 - float64(d)/float64(longest))
}

// expandInitials replaces a one-letter token with the token at the same
// position in the other name when that token starts with the letter.
func expandInitials(a, b string) (string, string) {
	ta, tb := strings.Fields(a), strings.Fields(b)
	changed := false

	for i := 0; i < len(ta) && i < len(tb); i++ {
		switch {
		case isInitialOf(ta[i], tb[i]):
			ta[i] = tb[i]
			changed = true
		case isInitialOf(tb[i], ta[i]):
			tb[i] = ta[i]
			changed = true
		}
	}

	if !changed {
		return a, b
	}
	return strings.Join(ta, " "), strings.Join(tb, " ")
}

func isInitialOf(initial, token string) bool {
	ri := []rune(initial)
	if len(ri) != 1 {
		return false
	}
	rt := []rune(token)
	return len(rt) > 1 && rt[0] == ri[0]
}
