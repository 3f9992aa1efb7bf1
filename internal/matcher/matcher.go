// Package matcher judges free-text quiz answers. Quiz questions and duel rounds
// both go through Matches so a player is judged the same way everywhere.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SimilarityThreshold is the minimum Ratio for a fuzzy match (inclusive).
const SimilarityThreshold = 0.6

// Normalize lowercases s, strips diacritics and punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// transform.Chain keeps state, build a fresh one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// Matches reports whether candidate is accepted by any of the accepted answers.
func Matches(candidate string, accepted []string) bool {
	c := Normalize(candidate)
	if c == "" {
		return false
	}

	for _, raw := range accepted {
		a := Normalize(raw)
		if a == "" {
			continue
		}
		if strings.Contains(a, c) || strings.Contains(c, a) {
			return true
		}
		if Ratio(c, a) >= SimilarityThreshold {
			return true
		}
	}
	return false
}

// Ratio returns the Ratcliff/Obershelp similarity 2*M/T of a and b, where M is the
// number of matching characters and T the total number of characters.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingChars(a[:i], b[:j]) + matchingChars(a[i+k:], b[j+k:])
}

// longestMatch finds the earliest longest common block of a and b.
func longestMatch(a, b []rune) (int, int, int) {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	besti, bestj, bestk := 0, 0, 0
	j2len := map[int]int{}
	for i, r := range a {
		next := map[int]int{}
		for _, j := range b2j[r] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
