package match

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Scorer computes the similarity of two strings in [0, 1], 1 meaning equal.
type Scorer interface {
	Similarity(a, b string) float64
}

// ScorerFunc adapts a plain function to [Scorer].
type ScorerFunc func(a, b string) float64

func (f ScorerFunc) Similarity(a, b string) float64 { return f(a, b) }

// Levenshtein returns a Scorer based on the edit distance ratio
// 1 - distance/max(len(a), len(b)), counted in runes.
func Levenshtein() Scorer {
	return ScorerFunc(func(a, b string) float64 {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		if la == 0 && lb == 0 {
			return 1
		}
		if la == 0 || lb == 0 {
			return 0
		}
		d := matchr.Levenshtein(a, b)
		return 1 - float64(d)/float64(max(la, lb))
	})
}

// JaroWinkler returns a Scorer based on Jaro-Winkler similarity. It is more
// lenient than [Levenshtein] on shared prefixes.
func JaroWinkler() Scorer {
	return ScorerFunc(func(a, b string) float64 {
		if a == b {
			return 1
		}
		if a == "" || b == "" {
			return 0
		}
		return matchr.JaroWinkler(a, b, false)
	})
}
