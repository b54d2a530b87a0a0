package search

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/escalopa/quran-navigator/internal/textnorm"
)

// Weights tunes result rescoring and the fallback phase.
type Weights struct {
	// Coverage weighs the share of keywords found in a result.
	Coverage float64
	// Order weighs the share of keywords found in query order.
	Order float64
	// FallbackBelow triggers the fallback phase when the best score is lower.
	FallbackBelow float64
	// FallbackKeep drops fallback results scoring at or below it.
	FallbackKeep float64
	// MaxEdits is the edit distance tolerated between a keyword and a word.
	MaxEdits int
	// MinFuzzyRunes is the length both sides must exceed for edit tolerance.
	MinFuzzyRunes int
}

// DefaultWeights returns the tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		Coverage:      0.7,
		Order:         0.3,
		FallbackBelow: 0.6,
		FallbackKeep:  0.3,
		MaxEdits:      2,
		MinFuzzyRunes: 3,
	}
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes highlight tags and decodes HTML entities.
func StripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

// Score rates words against keywords as
// Coverage*matched/total + Order*ordered/total. A match counts as ordered
// when it lands at a word index after the previous match.
func (w Weights) Score(keywords, words []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matched, ordered := 0, 0
	last := -1
	for _, kw := range keywords {
		idx := w.findFrom(kw, words, last+1)
		if idx < 0 {
			idx = w.findFrom(kw, words, 0)
		}
		if idx < 0 {
			continue
		}
		matched++
		if idx > last {
			ordered++
		}
		last = idx
	}
	total := float64(len(keywords))
	return w.Coverage*float64(matched)/total + w.Order*float64(ordered)/total
}

func (w Weights) findFrom(kw string, words []string, from int) int {
	for i := from; i < len(words); i++ {
		if w.wordMatches(kw, words[i]) {
			return i
		}
	}
	return -1
}

func (w Weights) wordMatches(kw, word string) bool {
	if strings.Contains(word, kw) {
		return true
	}
	if utf8.RuneCountInString(kw) <= w.MinFuzzyRunes || utf8.RuneCountInString(word) <= w.MinFuzzyRunes {
		return false
	}
	return matchr.Levenshtein(kw, word) <= w.MaxEdits
}

// candidateWords returns the comparable words of a result: normalized Arabic
// for Arabic queries, the lowercased translation otherwise.
func candidateWords(text string, arabic bool) []string {
	plain := StripMarkup(text)
	if arabic {
		return strings.Fields(textnorm.Normalize(plain))
	}
	return strings.Fields(strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’':
			return -1
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		}
		return unicode.ToLower(r)
	}, plain))
}
