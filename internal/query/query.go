// Package query turns raw typed or transcribed input into cleaned text and
// ordered keyword tokens.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/escalopa/quran-navigator/internal/textnorm"
)

// Clean lowercases Latin text, normalizes Arabic text, strips symbol
// punctuation and removes command and filler phrases for the given script.
// Word order is preserved.
func Clean(raw string, isArabic bool) string {
	var s string
	if isArabic {
		s = textnorm.Normalize(stripSymbols(raw))
	} else {
		s = stripSymbols(strings.ToLower(raw))
	}
	return strings.Join(removePhrases(strings.Fields(s), fillerPhrases[isArabic]), " ")
}

// Tokenize splits cleaned text on whitespace and drops single-rune tokens
// and stopwords. Tokens keep their input order.
func Tokenize(cleaned string) []string {
	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 || isStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Keywords detects the script of raw and returns its cleaned tokens.
func Keywords(raw string) []string {
	return Tokenize(Clean(raw, textnorm.HasArabic(raw)))
}

func stripSymbols(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’' || r == '‘' || r == '`':
			return -1
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		}
		return r
	}, s)
}

func removePhrases(words []string, phrases [][]string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		if n := matchPhrase(words[i:], phrases); n > 0 {
			i += n
			continue
		}
		out = append(out, words[i])
		i++
	}
	return out
}

// matchPhrase returns the length of the longest phrase that prefixes words.
func matchPhrase(words []string, phrases [][]string) int {
	best := 0
	for _, p := range phrases {
		if len(p) <= best || len(p) > len(words) {
			continue
		}
		ok := true
		for j, w := range p {
			if words[j] != w {
				ok = false
				break
			}
		}
		if ok {
			best = len(p)
		}
	}
	return best
}

func splitAll(phrases ...string) [][]string {
	out := make([][]string, len(phrases))
	for i, p := range phrases {
		out[i] = strings.Fields(p)
	}
	return out
}
