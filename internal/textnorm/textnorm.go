// Package textnorm canonicalizes Arabic and transliterated Latin text so that
// differently spelled or diacritized forms of the same words compare equal.
//
// Every function is deterministic, total and idempotent.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = '\u0640'

// Normalize strips Arabic diacritics and Quranic annotation marks, removes
// tatweel, turns punctuation into spaces, unifies letter allographs and
// collapses whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	stripped := stripMarks(text)

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r == tatweel || isQuranicMark(r):
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(unifyLetter(r))
		}
	}
	return collapseSpaces(b.String())
}

// PhoneticFold normalizes text and then merges Arabic letters that are
// commonly confused in speech transcripts.
func PhoneticFold(text string) string {
	return strings.Map(foldPhonetic, Normalize(text))
}

// HasArabic reports whether text contains any Arabic-script letter.
func HasArabic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// ASCIIDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII.
func ASCIIDigits(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, text)
}

var latinFolds = strings.NewReplacer(
	"ee", "i",
	"oo", "u",
	"ou", "u",
	"aa", "a",
)

// FoldLatin lowercases a transliteration, strips accents, drops apostrophes,
// treats hyphens and underscores as spaces and folds long-vowel spellings
// (ee, oo, ou, aa) so that "Yaseen", "Ya-Sin" and "yasin" converge.
func FoldLatin(text string) string {
	s := stripMarks(strings.ToLower(text))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '`', '‘', '’', 'ʼ', 'ʿ', 'ʾ':
			return -1
		case '-', '_':
			return ' '
		}
		return r
	}, s)
	for {
		next := latinFolds.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	return collapseSpaces(s)
}

func stripMarks(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// isQuranicMark covers annotation signs that are not all category Mn,
// such as the end-of-ayah sign and the rub el hizb.
func isQuranicMark(r rune) bool {
	return (r >= '\u0610' && r <= '\u061A') || (r >= '\u06D6' && r <= '\u06ED') || r == '\u0670'
}

func unifyLetter(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ', 'ٱ', 'ء':
		return 'ا'
	case 'ى', 'ئ':
		return 'ي'
	case 'ؤ':
		return 'و'
	case 'ة':
		return 'ه'
	}
	return r
}

func foldPhonetic(r rune) rune {
	switch r {
	case 'ذ', 'ض', 'ظ':
		return 'ز'
	case 'ث':
		return 'س'
	case 'ق':
		return 'ك'
	case 'غ':
		return 'خ'
	case 'ع':
		return 'ا'
	}
	return r
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
