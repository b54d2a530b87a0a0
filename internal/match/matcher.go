// Package match resolves free-form typed or transcribed input into a
// navigation target.
//
// Stages run as a priority chain and the first hit wins:
//
//  1. numeric verse pair ("2:255", "2 255")
//  2. surah name or alias, optionally followed by an ayah number
//  3. verses supplied by the caller (local ayahs)
//  4. juz reference ("juz 30", "juz 30:5")
//
// Anything else is [domain.IntentNoMatch].
package match

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/query"
	"github.com/escalopa/quran-navigator/internal/textnorm"
)

const (
	defaultSurahFloor = 0.70
	defaultAyahFloor  = 0.60
)

var (
	verseColonRe   = regexp.MustCompile(`(?:^|\D)(\d{1,3})\s*:\s*(\d{1,3})(?:\D|$)`)
	verseSpaceRe   = regexp.MustCompile(`(?:^|\D)(\d{1,3})\s+(\d{1,3})(?:\D|$)`)
	juzRe          = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:juz'?|juzz|para|part|الجزء|جزء)\s*(\d{1,2})(?:\s*:?\s*(\d{1,3}))?`)
	juzTailRe      = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:juz'?|juzz|para|part|الجزء|جزء)\s*$`)
	surahKeywordRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:surah|surat|sura|soorah|chapter|سورة|سوره)\s*(\d{1,3})(?:\s*[:\s]\s*(\d{1,3}))?`)
	trailingNumRe  = regexp.MustCompile(`^(.*?)\s*(\d{1,3})$`)
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithScorer replaces the default Levenshtein scorer.
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		m.scorer = s
	}
}

// WithSurahFloor sets the minimum similarity for surah name matches. Default: 0.70.
func WithSurahFloor(floor float64) Option {
	return func(m *Matcher) {
		m.surahFloor = floor
	}
}

// WithAyahFloor sets the minimum similarity for local verse matches. Default: 0.60.
func WithAyahFloor(floor float64) Option {
	return func(m *Matcher) {
		m.ayahFloor = floor
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	catalog    *domain.Catalog
	scorer     Scorer
	surahFloor float64
	ayahFloor  float64
	surahs     []surahKeys
}

// New returns a Matcher over the given catalog.
func New(catalog *domain.Catalog, opts ...Option) *Matcher {
	m := &Matcher{
		catalog:    catalog,
		scorer:     Levenshtein(),
		surahFloor: defaultSurahFloor,
		ayahFloor:  defaultAyahFloor,
	}
	for _, o := range opts {
		o(m)
	}
	m.surahs = buildSurahKeys(catalog)
	return m
}

// Match resolves raw into a navigation intent. local may be nil.
func (m *Matcher) Match(raw string, local []domain.AyahRecord) domain.NavigationIntent {
	text := strings.TrimSpace(textnorm.ASCIIDigits(raw))
	if text == "" {
		return domain.NoMatch()
	}

	if intent, ok := m.matchVersePair(text); ok {
		return intent
	}
	if !juzRe.MatchString(text) {
		if intent, ok := m.matchSurah(text); ok {
			return intent
		}
	}
	if len(local) > 0 {
		if intent, ok := m.matchLocal(text, local); ok {
			return intent
		}
	}
	if intent, ok := matchJuz(text); ok {
		return intent
	}
	return domain.NoMatch()
}

func (m *Matcher) matchVersePair(text string) (domain.NavigationIntent, bool) {
	for _, re := range []*regexp.Regexp{verseColonRe, verseSpaceRe} {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if juzTailRe.MatchString(text[:loc[2]]) {
			continue
		}
		surah, _ := strconv.Atoi(text[loc[2]:loc[3]])
		ayah, _ := strconv.Atoi(text[loc[4]:loc[5]])
		if ref, err := domain.NewVerseRef(surah, ayah); err == nil {
			return domain.AyahIntent(ref, 100, domain.OriginLocal), true
		}
	}
	return domain.NavigationIntent{}, false
}

func (m *Matcher) matchSurah(text string) (domain.NavigationIntent, bool) {
	if sm := surahKeywordRe.FindStringSubmatch(text); sm != nil {
		id, _ := strconv.Atoi(sm[1])
		if _, ok := m.catalog.Surah(id); ok {
			return withAyah(id, sm[2], 100), true
		}
	}

	isArabic := textnorm.HasArabic(text)
	cleaned := query.Clean(text, isArabic)
	name, number := cleaned, ""
	if sm := trailingNumRe.FindStringSubmatch(cleaned); sm != nil {
		name, number = strings.TrimSpace(sm[1]), sm[2]
	}
	if !hasLetters(name) {
		return domain.NavigationIntent{}, false
	}

	var input nameVariants
	if isArabic {
		input = arabicVariants(name)
	} else {
		input = latinVariants(name)
	}

	bestID, bestScore := 0, 0.0
	for _, k := range m.surahs {
		keys := k.latin
		if isArabic {
			keys = k.arabic
		}
		for _, key := range keys {
			if s := similarity(m.scorer, input, key); s > bestScore {
				bestID, bestScore = k.id, s
			}
		}
	}
	if bestScore < m.surahFloor {
		return domain.NavigationIntent{}, false
	}
	return withAyah(bestID, number, percent(bestScore)), true
}

func (m *Matcher) matchLocal(text string, local []domain.AyahRecord) (domain.NavigationIntent, bool) {
	isArabic := textnorm.HasArabic(text)
	q := foldFor(text, isArabic)
	if q == "" {
		return domain.NavigationIntent{}, false
	}
	qWords := strings.Fields(q)

	var best domain.VerseRef
	bestScore := 0.0
	for _, rec := range local {
		candidate, ok := localText(rec, isArabic)
		if !ok {
			continue
		}
		if s := m.partialSimilarity(qWords, q, foldFor(candidate, isArabic)); s > bestScore {
			best, bestScore = rec.VerseKey, s
		}
	}
	if bestScore < m.ayahFloor || !best.Valid() {
		return domain.NavigationIntent{}, false
	}
	return domain.AyahIntent(best, percent(bestScore), domain.OriginLocal), true
}

// partialSimilarity compares the query against the whole verse and against
// every window of the verse with as many words as the query, so a recited
// fragment scores as high as the part of the verse it covers.
func (m *Matcher) partialSimilarity(qWords []string, q, verse string) float64 {
	best := m.scorer.Similarity(q, verse)
	vWords := strings.Fields(verse)
	n := len(qWords)
	if n == 0 || n >= len(vWords) {
		return best
	}
	for i := 0; i+n <= len(vWords); i++ {
		if s := m.scorer.Similarity(q, strings.Join(vWords[i:i+n], " ")); s > best {
			best = s
		}
	}
	return best
}

func matchJuz(text string) (domain.NavigationIntent, bool) {
	sm := juzRe.FindStringSubmatch(text)
	if sm == nil {
		return domain.NavigationIntent{}, false
	}
	juz, _ := strconv.Atoi(sm[1])
	if juz < 1 || juz > domain.JuzCount {
		return domain.NavigationIntent{}, false
	}
	if sm[2] != "" {
		if idx, _ := strconv.Atoi(sm[2]); idx >= 1 {
			return domain.JuzAyahIntent(juz, idx), true
		}
	}
	return domain.JuzIntent(juz), true
}

func withAyah(surah int, number string, confidence int) domain.NavigationIntent {
	if number != "" {
		ayah, _ := strconv.Atoi(number)
		if ref, err := domain.NewVerseRef(surah, ayah); err == nil {
			return domain.AyahIntent(ref, confidence, domain.OriginLocal)
		}
	}
	return domain.SurahIntent(surah, confidence)
}

func localText(rec domain.AyahRecord, isArabic bool) (string, bool) {
	if isArabic {
		return rec.PreferredText()
	}
	t := rec.Text[domain.ScriptTranslation]
	return t, t != ""
}

func foldFor(text string, isArabic bool) string {
	if isArabic {
		return textnorm.PhoneticFold(text)
	}
	return textnorm.FoldLatin(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, text))
}

func hasLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}
