package match

import (
	"strings"
	"unicode/utf8"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/textnorm"
)

// latinArticles are leading words dropped from transliterated names so that
// "Al-Baqarah" and "Baqarah" compare equal.
var latinArticles = map[string]struct{}{
	"al": {}, "an": {}, "ar": {}, "as": {}, "at": {}, "ad": {}, "adh": {},
	"az": {}, "ash": {}, "ath": {}, "the": {},
}

const arabicArticle = "ال"

// nameVariants holds the comparison forms of one name: as folded, without
// a leading article, and with spaces removed. Empty slots are skipped.
type nameVariants [3]string

type surahKeys struct {
	id     int
	latin  []nameVariants
	arabic []nameVariants
}

func buildSurahKeys(c *domain.Catalog) []surahKeys {
	entries := c.Surahs()
	keys := make([]surahKeys, 0, len(entries))
	for _, e := range entries {
		k := surahKeys{id: e.ID}
		k.latin = append(k.latin, latinVariants(e.SimpleName))
		for _, a := range e.Aliases {
			k.latin = append(k.latin, latinVariants(a))
		}
		k.arabic = append(k.arabic, arabicVariants(e.ArabicName))
		keys = append(keys, k)
	}
	return keys
}

func latinVariants(name string) nameVariants {
	folded := textnorm.FoldLatin(name)
	bare := folded
	if first, rest, ok := strings.Cut(folded, " "); ok {
		if _, article := latinArticles[first]; article {
			bare = rest
		}
	}
	return nameVariants{folded, bare, strings.ReplaceAll(folded, " ", "")}
}

func arabicVariants(name string) nameVariants {
	folded := textnorm.PhoneticFold(name)
	bare := folded
	if rest, ok := strings.CutPrefix(folded, arabicArticle); ok {
		if rest = strings.TrimSpace(rest); utf8.RuneCountInString(rest) > 1 {
			bare = rest
		}
	}
	return nameVariants{folded, bare, strings.ReplaceAll(folded, " ", "")}
}

// similarity compares like-with-like slots and returns the best score.
func similarity(s Scorer, input, key nameVariants) float64 {
	best := 0.0
	for i := range input {
		if input[i] != "" && input[i] == key[i] {
			return 1
		}
		if utf8.RuneCountInString(input[i]) < 2 || key[i] == "" {
			continue
		}
		if v := s.Similarity(input[i], key[i]); v > best {
			best = v
		}
	}
	return best
}
