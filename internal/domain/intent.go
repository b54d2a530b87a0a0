package domain

// IntentKind tags the variant of a NavigationIntent.
type IntentKind int

const (
	IntentNoMatch IntentKind = iota
	IntentSurah
	IntentAyah
	IntentJuz
	IntentJuzAyah
)

// String returns the lowercase name of the kind.
func (k IntentKind) String() string {
	switch k {
	case IntentSurah:
		return "surah"
	case IntentAyah:
		return "ayah"
	case IntentJuz:
		return "juz"
	case IntentJuzAyah:
		return "juz_ayah"
	default:
		return "no_match"
	}
}

// Origin tells whether an ayah intent came from in-session data or remote search.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// DefaultAutoNavigateThreshold is the confidence at which callers navigate
// directly instead of suggesting.
const DefaultAutoNavigateThreshold = 70

// NavigationIntent is the matcher's only output. Which fields are meaningful
// depends on Kind:
//
//	IntentSurah    SurahID, Confidence
//	IntentAyah     Verse, Confidence, Origin
//	IntentJuz      JuzID
//	IntentJuzAyah  JuzID, IndexInJuz (1-based)
//	IntentNoMatch  nothing
type NavigationIntent struct {
	Kind       IntentKind
	SurahID    int
	Verse      VerseRef
	JuzID      int
	IndexInJuz int
	Confidence int
	Origin     Origin
}

func NoMatch() NavigationIntent {
	return NavigationIntent{Kind: IntentNoMatch}
}

func SurahIntent(id, confidence int) NavigationIntent {
	return NavigationIntent{Kind: IntentSurah, SurahID: id, Confidence: clampConfidence(confidence)}
}

func AyahIntent(ref VerseRef, confidence int, origin Origin) NavigationIntent {
	return NavigationIntent{
		Kind:       IntentAyah,
		SurahID:    ref.Surah,
		Verse:      ref,
		Confidence: clampConfidence(confidence),
		Origin:     origin,
	}
}

func JuzIntent(id int) NavigationIntent {
	return NavigationIntent{Kind: IntentJuz, JuzID: id, Confidence: 100}
}

func JuzAyahIntent(juz, index int) NavigationIntent {
	return NavigationIntent{Kind: IntentJuzAyah, JuzID: juz, IndexInJuz: index, Confidence: 100}
}

// IsMatch reports whether the intent names a target.
func (n NavigationIntent) IsMatch() bool {
	return n.Kind != IntentNoMatch
}

// AutoNavigate reports whether the intent is confident enough to navigate
// without asking. Juz references are explicit and always qualify.
func (n NavigationIntent) AutoNavigate(threshold int) bool {
	switch n.Kind {
	case IntentNoMatch:
		return false
	case IntentJuz, IntentJuzAyah:
		return true
	default:
		return n.Confidence >= threshold
	}
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}
