package domain

// ScriptVariant names a textual rendering of a verse. Values follow the
// field names of the Quran.com API.
type ScriptVariant string

const (
	ScriptImlaeiSimple  ScriptVariant = "text_imlaei_simple"
	ScriptImlaei        ScriptVariant = "text_imlaei"
	ScriptUthmaniSimple ScriptVariant = "text_uthmani_simple"
	ScriptUthmani       ScriptVariant = "text_uthmani"
	ScriptTranslation   ScriptVariant = "translation"
)

// MatchPreference orders script variants for fuzzy matching of recited
// speech. Simplified spellings come first since transcripts rarely carry
// diacritics.
var MatchPreference = []ScriptVariant{
	ScriptImlaeiSimple,
	ScriptImlaei,
	ScriptUthmaniSimple,
	ScriptUthmani,
}

// AyahRecord is a caller-supplied verse with its available text variants.
type AyahRecord struct {
	VerseKey VerseRef
	Text     map[ScriptVariant]string
}

// PreferredText returns the first non-empty variant in MatchPreference order.
func (a AyahRecord) PreferredText() (string, bool) {
	for _, v := range MatchPreference {
		if t := a.Text[v]; t != "" {
			return t, true
		}
	}
	return "", false
}

// SearchQuery is a request to the remote full-text search endpoint.
type SearchQuery struct {
	Text     string
	Language Language
	Size     int
}

// SearchHit is one validated result of the remote search endpoint.
type SearchHit struct {
	VerseKey    VerseRef
	Text        string
	Highlighted string
	Translation string
}

// RankedResult is a search hit rescored locally.
type RankedResult struct {
	VerseKey    VerseRef `json:"verse_key"`
	Text        string   `json:"text"`
	Translation string   `json:"translation,omitempty"`
	Score       float64  `json:"score"`
}
