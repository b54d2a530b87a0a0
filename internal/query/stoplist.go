package query

// fillerPhrases are command and filler phrases removed by Clean, stored as
// word sequences in cleaned form. Longer phrases are tried first.
var fillerPhrases = map[bool][][]string{
	false: splitAll(
		"i want to listen to", "i want to hear", "take me to", "search for",
		"look for", "look up", "go to", "jump to", "skip to", "show me",
		"play", "recite", "read", "open", "show", "find", "search", "listen",
		"surah", "surat", "sura", "soorah", "chapter", "verse", "verses",
		"ayah", "ayat", "aya", "please", "quran",
	),
	true: splitAll(
		"ابحث عن", "بحث عن", "اذهب الي", "انتقل الي", "اريد سماع",
		"اقرا", "شغل", "افتح", "اعرض", "ابحث", "بحث", "استمع",
		"سوره", "الايه", "ايه", "من فضلك", "القران",
	),
}

// stopwords are dropped by Tokenize in both scripts.
var stopwords = map[string]struct{}{
	"of": {}, "the": {}, "and": {}, "an": {}, "in": {}, "to": {}, "on": {},
	"is": {}, "for": {}, "with": {}, "by": {}, "at": {}, "from": {},
	"wa": {}, "min": {}, "fi": {}, "al": {}, "ala": {}, "ila": {},
	"من": {}, "في": {}, "على": {}, "علي": {}, "الي": {}, "عن": {},
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
