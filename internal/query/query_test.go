package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		isArabic bool
		want     string
	}{
		{name: "latin filler", raw: "Please PLAY Surah Al-Baqarah!", want: "al baqarah"},
		{name: "multi word phrase", raw: "search for the light of the heavens", want: "the light of the heavens"},
		{name: "apostrophes dropped", raw: "open Qur'an juz' 30", want: "juz 30"},
		{name: "arabic filler", raw: "اقرأ سورة البقرة", isArabic: true, want: "البقره"},
		{name: "arabic phrase", raw: "ابحث عن الرَّحْمَٰن الرَّحِيم", isArabic: true, want: "الرحمن الرحيم"},
		{name: "only filler", raw: "play please", want: ""},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.raw, tt.isArabic))
		})
	}
}

func TestTokenize_PreservesOrder(t *testing.T) {
	t.Parallel()

	got := Tokenize("the light of the heavens and earth")
	assert.Equal(t, []string{"light", "heavens", "earth"}, got)

	got = Tokenize("a b cd من الرحمن")
	assert.Equal(t, []string{"cd", "الرحمن"}, got)

	assert.Empty(t, Tokenize(""))
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"mercy", "lord"}, Keywords("Search for mercy of the Lord"))
	assert.Equal(t, []string{"الحمد", "لله", "رب", "العالمين"}, Keywords("اقرأ: الْحَمْدُ لِلَّهِ رَبِّ الْعَالَمِينَ"))
	assert.Empty(t, Keywords("play the"))
}
