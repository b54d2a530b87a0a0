package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalopa/quran-navigator/internal/domain"
)

func localAyahs() []domain.AyahRecord {
	return []domain.AyahRecord{
		{
			VerseKey: domain.VerseRef{Surah: 2, Ayah: 1},
			Text: map[domain.ScriptVariant]string{
				domain.ScriptImlaeiSimple: "الم",
				domain.ScriptUthmani:      "الٓمٓ",
			},
		},
		{
			VerseKey: domain.VerseRef{Surah: 2, Ayah: 2},
			Text: map[domain.ScriptVariant]string{
				domain.ScriptImlaeiSimple: "ذلك الكتاب لا ريب فيه هدى للمتقين",
				domain.ScriptTranslation:  "This is the Book about which there is no doubt, a guidance for those conscious of Allah",
			},
		},
		{
			VerseKey: domain.VerseRef{Surah: 2, Ayah: 3},
			Text: map[domain.ScriptVariant]string{
				domain.ScriptUthmaniSimple: "الذين يؤمنون بالغيب ويقيمون الصلاة ومما رزقناهم ينفقون",
			},
		},
	}
}

func newMatcher(opts ...Option) *Matcher {
	return New(domain.DefaultCatalog(), opts...)
}

func TestMatch_NumericPair(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	tests := []struct {
		in   string
		want domain.VerseRef
	}{
		{in: "2:255", want: domain.VerseRef{Surah: 2, Ayah: 255}},
		{in: "play 2 : 255 al baqarah", want: domain.VerseRef{Surah: 2, Ayah: 255}},
		{in: "Yaseen 2:255", want: domain.VerseRef{Surah: 2, Ayah: 255}},
		{in: "٢:٢٥٥", want: domain.VerseRef{Surah: 2, Ayah: 255}},
		{in: "surah 36 12", want: domain.VerseRef{Surah: 36, Ayah: 12}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := m.Match(tt.in, localAyahs())
			require.Equal(t, domain.IntentAyah, got.Kind)
			assert.Equal(t, tt.want, got.Verse)
			assert.Equal(t, 100, got.Confidence)
		})
	}
}

func TestMatch_NumericPairOutOfRange(t *testing.T) {
	t.Parallel()

	got := newMatcher().Match("115:1", nil)
	assert.Equal(t, domain.IntentNoMatch, got.Kind)
}

func TestMatch_SurahAliases(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	for _, in := range []string{"Yaseen", "سورة يس", "ya-sin", "play surah yasin", "surah 36", "سورة ٣٦"} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			got := m.Match(in, nil)
			require.Equal(t, domain.IntentSurah, got.Kind, "input %q", in)
			assert.Equal(t, 36, got.SurahID)
			assert.GreaterOrEqual(t, got.Confidence, domain.DefaultAutoNavigateThreshold)
		})
	}
}

func TestMatch_SurahSpokenNames(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	tests := []struct {
		in   string
		want int
	}{
		{in: "Nun", want: 68},
		{in: "surah noon", want: 68},
		{in: "Qalam", want: 68},
		{in: "Ha Mim", want: 40},
		{in: "ha meem", want: 40},
		{in: "Ha Mim Sajdah", want: 41},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := m.Match(tt.in, nil)
			require.Equal(t, domain.IntentSurah, got.Kind, "input %q", tt.in)
			assert.Equal(t, tt.want, got.SurahID)
			assert.Equal(t, 100, got.Confidence)
		})
	}
}

func TestMatch_SurahFuzzy(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	got := m.Match("al baqara", nil)
	require.Equal(t, domain.IntentSurah, got.Kind)
	assert.Equal(t, 2, got.SurahID)

	got = m.Match("البقرة", nil)
	require.Equal(t, domain.IntentSurah, got.Kind)
	assert.Equal(t, 2, got.SurahID)

	got = m.Match("Al-Kahf", nil)
	require.Equal(t, domain.IntentSurah, got.Kind)
	assert.Equal(t, 18, got.SurahID)
	assert.Equal(t, 100, got.Confidence)
}

func TestMatch_SurahWithTrailingNumber(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	got := m.Match("yaseen 5", nil)
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 36, Ayah: 5}, got.Verse)

	got = m.Match("al baqarah verse 255", nil)
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 2, Ayah: 255}, got.Verse)
}

func TestMatch_BareNumberIsNotSurah(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	for _, in := range []string{"255", "36", "٣٦"} {
		got := m.Match(in, localAyahs())
		assert.Equal(t, domain.IntentNoMatch, got.Kind, "input %q", in)
	}
}

func TestMatch_LocalExact(t *testing.T) {
	t.Parallel()

	got := newMatcher().Match("الم", localAyahs())
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 2, Ayah: 1}, got.Verse)
	assert.Equal(t, domain.OriginLocal, got.Origin)
	assert.Equal(t, 100, got.Confidence)
}

func TestMatch_LocalPartial(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	got := m.Match("ذالك الكتاب لا ريب", localAyahs())
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 2, Ayah: 2}, got.Verse)
	assert.Equal(t, domain.OriginLocal, got.Origin)

	got = m.Match("ذَٰلِكَ ٱلْكِتَٰبُ لَا رَيْبَ فِيهِ", localAyahs())
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 2, Ayah: 2}, got.Verse)

	got = m.Match("the book about which there is no doubt", localAyahs())
	require.Equal(t, domain.IntentAyah, got.Kind)
	assert.Equal(t, domain.VerseRef{Surah: 2, Ayah: 2}, got.Verse)
}

func TestMatch_LocalSkippedWithoutAyahs(t *testing.T) {
	t.Parallel()

	got := newMatcher().Match("ذالك الكتاب لا ريب", nil)
	assert.Equal(t, domain.IntentNoMatch, got.Kind)
}

func TestMatch_Juz(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	got := m.Match("juz 30", nil)
	require.Equal(t, domain.IntentJuz, got.Kind)
	assert.Equal(t, 30, got.JuzID)

	got = m.Match("الجزء ٣٠", nil)
	require.Equal(t, domain.IntentJuz, got.Kind)
	assert.Equal(t, 30, got.JuzID)

	for _, in := range []string{"juz 30 5", "juz 30:5", "para 30 5"} {
		got = m.Match(in, nil)
		require.Equal(t, domain.IntentJuzAyah, got.Kind, "input %q", in)
		assert.Equal(t, 30, got.JuzID)
		assert.Equal(t, 5, got.IndexInJuz)
	}

	got = m.Match("juz 31", nil)
	assert.Equal(t, domain.IntentNoMatch, got.Kind)
}

func TestMatch_Nonsense(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	for _, in := range []string{"blorf wibble zzxq", "", "   ", "!!!"} {
		got := m.Match(in, localAyahs())
		assert.Equal(t, domain.IntentNoMatch, got.Kind, "input %q", in)
	}
}

func TestMatch_InjectedScorer(t *testing.T) {
	t.Parallel()

	never := ScorerFunc(func(a, b string) float64 { return 0 })
	m := newMatcher(WithScorer(never))

	assert.Equal(t, domain.IntentNoMatch, m.Match("xyz", localAyahs()).Kind)
	assert.Equal(t, domain.IntentAyah, m.Match("2:255", nil).Kind)
}

func TestMatch_Floors(t *testing.T) {
	t.Parallel()

	strict := newMatcher(WithSurahFloor(1.01), WithAyahFloor(1.01))
	assert.Equal(t, domain.IntentNoMatch, strict.Match("Yaseen", nil).Kind)
	assert.Equal(t, domain.IntentNoMatch, strict.Match("الم", localAyahs()).Kind)
}
