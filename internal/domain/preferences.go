package domain

// Language represents supported languages
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
	LangRussian Language = "ru"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case LangEnglish, LangArabic, LangRussian:
		return true
	}
	return false
}

// RepeatForever makes a clip repeat until the listener moves on.
const RepeatForever = -1

// RepeatOptions lists the repeat counts offered to listeners.
var RepeatOptions = []int{1, 3, 5, RepeatForever}

// Preferences are the per-listener playback settings kept across sessions.
type Preferences struct {
	Language   Language
	Reciter    int
	Repeat     int
	Speed      float64
	AutoScroll bool
}

// DefaultPreferences returns the settings used for a new listener.
func DefaultPreferences(reciter int) Preferences {
	return Preferences{
		Language:   LangEnglish,
		Reciter:    reciter,
		Repeat:     1,
		Speed:      1.0,
		AutoScroll: true,
	}
}

// ValidRepeat reports whether n is a finite positive count or RepeatForever.
func ValidRepeat(n int) bool {
	return n >= 1 || n == RepeatForever
}

// ValidSpeed reports whether s is a supported playback rate.
func ValidSpeed(s float64) bool {
	return s >= 0.5 && s <= 2.0
}
